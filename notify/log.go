package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// LogNotifier writes messages to the log instead of delivering them.
// It is meant for development setups without a mail or SMS gateway.
type LogNotifier struct{}

// Notify implements the Notifier interface
func (LogNotifier) Notify(_ context.Context, msg Message) error {
	log.WithFields(
		log.Fields{
			"channel": msg.Channel,
			"to":      msg.To,
			"subject": msg.Subject,
			"purpose": msg.Purpose,
		},
	).Info(msg.Body)
	return nil
}
