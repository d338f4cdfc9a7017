package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultNATSSubject is the subject outgoing mail is handed off on
const DefaultNATSSubject = "credtrust.notify.email"

// NATSNotifier hands messages as JSON to a mail relay listening on a NATS
// subject. With a request timeout set it waits for the relay's
// acknowledgement, otherwise it only publishes.
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
	// RequestTimeout, if positive, makes Notify a request/reply
	RequestTimeout time.Duration
}

// NewNATSNotifier returns a NATSNotifier publishing on the passed subject
func NewNATSNotifier(conn *nats.Conn, subject string) *NATSNotifier {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSNotifier{
		conn:    conn,
		subject: subject,
	}
}

// Subject returns the subject messages are published on
func (n *NATSNotifier) Subject() string {
	return n.subject
}

// Notify implements the Notifier interface
func (n *NATSNotifier) Notify(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	if n.RequestTimeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, n.RequestTimeout)
		defer cancel()
		if _, err = n.conn.RequestWithContext(ctx, n.subject, data); err != nil {
			return deliveryFailed(msg, err)
		}
	} else if err = n.conn.Publish(n.subject, data); err != nil {
		return deliveryFailed(msg, err)
	}
	log.WithFields(
		log.Fields{
			"to":      msg.To,
			"purpose": msg.Purpose,
		},
	).Debug("message handed off to mail relay")
	return nil
}
