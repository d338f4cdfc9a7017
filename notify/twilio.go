package notify

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioNotifier sends messages as SMS through the Twilio REST API
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioNotifier returns a TwilioNotifier for the passed account
func NewTwilioNotifier(accountSID, authToken, from string) (*TwilioNotifier, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("missing twilio credentials or sender number")
	}
	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		},
	)
	return &TwilioNotifier{
		client: client,
		from:   from,
	}, nil
}

// Notify implements the Notifier interface. Attachments cannot be sent by
// SMS and are dropped.
func (t *TwilioNotifier) Notify(_ context.Context, msg Message) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(msg.To)
	params.SetBody(msg.Body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return deliveryFailed(msg, err)
	}
	entry := log.WithField("to", msg.To)
	if resp.Sid != nil {
		entry = entry.WithField("sid", *resp.Sid)
	}
	entry.Debug("sms sent")
	return nil
}
