package config

import (
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/zachmann/go-utils/duration"

	"github.com/eduverify/credtrust/notify"
)

// Notifier types
const (
	notifierLog    = "log"
	notifierNATS   = "nats"
	notifierTwilio = "twilio"
)

// notifyConf selects how messages reach users.
//
// YAML example:
//
//	notify:
//	  email:
//	    type: nats
//	    subject: credtrust.notify.email
//	  sms:
//	    type: twilio
//	    from: "+15005550006"
type notifyConf struct {
	Email emailNotifyConf `yaml:"email"`
	SMS   smsNotifyConf   `yaml:"sms"`
}

// emailNotifyConf configures email delivery. Emails are handed to a mail
// relay over NATS; with a request_timeout the relay must acknowledge each
// message.
type emailNotifyConf struct {
	Type           string                  `yaml:"type"`
	Subject        string                  `yaml:"subject"`
	RequestTimeout duration.DurationOption `yaml:"request_timeout"`
}

// smsNotifyConf configures sms delivery through twilio. The credentials
// may also be given as TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN.
type smsNotifyConf struct {
	Type       string `yaml:"type"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
}

var defaultNotifyConf = notifyConf{
	Email: emailNotifyConf{
		Type:    notifierLog,
		Subject: notify.DefaultNATSSubject,
	},
	SMS: smsNotifyConf{
		Type: notifierLog,
	},
}

func (c *notifyConf) validate() error {
	switch c.Email.Type {
	case notifierLog, notifierNATS:
	default:
		return errors.Errorf("unknown email notifier '%s'", c.Email.Type)
	}
	switch c.SMS.Type {
	case notifierLog:
	case notifierTwilio:
		if c.SMS.AccountSID == "" || c.SMS.AuthToken == "" || c.SMS.From == "" {
			return errors.New("sms notifier 'twilio' requires account_sid, auth_token and from")
		}
	default:
		return errors.Errorf("unknown sms notifier '%s'", c.SMS.Type)
	}
	if c.Email.RequestTimeout.Duration() < 0 {
		return errors.New("request_timeout must not be negative")
	}
	return nil
}

// Notifier returns the dispatching notifier of the configuration; conn is
// only used by the nats email notifier
func (c *notifyConf) Notifier(conn *nats.Conn) (notify.Notifier, error) {
	var d notify.Dispatcher
	switch c.Email.Type {
	case notifierNATS:
		if conn == nil {
			return nil, errors.New("email notifier 'nats' requires a nats connection")
		}
		n := notify.NewNATSNotifier(conn, c.Email.Subject)
		n.RequestTimeout = c.Email.RequestTimeout.Duration()
		d.Email = n
	default:
		d.Email = notify.LogNotifier{}
	}
	switch c.SMS.Type {
	case notifierTwilio:
		n, err := notify.NewTwilioNotifier(c.SMS.AccountSID, c.SMS.AuthToken, c.SMS.From)
		if err != nil {
			return nil, err
		}
		d.SMS = n
	default:
		d.SMS = notify.LogNotifier{}
	}
	log.WithFields(
		log.Fields{
			"email": c.Email.Type,
			"sms":   c.SMS.Type,
		},
	).Info("Loaded notifiers")
	return d, nil
}
