package config

import (
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eduverify/credtrust/events"
	"github.com/eduverify/credtrust/internal/version"
)

// natsConf configures the NATS connection used for lifecycle events and
// email hand-off
type natsConf struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	PublishEvents bool   `yaml:"publish_events"`
}

var defaultNATSConf = natsConf{
	SubjectPrefix: events.DefaultSubjectPrefix,
}

func (c *natsConf) validate() error {
	return nil
}

// Connect connects to the configured NATS server or returns nil if none
// is configured
func (c *natsConf) Connect() (*nats.Conn, error) {
	if c.URL == "" {
		return nil, nil
	}
	conn, err := nats.Connect(c.URL, nats.Name(version.UserAgent()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to NATS")
	}
	log.WithField("url", c.URL).Info("connected to NATS")
	return conn, nil
}

// Publisher returns the event publisher of the configuration
func (c *natsConf) Publisher(conn *nats.Conn) events.Publisher {
	if !c.PublishEvents || conn == nil {
		return events.Nop{}
	}
	return events.NewNATSPublisherFromConn(conn, c.SubjectPrefix)
}
