package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultSubjectPrefix is prepended to the event type to form the NATS subject
const DefaultSubjectPrefix = "credtrust."

// NATSPublisher publishes JSON encoded events on NATS subjects
// <prefix><event type>, e.g. credtrust.certificate.revoked
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the passed NATS url
func NewNATSPublisher(url, subjectPrefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("credtrust"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to NATS")
	}
	log.WithField("url", url).Info("connected to NATS")
	return NewNATSPublisherFromConn(conn, subjectPrefix), nil
}

// NewNATSPublisherFromConn returns a NATSPublisher using an existing connection
func NewNATSPublisherFromConn(conn *nats.Conn, subjectPrefix string) *NATSPublisher {
	if subjectPrefix == "" {
		subjectPrefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{
		conn:   conn,
		prefix: subjectPrefix,
	}
}

// Conn returns the underlying NATS connection
func (p *NATSPublisher) Conn() *nats.Conn {
	return p.conn
}

// Subject returns the NATS subject for the passed event type
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + eventType
}

// Publish implements the Publisher interface
func (p *NATSPublisher) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}
	if err = p.conn.Publish(p.Subject(event.Type), data); err != nil {
		return errors.Wrapf(err, "failed to publish event '%s'", event.Type)
	}
	log.WithFields(
		log.Fields{
			"type":           event.Type,
			"certificate_id": event.CertificateID,
		},
	).Debug("event published")
	return nil
}

// Close closes the NATS connection
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		log.Info("NATS connection closed")
	}
}
