// Package events publishes certificate lifecycle and verification events to
// interested parties outside the engine.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeCertificateIssued    = "certificate.issued"
	TypeCertificateActivated = "certificate.activated"
	TypeCertificateRevoked   = "certificate.revoked"
	TypeCertificateVerified  = "certificate.verified"
)

// Event is a notification about something that happened to a certificate
type Event struct {
	ID                uuid.UUID `json:"id"`
	Type              string    `json:"type"`
	CertificateID     string    `json:"certificate_id"`
	InstitutionName   string    `json:"institution_name,omitempty"`
	Status            string    `json:"status,omitempty"`
	Actor             string    `json:"actor,omitempty"`
	VerificationCount int64     `json:"verification_count,omitempty"`
	Trustworthy       *bool     `json:"trustworthy,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// New returns an Event of the passed type with a fresh id and timestamp
func New(typ, certificateID string) Event {
	return Event{
		ID:            uuid.New(),
		Type:          typ,
		CertificateID: certificateID,
		Timestamp:     time.Now().UTC(),
	}
}

// Publisher publishes events. Publishing is best effort; callers log and
// otherwise ignore errors.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop is a Publisher that drops all events
type Nop struct{}

// Publish implements the Publisher interface
func (Nop) Publish(context.Context, Event) error {
	return nil
}
