package model

import (
	"gorm.io/gorm"
)

// Event types of the certificate lifecycle
const (
	EventTypeIssued    = "issued"
	EventTypeActivated = "activated"
	EventTypeRevoked   = "revoked"
)

// CertificateEvent stores a lifecycle event of a certificate.
// Verification lookups are not recorded here.
type CertificateEvent struct {
	gorm.Model
	CertificateID string `gorm:"index"`
	Timestamp     int64  `gorm:"index"`
	Type          string `gorm:"index"`
	Status        *string
	Message       *string
	Actor         *string
}

// CertificateEventStore records and lists lifecycle events
type CertificateEventStore interface {
	Add(event CertificateEvent) error
	ForCertificate(certificateID string) ([]CertificateEvent, error)
}
