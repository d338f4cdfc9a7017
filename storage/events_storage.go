package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/eduverify/credtrust/storage/model"
)

// CertificateEventStorage implements model.CertificateEventStore using GORM
type CertificateEventStorage struct {
	db *gorm.DB
}

// Add stores the passed event
func (s *CertificateEventStorage) Add(event model.CertificateEvent) error {
	return errors.Wrap(s.db.Create(&event).Error, "failed to store certificate event")
}

// ForCertificate returns all events of a certificate in chronological order
func (s *CertificateEventStorage) ForCertificate(certificateID string) ([]model.CertificateEvent, error) {
	var events []model.CertificateEvent
	err := s.db.Where("certificate_id = ?", certificateID).Order("timestamp asc, id asc").Find(&events).Error
	return events, errors.Wrap(err, "failed to query certificate events")
}
