package storage

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/eduverify/credtrust/storage/model"
)

// CertificateStorage implements model.CertificateStore using GORM
type CertificateStorage struct {
	db *gorm.DB
}

// Create inserts a new certificate record
func (s *CertificateStorage) Create(cert *model.Certificate) error {
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			var existing int64
			if err := tx.Model(&model.Certificate{}).
				Where("certificate_id = ?", cert.CertificateID).
				Count(&existing).Error; err != nil {
				return errors.Wrap(err, "failed to check certificate id")
			}
			if existing > 0 {
				return model.AlreadyExistsErrorFmt("certificate id already exists: %s", cert.CertificateID)
			}
			if err := tx.Create(cert).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return model.AlreadyExistsErrorFmt("certificate id already exists: %s", cert.CertificateID)
				}
				return errors.Wrap(err, "failed to create certificate")
			}
			return nil
		},
	)
}

func (s *CertificateStorage) get(db *gorm.DB, certificateID string) (*model.Certificate, error) {
	var cert model.Certificate
	if err := db.Where("certificate_id = ?", certificateID).First(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("certificate not found: %s", certificateID)
		}
		return nil, errors.Wrap(err, "failed to find certificate")
	}
	return &cert, nil
}

// Get returns the certificate with the passed certificate id
func (s *CertificateStorage) Get(certificateID string) (*model.Certificate, error) {
	return s.get(s.db, certificateID)
}

// Activate moves a pending certificate to active
func (s *CertificateStorage) Activate(certificateID string, at time.Time) (cert *model.Certificate, err error) {
	err = s.db.Transaction(
		func(tx *gorm.DB) error {
			res := tx.Model(&model.Certificate{}).
				Where("certificate_id = ? AND status = ?", certificateID, model.StatusPending).
				Updates(
					map[string]any{
						"status":       model.StatusActive,
						"activated_at": at,
					},
				)
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to activate certificate")
			}
			cert, err = s.get(tx, certificateID)
			if err != nil {
				return err
			}
			if res.RowsAffected == 0 {
				return model.InvalidTransitionError{
					CertificateID: certificateID,
					From:          cert.Status,
					To:            model.StatusActive,
				}
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return
}

// Revoke moves a pending or active certificate to revoked
func (s *CertificateStorage) Revoke(certificateID string, info model.RevokeInfo) (cert *model.Certificate, err error) {
	err = s.db.Transaction(
		func(tx *gorm.DB) error {
			res := tx.Model(&model.Certificate{}).
				Where(
					"certificate_id = ? AND status IN ?", certificateID,
					[]model.Status{
						model.StatusPending,
						model.StatusActive,
					},
				).
				Updates(
					map[string]any{
						"status":            model.StatusRevoked,
						"revoked_at":        info.At,
						"revoked_by":        info.Actor,
						"revocation_reason": info.Reason,
					},
				)
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to revoke certificate")
			}
			cert, err = s.get(tx, certificateID)
			if err != nil {
				return err
			}
			if res.RowsAffected == 0 {
				return model.AlreadyRevokedErrorFmt("certificate already revoked: %s", certificateID)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return
}

// IncrementVerifications atomically increments the verification counter
func (s *CertificateStorage) IncrementVerifications(certificateID string) (cert *model.Certificate, err error) {
	err = s.db.Transaction(
		func(tx *gorm.DB) error {
			res := tx.Model(&model.Certificate{}).
				Where("certificate_id = ?", certificateID).
				UpdateColumn("verification_count", gorm.Expr("verification_count + ?", 1))
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to increment verification count")
			}
			if res.RowsAffected == 0 {
				return model.NotFoundErrorFmt("certificate not found: %s", certificateID)
			}
			cert, err = s.get(tx, certificateID)
			return err
		},
	)
	if err != nil {
		return nil, err
	}
	return
}

// List returns all certificates matching the query, newest first
func (s *CertificateStorage) List(query model.CertificateQuery) ([]model.Certificate, error) {
	q := s.db.Model(&model.Certificate{})
	if len(query.CertificateIDs) > 0 {
		q = q.Where("certificate_id IN ?", query.CertificateIDs)
	}
	if len(query.Statuses) > 0 {
		q = q.Where("status IN ?", query.Statuses)
	}
	if query.InstitutionName != "" {
		q = q.Where("institution_name = ?", query.InstitutionName)
	}
	if query.StudentEmail != "" {
		q = q.Where("student_email = ?", query.StudentEmail)
	}
	var certs []model.Certificate
	if err := q.Order("issued_at desc").Find(&certs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query certificates")
	}
	return query.ApplyFilters(certs), nil
}

// ByInstitution returns all certificates of the passed institution
func (s *CertificateStorage) ByInstitution(institutionName string) ([]model.Certificate, error) {
	return s.List(model.CertificateQuery{InstitutionName: institutionName})
}
