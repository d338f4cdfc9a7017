package storage

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/eduverify/credtrust/storage/model"
)

// OTPStorage implements model.OTPStore using GORM
type OTPStorage struct {
	db *gorm.DB
}

// Put stores the session, replacing the subject's previous session
func (s *OTPStorage) Put(session model.OTPSession) error {
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			if err := tx.Where("subject = ?", session.Subject).Delete(&model.OTPSession{}).Error; err != nil {
				return errors.Wrap(err, "failed to replace otp session")
			}
			return errors.Wrap(tx.Create(&session).Error, "failed to store otp session")
		},
	)
}

// Get returns the session of the subject
func (s *OTPStorage) Get(subject string) (*model.OTPSession, error) {
	var session model.OTPSession
	if err := s.db.Where("subject = ?", subject).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.NotFoundErrorFmt("no otp session for '%s'", subject)
		}
		return nil, errors.Wrap(err, "failed to find otp session")
	}
	return &session, nil
}

// Delete removes the session of the subject
func (s *OTPStorage) Delete(subject string) error {
	return errors.Wrap(
		s.db.Where("subject = ?", subject).Delete(&model.OTPSession{}).Error,
		"failed to delete otp session",
	)
}

// Consume deletes the session only if it is still the session with the passed id
func (s *OTPStorage) Consume(subject string, id uuid.UUID) (bool, error) {
	res := s.db.Where("subject = ? AND id = ?", subject, id).Delete(&model.OTPSession{})
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "failed to consume otp session")
	}
	return res.RowsAffected == 1, nil
}

// RecordFailure increments the failed attempts of the session
func (s *OTPStorage) RecordFailure(subject string, id uuid.UUID) (attempts int, err error) {
	err = s.db.Transaction(
		func(tx *gorm.DB) error {
			res := tx.Model(&model.OTPSession{}).
				Where("subject = ? AND id = ?", subject, id).
				UpdateColumn("attempts", gorm.Expr("attempts + ?", 1))
			if res.Error != nil {
				return errors.Wrap(res.Error, "failed to record otp failure")
			}
			if res.RowsAffected == 0 {
				return model.NotFoundErrorFmt("no otp session for '%s'", subject)
			}
			var session model.OTPSession
			if err := tx.Where("subject = ? AND id = ?", subject, id).First(&session).Error; err != nil {
				return errors.Wrap(err, "failed to read otp session")
			}
			attempts = session.Attempts
			return nil
		},
	)
	return
}
