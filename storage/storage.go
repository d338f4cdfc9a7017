package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/eduverify/credtrust/storage/model"
)

// Storage owns the database connection shared by all gorm backed stores
type Storage struct {
	db         *gorm.DB
	userParams Argon2idParams
}

var models = []any{
	&model.Certificate{},
	&model.CertificateEvent{},
	&model.OTPSession{},
	&model.KeyValue{},
	&model.User{},
}

// NewStorage connects to the configured database and migrates the schema
func NewStorage(config Config) (*Storage, error) {
	db, err := Connect(config)
	if err != nil {
		return nil, err
	}
	if err = db.AutoMigrate(models...); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return &Storage{
		db:         db,
		userParams: config.UsersHash.orDefault(),
	}, nil
}

// DB returns the underlying database handle
func (s *Storage) DB() *gorm.DB {
	return s.db
}

// CertificateStorage returns the certificate store
func (s *Storage) CertificateStorage() *CertificateStorage {
	return &CertificateStorage{db: s.db}
}

// CertificateEventStorage returns the certificate history store
func (s *Storage) CertificateEventStorage() *CertificateEventStorage {
	return &CertificateEventStorage{db: s.db}
}

// OTPStorage returns the one-time code session store
func (s *Storage) OTPStorage() *OTPStorage {
	return &OTPStorage{db: s.db}
}
