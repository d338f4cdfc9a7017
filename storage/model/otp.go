package model

import (
	"time"

	"github.com/google/uuid"
)

// OTPPurpose names the operation a one-time code unlocks
type OTPPurpose string

// Known OTPPurpose values
const (
	OTPPurposeLogin             OTPPurpose = "login"
	OTPPurposeVerificationProof OTPPurpose = "verification_proof"
	OTPPurposeRegistration      OTPPurpose = "registration"
)

// Valid reports whether p is a known purpose
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeLogin, OTPPurposeVerificationProof, OTPPurposeRegistration:
		return true
	default:
		return false
	}
}

// OTPSession is the single live one-time code of a subject.
// Only a digest of the code is stored.
type OTPSession struct {
	ID        uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id" msgpack:"id"`
	Subject   string     `gorm:"uniqueIndex;size:255" json:"subject" msgpack:"subject"`
	Purpose   OTPPurpose `gorm:"size:32" json:"purpose" msgpack:"purpose"`
	CodeHash  string     `json:"-" msgpack:"code_hash"`
	IssuedAt  time.Time  `json:"issued_at" msgpack:"issued_at"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at" msgpack:"expires_at"`
	Attempts  int        `json:"attempts" msgpack:"attempts"`
}

// Expired reports whether the session is past its expiry at the passed time
func (s OTPSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// OTPStore persists OTP sessions keyed by subject.
// Implementations must be safe for concurrent use.
type OTPStore interface {
	// Put stores the session, replacing any previous session of the subject
	Put(session OTPSession) error
	// Get returns the session of the subject or a NotFoundError
	Get(subject string) (*OTPSession, error)
	// Delete removes the session of the subject; no error if missing
	Delete(subject string) error
	// Consume deletes the session of the subject only if it still is the
	// session with the passed id. It reports whether it deleted it; exactly
	// one of several concurrent callers gets true.
	Consume(subject string, id uuid.UUID) (bool, error)
	// RecordFailure atomically increments the failed attempts of the
	// session with the passed id and returns the new count
	RecordFailure(subject string, id uuid.UUID) (int, error)
}
