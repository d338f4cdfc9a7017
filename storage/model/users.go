package model

import (
	"time"
)

// User is an account of the service. Role decides which certificate
// operations the user may perform; Email and Institution decide which
// certificates the user owns.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     string    `gorm:"uniqueIndex" json:"username"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	// Role is one of institute, student, verifier, admin
	Role string `gorm:"size:32;index" json:"role"`
	// Email receives one-time codes and verification proofs
	Email string `gorm:"index" json:"email"`
	// Phone optionally receives one-time codes via SMS
	Phone string `json:"phone,omitempty"`
	// Institution is the institution an institute user issues for
	Institution string `json:"institution,omitempty"`
	// Disabled users cannot log in
	Disabled bool `json:"disabled"`
	// PendingVerification is set for self-registered accounts until the
	// registration code was accepted; such accounts cannot log in
	PendingVerification bool `json:"pending_verification"`
}

// UserData holds the mutable attributes of a User
type UserData struct {
	DisplayName *string `json:"display_name"`
	Password    *string `json:"password"`
	Role        *string `json:"role"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Institution *string `json:"institution"`
	Disabled    *bool   `json:"disabled"`
	// PendingVerification is not accepted from api bodies
	PendingVerification *bool `json:"-"`
}

// UsersStore persists accounts. Returned users never carry the password
// hash.
type UsersStore interface {
	Count() (int64, error)
	CountByRole(role string) (int64, error)
	List() ([]User, error)
	// Get returns a NotFoundError for unknown usernames
	Get(username string) (*User, error)
	// Create hashes password and stores user; an AlreadyExistsError is
	// returned if the username is taken
	Create(user User, password string) (*User, error)
	// Update applies the non-nil fields of data
	Update(username string, data UserData) (*User, error)
	Delete(username string) error
	// Authenticate returns the user if the password matches and the user
	// is not disabled
	Authenticate(username, password string) (*User, error)
}
