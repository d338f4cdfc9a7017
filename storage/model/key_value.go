package model

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Settings scopes and keys
const (
	KeyValueScopeGlobal   = ""
	KeyValueScopeIssuance = "issuance"
	KeyValueScopeOTP      = "otp"

	KeyValueKeyRequireConfirmation = "require_confirmation"
	KeyValueKeyRetryBudget         = "retry_budget"
	KeyValueKeyMaxAttempts         = "max_attempts"
)

// KeyValue is a single runtime setting. Values are JSON so that the same
// table holds booleans, numbers and small objects; on sqlite they end up
// as TEXT.
type KeyValue struct {
	CreatedAt int            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt int            `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Scope     string         `gorm:"primaryKey" json:"scope"`
	Key       string         `gorm:"primaryKey" json:"key"`
	Value     datatypes.JSON `json:"value"`
}

// KeyValueAccessor reads and writes raw settings
type KeyValueAccessor interface {
	// Get returns (nil, nil) for a missing entry
	Get(scope, key string) (datatypes.JSON, error)
	Set(scope, key string, value datatypes.JSON) error
	Delete(scope, key string) error
}

// KeyValueStore is the settings store used by issuance and otp
type KeyValueStore interface {
	KeyValueAccessor
	// Scope lists all entries of a scope keyed by their key
	Scope(scope string) (map[string]datatypes.JSON, error)
	// GetAs decodes an entry into out and reports whether it existed
	GetAs(scope, key string, out any) (bool, error)
	SetAny(scope, key string, v any) error
}
