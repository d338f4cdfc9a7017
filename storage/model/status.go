package model

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Status is the lifecycle state of a certificate. It is stored as an
// integer and exchanged as its name.
type Status int

// Certificate statuses
const (
	StatusPending Status = iota
	StatusActive
	StatusRevoked
)

var statusNames = [...]string{
	StatusPending: "pending",
	StatusActive:  "active",
	StatusRevoked: "revoked",
}

// AllStatuses lists all valid Status values
var AllStatuses = []Status{
	StatusPending,
	StatusActive,
	StatusRevoked,
}

// allowedTransitions maps a status to the statuses it may move to; revoked
// is terminal
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusActive, StatusRevoked},
	StatusActive:  {StatusRevoked},
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s >= 0 && int(s) < len(statusNames)
}

func (s Status) String() string {
	if !s.Valid() {
		return "unknown"
	}
	return statusNames[s]
}

// CanTransitionTo reports whether a certificate in status s may move to
// status to
func (s Status) CanTransitionTo(to Status) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus returns the Status with the passed name
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, errors.Errorf("invalid status: %s", name)
}

// MarshalJSON implements json.Marshaler
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errors.New("status must be a JSON string")
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
