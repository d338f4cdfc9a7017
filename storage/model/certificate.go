package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/eduverify/credtrust/identity"
)

// Certificate is a stored certificate record.
//
// The embedded identity.Fields, CertificateHash, CertificateID, Refs and
// AIConfidenceScore never change after creation. Status only moves along
// the lifecycle and VerificationCount only grows.
type Certificate struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CertificateID   string `gorm:"uniqueIndex;size:64" json:"certificate_id"`
	identity.Fields `gorm:"embedded"`
	CertificateHash string                `gorm:"size:66" json:"certificate_hash"`
	Refs            identity.ExternalRefs `gorm:"embedded" json:"external_refs"`

	AIConfidenceScore int    `json:"ai_confidence_score"`
	VerificationCount int64  `gorm:"not null;default:0" json:"verification_count"`
	Status            Status `gorm:"index" json:"status"`

	IssuedAt         time.Time  `json:"issued_at"`
	IssuedBy         string     `json:"issued_by,omitempty"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
	RevokedBy        string     `json:"revoked_by,omitempty"`
	RevocationReason string     `json:"revocation_reason,omitempty"`
}

// CertificateFilter is a caller-supplied predicate applied to candidate
// records of a listing
type CertificateFilter func(*Certificate) bool

// CertificateQuery selects certificates from a CertificateStore.
// Zero-valued fields do not restrict the selection.
type CertificateQuery struct {
	CertificateIDs  []string
	Statuses        []Status
	InstitutionName string
	StudentEmail    string
	Filters         []CertificateFilter
}

// Matches reports whether the passed certificate is selected by the query
func (q CertificateQuery) Matches(c *Certificate) bool {
	if len(q.CertificateIDs) > 0 && !containsString(q.CertificateIDs, c.CertificateID) {
		return false
	}
	if len(q.Statuses) > 0 {
		found := false
		for _, s := range q.Statuses {
			if s == c.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.InstitutionName != "" && c.InstitutionName != q.InstitutionName {
		return false
	}
	if q.StudentEmail != "" && c.StudentEmail != q.StudentEmail {
		return false
	}
	return q.applyFilters(c)
}

func (q CertificateQuery) applyFilters(c *Certificate) bool {
	for _, f := range q.Filters {
		if !f(c) {
			return false
		}
	}
	return true
}

// ApplyFilters returns the certificates that pass all caller-supplied
// predicates of the query
func (q CertificateQuery) ApplyFilters(certs []Certificate) []Certificate {
	if len(q.Filters) == 0 {
		return certs
	}
	out := certs[:0]
	for i := range certs {
		if q.applyFilters(&certs[i]) {
			out = append(out, certs[i])
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// RevokeInfo describes who revokes a certificate and why
type RevokeInfo struct {
	Actor  string
	Reason string
	At     time.Time
}

// CertificateStore is the backend for certificate records.
// Implementations must be safe for concurrent use; status changes are
// compare-and-set operations and IncrementVerifications is atomic.
type CertificateStore interface {
	// Create inserts a new record; returns an AlreadyExistsError if the
	// certificate id is taken
	Create(cert *Certificate) error
	// Get returns the record with the passed certificate id or a NotFoundError
	Get(certificateID string) (*Certificate, error)
	// Activate moves a pending certificate to active; returns a NotFoundError
	// or an InvalidTransitionError
	Activate(certificateID string, at time.Time) (*Certificate, error)
	// Revoke moves a pending or active certificate to revoked; returns a
	// NotFoundError or an AlreadyRevokedError
	Revoke(certificateID string, info RevokeInfo) (*Certificate, error)
	// IncrementVerifications atomically adds one to the verification
	// counter and returns the updated record
	IncrementVerifications(certificateID string) (*Certificate, error)
	// List returns all records matching the query
	List(query CertificateQuery) ([]Certificate, error)
	// ByInstitution returns all records issued by the passed institution
	ByInstitution(institutionName string) ([]Certificate, error)
}
