// Package proof builds and signs verification proofs: a snapshot of a
// verification result that a student can hand to a third party.
package proof

import (
	"time"

	"github.com/pkg/errors"

	"github.com/eduverify/credtrust/verification"
)

// Proof statuses
const (
	StatusVerified       = "VERIFIED"
	StatusNotTrustworthy = "NOT_TRUSTWORTHY"
)

// ErrNotFound is returned when a proof is requested for an unknown certificate
var ErrNotFound = errors.New("cannot build a proof for an unknown certificate")

// Proof is the signed payload of a verification proof
type Proof struct {
	Issuer                string    `json:"iss,omitempty"`
	IssuedAt              int64     `json:"iat"`
	Recipient             string    `json:"recipient,omitempty"`
	CertificateID         string    `json:"certificate_id"`
	CertificateHash       string    `json:"certificate_hash"`
	StudentName           string    `json:"student_name"`
	Degree                string    `json:"degree"`
	Institution           string    `json:"institution"`
	IssueDate             string    `json:"issue_date"`
	InstitutionReputation int       `json:"institution_reputation"`
	InstitutionTier       string    `json:"institution_tier"`
	LedgerTxRef           string    `json:"ledger_tx_ref"`
	StorageRef            string    `json:"storage_ref"`
	AIConfidenceScore     int       `json:"ai_confidence_score"`
	VerificationCount     int64     `json:"verification_count"`
	VerifiedAt            time.Time `json:"verified_at"`
	Status                string    `json:"status"`
}

// FromResult builds the Proof of a verification result for the passed
// recipient
func FromResult(res *verification.Result, recipient string, now time.Time) (*Proof, error) {
	if res == nil || !res.Found || res.Certificate == nil {
		return nil, ErrNotFound
	}
	c := res.Certificate
	p := &Proof{
		IssuedAt:          now.Unix(),
		Recipient:         recipient,
		CertificateID:     c.CertificateID,
		CertificateHash:   c.CertificateHash,
		StudentName:       c.StudentName,
		Degree:            c.Degree,
		Institution:       c.InstitutionName,
		IssueDate:         c.IssueDate,
		LedgerTxRef:       c.Refs.LedgerTxRef,
		StorageRef:        c.Refs.StorageRef,
		AIConfidenceScore: c.AIConfidenceScore,
		VerificationCount: c.VerificationCount,
		VerifiedAt:        res.VerifiedAt,
		Status:            StatusNotTrustworthy,
	}
	if res.Trustworthy {
		p.Status = StatusVerified
	}
	if res.Reputation != nil {
		p.InstitutionReputation = res.Reputation.Score
		p.InstitutionTier = res.Reputation.Tier
	}
	return p, nil
}
