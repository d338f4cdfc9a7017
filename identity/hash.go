package identity

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// HashPrefix is prepended to the hex encoded certificate hash
const HashPrefix = "0x"

// canonicalFields fixes the key order of the hashed JSON document.
// Changing this struct changes every certificate hash.
type canonicalFields struct {
	StudentName      string `json:"student_name"`
	StudentEmail     string `json:"student_email"`
	EnrollmentNumber string `json:"enrollment_number"`
	Degree           string `json:"degree"`
	Grade            string `json:"grade"`
	InstitutionName  string `json:"institution_name"`
	IssueDate        string `json:"issue_date"`
}

func canonical(f Fields) []byte {
	f = f.Normalize()
	data, _ := json.Marshal(
		canonicalFields{
			StudentName:      f.StudentName,
			StudentEmail:     f.StudentEmail,
			EnrollmentNumber: f.EnrollmentNumber,
			Degree:           f.Degree,
			Grade:            f.Grade,
			InstitutionName:  f.InstitutionName,
			IssueDate:        f.IssueDate,
		},
	)
	return data
}

// Hash returns the content hash of the passed Fields, i.e. "0x" followed by
// the hex encoded SHA-256 of the canonical serialization.
// Hash is deterministic; equal fields (after normalization) give equal
// hashes.
func Hash(f Fields) string {
	sum := sha256.Sum256(canonical(f))
	return HashPrefix + hex.EncodeToString(sum[:])
}

// VerifyHash recomputes the hash of the passed Fields and compares it to the
// passed hash
func VerifyHash(f Fields, hash string) bool {
	computed := Hash(f)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(hash))) == 1
}
