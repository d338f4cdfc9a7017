package identity

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// IssueDateLayout is the layout of Fields.IssueDate
const IssueDateLayout = "2006-01-02"

// Fields holds the descriptive fields of a certificate. These are the
// fields covered by the certificate hash.
type Fields struct {
	StudentName      string `json:"student_name" yaml:"student_name"`
	StudentEmail     string `json:"student_email,omitempty" yaml:"student_email" gorm:"index"`
	EnrollmentNumber string `json:"enrollment_number,omitempty" yaml:"enrollment_number"`
	Degree           string `json:"degree" yaml:"degree"`
	Grade            string `json:"grade,omitempty" yaml:"grade"`
	InstitutionName  string `json:"institution_name" yaml:"institution_name" gorm:"index"`
	IssueDate        string `json:"issue_date" yaml:"issue_date"`
}

// ValidationError signals that the passed Fields cannot be used to issue a
// certificate
type ValidationError string

// Error implements the error interface
func (e ValidationError) Error() string {
	return string(e)
}

// WithDefaults returns a copy of the Fields where an empty issue date is
// set to the date of issuedAt
func (f Fields) WithDefaults(issuedAt time.Time) Fields {
	if strings.TrimSpace(f.IssueDate) == "" {
		f.IssueDate = issuedAt.UTC().Format(IssueDateLayout)
	}
	return f
}

// Normalize returns a copy of the Fields with surrounding whitespace removed
// and the student email lower-cased
func (f Fields) Normalize() Fields {
	return Fields{
		StudentName:      strings.TrimSpace(f.StudentName),
		StudentEmail:     strings.ToLower(strings.TrimSpace(f.StudentEmail)),
		EnrollmentNumber: strings.TrimSpace(f.EnrollmentNumber),
		Degree:           strings.TrimSpace(f.Degree),
		Grade:            strings.TrimSpace(f.Grade),
		InstitutionName:  strings.TrimSpace(f.InstitutionName),
		IssueDate:        strings.TrimSpace(f.IssueDate),
	}
}

// Validate checks that all required fields are present and that the issue
// date, if given, is well-formed. It returns a ValidationError for the first
// problem found.
func (f Fields) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"student_name", f.StudentName},
		{"degree", f.Degree},
		{"institution_name", f.InstitutionName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return ValidationError("required field '" + r.name + "' not given")
		}
	}
	if date := strings.TrimSpace(f.IssueDate); date == "" {
		return nil
	} else if _, err := time.Parse(IssueDateLayout, date); err != nil {
		return errors.WithStack(ValidationError("issue_date must have the format YYYY-MM-DD"))
	}
	return nil
}
