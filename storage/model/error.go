package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// NotFoundError is an error signaling that something was not found in the
// database
type NotFoundError string

// Error implements the error interface
func (e NotFoundError) Error() string {
	return string(e)
}

// NotFoundErrorFmt returns a NotFoundError from the passed format string and parameters
func NotFoundErrorFmt(format string, params ...any) NotFoundError {
	return NotFoundError(fmt.Sprintf(format, params...))
}

// IsNotFound reports whether err wraps a NotFoundError
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// AlreadyExistsError is an error signaling that a unique key is already taken
type AlreadyExistsError string

// Error implements the error interface
func (e AlreadyExistsError) Error() string {
	return string(e)
}

// AlreadyExistsErrorFmt returns an AlreadyExistsError from the passed format string and parameters
func AlreadyExistsErrorFmt(format string, params ...any) AlreadyExistsError {
	return AlreadyExistsError(fmt.Sprintf(format, params...))
}

// AlreadyRevokedError signals that a certificate was revoked before
type AlreadyRevokedError string

// Error implements the error interface
func (e AlreadyRevokedError) Error() string {
	return string(e)
}

// AlreadyRevokedErrorFmt returns an AlreadyRevokedError from the passed format string and parameters
func AlreadyRevokedErrorFmt(format string, params ...any) AlreadyRevokedError {
	return AlreadyRevokedError(fmt.Sprintf(format, params...))
}

// InvalidTransitionError signals a status change that the certificate
// lifecycle does not allow
type InvalidTransitionError struct {
	CertificateID string
	From          Status
	To            Status
}

// Error implements the error interface
func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("certificate '%s' cannot change status from %s to %s", e.CertificateID, e.From, e.To)
}
