// Package apimodel holds the types shared by the public and the admin API.
package apimodel

// Error codes
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidClient      = "invalid_client"
	ErrorCodeForbidden          = "forbidden"
	ErrorCodeNotFound           = "not_found"
	ErrorCodeConflict           = "conflict"
	ErrorCodeAlreadyRevoked     = "already_revoked"
	ErrorCodeInvalidTransition  = "invalid_transition"
	ErrorCodeInvalidCode        = "invalid_code"
	ErrorCodeExpiredCode        = "expired_code"
	ErrorCodeLocked             = "locked"
	ErrorCodeDeliveryFailed     = "delivery_failed"
	ErrorCodeServerError        = "server_error"
	ErrorCodeTemporarilyUnavail = "temporarily_unavailable"
)

// Error is the body of an error response
type Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// NewError returns an Error
func NewError(code, description string) Error {
	return Error{
		Error:            code,
		ErrorDescription: description,
	}
}

// ErrorInvalidRequest returns an invalid_request Error
func ErrorInvalidRequest(description string) Error {
	return NewError(ErrorCodeInvalidRequest, description)
}

// ErrorInvalidClient returns an invalid_client Error
func ErrorInvalidClient(description string) Error {
	return NewError(ErrorCodeInvalidClient, description)
}

// ErrorForbidden returns a forbidden Error
func ErrorForbidden(description string) Error {
	return NewError(ErrorCodeForbidden, description)
}

// ErrorNotFound returns a not_found Error
func ErrorNotFound(description string) Error {
	return NewError(ErrorCodeNotFound, description)
}

// ErrorServerError returns a server_error Error
func ErrorServerError(description string) Error {
	return NewError(ErrorCodeServerError, description)
}
