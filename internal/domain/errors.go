package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is the generic store miss. The application turns it into a
	// specific account error before it reaches a transport.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether email or password failed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout window is active, even for a correct password.
	ErrAccountLocked = errors.New("account locked")
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountNotFound and ErrAccountNotVerified stay distinct for password reset.
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountNotVerified = errors.New("account not verified")
	ErrAccountDisabled    = errors.New("account disabled")

	ErrEmailNotVerified        = errors.New("email not verified")
	ErrVerificationThrottled   = errors.New("verification code sent recently")
	ErrInvalidVerificationCode = errors.New("invalid or expired verification code")
	ErrInvalidResetCode        = errors.New("invalid or expired password reset code")

	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrRateLimited    = errors.New("rate limited")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("conflict")
)

// FieldError is one violated input rule.
type FieldError struct {
	Field   string
	Message string
	Code    string
}

// ValidationError lists every violated field of a request, not just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
