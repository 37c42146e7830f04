package http

import (
	"errors"
	"net/http"

	"github.com/verilink/commerce-auth/internal/domain"
)

const internalErrorMessage = "Something went wrong. Please try again later."

// apiError is the client-facing rendering of a failure.
type apiError struct {
	status  int
	code    string
	message string
	fields  []fieldError
}

// mapDomainError turns an application error into its HTTP status, error code
// and user-facing message. Unknown errors become a generic 500.
func mapDomainError(err error) apiError {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		fields := make([]fieldError, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			fields = append(fields, fieldError{Message: f.Message, Field: f.Field, Code: f.Code})
		}
		return apiError{http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", fields}
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return simpleError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request")
	case errors.Is(err, domain.ErrInvalidVerificationCode):
		return simpleError(http.StatusBadRequest, "INVALID_VERIFICATION_TOKEN", "Invalid or expired verification token")
	case errors.Is(err, domain.ErrInvalidResetCode):
		return simpleError(http.StatusBadRequest, "INVALID_RESET_TOKEN", "Invalid or expired password reset token")
	case errors.Is(err, domain.ErrInvalidCredentials):
		return simpleError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials")
	case errors.Is(err, domain.ErrAccountLocked):
		return simpleError(http.StatusUnauthorized, "ACCOUNT_LOCKED", "Account is temporarily locked due to too many failed login attempts. Please try again later.")
	case errors.Is(err, domain.ErrTokenExpired):
		return simpleError(http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired")
	case errors.Is(err, domain.ErrTokenRevoked):
		return simpleError(http.StatusUnauthorized, "TOKEN_REVOKED", "Token has been revoked")
	case errors.Is(err, domain.ErrUnauthorized):
		return simpleError(http.StatusUnauthorized, "UNAUTHORIZED", "Not authorized")
	case errors.Is(err, domain.ErrAccountDisabled):
		return simpleError(http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
	case errors.Is(err, domain.ErrForbidden):
		return simpleError(http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action")
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrNotFound):
		return simpleError(http.StatusNotFound, "NOT_FOUND", "User not found")
	case errors.Is(err, domain.ErrAccountNotVerified):
		return simpleError(http.StatusNotFound, "NOT_VERIFIED", "User not verified")
	case errors.Is(err, domain.ErrAccountExists):
		return simpleError(http.StatusConflict, "USER_EXISTS", "User already exists")
	case errors.Is(err, domain.ErrVerificationThrottled):
		return simpleError(http.StatusConflict, "VERIFICATION_THROTTLED", "Verification code was already sent recently. Please check your email or wait before requesting another.")
	case errors.Is(err, domain.ErrEmailNotVerified):
		return simpleError(http.StatusConflict, "EMAIL_NOT_VERIFIED", "Email not verified. Please check your email for the verification code.")
	case errors.Is(err, domain.ErrConflict):
		return simpleError(http.StatusConflict, "CONFLICT", "Conflict")
	case errors.Is(err, domain.ErrRateLimited):
		return simpleError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please try again later.")
	default:
		return simpleError(http.StatusInternalServerError, "INTERNAL_ERROR", internalErrorMessage)
	}
}

func simpleError(status int, code, message string) apiError {
	return apiError{status: status, code: code, message: message, fields: []fieldError{{Message: message, Code: code}}}
}
