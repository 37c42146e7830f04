package application

import (
	"time"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/domain"
)

type Config struct {
	ServiceName string
	DefaultRole domain.Role
	Policy      domain.SecurityPolicy
	// LogCodes writes one-time codes to the log instead of queueing an email.
	// Only local and test environments turn it on.
	LogCodes bool
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,password"`
	FirstName string `json:"firstName" validate:"omitempty,max=50"`
	LastName  string `json:"lastName" validate:"omitempty,max=50"`
	Phone     string `json:"phone" validate:"omitempty,min=10,max=20,phone"`
}

// RegisterVendorRequest signs up a seller account. The business details are
// handed to the vendor service through the outbox; no vendor record is kept here.
type RegisterVendorRequest struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,password"`
	FirstName    string `json:"firstName" validate:"omitempty,max=50"`
	LastName     string `json:"lastName" validate:"omitempty,max=50"`
	Phone        string `json:"phone" validate:"omitempty,min=10,max=20,phone"`
	BusinessName string `json:"businessName" validate:"required,max=100"`
	BusinessType string `json:"businessType" validate:"omitempty,max=50"`
}

type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IPAddress string `json:"-"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"verificationToken" validate:"required,len=4,numeric"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Code        string `json:"resetToken" validate:"required,len=4,numeric"`
	NewPassword string `json:"newPassword" validate:"required,password"`
}

// LogoutRequest carries the caller and the refresh token presented with the
// logout call, if any.
type LogoutRequest struct {
	Identity     Identity
	RefreshToken string
}

// AccountProfile is the public view of an account.
type AccountProfile struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"firstName,omitempty"`
	LastName      string     `json:"lastName,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Roles         []string   `json:"roles"`
	Status        string     `json:"status"`
	VendorID      *uuid.UUID `json:"vendorId,omitempty"`
	EmailVerified bool       `json:"isEmailVerified"`
	LockedUntil   *time.Time `json:"lockedUntil,omitempty"`
}

type VendorSummary struct {
	ID           uuid.UUID `json:"id"`
	BusinessName string    `json:"businessName"`
	BusinessType string    `json:"businessType,omitempty"`
	Status       string    `json:"status"`
}

type VendorRegistration struct {
	Account AccountProfile `json:"user"`
	Vendor  VendorSummary  `json:"vendor"`
}

// SessionTokens is a freshly issued access and refresh token pair.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type LoginResult struct {
	Account AccountProfile
	Tokens  SessionTokens
}

type VerifyEmailResult struct {
	AlreadyVerified bool
}

// Identity is the caller resolved from an access token.
type Identity struct {
	AccountID uuid.UUID
	Email     string
	Roles     []string
	VendorID  string
	TokenID   string
	ExpiresAt time.Time
}

// HasAnyRole reports whether the identity holds at least one of roles.
func (i Identity) HasAnyRole(roles ...domain.Role) bool {
	for _, have := range i.Roles {
		for _, want := range roles {
			if have == string(want) {
				return true
			}
		}
	}
	return false
}

// RefreshSession is a verified, unrevoked refresh token.
type RefreshSession struct {
	AccountID uuid.UUID
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
