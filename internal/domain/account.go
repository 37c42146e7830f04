package domain

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is an authorization role carried in access tokens.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleSales    Role = "sales"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin, RoleManager, RoleSales:
		return true
	}
	return false
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusPendingVerification AccountStatus = "pending_verification"
	StatusActive              AccountStatus = "active"
	StatusInactive            AccountStatus = "inactive"
	StatusSuspended           AccountStatus = "suspended"
)

// OneTimeCode is a short numeric secret with an absolute expiry.
// Code and expiry travel together so one is never stored without the other.
type OneTimeCode struct {
	Code      string
	ExpiresAt time.Time
}

// Matches reports whether candidate equals the stored code and the code is still live at now.
func (c *OneTimeCode) Matches(candidate string, now time.Time) bool {
	if c == nil || c.Code == "" || candidate == "" {
		return false
	}
	if !now.Before(c.ExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Code), []byte(candidate)) == 1
}

// Account is the credential aggregate owned by the auth service.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        string
	Roles        []Role
	Status       AccountStatus
	VendorID     *uuid.UUID

	EmailVerified          bool
	EmailVerification      *OneTimeCode
	LastVerificationSentAt *time.Time
	PasswordReset          *OneTimeCode

	FailedAttemptCount int
	LockedUntil        *time.Time

	PasswordChangedAt time.Time
	LastLoginAt       *time.Time
	LastLoginIP       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RoleNames returns the roles as plain strings for token claims.
func (a Account) RoleNames() []string {
	out := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		out = append(out, string(r))
	}
	return out
}

// HasRole reports whether the account holds role.
func (a Account) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Disabled reports whether an administrator has switched the account off.
func (a Account) Disabled() bool {
	return a.Status == StatusInactive || a.Status == StatusSuspended
}

// SetPassword replaces the credential hash. It is the only way the hash changes,
// so PasswordChangedAt always moves together with it.
func (a *Account) SetPassword(hash string, now time.Time) {
	a.PasswordHash = hash
	a.PasswordChangedAt = now
	a.UpdatedAt = now
}

// IssueVerificationCode stores a fresh verification code and stamps the send time.
func (a *Account) IssueVerificationCode(code OneTimeCode, now time.Time) {
	a.EmailVerification = &code
	a.LastVerificationSentAt = &now
	a.UpdatedAt = now
}

// MarkEmailVerified flips the verified flag and discards the verification code.
func (a *Account) MarkEmailVerified(now time.Time) {
	a.EmailVerified = true
	a.EmailVerification = nil
	if a.Status == StatusPendingVerification {
		a.Status = StatusActive
	}
	a.UpdatedAt = now
}

// IssueResetCode stores a fresh password reset code.
func (a *Account) IssueResetCode(code OneTimeCode, now time.Time) {
	a.PasswordReset = &code
	a.UpdatedAt = now
}

// ClearResetCode drops any pending password reset code.
func (a *Account) ClearResetCode(now time.Time) {
	a.PasswordReset = nil
	a.UpdatedAt = now
}

// PasswordChangedAfter reports whether the password changed after a token was issued.
// Token timestamps carry second precision, so the comparison truncates.
func (a Account) PasswordChangedAfter(issuedAt time.Time) bool {
	if a.PasswordChangedAt.IsZero() {
		return false
	}
	return a.PasswordChangedAt.Truncate(time.Second).After(issuedAt.Truncate(time.Second))
}
