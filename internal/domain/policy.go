package domain

import "time"

const (
	DefaultMaxFailedAttempts          = 5
	DefaultLockoutDuration            = 30 * time.Minute
	DefaultVerificationResendCooldown = 60 * time.Minute
)

// SecurityPolicy holds the lockout and resend rules. It is built once from
// configuration and only ever read afterwards.
type SecurityPolicy struct {
	MaxFailedAttempts          int
	LockoutDuration            time.Duration
	VerificationResendCooldown time.Duration
}

// NewSecurityPolicy fills zero values with the defaults.
func NewSecurityPolicy(maxFailed int, lockout, resendCooldown time.Duration) SecurityPolicy {
	if maxFailed <= 0 {
		maxFailed = DefaultMaxFailedAttempts
	}
	if lockout <= 0 {
		lockout = DefaultLockoutDuration
	}
	if resendCooldown <= 0 {
		resendCooldown = DefaultVerificationResendCooldown
	}
	return SecurityPolicy{
		MaxFailedAttempts:          maxFailed,
		LockoutDuration:            lockout,
		VerificationResendCooldown: resendCooldown,
	}
}

// RecordFailedLogin counts one failed password attempt against a.
// An expired lock restarts the count at 1.
func (p SecurityPolicy) RecordFailedLogin(a *Account, now time.Time) {
	if a.LockedUntil != nil && !a.LockedUntil.After(now) {
		a.FailedAttemptCount = 1
		a.LockedUntil = nil
		a.UpdatedAt = now
		return
	}
	a.FailedAttemptCount++
	if a.FailedAttemptCount >= p.MaxFailedAttempts && a.LockedUntil == nil {
		until := now.Add(p.LockoutDuration)
		a.LockedUntil = &until
	}
	a.UpdatedAt = now
}

// RecordSuccessfulLogin clears the failure counter and any lock.
func (p SecurityPolicy) RecordSuccessfulLogin(a *Account) {
	a.FailedAttemptCount = 0
	a.LockedUntil = nil
}

// IsLocked reports whether a lockout window is active at now.
func (p SecurityPolicy) IsLocked(a Account, now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}

// CanResendVerification reports whether the resend cooldown has elapsed.
func (p SecurityPolicy) CanResendVerification(a Account, now time.Time) bool {
	if a.LastVerificationSentAt == nil {
		return true
	}
	return !now.Before(a.LastVerificationSentAt.Add(p.VerificationResendCooldown))
}
