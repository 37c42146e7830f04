package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOneTimeCodeMatches(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	code := &OneTimeCode{Code: "4821", ExpiresAt: now.Add(10 * time.Minute)}

	cases := []struct {
		name      string
		code      *OneTimeCode
		candidate string
		at        time.Time
		want      bool
	}{
		{"exact match", code, "4821", now, true},
		{"wrong digits", code, "4822", now, false},
		{"expired", code, "4821", now.Add(10 * time.Minute), false},
		{"absent code", nil, "4821", now, false},
		{"empty candidate", code, "", now, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.code.Matches(tc.candidate, tc.at); got != tc.want {
				t.Fatalf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMarkEmailVerifiedClearsCode(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	a := Account{Status: StatusPendingVerification}
	a.IssueVerificationCode(OneTimeCode{Code: "1234", ExpiresAt: now.Add(time.Minute)}, now)
	a.MarkEmailVerified(now)

	if !a.EmailVerified || a.EmailVerification != nil {
		t.Fatalf("expected verified account without a pending code, got %+v", a)
	}
	if a.Status != StatusActive {
		t.Fatalf("status = %s, want active", a.Status)
	}
}

func TestPasswordChangedAfter(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var a Account
	if a.PasswordChangedAfter(issued) {
		t.Fatalf("zero change time should never invalidate tokens")
	}
	a.SetPassword("hash", issued.Add(500*time.Millisecond))
	if a.PasswordChangedAfter(issued) {
		t.Fatalf("change within the same second should not invalidate")
	}
	a.SetPassword("hash2", issued.Add(2*time.Second))
	if !a.PasswordChangedAfter(issued) {
		t.Fatalf("later password change should invalidate older tokens")
	}
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("NormalizeEmail() = %q", got)
	}
}

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	if err := ValidatePassword("Password123"); err != nil {
		t.Fatalf("expected valid password, got %v", err)
	}
	if err := ValidatePassword("short"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := ValidatePassword(strings.Repeat("a", 129)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for long password, got %v", err)
	}
}

func TestValidationErrorListsEveryField(t *testing.T) {
	t.Parallel()

	err := error(&ValidationError{Fields: []FieldError{
		{Field: "email", Message: "Invalid email"},
		{Field: "password", Message: "Password must be at least 8 characters"},
	}})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("validation errors must match ErrInvalidInput")
	}
	if !strings.Contains(err.Error(), "email") || !strings.Contains(err.Error(), "password") {
		t.Fatalf("error text should mention every field: %s", err.Error())
	}
}
