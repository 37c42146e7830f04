package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/application"
	"github.com/verilink/commerce-auth/internal/domain"
)

func registerAndVerify(t *testing.T, f *fixture, email, password string) application.AccountProfile {
	t.Helper()
	ctx := context.Background()
	profile, err := f.service.Register(ctx, application.RegisterRequest{Email: email, Password: password})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	code := f.accounts.get(domain.NormalizeEmail(email)).EmailVerification.Code
	if _, err := f.service.VerifyEmail(ctx, application.VerifyEmailRequest{Email: email, Code: code}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	return profile
}

func TestRegisterVerifyLoginScenario(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	profile, err := f.service.Register(ctx, application.RegisterRequest{
		Email:     "a@x.com",
		Password:  "Password123",
		FirstName: "A",
		LastName:  "B",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if profile.ID == uuid.Nil || profile.Status != string(domain.StatusPendingVerification) {
		t.Fatalf("unexpected profile after register: %+v", profile)
	}

	if _, err := f.service.Register(ctx, application.RegisterRequest{Email: "A@X.com", Password: "Password123"}); !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists on duplicate email, got %v", err)
	}
	if _, err := f.service.Login(ctx, application.LoginRequest{Email: "a@x.com", Password: "wrong-pass"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, application.VerifyEmailRequest{Email: "a@x.com", Code: "0000"}); !errors.Is(err, domain.ErrInvalidVerificationCode) {
		t.Fatalf("expected ErrInvalidVerificationCode, got %v", err)
	}

	res, err := f.service.VerifyEmail(ctx, application.VerifyEmailRequest{Email: "a@x.com", Code: "4821"})
	if err != nil || res.AlreadyVerified {
		t.Fatalf("expected first verification to succeed, got %+v %v", res, err)
	}
	res, err = f.service.VerifyEmail(ctx, application.VerifyEmailRequest{Email: "a@x.com", Code: "4821"})
	if err != nil || !res.AlreadyVerified {
		t.Fatalf("expected idempotent verification, got %+v %v", res, err)
	}

	login, err := f.service.Login(ctx, application.LoginRequest{Email: "a@x.com", Password: "Password123", IPAddress: "10.0.0.1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if login.Tokens.AccessToken == "" || login.Tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens after login")
	}
	if login.Account.Status != string(domain.StatusActive) || !login.Account.EmailVerified {
		t.Fatalf("expected active verified account, got %+v", login.Account)
	}
	if got := f.accounts.get("a@x.com"); got.FailedAttemptCount != 0 || got.LastLoginIP != "10.0.0.1" {
		t.Fatalf("expected counters reset and login ip recorded, got %+v", got)
	}
}

func TestRegisterReportsEveryInvalidField(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Register(context.Background(), application.RegisterRequest{
		Email:    "not-an-email",
		Password: "short",
		Phone:    "12",
	})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("validation error should wrap ErrInvalidInput")
	}
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	for _, want := range []string{"email", "password", "phone"} {
		if !fields[want] {
			t.Fatalf("expected violation for %s, got %+v", want, verr.Fields)
		}
	}
	if f.accounts.eventCount() != 0 || len(f.accounts.byID) != 0 {
		t.Fatalf("invalid registration must not persist anything")
	}
}

func TestRegisterQueuesVerificationEmail(t *testing.T) {
	t.Parallel()

	f := newFixture()
	profile, err := f.service.Register(context.Background(), application.RegisterRequest{Email: "mail@example.com", Password: "Password123"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if f.accounts.eventCount() != 1 {
		t.Fatalf("expected one queued email, got %d", f.accounts.eventCount())
	}
	event := f.accounts.lastEvent()
	if event.EventType != "notification.email.requested" || event.PartitionKey != profile.ID.String() {
		t.Fatalf("unexpected event: %+v", event)
	}
	var payload map[string]any
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload["template"] != "email_verification" || payload["code"] != "4821" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestRegisterWithLogCodesQueuesNothing(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	cfg.LogCodes = true
	f := newFixtureWithConfig(cfg)
	if _, err := f.service.Register(context.Background(), application.RegisterRequest{Email: "dev@example.com", Password: "Password123"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if f.accounts.eventCount() != 0 {
		t.Fatalf("expected codes to be logged, not queued")
	}
}

func TestLoginUnverifiedRespectsResendCooldown(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	if _, err := f.service.Register(ctx, application.RegisterRequest{Email: "u@example.com", Password: "Password123"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	req := application.LoginRequest{Email: "u@example.com", Password: "Password123"}
	if _, err := f.service.Login(ctx, req); !errors.Is(err, domain.ErrVerificationThrottled) {
		t.Fatalf("expected throttled resend inside cooldown, got %v", err)
	}

	f.clock.Advance(61 * time.Minute)
	f.codes.set("7310")
	if _, err := f.service.Login(ctx, req); !errors.Is(err, domain.ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified after resend, got %v", err)
	}
	got := f.accounts.get("u@example.com")
	if got.EmailVerification == nil || got.EmailVerification.Code != "7310" {
		t.Fatalf("expected a fresh verification code, got %+v", got.EmailVerification)
	}
	if f.accounts.eventCount() != 2 {
		t.Fatalf("expected a second verification email, got %d events", f.accounts.eventCount())
	}
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerAndVerify(t, f, "lock@example.com", "Password123")

	bad := application.LoginRequest{Email: "lock@example.com", Password: "wrong-pass"}
	for i := 0; i < 5; i++ {
		if _, err := f.service.Login(ctx, bad); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	good := application.LoginRequest{Email: "lock@example.com", Password: "Password123"}
	if _, err := f.service.Login(ctx, good); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account to reject the correct password, got %v", err)
	}

	f.clock.Advance(31 * time.Minute)
	if _, err := f.service.Login(ctx, good); err != nil {
		t.Fatalf("expected login after lock expiry, got %v", err)
	}
	if got := f.accounts.get("lock@example.com"); got.FailedAttemptCount != 0 || got.LockedUntil != nil {
		t.Fatalf("expected counters cleared, got count=%d lockedUntil=%v", got.FailedAttemptCount, got.LockedUntil)
	}
}

func TestLoginConcurrentFailuresAreAllCounted(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerAndVerify(t, f, "race@example.com", "Password123")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.service.Login(ctx, application.LoginRequest{Email: "race@example.com", Password: "nope-nope"})
		}()
	}
	wg.Wait()

	if got := f.accounts.get("race@example.com").FailedAttemptCount; got != 4 {
		t.Fatalf("expected 4 counted failures, got %d", got)
	}
}

func TestLoginUnknownEmailIsInvalidCredentials(t *testing.T) {
	t.Parallel()

	f := newFixture()
	_, err := f.service.Login(context.Background(), application.LoginRequest{Email: "ghost@example.com", Password: "Password123"})
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifyEmailRejectsExpiredCode(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	if _, err := f.service.Register(ctx, application.RegisterRequest{Email: "late@example.com", Password: "Password123"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	f.clock.Advance(10 * time.Minute)
	if _, err := f.service.VerifyEmail(ctx, application.VerifyEmailRequest{Email: "late@example.com", Code: "4821"}); !errors.Is(err, domain.ErrInvalidVerificationCode) {
		t.Fatalf("expected expired code rejection, got %v", err)
	}
	if _, err := f.service.VerifyEmail(ctx, application.VerifyEmailRequest{Email: "nobody@example.com", Code: "4821"}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRefreshRotatesAndLogoutRevokes(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerAndVerify(t, f, "r@example.com", "Password123")

	login, err := f.service.Login(ctx, application.LoginRequest{Email: "r@example.com", Password: "Password123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	session, err := f.service.ResolveRefresh(ctx, login.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("resolve refresh failed: %v", err)
	}
	rotated, err := f.service.RefreshToken(ctx, session)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if rotated.AccessToken == "" || rotated.RefreshToken == login.Tokens.RefreshToken {
		t.Fatalf("expected a new token pair")
	}
	if _, err := f.service.ResolveRefresh(ctx, login.Tokens.RefreshToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("expected the rotated refresh token to be revoked, got %v", err)
	}

	identity, err := f.service.ResolveIdentity(ctx, rotated.AccessToken)
	if err != nil {
		t.Fatalf("resolve identity failed: %v", err)
	}
	if err := f.service.Logout(ctx, application.LogoutRequest{Identity: identity, RefreshToken: rotated.RefreshToken}); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := f.service.ResolveRefresh(ctx, rotated.RefreshToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected revoked refresh token after logout, got %v", err)
	}
}

func TestResolveIdentityRejectsWrongKindAndExpiry(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	registerAndVerify(t, f, "k@example.com", "Password123")
	login, err := f.service.Login(ctx, application.LoginRequest{Email: "k@example.com", Password: "Password123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := f.service.ResolveIdentity(ctx, login.Tokens.RefreshToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("refresh token must not authenticate requests, got %v", err)
	}
	if _, err := f.service.ResolveRefresh(ctx, login.Tokens.AccessToken); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("access token must not refresh, got %v", err)
	}

	f.clock.Advance(25 * time.Hour)
	_, err = f.service.ResolveIdentity(ctx, login.Tokens.AccessToken)
	if !errors.Is(err, domain.ErrUnauthorized) || !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected expired access token, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	if err := f.service.RequestPasswordReset(ctx, application.PasswordResetRequest{Email: "nobody@example.com"}); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := f.service.Register(ctx, application.RegisterRequest{Email: "pending@example.com", Password: "Password123"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := f.service.RequestPasswordReset(ctx, application.PasswordResetRequest{Email: "pending@example.com"}); !errors.Is(err, domain.ErrAccountNotVerified) {
		t.Fatalf("expected ErrAccountNotVerified, got %v", err)
	}

	registerAndVerify(t, f, "reset@example.com", "Password123")
	oldLogin, err := f.service.Login(ctx, application.LoginRequest{Email: "reset@example.com", Password: "Password123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	f.codes.set("5555")
	if err := f.service.RequestPasswordReset(ctx, application.PasswordResetRequest{Email: "reset@example.com"}); err != nil {
		t.Fatalf("request reset failed: %v", err)
	}
	if err := f.service.ResetPassword(ctx, application.ResetPasswordRequest{Email: "reset@example.com", Code: "1111", NewPassword: "NewPassword456"}); !errors.Is(err, domain.ErrInvalidResetCode) {
		t.Fatalf("expected ErrInvalidResetCode, got %v", err)
	}

	f.clock.Advance(2 * time.Second)
	if err := f.service.ResetPassword(ctx, application.ResetPasswordRequest{Email: "reset@example.com", Code: "5555", NewPassword: "NewPassword456"}); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if err := f.service.ResetPassword(ctx, application.ResetPasswordRequest{Email: "reset@example.com", Code: "5555", NewPassword: "Another789xx"}); !errors.Is(err, domain.ErrInvalidResetCode) {
		t.Fatalf("reset code must be single use, got %v", err)
	}

	if _, err := f.service.Login(ctx, application.LoginRequest{Email: "reset@example.com", Password: "Password123"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := f.service.Login(ctx, application.LoginRequest{Email: "reset@example.com", Password: "NewPassword456"}); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	session, err := f.service.ResolveRefresh(ctx, oldLogin.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("resolve refresh failed: %v", err)
	}
	if _, err := f.service.RefreshToken(ctx, session); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("refresh tokens issued before a reset must be rejected, got %v", err)
	}
}

func TestUnlockAccountRequiresPrivilegedRole(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	profile := registerAndVerify(t, f, "locked@example.com", "Password123")
	for i := 0; i < 5; i++ {
		_, _ = f.service.Login(ctx, application.LoginRequest{Email: "locked@example.com", Password: "wrong-pass"})
	}

	customer := application.Identity{AccountID: uuid.New(), Roles: []string{"customer"}}
	if _, err := f.service.UnlockAccount(ctx, customer, profile.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	admin := application.Identity{AccountID: uuid.New(), Roles: []string{"admin"}}
	unlocked, err := f.service.UnlockAccount(ctx, admin, profile.ID)
	if err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if unlocked.LockedUntil != nil {
		t.Fatalf("expected lock to be cleared")
	}
	if _, err := f.service.Login(ctx, application.LoginRequest{Email: "locked@example.com", Password: "Password123"}); err != nil {
		t.Fatalf("login after unlock failed: %v", err)
	}
	if _, err := f.service.UnlockAccount(ctx, admin, uuid.New()); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestMutationsSurviveCancelledContext(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.service.Register(ctx, application.RegisterRequest{Email: "gone@example.com", Password: "Password123"}); err != nil {
		t.Fatalf("register should complete after client disconnect: %v", err)
	}
	if f.accounts.get("gone@example.com").ID == uuid.Nil {
		t.Fatalf("expected account to be stored")
	}
}

func TestRegisterVendorIssuesVendorReference(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	reg, err := f.service.RegisterVendor(ctx, application.RegisterVendorRequest{
		Email:        "Shop@Example.com",
		Password:     "Password123",
		FirstName:    "Ada",
		LastName:     "Obi",
		BusinessName: "  Ada   Fabrics ",
		BusinessType: "retail",
	})
	if err != nil {
		t.Fatalf("register vendor failed: %v", err)
	}
	if reg.Vendor.ID == uuid.Nil || reg.Vendor.BusinessName != "Ada Fabrics" || reg.Vendor.Status != "pending" {
		t.Fatalf("unexpected vendor summary: %+v", reg.Vendor)
	}
	if reg.Account.VendorID == nil || *reg.Account.VendorID != reg.Vendor.ID {
		t.Fatalf("expected account to carry vendor id %s, got %v", reg.Vendor.ID, reg.Account.VendorID)
	}
	if len(reg.Account.Roles) != 1 || reg.Account.Roles[0] != "vendor" {
		t.Fatalf("expected vendor role, got %v", reg.Account.Roles)
	}

	if n := len(f.accounts.eventsOfType("notification.email.requested")); n != 1 {
		t.Fatalf("expected one verification email, got %d", n)
	}
	vendorEvents := f.accounts.eventsOfType("vendor.registered")
	if len(vendorEvents) != 1 {
		t.Fatalf("expected one vendor.registered event, got %d", len(vendorEvents))
	}
	var payload map[string]any
	if err := json.Unmarshal(vendorEvents[0].Payload, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload["vendor_id"] != reg.Vendor.ID.String() || payload["business_name"] != "Ada Fabrics" || payload["contact_name"] != "Ada Obi" {
		t.Fatalf("unexpected vendor payload: %v", payload)
	}

	if _, err := f.service.VerifyEmail(ctx, application.VerifyEmailRequest{Email: "shop@example.com", Code: "4821"}); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	login, err := f.service.Login(ctx, application.LoginRequest{Email: "shop@example.com", Password: "Password123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	identity, err := f.service.ResolveIdentity(ctx, login.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("resolve identity failed: %v", err)
	}
	if identity.VendorID != reg.Vendor.ID.String() || !identity.HasAnyRole(domain.RoleVendor) {
		t.Fatalf("expected vendor claims in access token, got %+v", identity)
	}
}

func TestRegisterVendorValidationAndDuplicates(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	_, err := f.service.RegisterVendor(ctx, application.RegisterVendorRequest{Email: "shop@example.com", Password: "Password123"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0].Field != "businessName" {
		t.Fatalf("expected businessName violation, got %v", err)
	}

	registerAndVerify(t, f, "taken@example.com", "Password123")
	_, err = f.service.RegisterVendor(ctx, application.RegisterVendorRequest{
		Email:        "taken@example.com",
		Password:     "Password123",
		BusinessName: "Taken Ltd",
	})
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if n := len(f.accounts.eventsOfType("vendor.registered")); n != 0 {
		t.Fatalf("expected no vendor event on failure, got %d", n)
	}
}
