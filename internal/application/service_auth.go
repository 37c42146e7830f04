package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

func (s *Service) Register(ctx context.Context, req RegisterRequest) (AccountProfile, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	req.FirstName = trimName(req.FirstName)
	req.LastName = trimName(req.LastName)
	req.Phone = trimName(req.Phone)
	if err := validateRequest(req); err != nil {
		return AccountProfile{}, err
	}

	account, err := s.createAccount(detach(ctx), "register", newAccount{
		email:     req.Email,
		password:  req.Password,
		firstName: req.FirstName,
		lastName:  req.LastName,
		phone:     req.Phone,
		role:      s.cfg.DefaultRole,
	}, nil)
	if err != nil {
		return AccountProfile{}, err
	}
	return toProfile(account), nil
}

// RegisterVendor creates a vendor account with a fresh vendor reference and
// announces it so the vendor service can open the business record.
func (s *Service) RegisterVendor(ctx context.Context, req RegisterVendorRequest) (VendorRegistration, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	req.FirstName = trimName(req.FirstName)
	req.LastName = trimName(req.LastName)
	req.Phone = trimName(req.Phone)
	req.BusinessName = trimName(req.BusinessName)
	req.BusinessType = trimName(req.BusinessType)
	if err := validateRequest(req); err != nil {
		return VendorRegistration{}, err
	}

	vendor := VendorSummary{
		ID:           uuid.New(),
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
		Status:       vendorStatusPending,
	}
	account, err := s.createAccount(detach(ctx), "register_vendor", newAccount{
		email:     req.Email,
		password:  req.Password,
		firstName: req.FirstName,
		lastName:  req.LastName,
		phone:     req.Phone,
		role:      domain.RoleVendor,
		vendorID:  &vendor.ID,
	}, func(a domain.Account, now time.Time) (ports.OutboxEvent, error) {
		return vendorRegisteredEvent(a, vendor, now)
	})
	if err != nil {
		return VendorRegistration{}, err
	}
	return VendorRegistration{Account: toProfile(account), Vendor: vendor}, nil
}

type newAccount struct {
	email     string
	password  string
	firstName string
	lastName  string
	phone     string
	role      domain.Role
	vendorID  *uuid.UUID
}

// createAccount stores a pending account with its first verification code.
// extra, when set, adds one more outbox event to the same write.
func (s *Service) createAccount(ctx context.Context, op string, in newAccount, extra func(domain.Account, time.Time) (ports.OutboxEvent, error)) (domain.Account, error) {
	if _, err := s.accounts.GetByEmail(ctx, in.email); err == nil {
		return domain.Account{}, domain.ErrAccountExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := s.hasher.Hash(in.password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.nowFn()
	code, err := s.codes.Generate(now)
	if err != nil {
		return domain.Account{}, fmt.Errorf("generate verification code: %w", err)
	}

	account := domain.Account{
		ID:        uuid.New(),
		Email:     in.email,
		FirstName: in.firstName,
		LastName:  in.lastName,
		Phone:     in.phone,
		Roles:     []domain.Role{in.role},
		Status:    domain.StatusPendingVerification,
		VendorID:  in.vendorID,
		CreatedAt: now,
	}
	account.SetPassword(hash, now)
	account.IssueVerificationCode(code, now)

	events, err := s.codeDelivery(ctx, account, purposeEmailVerification, code, now)
	if err != nil {
		return domain.Account{}, err
	}
	if extra != nil {
		event, err := extra(account, now)
		if err != nil {
			return domain.Account{}, err
		}
		events = append(events, event)
	}
	if err := s.accounts.Create(ctx, account, events...); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Account{}, domain.ErrAccountExists
		}
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.logger.InfoContext(ctx, "account registered",
		"operation", op,
		"outcome", "success",
		"account_id", account.ID,
		"role", in.role,
	)
	return account, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return LoginResult{}, err
	}
	ctx = detach(ctx)
	policy := s.cfg.Policy

	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return LoginResult{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup account: %w", err)
	}

	now := s.nowFn()
	if policy.IsLocked(account, now) {
		s.logger.WarnContext(ctx, "login rejected for locked account",
			"operation", "login",
			"outcome", "denied",
			"account_id", account.ID,
			"locked_until", account.LockedUntil,
		)
		return LoginResult{}, domain.ErrAccountLocked
	}

	if err := s.hasher.Compare(account.PasswordHash, req.Password); err != nil {
		return LoginResult{}, s.recordFailedLogin(ctx, account.ID, now)
	}
	if account.Disabled() {
		return LoginResult{}, domain.ErrAccountDisabled
	}

	if !account.EmailVerified {
		verified, err := s.resendVerification(ctx, account.ID, now)
		if err != nil {
			return LoginResult{}, err
		}
		if !verified {
			return LoginResult{}, domain.ErrEmailNotVerified
		}
	}

	account, err = s.accounts.Update(ctx, account.ID, func(a *domain.Account) ([]ports.OutboxEvent, error) {
		if policy.IsLocked(*a, now) {
			return nil, domain.ErrAccountLocked
		}
		policy.RecordSuccessfulLogin(a)
		a.LastLoginAt = &now
		a.LastLoginIP = req.IPAddress
		a.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAccountLocked) {
			return LoginResult{}, err
		}
		return LoginResult{}, accountError("record login", err)
	}

	tokens, err := s.issueSession(account)
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.InfoContext(ctx, "login succeeded",
		"operation", "login",
		"outcome", "success",
		"account_id", account.ID,
	)
	return LoginResult{Account: toProfile(account), Tokens: tokens}, nil
}

// recordFailedLogin counts a wrong password under the row lock and always
// reports ErrInvalidCredentials unless the store itself fails.
func (s *Service) recordFailedLogin(ctx context.Context, accountID uuid.UUID, now time.Time) error {
	policy := s.cfg.Policy
	locked := false
	_, err := s.accounts.Update(ctx, accountID, func(a *domain.Account) ([]ports.OutboxEvent, error) {
		if policy.IsLocked(*a, now) {
			return nil, nil
		}
		policy.RecordFailedLogin(a, now)
		locked = policy.IsLocked(*a, now)
		return nil, nil
	})
	if err != nil {
		return accountError("record failed login", err)
	}
	if locked {
		s.logger.WarnContext(ctx, "account lockout triggered",
			"operation", "login",
			"outcome", "locked",
			"account_id", accountID,
			"lockout_duration", policy.LockoutDuration.String(),
		)
	}
	return domain.ErrInvalidCredentials
}

// resendVerification sends a fresh verification code unless one went out
// within the cooldown. It reports true when the account turned out to be
// verified by a concurrent request.
func (s *Service) resendVerification(ctx context.Context, accountID uuid.UUID, now time.Time) (bool, error) {
	policy := s.cfg.Policy
	verified := false
	_, err := s.accounts.Update(ctx, accountID, func(a *domain.Account) ([]ports.OutboxEvent, error) {
		if a.EmailVerified {
			verified = true
			return nil, nil
		}
		if !policy.CanResendVerification(*a, now) {
			return nil, domain.ErrVerificationThrottled
		}
		code, err := s.codes.Generate(now)
		if err != nil {
			return nil, fmt.Errorf("generate verification code: %w", err)
		}
		a.IssueVerificationCode(code, now)
		return s.codeDelivery(ctx, *a, purposeEmailVerification, code, now)
	})
	if err != nil {
		if errors.Is(err, domain.ErrVerificationThrottled) {
			return false, err
		}
		return false, accountError("resend verification", err)
	}
	if !verified {
		s.logger.InfoContext(ctx, "verification code resent",
			"operation", "login",
			"outcome", "unverified",
			"account_id", accountID,
		)
	}
	return verified, nil
}

// VerifyEmail confirms the account's email. Verifying an already verified
// account succeeds with AlreadyVerified set.
func (s *Service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (VerifyEmailResult, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	req.Code = trimName(req.Code)
	if err := validateRequest(req); err != nil {
		return VerifyEmailResult{}, err
	}
	ctx = detach(ctx)

	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		return VerifyEmailResult{}, accountError("lookup account", err)
	}
	if account.EmailVerified {
		return VerifyEmailResult{AlreadyVerified: true}, nil
	}

	now := s.nowFn()
	already := false
	_, err = s.accounts.Update(ctx, account.ID, func(a *domain.Account) ([]ports.OutboxEvent, error) {
		if a.EmailVerified {
			already = true
			return nil, nil
		}
		if !a.EmailVerification.Matches(req.Code, now) {
			return nil, domain.ErrInvalidVerificationCode
		}
		a.MarkEmailVerified(now)
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidVerificationCode) {
			return VerifyEmailResult{}, err
		}
		return VerifyEmailResult{}, accountError("verify email", err)
	}

	if !already {
		s.logger.InfoContext(ctx, "email verified",
			"operation", "verify_email",
			"outcome", "success",
			"account_id", account.ID,
		)
	}
	return VerifyEmailResult{AlreadyVerified: already}, nil
}

// RefreshToken rotates a refresh session: the presented refresh token is
// revoked and a new pair is issued.
func (s *Service) RefreshToken(ctx context.Context, session RefreshSession) (SessionTokens, error) {
	ctx = detach(ctx)

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		return SessionTokens{}, accountError("lookup account", err)
	}
	if account.PasswordChangedAfter(session.IssuedAt) {
		return SessionTokens{}, fmt.Errorf("%w: refresh token predates password change", domain.ErrUnauthorized)
	}
	if account.Disabled() {
		return SessionTokens{}, domain.ErrAccountDisabled
	}

	if err := s.revocations.MarkRevoked(ctx, session.TokenID, session.ExpiresAt); err != nil {
		return SessionTokens{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	tokens, err := s.issueSession(account)
	if err != nil {
		return SessionTokens{}, err
	}
	s.logger.InfoContext(ctx, "session refreshed",
		"operation", "refresh_token",
		"outcome", "success",
		"account_id", account.ID,
	)
	return tokens, nil
}

// Logout revokes the presented refresh token when it belongs to the caller.
// A missing or unusable refresh token is not an error; the transport clears
// cookies either way.
func (s *Service) Logout(ctx context.Context, req LogoutRequest) error {
	ctx = detach(ctx)
	if req.RefreshToken == "" {
		return nil
	}
	claims, err := s.tokens.Verify(req.RefreshToken)
	if err != nil || claims.Kind != ports.TokenKindRefresh || claims.AccountID != req.Identity.AccountID {
		return nil
	}
	if err := s.revocations.MarkRevoked(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.logger.InfoContext(ctx, "logged out",
		"operation", "logout",
		"outcome", "success",
		"account_id", req.Identity.AccountID,
	)
	return nil
}
