package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

// RequestPasswordReset issues a reset code to a verified account. Unknown and
// unverified emails are reported separately.
func (s *Service) RequestPasswordReset(ctx context.Context, req PasswordResetRequest) error {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validateRequest(req); err != nil {
		return err
	}
	ctx = detach(ctx)

	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		return accountError("lookup account", err)
	}
	if !account.EmailVerified {
		return domain.ErrAccountNotVerified
	}

	now := s.nowFn()
	_, err = s.accounts.Update(ctx, account.ID, func(a *domain.Account) ([]ports.OutboxEvent, error) {
		code, err := s.codes.Generate(now)
		if err != nil {
			return nil, fmt.Errorf("generate reset code: %w", err)
		}
		a.IssueResetCode(code, now)
		return s.codeDelivery(ctx, *a, purposePasswordReset, code, now)
	})
	if err != nil {
		return accountError("issue reset code", err)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		"operation", "request_password_reset",
		"outcome", "success",
		"account_id", account.ID,
	)
	return nil
}

// ResetPassword swaps the password when the reset code matches. The code is
// single use, and refresh tokens issued before the change stop working.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	req.Email = domain.NormalizeEmail(req.Email)
	req.Code = trimName(req.Code)
	if err := validateRequest(req); err != nil {
		return err
	}
	ctx = detach(ctx)

	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		return accountError("lookup account", err)
	}
	now := s.nowFn()
	if !account.PasswordReset.Matches(req.Code, now) {
		return domain.ErrInvalidResetCode
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.accounts.Update(ctx, account.ID, func(a *domain.Account) ([]ports.OutboxEvent, error) {
		if !a.PasswordReset.Matches(req.Code, now) {
			return nil, domain.ErrInvalidResetCode
		}
		a.SetPassword(hash, now)
		a.ClearResetCode(now)
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidResetCode) {
			return err
		}
		return accountError("reset password", err)
	}

	s.logger.InfoContext(ctx, "password reset",
		"operation", "reset_password",
		"outcome", "success",
		"account_id", account.ID,
	)
	return nil
}
