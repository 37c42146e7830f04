package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

// ResolveIdentity verifies an access token. Every failure wraps ErrUnauthorized.
func (s *Service) ResolveIdentity(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing access token", domain.ErrUnauthorized)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if claims.Kind != ports.TokenKindAccess {
		return Identity{}, fmt.Errorf("%w: %w: not an access token", domain.ErrUnauthorized, domain.ErrTokenMalformed)
	}
	return Identity{
		AccountID: claims.AccountID,
		Email:     claims.Email,
		Roles:     claims.Roles,
		VendorID:  claims.VendorID,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// ResolveRefresh verifies a refresh token and checks it has not been revoked.
func (s *Service) ResolveRefresh(ctx context.Context, token string) (RefreshSession, error) {
	if token == "" {
		return RefreshSession{}, fmt.Errorf("%w: missing refresh token", domain.ErrUnauthorized)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return RefreshSession{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if claims.Kind != ports.TokenKindRefresh {
		return RefreshSession{}, fmt.Errorf("%w: %w: not a refresh token", domain.ErrUnauthorized, domain.ErrTokenMalformed)
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return RefreshSession{}, fmt.Errorf("check refresh revocation: %w", err)
	}
	if revoked {
		return RefreshSession{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, domain.ErrTokenRevoked)
	}
	return RefreshSession{
		AccountID: claims.AccountID,
		TokenID:   claims.TokenID,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	}, nil
}

// Me returns the caller's current profile.
func (s *Service) Me(ctx context.Context, accountID uuid.UUID) (AccountProfile, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return AccountProfile{}, accountError("lookup account", err)
	}
	return toProfile(account), nil
}

// UnlockAccount clears the failure counter and lock of another account.
// Only admins and managers may call it.
func (s *Service) UnlockAccount(ctx context.Context, actor Identity, accountID uuid.UUID) (AccountProfile, error) {
	if !actor.HasAnyRole(domain.RoleAdmin, domain.RoleManager) {
		return AccountProfile{}, domain.ErrForbidden
	}
	ctx = detach(ctx)

	now := s.nowFn()
	account, err := s.accounts.Update(ctx, accountID, func(a *domain.Account) ([]ports.OutboxEvent, error) {
		s.cfg.Policy.RecordSuccessfulLogin(a)
		a.UpdatedAt = now
		return nil, nil
	})
	if err != nil {
		return AccountProfile{}, accountError("unlock account", err)
	}

	s.logger.InfoContext(ctx, "account unlocked",
		"operation", "unlock_account",
		"outcome", "success",
		"account_id", accountID,
		"actor_id", actor.AccountID,
	)
	return toProfile(account), nil
}
