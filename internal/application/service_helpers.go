package application

import (
	"errors"
	"fmt"
	"strings"

	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

func toProfile(a domain.Account) AccountProfile {
	return AccountProfile{
		ID:            a.ID,
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Phone:         a.Phone,
		Roles:         a.RoleNames(),
		Status:        string(a.Status),
		VendorID:      a.VendorID,
		EmailVerified: a.EmailVerified,
		LockedUntil:   a.LockedUntil,
	}
}

// issueSession signs a new access and refresh token pair for a.
func (s *Service) issueSession(a domain.Account) (SessionTokens, error) {
	vendorID := ""
	if a.VendorID != nil {
		vendorID = a.VendorID.String()
	}
	access, err := s.tokens.IssueAccessToken(ports.AccessSubject{
		AccountID: a.ID,
		Email:     a.Email,
		Roles:     a.RoleNames(),
		VendorID:  vendorID,
	})
	if err != nil {
		return SessionTokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(a.ID)
	if err != nil {
		return SessionTokens{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return SessionTokens{
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// accountError turns a store miss into ErrAccountNotFound and wraps anything else.
func accountError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrAccountNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func trimName(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
