package ports

import (
	"time"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// TokenKind separates access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// AccessSubject is the identity baked into an access token.
type AccessSubject struct {
	AccountID uuid.UUID
	Email     string
	Roles     []string
	VendorID  string
}

// IssuedToken is a signed token with its identifier and expiry.
type IssuedToken struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// TokenClaims is the verified content of a token of either kind.
// Email, Roles and VendorID are empty for refresh tokens.
type TokenClaims struct {
	TokenID   string
	Kind      TokenKind
	AccountID uuid.UUID
	Email     string
	Roles     []string
	VendorID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService signs and verifies session tokens. Verify returns
// domain.ErrTokenExpired or domain.ErrTokenMalformed on failure.
type TokenService interface {
	IssueAccessToken(subject AccessSubject) (IssuedToken, error)
	IssueRefreshToken(accountID uuid.UUID) (IssuedToken, error)
	Verify(token string) (TokenClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// CodeGenerator produces short numeric one-time codes.
type CodeGenerator interface {
	Generate(now time.Time) (domain.OneTimeCode, error)
}
