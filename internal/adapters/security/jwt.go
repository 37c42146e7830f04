package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

// JWTConfig is fixed at construction; nothing mutates it afterwards.
type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// Now overrides the clock used for issuing and validating. Defaults to time.Now.
	Now func() time.Time
}

// JWTService implements HS256 access and refresh tokens over a shared secret.
type JWTService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewJWTService validates cfg and builds the token service.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTService{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        cfg.Now,
	}, nil
}

type sessionClaims struct {
	Kind     string   `json:"typ"`
	Email    string   `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	VendorID string   `json:"vendorId,omitempty"`
	jwt.RegisteredClaims
}

func (s *JWTService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *JWTService) IssueAccessToken(subject ports.AccessSubject) (ports.IssuedToken, error) {
	return s.sign(subject.AccountID, ports.TokenKindAccess, s.accessTTL, func(c *sessionClaims) {
		c.Email = subject.Email
		c.Roles = subject.Roles
		c.VendorID = subject.VendorID
	})
}

func (s *JWTService) IssueRefreshToken(accountID uuid.UUID) (ports.IssuedToken, error) {
	return s.sign(accountID, ports.TokenKindRefresh, s.refreshTTL, nil)
}

func (s *JWTService) sign(accountID uuid.UUID, kind ports.TokenKind, ttl time.Duration, decorate func(*sessionClaims)) (ports.IssuedToken, error) {
	if accountID == uuid.Nil {
		return ports.IssuedToken{}, errors.New("account id is required")
	}
	now := s.now().UTC()
	tokenID := uuid.NewString()
	expiresAt := now.Add(ttl)
	claims := sessionClaims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   accountID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if decorate != nil {
		decorate(&claims)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return ports.IssuedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return ports.IssuedToken{
		Token:     signed,
		TokenID:   tokenID,
		ExpiresAt: expiresAt.Truncate(time.Second),
	}, nil
}

func (s *JWTService) Verify(raw string) (ports.TokenClaims, error) {
	if raw == "" {
		return ports.TokenClaims{}, domain.ErrTokenMalformed
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.TokenClaims{}, domain.ErrTokenExpired
		}
		return ports.TokenClaims{}, fmt.Errorf("%w: %v", domain.ErrTokenMalformed, err)
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return ports.TokenClaims{}, domain.ErrTokenMalformed
	}

	kind := ports.TokenKind(claims.Kind)
	if kind != ports.TokenKindAccess && kind != ports.TokenKindRefresh {
		return ports.TokenClaims{}, fmt.Errorf("%w: unknown token type %q", domain.ErrTokenMalformed, claims.Kind)
	}
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.TokenClaims{}, fmt.Errorf("%w: subject: %v", domain.ErrTokenMalformed, err)
	}
	out := ports.TokenClaims{
		TokenID:   claims.ID,
		Kind:      kind,
		AccountID: accountID,
		Email:     claims.Email,
		Roles:     claims.Roles,
		VendorID:  claims.VendorID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return out, nil
}
