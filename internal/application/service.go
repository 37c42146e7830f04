package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

// Service orchestrates registration, login, verification, password reset and
// token lifecycle on top of the account store and the token service.
type Service struct {
	cfg         Config
	accounts    ports.AccountRepository
	revocations ports.RefreshTokenRevocationStore
	hasher      ports.PasswordHasher
	tokens      ports.TokenService
	codes       ports.CodeGenerator
	logger      *slog.Logger
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Accounts    ports.AccountRepository
	Revocations ports.RefreshTokenRevocationStore
	Hasher      ports.PasswordHasher
	Tokens      ports.TokenService
	Codes       ports.CodeGenerator
	Logger      *slog.Logger
	// Clock is optional; it defaults to time.Now in UTC.
	Clock func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "commerce-auth"
	}
	if !cfg.DefaultRole.Valid() {
		cfg.DefaultRole = domain.RoleCustomer
	}
	cfg.Policy = domain.NewSecurityPolicy(cfg.Policy.MaxFailedAttempts, cfg.Policy.LockoutDuration, cfg.Policy.VerificationResendCooldown)

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := deps.Clock
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:         cfg,
		accounts:    deps.Accounts,
		revocations: deps.Revocations,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		codes:       deps.Codes,
		logger:      logger.With("service", cfg.ServiceName, "module", "application", "layer", "application"),
		nowFn:       nowFn,
	}
}

// AccessTTL and RefreshTTL expose token lifetimes for cookie max-age.
func (s *Service) AccessTTL() time.Duration  { return s.tokens.AccessTTL() }
func (s *Service) RefreshTTL() time.Duration { return s.tokens.RefreshTTL() }

// detach keeps request values but drops cancellation so a client that hangs
// up mid-request cannot leave a half-applied mutation behind.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
