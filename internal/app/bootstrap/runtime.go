package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/verilink/commerce-auth/internal/adapters/cache"
	eventadapter "github.com/verilink/commerce-auth/internal/adapters/events"
	grpcadapter "github.com/verilink/commerce-auth/internal/adapters/grpc"
	httpadapter "github.com/verilink/commerce-auth/internal/adapters/http"
	"github.com/verilink/commerce-auth/internal/adapters/postgres"
	"github.com/verilink/commerce-auth/internal/adapters/security"
	"github.com/verilink/commerce-auth/internal/application"
	"github.com/verilink/commerce-auth/internal/domain"
	"github.com/verilink/commerce-auth/internal/ports"
)

const (
	emailRequestedEvent   = "notification.email.requested"
	vendorRegisteredEvent = "vendor.registered"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcHealth *health.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

// NewRuntime loads configuration and connects every backing store. The same
// runtime serves both the API and the outbox worker binaries.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping commerce auth service",
		"service", cfg.ServiceID,
		"environment", cfg.Environment,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
	)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	closeStores := func() {
		_ = redisClient.Close()
		_ = sqlDB.Close()
	}

	if cfg.EphemeralJWTSecret {
		logger.Warn("JWT_SECRET not set; using an ephemeral secret for this process")
	}
	tokens, err := security.NewJWTService(security.JWTConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("init jwt service: %w", err)
	}

	repos := postgres.NewRepositories(db)
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName: cfg.ServiceID,
			DefaultRole: cfg.DefaultRole,
			Policy:      domain.NewSecurityPolicy(cfg.MaxFailedAttempts, cfg.LockoutDuration, cfg.VerificationResendCooldown),
			LogCodes:    cfg.IsLocal(),
		},
		Accounts:    repos.Accounts,
		Revocations: cacheadapter.NewRedisRefreshRevocationStore(redisClient),
		Hasher:      security.NewBcryptHasher(cfg.BcryptCost),
		Tokens:      tokens,
		Codes:       security.NewNumericCodeGenerator(cfg.CodeTTL),
		Logger:      logger,
	})

	handler := httpadapter.NewHandler(svc, httpadapter.HandlerConfig{
		Cookies: httpadapter.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.IsProduction(),
		},
		RateLimit:      httpadapter.RateLimit{Limit: cfg.RateLimitMax, Window: cfg.RateLimitWindow},
		Limiter:        cacheadapter.NewRedisRateLimiter(redisClient),
		TrustedProxies: cfg.TrustedProxies,
		Ready: func(ctx context.Context) error {
			if err := sqlDB.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		},
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewAuthInternalServer(svc))

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	outbox := eventadapter.NewOutboxWorker(logger, repos.Outbox, publisher, eventadapter.OutboxWorkerConfig{
		PollInterval: cfg.OutboxPollInterval,
		BatchSize:    cfg.OutboxBatchSize,
		ClaimTTL:     cfg.OutboxClaimTTL,
		MaxRetries:   cfg.OutboxMaxRetries,
	})

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcHealth: healthSrv,
		outbox:     outbox,
		cleanupFn: func(context.Context) {
			closePublisher()
			closeStores()
		},
	}, nil
}

// newPublisher picks Kafka when brokers are configured. Validation only lets
// local environments run without brokers, and those just log events.
func newPublisher(cfg Config, logger *slog.Logger) (ports.EventPublisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set; outbox events will only be logged", "environment", cfg.Environment)
		return eventadapter.NewLoggingPublisher(logger), func() {}, nil
	}
	kafka, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.NotificationTopic, map[string]string{
		emailRequestedEvent:   cfg.NotificationTopic,
		vendorRegisteredEvent: cfg.VendorTopic,
	})
	if err != nil {
		return nil, nil, err
	}
	return kafka, func() { _ = kafka.Close() }, nil
}

func parseLogLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}
	r.grpcLis = lis

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	r.grpcHealth.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("http shutdown incomplete", "error", err)
	}
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
