package bootstrap

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/verilink/commerce-auth/internal/domain"
)

const minProductionSecretLength = 32

// Config is the resolved runtime configuration. It is built once at start-up
// and passed by value afterwards.
type Config struct {
	ServiceID   string
	Environment string
	LogLevel    string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	JWTSecret string
	JWTIssuer string
	// EphemeralJWTSecret is set when no secret was configured in a local
	// environment and a random one was generated for this process.
	EphemeralJWTSecret bool
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	BcryptCost         int

	DefaultRole                domain.Role
	MaxFailedAttempts          int
	LockoutDuration            time.Duration
	CodeTTL                    time.Duration
	VerificationResendCooldown time.Duration

	CookieDomain    string
	RateLimitMax    int
	RateLimitWindow time.Duration
	// TrustedProxies may set X-Forwarded-For. Empty means none.
	TrustedProxies []netip.Prefix

	KafkaBrokers      []string
	NotificationTopic string
	VendorTopic       string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// IsProduction reports whether cookies must be Secure.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsLocal reports whether one-time codes may be written to the log.
func (c Config) IsLocal() bool {
	switch c.Environment {
	case "local", "development", "test":
		return true
	}
	return false
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID          string `yaml:"id"`
		Environment string `yaml:"environment"`
		HTTPPort    int    `yaml:"http_port"`
		GRPCPort    int    `yaml:"grpc_port"`
		LogLevel    string `yaml:"log_level"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"dependencies"`
	Auth struct {
		Issuer                     string `yaml:"issuer"`
		AccessTTL                  string `yaml:"access_ttl"`
		RefreshTTL                 string `yaml:"refresh_ttl"`
		BcryptCost                 int    `yaml:"bcrypt_cost"`
		DefaultRole                string `yaml:"default_role"`
		MaxFailedAttempts          int    `yaml:"max_failed_attempts"`
		LockoutDuration            string `yaml:"lockout_duration"`
		CodeTTL                    string `yaml:"code_ttl"`
		VerificationResendCooldown string `yaml:"verification_resend_cooldown"`
	} `yaml:"auth"`
	HTTP struct {
		CookieDomain   string   `yaml:"cookie_domain"`
		TrustedProxies []string `yaml:"trusted_proxies"`
		RateLimit      struct {
			Max    int    `yaml:"max"`
			Window string `yaml:"window"`
		} `yaml:"rate_limit"`
	} `yaml:"http"`
	Events struct {
		NotificationTopic string `yaml:"notification_topic"`
		VendorTopic       string `yaml:"vendor_topic"`
	} `yaml:"events"`
}

// LoadConfig resolves configuration in priority order: defaults -> file ->
// .env -> process environment.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                  "commerce-auth",
		Environment:                "local",
		LogLevel:                   "info",
		HTTPPort:                   8080,
		GRPCPort:                   9090,
		MaxDBConns:                 20,
		JWTIssuer:                  "commerce-auth",
		AccessTTL:                  24 * time.Hour,
		RefreshTTL:                 30 * 24 * time.Hour,
		BcryptCost:                 10,
		DefaultRole:                domain.RoleCustomer,
		MaxFailedAttempts:          domain.DefaultMaxFailedAttempts,
		LockoutDuration:            domain.DefaultLockoutDuration,
		CodeTTL:                    10 * time.Minute,
		VerificationResendCooldown: domain.DefaultVerificationResendCooldown,
		RateLimitMax:               100,
		RateLimitWindow:            15 * time.Minute,
		NotificationTopic:          "notification.email.requested",
		VendorTopic:                "vendor.registered",
		OutboxPollInterval:         2 * time.Second,
		OutboxBatchSize:            100,
		OutboxClaimTTL:             30 * time.Second,
		OutboxMaxRetries:           5,
	}

	var durations durationReader
	var proxies []string
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if proxies, err = applyFile(&cfg, raw, &durations); err != nil {
				return Config{}, err
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	envFile := envOrDefault("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.Environment = strings.ToLower(strings.TrimSpace(envOrDefault("APP_ENV", cfg.Environment)))
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = envOrDefault("JWT_ISSUER", cfg.JWTIssuer)
	cfg.AccessTTL = durations.env("JWT_EXPIRES_IN", cfg.AccessTTL)
	cfg.RefreshTTL = durations.env("JWT_REFRESH_EXPIRES_IN", cfg.RefreshTTL)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)

	cfg.DefaultRole = domain.Role(envOrDefault("DEFAULT_ROLE", string(cfg.DefaultRole)))
	cfg.MaxFailedAttempts = envInt("MAX_LOGIN_ATTEMPTS", cfg.MaxFailedAttempts)
	cfg.LockoutDuration = durations.env("LOCKOUT_DURATION", cfg.LockoutDuration)
	cfg.CodeTTL = durations.env("CODE_TTL", cfg.CodeTTL)
	cfg.VerificationResendCooldown = durations.env("VERIFICATION_RESEND_COOLDOWN", cfg.VerificationResendCooldown)

	cfg.CookieDomain = envOrDefault("COOKIE_DOMAIN", cfg.CookieDomain)
	cfg.RateLimitMax = envInt("RATE_LIMIT_MAX", cfg.RateLimitMax)
	cfg.RateLimitWindow = durations.env("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	trusted, err := parsePrefixes(envCSV("TRUSTED_PROXIES", proxies))
	if err != nil {
		return Config{}, err
	}
	cfg.TrustedProxies = trusted

	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.NotificationTopic = envOrDefault("KAFKA_NOTIFICATION_TOPIC", cfg.NotificationTopic)
	cfg.VendorTopic = envOrDefault("KAFKA_VENDOR_TOPIC", cfg.VendorTopic)

	cfg.OutboxPollInterval = durations.env("OUTBOX_POLL_INTERVAL", cfg.OutboxPollInterval)
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = durations.env("OUTBOX_CLAIM_TTL", cfg.OutboxClaimTTL)
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if durations.err != nil {
		return Config{}, durations.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyFile overlays the YAML file on cfg. Trusted proxies come back raw so
// the environment can still replace them before parsing.
func applyFile(cfg *Config, raw []byte, durations *durationReader) ([]string, error) {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.ID != "" {
		cfg.ServiceID = f.Service.ID
	}
	if f.Service.Environment != "" {
		cfg.Environment = f.Service.Environment
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = f.Service.LogLevel
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Dependencies.PostgresURL != "" {
		cfg.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Auth.Issuer != "" {
		cfg.JWTIssuer = f.Auth.Issuer
	}
	if f.Auth.BcryptCost > 0 {
		cfg.BcryptCost = f.Auth.BcryptCost
	}
	if f.Auth.DefaultRole != "" {
		cfg.DefaultRole = domain.Role(f.Auth.DefaultRole)
	}
	if f.Auth.MaxFailedAttempts > 0 {
		cfg.MaxFailedAttempts = f.Auth.MaxFailedAttempts
	}
	cfg.AccessTTL = durations.value("auth.access_ttl", f.Auth.AccessTTL, cfg.AccessTTL)
	cfg.RefreshTTL = durations.value("auth.refresh_ttl", f.Auth.RefreshTTL, cfg.RefreshTTL)
	cfg.LockoutDuration = durations.value("auth.lockout_duration", f.Auth.LockoutDuration, cfg.LockoutDuration)
	cfg.CodeTTL = durations.value("auth.code_ttl", f.Auth.CodeTTL, cfg.CodeTTL)
	cfg.VerificationResendCooldown = durations.value("auth.verification_resend_cooldown", f.Auth.VerificationResendCooldown, cfg.VerificationResendCooldown)
	if f.HTTP.CookieDomain != "" {
		cfg.CookieDomain = f.HTTP.CookieDomain
	}
	if f.HTTP.RateLimit.Max > 0 {
		cfg.RateLimitMax = f.HTTP.RateLimit.Max
	}
	cfg.RateLimitWindow = durations.value("http.rate_limit.window", f.HTTP.RateLimit.Window, cfg.RateLimitWindow)
	if f.Events.NotificationTopic != "" {
		cfg.NotificationTopic = f.Events.NotificationTopic
	}
	if f.Events.VendorTopic != "" {
		cfg.VendorTopic = f.Events.VendorTopic
	}
	return f.HTTP.TrustedProxies, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("missing DB_URL/POSTGRES_URL")
	}
	if c.RedisURL == "" {
		return errors.New("missing REDIS_URL")
	}
	if !c.DefaultRole.Valid() {
		return fmt.Errorf("unknown DEFAULT_ROLE %q", c.DefaultRole)
	}
	switch {
	case c.JWTSecret == "" && c.IsLocal():
		c.EphemeralJWTSecret = true
		c.JWTSecret = ephemeralSecret()
	case c.JWTSecret == "":
		return errors.New("missing JWT_SECRET")
	case c.IsProduction() && len(c.JWTSecret) < minProductionSecretLength:
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minProductionSecretLength)
	}
	// Outside local environments codes only travel through the outbox, so a
	// worker without a broker would drop them.
	if !c.IsLocal() && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required in %s", c.Environment)
	}
	return nil
}

// parsePrefixes accepts CIDRs or bare addresses.
func parsePrefixes(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", item, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", item, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func ephemeralSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// durationReader parses durations from several sources and keeps the first error.
type durationReader struct {
	err error
}

func (d *durationReader) value(name, raw string, fallback time.Duration) time.Duration {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	v, err := parseDuration(raw)
	if err != nil {
		if d.err == nil {
			d.err = fmt.Errorf("invalid duration for %s: %w", name, err)
		}
		return fallback
	}
	return v
}

func (d *durationReader) env(name string, fallback time.Duration) time.Duration {
	return d.value(name, os.Getenv(name), fallback)
}

// parseDuration accepts Go duration syntax plus a whole-day suffix ("30d").
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if days, ok := strings.CutSuffix(raw, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad day count %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", raw)
	}
	return v, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
