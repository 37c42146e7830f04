package http

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/verilink/commerce-auth/internal/application"
	"github.com/verilink/commerce-auth/internal/ports"
)

// RateLimit is the per-IP request budget for the auth routes.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// HandlerConfig wires transport-only concerns around the application service.
type HandlerConfig struct {
	Cookies   CookieConfig
	RateLimit RateLimit
	Limiter   ports.RateLimiter
	// TrustedProxies lists the load balancers allowed to set X-Forwarded-For.
	// Empty means the TCP peer is always the client.
	TrustedProxies []netip.Prefix
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// Handler is the HTTP adapter entrypoint for auth use-cases.
type Handler struct {
	service   *application.Service
	cookies   CookieConfig
	limiter   ports.RateLimiter
	rateLimit RateLimit
	proxies   []netip.Prefix
	ready     func(ctx context.Context) error
}

func NewHandler(service *application.Service, cfg HandlerConfig) *Handler {
	return &Handler{
		service:   service,
		cookies:   cfg.Cookies,
		limiter:   cfg.Limiter,
		rateLimit: cfg.RateLimit,
		proxies:   cfg.TrustedProxies,
		ready:     cfg.Ready,
	}
}

func (h *Handler) clientIP(r *http.Request) string {
	return clientIP(r, h.proxies)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			httpLogger().WarnContext(r.Context(), "readiness check failed",
				"operation", "readyz",
				"outcome", "failure",
				"error", err.Error(),
			)
			writeError(w, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
