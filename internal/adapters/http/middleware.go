package http

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/application"
	"github.com/verilink/commerce-auth/internal/domain"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyIdentity  ctxKey = "identity"
)

const maxRequestIDLength = 64

// requestIDMiddleware echoes a caller supplied X-Request-Id when it is a
// short token of safe characters and mints a UUID otherwise, so the value
// can go into logs verbatim.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if !validRequestID(reqID) {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return false
		}
	}
	return true
}

// recoverMiddleware turns a handler panic into the standard 500 envelope.
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			httpLogger().ErrorContext(r.Context(), "auth handler panicked",
				"operation", "recover",
				"outcome", "failure",
				"request_id", requestIDFromContext(r.Context()),
				"route", r.Method+" "+r.URL.Path,
				"panic", rec,
			)
			writeError(w, http.StatusInternalServerError, internalErrorMessage, nil)
		}()
		next.ServeHTTP(w, r)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(payload []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.size += n
	return n, err
}

// accessLogMiddleware writes one line per request. 5xx logs at error,
// 4xx at warn, the rest at info.
func (h *Handler) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &responseRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		outcome := "success"
		switch {
		case status >= 500:
			level, outcome = slog.LevelError, "failure"
		case status >= 400:
			level, outcome = slog.LevelWarn, "failure"
		}
		httpLogger().Log(r.Context(), level, "request served",
			"operation", "http_request",
			"outcome", outcome,
			"request_id", requestIDFromContext(r.Context()),
			"client_ip", h.clientIP(r),
			"route", r.Method+" "+r.URL.Path,
			"status_code", status,
			"bytes", rec.size,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

// rateLimitMiddleware counts requests per client IP in a fixed window. When
// the limiter store is unreachable the request is let through.
func (h *Handler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter == nil || h.rateLimit.Limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		decision, err := h.limiter.Allow(r.Context(), "ip:"+h.clientIP(r), h.rateLimit.Limit, h.rateLimit.Window)
		if err != nil {
			httpLogger().WarnContext(r.Context(), "rate-limit state unavailable",
				"operation", "rate_limit",
				"outcome", "degraded",
				"request_id", requestIDFromContext(r.Context()),
				"error", err.Error(),
			)
			next.ServeHTTP(w, r)
			return
		}

		resetIn := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
		if resetIn < 0 {
			resetIn = 0
		}
		w.Header().Set("RateLimit-Limit", strconv.Itoa(h.rateLimit.Limit))
		w.Header().Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		w.Header().Set("RateLimit-Reset", strconv.Itoa(resetIn))
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(resetIn))
			writeMappedError(r.Context(), w, "rate_limit", domain.ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware resolves the caller from the bearer header or, failing
// that, the access token cookie.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			raw = cookieValue(r, accessTokenCookie)
		}
		if raw == "" {
			writeMappedError(r.Context(), w, "authenticate", domain.ErrUnauthorized)
			return
		}

		identity, err := h.service.ResolveIdentity(r.Context(), raw)
		if err != nil {
			writeMappedError(r.Context(), w, "authenticate", err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyIdentity, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRoles lets the request through only if the caller holds one of roles.
func requireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := identityFromContext(r.Context())
			if !ok {
				writeMappedError(r.Context(), w, "authorize", domain.ErrUnauthorized)
				return
			}
			if !identity.HasAnyRole(roles...) {
				writeMappedError(r.Context(), w, "authorize", domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func identityFromContext(ctx context.Context) (application.Identity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity).(application.Identity)
	return identity, ok
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
