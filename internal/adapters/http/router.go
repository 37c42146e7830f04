package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/verilink/commerce-auth/internal/domain"
)

// NewRouter registers the auth routes and the middleware stack.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(handler.accessLogMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/", http.StatusMovedPermanently)
	})
	r.Get("/swagger/", handler.apiDocs)
	r.Get(openAPIPath, handler.openAPIDocument)

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(handler.rateLimitMiddleware)

		r.Post("/register", handler.register)
		r.Post("/register-vendor", handler.registerVendor)
		r.Post("/login", handler.login)
		r.Post("/verify-email", handler.verifyEmail)
		r.Get("/refresh-token", handler.refreshToken)
		r.Post("/request-password-reset", handler.requestPasswordReset)
		r.Post("/reset-password", handler.resetPassword)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/logout", handler.logout)
			r.Get("/me", handler.me)
			r.With(requireRoles(domain.RoleAdmin, domain.RoleManager)).
				Post("/accounts/{id}/unlock", handler.unlockAccount)
		})
	})

	return r
}
