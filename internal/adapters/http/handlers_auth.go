package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/verilink/commerce-auth/internal/application"
	"github.com/verilink/commerce-auth/internal/domain"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(r.Context(), w, "register", err)
		return
	}

	profile, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "User registered successfully. Please check your email for verification.",
		map[string]any{"user": profile})
}

func (h *Handler) registerVendor(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterVendorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(r.Context(), w, "register_vendor", err)
		return
	}

	reg, err := h.service.RegisterVendor(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "register_vendor", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Vendor registration successful - check email for next steps", reg)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(r.Context(), w, "login", err)
		return
	}
	req.IPAddress = h.clientIP(r)

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	h.cookies.setSession(w, res.Tokens, h.service.AccessTTL(), h.service.RefreshTTL())
	writeSuccess(w, http.StatusOK, "Login successful", map[string]any{
		"user":        res.Account,
		"accessToken": res.Tokens.AccessToken,
	})
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req application.VerifyEmailRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(r.Context(), w, "verify_email", err)
		return
	}

	res, err := h.service.VerifyEmail(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "verify_email", err)
		return
	}
	if res.AlreadyVerified {
		writeMessage(w, http.StatusOK, "Email already verified")
		return
	}
	writeMessage(w, http.StatusOK, "Email verified successfully")
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.ResolveRefresh(r.Context(), cookieValue(r, refreshTokenCookie))
	if err != nil {
		writeMappedError(r.Context(), w, "refresh_token", err)
		return
	}

	tokens, err := h.service.RefreshToken(r.Context(), session)
	if err != nil {
		writeMappedError(r.Context(), w, "refresh_token", err)
		return
	}
	h.cookies.setSession(w, tokens, h.service.AccessTTL(), h.service.RefreshTTL())
	writeSuccess(w, http.StatusOK, "Token refreshed successfully", map[string]any{
		"accessToken": tokens.AccessToken,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeMappedError(r.Context(), w, "logout", domain.ErrUnauthorized)
		return
	}

	err := h.service.Logout(r.Context(), application.LogoutRequest{
		Identity:     identity,
		RefreshToken: cookieValue(r, refreshTokenCookie),
	})
	h.cookies.clearSession(w)
	if err != nil {
		writeMappedError(r.Context(), w, "logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "Logout successful")
}

func (h *Handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req application.PasswordResetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(r.Context(), w, "request_password_reset", err)
		return
	}
	if err := h.service.RequestPasswordReset(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "request_password_reset", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset token sent to your email")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req application.ResetPasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDecodeError(r.Context(), w, "reset_password", err)
		return
	}
	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "reset_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password reset successfully")
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeMappedError(r.Context(), w, "me", domain.ErrUnauthorized)
		return
	}
	profile, err := h.service.Me(r.Context(), identity.AccountID)
	if err != nil {
		writeMappedError(r.Context(), w, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, "User profile retrieved", map[string]any{"user": profile})
}

func (h *Handler) unlockAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeMappedError(r.Context(), w, "unlock_account", domain.ErrUnauthorized)
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMappedError(r.Context(), w, "unlock_account", &domain.ValidationError{Fields: []domain.FieldError{{
			Field: "id", Message: "Invalid account id", Code: "uuid",
		}}})
		return
	}

	profile, err := h.service.UnlockAccount(r.Context(), identity, accountID)
	if err != nil {
		writeMappedError(r.Context(), w, "unlock_account", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Account unlocked", map[string]any{"user": profile})
}
