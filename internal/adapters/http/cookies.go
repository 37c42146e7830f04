package http

import (
	"net/http"
	"time"

	"github.com/verilink/commerce-auth/internal/application"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// CookieConfig controls the session cookies. Secure is on in production.
type CookieConfig struct {
	Domain string
	Secure bool
}

func (c CookieConfig) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (c CookieConfig) setSession(w http.ResponseWriter, tokens application.SessionTokens, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, c.cookie(accessTokenCookie, tokens.AccessToken, accessTTL))
	http.SetCookie(w, c.cookie(refreshTokenCookie, tokens.RefreshToken, refreshTTL))
}

// clearSession expires both cookies with the same attributes they were set with.
func (c CookieConfig) clearSession(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		ck := c.cookie(name, "", 0)
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(w, ck)
	}
}

func cookieValue(r *http.Request, name string) string {
	ck, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return ck.Value
}
