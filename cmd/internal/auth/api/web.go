package authapi

import (
	"net/http"
	"strings"
	"time"

	"helix/cmd/internal/auth/user"
)

// setSessionCookies writes the access and refresh token cookies with
// expiries matching the token lifetimes.
func (h *Handler) setSessionCookies(w http.ResponseWriter, pair user.TokenPair) {
	http.SetCookie(w, h.sessionCookie(h.cfg.AccessCookieName, pair.AccessToken, pair.AccessExp))
	http.SetCookie(w, h.sessionCookie(h.cfg.RefreshCookieName, pair.RefreshToken, pair.RefreshExp))
}

// clearSessionCookies expires both token cookies.
func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	past := time.Unix(0, 0)
	http.SetCookie(w, h.sessionCookie(h.cfg.AccessCookieName, "", past))
	http.SetCookie(w, h.sessionCookie(h.cfg.RefreshCookieName, "", past))
}

func (h *Handler) sessionCookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

// accessTokenFromRequest extracts the access token from the session
// cookie, falling back to an Authorization bearer header.
func (h *Handler) accessTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(h.cfg.AccessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// refreshTokenFromRequest prefers the request body token, falling back
// to the refresh cookie.
func (h *Handler) refreshTokenFromRequest(r *http.Request, bodyToken string) string {
	if t := strings.TrimSpace(bodyToken); t != "" {
		return t
	}
	if c, err := r.Cookie(h.cfg.RefreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}
