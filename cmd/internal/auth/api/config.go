package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls auth API behavior and cookie policy.
type Config struct {
	AccessCookieName  string
	RefreshCookieName string

	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite

	MaxBodyBytes int64

	// Sliding-window limit for credential-guessing surfaces
	// (login and refresh), keyed by client IP.
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// DefaultConfig returns the cookie and body-limit defaults.
func DefaultConfig() Config {
	return Config{
		AccessCookieName:  "accessToken",
		RefreshCookieName: "refreshToken",
		CookiePath:        "/",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
		MaxBodyBytes:      1 << 20, // 1 MiB
		LoginRateLimit:    loginRateLimitEvents,
		LoginRateWindow:   loginRateLimitWindow,
	}
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults.
//
// Env surface:
//   - HELIX_AUTH_COOKIE_DOMAIN
//   - HELIX_AUTH_COOKIE_SECURE (default true; disable only for local dev)
//   - HELIX_AUTH_COOKIE_SAMESITE (lax|strict|none)
//   - HELIX_AUTH_MAX_BODY_BYTES
//   - HELIX_AUTH_LOGIN_RATE_LIMIT
//   - HELIX_AUTH_LOGIN_RATE_WINDOW
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("HELIX_AUTH_COOKIE_DOMAIN")); v != "" {
		cfg.CookieDomain = v
	}

	if v := strings.TrimSpace(os.Getenv("HELIX_AUTH_COOKIE_SECURE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CookieSecure = b
		}
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv("HELIX_AUTH_COOKIE_SAMESITE"))) {
	case "strict":
		cfg.CookieSameSite = http.SameSiteStrictMode
	case "none":
		cfg.CookieSameSite = http.SameSiteNoneMode
	case "lax", "":
		// keep default
	}

	if v := strings.TrimSpace(os.Getenv("HELIX_AUTH_MAX_BODY_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	if v := strings.TrimSpace(os.Getenv("HELIX_AUTH_LOGIN_RATE_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LoginRateLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("HELIX_AUTH_LOGIN_RATE_WINDOW")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.LoginRateWindow = d
		}
	}

	return cfg
}
