package token

import (
	"crypto/subtle"
	"errors"
	"os"
	"strings"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid token config")

// minSecretBytes is the minimum length for HMAC-SHA256 signing secrets.
const minSecretBytes = 32

// Config defines all runtime configuration for the token issuer.
//
// It controls per-class TTLs, clock skew tolerance, and the two signing
// secrets. This struct is intentionally explicit and environment-driven so
// that production deployments can tune security parameters without code
// changes, and so tests can run with short TTLs and isolated secrets.
type Config struct {
	// Issuer is the value set in the "iss" claim of both token classes.
	Issuer string

	// AccessTTL defines the lifetime of access tokens (minutes-scale).
	AccessTTL time.Duration

	// RefreshTTL defines the lifetime of refresh tokens (day-scale).
	RefreshTTL time.Duration

	// Leeway is the allowed clock skew during token validation.
	Leeway time.Duration

	// AccessSecret and RefreshSecret are the HMAC signing secrets.
	// They MUST differ and each MUST be at least 32 bytes.
	AccessSecret  []byte
	RefreshSecret []byte
}

// DefaultConfig returns defaults suitable for development.
// Secrets are intentionally absent and must be supplied.
func DefaultConfig() Config {
	return Config{
		Issuer:     "helix",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Leeway:     30 * time.Second,
	}
}

// LoadConfigFromEnv loads token configuration from environment variables.
//
// Required:
//   - HELIX_ACCESS_TOKEN_SECRET
//   - HELIX_REFRESH_TOKEN_SECRET
//
// Optional (durations must be valid Go duration strings):
//   - HELIX_TOKEN_ISSUER
//   - HELIX_ACCESS_TOKEN_TTL
//   - HELIX_REFRESH_TOKEN_TTL
//   - HELIX_TOKEN_LEEWAY
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("HELIX_TOKEN_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("HELIX_ACCESS_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTTL = d
	}

	if v := os.Getenv("HELIX_REFRESH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("HELIX_TOKEN_LEEWAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.Leeway = d
	}

	cfg.AccessSecret = []byte(strings.TrimSpace(os.Getenv("HELIX_ACCESS_TOKEN_SECRET")))
	cfg.RefreshSecret = []byte(strings.TrimSpace(os.Getenv("HELIX_REFRESH_TOKEN_SECRET")))

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.AccessSecret) < minSecretBytes || len(c.RefreshSecret) < minSecretBytes {
		return ErrConfig
	}
	// The two classes must not share a signing secret: a leaked access secret
	// must never be able to mint refresh tokens.
	if len(c.AccessSecret) == len(c.RefreshSecret) &&
		subtle.ConstantTimeCompare(c.AccessSecret, c.RefreshSecret) == 1 {
		return ErrConfig
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.Leeway < 0 {
		return ErrConfig
	}
	if c.RefreshTTL < c.AccessTTL {
		return ErrConfig
	}
	return nil
}
