package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, HELIX_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool

	// CORS policy for browser clients. Credentials must be allowed for
	// cookie-based sessions to work cross-origin.
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("HELIX_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("HELIX_LOG_LEVEL", "info"),
		LogFormat: EnvString("HELIX_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("HELIX_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("HELIX_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("HELIX_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("HELIX_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("HELIX_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("HELIX_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("HELIX_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("HELIX_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("HELIX_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("HELIX_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   EnvStringSlice("HELIX_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("HELIX_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("HELIX_CORS_MAX_AGE_SECONDS", 600),

		MetricsEnabled: EnvBool("HELIX_METRICS_ENABLED", true),
	}
}
