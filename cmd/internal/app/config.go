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

	// CORS policy for browser clients. Origins may carry a port wildcard,
	// e.g. "http://127.0.0.1:*".
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// If true, VIDTUBE_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and
	// refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("VIDTUBE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("VIDTUBE_LOG_LEVEL", "info"),
		LogFormat: EnvString("VIDTUBE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("VIDTUBE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("VIDTUBE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("VIDTUBE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("VIDTUBE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("VIDTUBE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("VIDTUBE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("VIDTUBE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("VIDTUBE_DB_MIN_CONNS", 0),

		CORSAllowedOrigins:   EnvStrings("VIDTUBE_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("VIDTUBE_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("VIDTUBE_CORS_MAX_AGE_SECONDS", 600),

		RequireTokenHMAC: EnvBool("VIDTUBE_REQUIRE_TOKEN_HMAC", false),
	}
}
