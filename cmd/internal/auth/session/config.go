package session

import (
	"os"
	"time"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls the access/refresh token lifetimes, clock skew tolerance, and
// the two HS256 signing secrets. The secrets MUST differ: an access token
// must never verify as a refresh token or vice versa.
//
// This struct is intentionally explicit and environment-driven so that
// production deployments can tune security parameters without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of every token.
	Issuer string

	// AccessTokenTTL defines the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL defines the lifetime of refresh tokens.
	RefreshTokenTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// AccessSecret signs and verifies access tokens.
	AccessSecret []byte

	// RefreshSecret signs and verifies refresh tokens.
	RefreshSecret []byte
}

// DefaultConfig returns default lifetimes suitable for development.
// Secrets have no default and must always be provided.
func DefaultConfig() Config {
	return Config{
		Issuer:          "vidtube",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 10 * 24 * time.Hour,
		ClockSkew:       30 * time.Second,
	}
}

const minSecretBytes = 32

// Validate reports ErrConfig unless the configuration is usable.
func (c Config) Validate() error {
	if c.Issuer == "" {
		return ErrConfig
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.ClockSkew < 0 {
		return ErrConfig
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		return ErrConfig
	}
	if len(c.AccessSecret) < minSecretBytes || len(c.RefreshSecret) < minSecretBytes {
		return ErrConfig
	}
	if string(c.AccessSecret) == string(c.RefreshSecret) {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - VIDTUBE_AUTH_ACCESS_SECRET (at least 32 bytes)
//   - VIDTUBE_AUTH_REFRESH_SECRET (at least 32 bytes, distinct from access)
//
// Optional (durations must be valid Go duration strings):
//   - VIDTUBE_AUTH_ISSUER
//   - VIDTUBE_AUTH_ACCESS_TTL
//   - VIDTUBE_AUTH_REFRESH_TTL
//   - VIDTUBE_AUTH_CLOCK_SKEW
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("VIDTUBE_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("VIDTUBE_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("VIDTUBE_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	if v := os.Getenv("VIDTUBE_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	cfg.AccessSecret = []byte(os.Getenv("VIDTUBE_AUTH_ACCESS_SECRET"))
	cfg.RefreshSecret = []byte(os.Getenv("VIDTUBE_AUTH_REFRESH_SECRET"))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
