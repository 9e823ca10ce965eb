package session

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.RefreshSecret = []byte(strings.Repeat("r", 32))
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	if err := validTestConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing access secret", func(c *Config) { c.AccessSecret = nil }},
		{"missing refresh secret", func(c *Config) { c.RefreshSecret = nil }},
		{"short access secret", func(c *Config) { c.AccessSecret = []byte("short") }},
		{"equal secrets", func(c *Config) { c.RefreshSecret = append([]byte(nil), c.AccessSecret...) }},
		{"zero access ttl", func(c *Config) { c.AccessTokenTTL = 0 }},
		{"zero refresh ttl", func(c *Config) { c.RefreshTokenTTL = 0 }},
		{"refresh not longer than access", func(c *Config) { c.RefreshTokenTTL = c.AccessTokenTTL }},
		{"negative skew", func(c *Config) { c.ClockSkew = -time.Second }},
		{"empty issuer", func(c *Config) { c.Issuer = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected ErrConfig")
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	access := strings.Repeat("a", 32)
	refresh := strings.Repeat("r", 32)

	t.Run("defaults plus secrets", func(t *testing.T) {
		t.Setenv("VIDTUBE_AUTH_ACCESS_SECRET", access)
		t.Setenv("VIDTUBE_AUTH_REFRESH_SECRET", refresh)

		cfg, err := LoadConfigFromEnv()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.AccessTokenTTL != 15*time.Minute {
			t.Fatalf("unexpected access ttl: %v", cfg.AccessTokenTTL)
		}
		if cfg.RefreshTokenTTL != 10*24*time.Hour {
			t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTokenTTL)
		}
		if cfg.Issuer != "vidtube" {
			t.Fatalf("unexpected issuer: %q", cfg.Issuer)
		}
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("VIDTUBE_AUTH_ACCESS_SECRET", access)
		t.Setenv("VIDTUBE_AUTH_REFRESH_SECRET", refresh)
		t.Setenv("VIDTUBE_AUTH_ISSUER", "vidtube-test")
		t.Setenv("VIDTUBE_AUTH_ACCESS_TTL", "5m")
		t.Setenv("VIDTUBE_AUTH_REFRESH_TTL", "48h")
		t.Setenv("VIDTUBE_AUTH_CLOCK_SKEW", "10s")

		cfg, err := LoadConfigFromEnv()
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cfg.Issuer != "vidtube-test" || cfg.AccessTokenTTL != 5*time.Minute ||
			cfg.RefreshTokenTTL != 48*time.Hour || cfg.ClockSkew != 10*time.Second {
			t.Fatalf("overrides not applied: %+v", cfg)
		}
	})

	t.Run("missing secrets", func(t *testing.T) {
		t.Setenv("VIDTUBE_AUTH_ACCESS_SECRET", "")
		t.Setenv("VIDTUBE_AUTH_REFRESH_SECRET", "")
		if _, err := LoadConfigFromEnv(); err == nil {
			t.Fatalf("expected error without secrets")
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("VIDTUBE_AUTH_ACCESS_SECRET", access)
		t.Setenv("VIDTUBE_AUTH_REFRESH_SECRET", refresh)
		t.Setenv("VIDTUBE_AUTH_ACCESS_TTL", "fifteen minutes")
		if _, err := LoadConfigFromEnv(); err == nil {
			t.Fatalf("expected error for malformed duration")
		}
	})
}
