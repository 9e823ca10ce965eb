package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	// TrustProxy enables X-Forwarded-For / X-Real-IP parsing for audit IPs.
	TrustProxy bool

	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64

	// MaxMultipartBytes bounds multipart uploads (registration, avatar, cover).
	MaxMultipartBytes int64

	// Cookie attributes for the accessToken/refreshToken pair.
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// LoadConfigFromEnv loads auth API config from environment variables with
// safe defaults:
//   - VIDTUBE_AUTH_TRUST_PROXY (default false)
//   - VIDTUBE_AUTH_MAX_BODY_BYTES (default 1 MiB)
//   - VIDTUBE_AUTH_MAX_MULTIPART_BYTES (default 32 MiB)
//   - VIDTUBE_AUTH_COOKIE_PATH (default "/")
//   - VIDTUBE_AUTH_COOKIE_DOMAIN (default empty)
//   - VIDTUBE_AUTH_COOKIE_SECURE (default true)
//   - VIDTUBE_AUTH_COOKIE_SAMESITE (lax|strict|none, default lax)
func LoadConfigFromEnv() Config {
	cfg := Config{
		TrustProxy:        envBool("VIDTUBE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("VIDTUBE_AUTH_MAX_BODY_BYTES", 1<<20),
		MaxMultipartBytes: envInt64("VIDTUBE_AUTH_MAX_MULTIPART_BYTES", 32<<20),
		CookiePath:        envString("VIDTUBE_AUTH_COOKIE_PATH", "/"),
		CookieDomain:      envString("VIDTUBE_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:      envBool("VIDTUBE_AUTH_COOKIE_SECURE", true),
		CookieSameSite:    envSameSite("VIDTUBE_AUTH_COOKIE_SAMESITE", http.SameSiteLaxMode),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MaxMultipartBytes <= 0 {
		cfg.MaxMultipartBytes = 32 << 20
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}

	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envSameSite(key string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return def
	}
}
