package media

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// ErrConfig is returned for invalid media configuration.
var ErrConfig = errors.New("invalid media config")

// Config holds the S3 connection settings.
//
// An empty bucket disables media hosting entirely; the server then runs with
// a no-op host and every upload resolves to an empty URL.
type Config struct {
	// BaseEndpoint targets an S3-compatible store (MinIO et al).
	// Empty means plain AWS endpoints.
	BaseEndpoint string

	Region string
	Bucket string

	AccessKey string
	SecretKey string

	// PublicBaseURL is prepended to object keys to form the stored URL.
	// Empty falls back to "<endpoint>/<bucket>".
	PublicBaseURL string

	// MaxUploadBytes bounds a single uploaded file.
	MaxUploadBytes int64
}

// DefaultConfig returns a disabled configuration with sane upload bounds.
func DefaultConfig() Config {
	return Config{
		Region:         "us-east-1",
		MaxUploadBytes: 8 << 20,
	}
}

// Enabled reports whether uploads are configured.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Validate reports ErrConfig for unusable enabled configurations.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Region == "" || c.MaxUploadBytes <= 0 {
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads media configuration from VIDTUBE_MEDIA_* variables.
//
// All variables are optional; without a bucket and credentials the host is
// disabled:
//   - VIDTUBE_MEDIA_S3_ENDPOINT
//   - VIDTUBE_MEDIA_S3_REGION
//   - VIDTUBE_MEDIA_S3_BUCKET
//   - VIDTUBE_MEDIA_S3_ACCESS_KEY
//   - VIDTUBE_MEDIA_S3_SECRET_KEY
//   - VIDTUBE_MEDIA_PUBLIC_BASE_URL
//   - VIDTUBE_MEDIA_MAX_UPLOAD_BYTES
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("VIDTUBE_MEDIA_S3_ENDPOINT")); v != "" {
		cfg.BaseEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDTUBE_MEDIA_S3_REGION")); v != "" {
		cfg.Region = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDTUBE_MEDIA_S3_BUCKET")); v != "" {
		cfg.Bucket = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDTUBE_MEDIA_S3_ACCESS_KEY")); v != "" {
		cfg.AccessKey = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDTUBE_MEDIA_S3_SECRET_KEY")); v != "" {
		cfg.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv("VIDTUBE_MEDIA_PUBLIC_BASE_URL")); v != "" {
		cfg.PublicBaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("VIDTUBE_MEDIA_MAX_UPLOAD_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		cfg.MaxUploadBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
