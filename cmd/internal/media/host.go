package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Host stores an uploaded file and returns its public URL.
//
// Upload is best-effort: implementations return ("", nil) when storage is
// unavailable so callers can degrade instead of failing the request.
type Host interface {
	Upload(ctx context.Context, in UploadInput) (url string, err error)
}

// UploadInput describes one file to store.
type UploadInput struct {
	// Kind partitions object keys ("avatars", "covers", "thumbnails").
	Kind string

	// Filename is the client-supplied name; only its extension is kept.
	Filename string

	ContentType string
	Size        int64
	Body        io.Reader
}

// putObjectAPI is the S3 surface the host uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Host uploads to an S3-compatible bucket.
type S3Host struct {
	cfg    Config
	client putObjectAPI
	log    *slog.Logger
	now    func() time.Time
}

// NewS3Host builds the AWS client from cfg and returns a ready host.
// A disabled cfg yields a NoopHost instead.
func NewS3Host(ctx context.Context, cfg Config, log *slog.Logger) (Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Enabled() {
		log.Info("media.disabled")
		return NoopHost{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		// MinIO needs path-style addressing.
		o.UsePathStyle = cfg.BaseEndpoint != ""
	})

	return &S3Host{
		cfg:    cfg,
		client: client,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Upload buffers the file, pushes it to the bucket, and returns the public
// URL. Oversized or empty files are real errors; a storage failure logs and
// returns an empty URL.
func (h *S3Host) Upload(ctx context.Context, in UploadInput) (string, error) {
	if in.Body == nil {
		return "", fmt.Errorf("media: missing file body")
	}
	if in.Size > h.cfg.MaxUploadBytes {
		return "", fmt.Errorf("media: file exceeds %d bytes", h.cfg.MaxUploadBytes)
	}

	var buf bytes.Buffer
	limited := io.LimitReader(in.Body, h.cfg.MaxUploadBytes+1)
	n, err := io.Copy(&buf, limited)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("media: empty file")
	}
	if n > h.cfg.MaxUploadBytes {
		return "", fmt.Errorf("media: file exceeds %d bytes", h.cfg.MaxUploadBytes)
	}

	key := h.objectKey(in.Kind, in.Filename)
	contentType := in.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(in.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		h.log.Error("media.upload.fail", "err", err, "key", key)
		return "", nil
	}

	return h.publicURL(key), nil
}

// objectKey partitions keys by kind and date so buckets stay browsable.
func (h *S3Host) objectKey(kind, filename string) string {
	kind = strings.Trim(strings.ToLower(strings.TrimSpace(kind)), "/")
	if kind == "" {
		kind = "misc"
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	d := h.now()
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s", kind, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

func (h *S3Host) publicURL(key string) string {
	if h.cfg.PublicBaseURL != "" {
		return h.cfg.PublicBaseURL + "/" + key
	}
	if h.cfg.BaseEndpoint != "" {
		return strings.TrimRight(h.cfg.BaseEndpoint, "/") + "/" + h.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", h.cfg.Bucket, h.cfg.Region, key)
}

// NoopHost is the disabled media host: every upload resolves to an empty URL.
type NoopHost struct{}

func (NoopHost) Upload(context.Context, UploadInput) (string, error) { return "", nil }
