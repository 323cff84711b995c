package object_store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds S3 store configuration.
type S3Config struct {
	// Endpoint is the S3 host (e.g., "s3.us-east-1.amazonaws.com" or "localhost:9000").
	// Derived from Region when empty.
	Endpoint string

	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// PublicURL overrides the base of generated object URLs
	// (default: https://{bucket}.s3.{region}.amazonaws.com)
	PublicURL string

	// Timeout bounds every store call. Zero leaves it to the client defaults.
	Timeout time.Duration

	// Client is an optional pre-configured client; Endpoint and credentials are ignored if set.
	Client *minio.Client
}

// configured reports whether a bucket and a way to authenticate are present.
func (c *S3Config) configured() bool {
	if c.Bucket == "" {
		return false
	}
	if c.Client != nil {
		return true
	}
	return c.AccessKey != "" && c.SecretKey != ""
}

// S3Store implements Store on top of an S3-compatible bucket.
type S3Store struct {
	client     *minio.Client
	bucket     string
	publicURL  string
	timeout    time.Duration
	configured bool
}

// NewS3Store creates an S3-backed store.
// Missing bucket or credentials is not an error: the store reports IsConfigured() == false.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	store := &S3Store{
		bucket:     cfg.Bucket,
		publicURL:  publicURL,
		timeout:    cfg.Timeout,
		configured: cfg.configured(),
	}
	if !store.configured {
		return store, nil
	}

	if cfg.Client != nil {
		store.client = cfg.Client
		return store, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	store.client = client

	return store, nil
}

func (s *S3Store) IsConfigured() bool {
	return s.configured
}

// Exists issues a HEAD for the object. S3 answers a HEAD on a missing bucket
// with a bodiless 404 that minio reports as NoSuchKey, so a missing bucket
// reads as a plain miss here and is first reported as bucket_missing by Put.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	if !s.configured {
		return false, newFailure(FailureNotConfigured, "exists", key, nil)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}

	failure := classifyS3Error("exists", key, err)
	if failure.Kind == FailureNotFound {
		return false, nil
	}
	return false, failure
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.configured {
		return nil, newFailure(FailureNotConfigured, "get", key, nil)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyS3Error("get", key, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyS3Error("get", key, err)
	}

	return data, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if !s.configured {
		return "", newFailure(FailureNotConfigured, "put", key, nil)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: CacheControlImmutable,
	})
	if err != nil {
		return "", classifyS3Error("put", key, err)
	}

	return key, nil
}

// PublicURL returns https://{bucket}.s3.{region}.amazonaws.com/{key} unless overridden.
func (s *S3Store) PublicURL(key string) string {
	return s.publicURL + "/" + escapeKey(key)
}

func (s *S3Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// classifyS3Error maps S3 error codes onto failure kinds.
func classifyS3Error(op, key string, err error) *Failure {
	errResp := minio.ToErrorResponse(err)

	switch errResp.Code {
	case "NoSuchKey", "NotFound":
		return newFailure(FailureNotFound, op, key, err)
	case "NoSuchBucket":
		return newFailure(FailureBucketMissing, op, key, err)
	case "AccessDenied":
		return newFailure(FailureAccessDenied, op, key, err)
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "InvalidToken", "ExpiredToken", "InvalidSecurity":
		return newFailure(FailureInvalidCredentials, op, key, err)
	}

	return newFailure(FailureUnknown, op, key, err)
}

// escapeKey percent-escapes each path segment of an object key.
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
