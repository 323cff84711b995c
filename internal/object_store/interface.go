package object_store

import (
	"context"
	"errors"
	"fmt"

	platformerrors "github.com/jmgilman/go/errors"
)

const (
	// ContentTypePNG is the content type written for coin images.
	ContentTypePNG = "image/png"

	// CacheControlImmutable is attached to every stored object. Keys never change content.
	CacheControlImmutable = "public, max-age=31536000, immutable"
)

// Store is a durable key/value object store for coin images.
// Implementations never panic: every backend fault is returned as a *Failure.
type Store interface {
	// IsConfigured reports whether the store has a destination and credentials.
	// When false, Exists and Put short-circuit without any I/O.
	IsConfigured() bool

	// Exists checks if the object exists without reading it.
	// A missing object is (false, nil); any other fault is (false, *Failure).
	Exists(ctx context.Context, key string) (bool, error)

	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes the object and returns its key.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// PublicURL returns the URL clients use to download the object.
	PublicURL(key string) string
}

// FailureKind classifies store faults so operators can tell them apart.
type FailureKind string

const (
	FailureNotConfigured      FailureKind = "not_configured"
	FailureAccessDenied       FailureKind = "access_denied"
	FailureInvalidCredentials FailureKind = "invalid_credentials"
	FailureBucketMissing      FailureKind = "bucket_missing"
	FailureNotFound           FailureKind = "not_found"
	FailureUnknown            FailureKind = "unknown"
)

// Failure is the typed error returned by every Store operation.
type Failure struct {
	Kind FailureKind
	Op   string
	Key  string
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("object store %s %s: %s: %v", f.Op, f.Key, f.Kind, f.Err)
	}
	return fmt.Sprintf("object store %s %s: %s", f.Op, f.Key, f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Code maps the failure kind onto the shared platform error codes used in log events.
func (f *Failure) Code() platformerrors.ErrorCode {
	switch f.Kind {
	case FailureNotConfigured:
		return platformerrors.CodeInvalidConfig
	case FailureAccessDenied:
		return platformerrors.CodeForbidden
	case FailureInvalidCredentials:
		return platformerrors.CodeUnauthorized
	case FailureBucketMissing, FailureNotFound:
		return platformerrors.CodeNotFound
	default:
		return platformerrors.CodeUnavailable
	}
}

func newFailure(kind FailureKind, op, key string, err error) *Failure {
	return &Failure{Kind: kind, Op: op, Key: key, Err: err}
}

// KindOf returns the failure kind carried by err, or FailureUnknown.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return FailureUnknown
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == FailureNotFound
}
