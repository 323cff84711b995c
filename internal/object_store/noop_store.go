package object_store

import "context"

// NoopStore is an unconfigured store: the service runs in origin-only mode.
type NoopStore struct{}

func NewNoopStore() *NoopStore {
	return &NoopStore{}
}

func (s *NoopStore) IsConfigured() bool {
	return false
}

func (s *NoopStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, newFailure(FailureNotConfigured, "exists", key, nil)
}

func (s *NoopStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, newFailure(FailureNotConfigured, "get", key, nil)
}

func (s *NoopStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	return "", newFailure(FailureNotConfigured, "put", key, nil)
}

func (s *NoopStore) PublicURL(key string) string {
	return ""
}
