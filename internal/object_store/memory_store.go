package object_store

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MemoryStore implements an in-process LRU store.
// Objects are served by this process under {publicBaseURL}/objects/{key}.
type MemoryStore struct {
	objects       *lru.Cache[string, []byte]
	publicBaseURL string
}

// NewMemoryStore creates a new in-memory store holding at most maxObjects objects.
func NewMemoryStore(maxObjects int, publicBaseURL string) (*MemoryStore, error) {
	objects, err := lru.New[string, []byte](maxObjects)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory store: %w", err)
	}

	return &MemoryStore{
		objects:       objects,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (s *MemoryStore) IsConfigured() bool {
	return true
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.objects.Contains(key), nil
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.objects.Get(key)
	if !ok {
		return nil, newFailure(FailureNotFound, "get", key, nil)
	}
	return data, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	buf := make([]byte, len(data))
	copy(buf, data)

	s.objects.Add(key, buf)
	return key, nil
}

func (s *MemoryStore) PublicURL(key string) string {
	return localObjectURL(s.publicBaseURL, key)
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	return s.objects.Len()
}

// localObjectURL builds the URL of an object served by the /objects/ route.
func localObjectURL(publicBaseURL, key string) string {
	return publicBaseURL + "/objects/" + escapeKey(key)
}
