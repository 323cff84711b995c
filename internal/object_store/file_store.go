package object_store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore implements a directory-backed store.
// Structure: {rootDir}/coins/{identifier}/{size}.png
type FileStore struct {
	rootDir       string
	publicBaseURL string
}

func NewFileStore(rootDir, publicBaseURL string) (*FileStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	return &FileStore{
		rootDir:       rootDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// buildFilePath maps a key to a path under rootDir.
// Keys with empty or dot segments are rejected so no key is cleaned onto another.
func (s *FileStore) buildFilePath(key string) (string, error) {
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("invalid key %q", key)
		}
	}

	path := filepath.Join(s.rootDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.rootDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key outside store root")
	}
	return path, nil
}

func (s *FileStore) IsConfigured() bool {
	return true
}

func (s *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.buildFilePath(key)
	if err != nil {
		return false, newFailure(FailureUnknown, "exists", key, err)
	}

	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, classifyFileError("exists", key, err)
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.buildFilePath(key)
	if err != nil {
		return nil, newFailure(FailureNotFound, "get", key, err)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, newFailure(FailureNotFound, "get", key, nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, classifyFileError("get", key, err)
	}
	return data, nil
}

func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path, err := s.buildFilePath(key)
	if err != nil {
		return "", newFailure(FailureUnknown, "put", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", classifyFileError("put", key, err)
	}

	// Write atomically; concurrent writers of the same key race harmlessly on rename.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", classifyFileError("put", key, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", classifyFileError("put", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", classifyFileError("put", key, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", classifyFileError("put", key, err)
	}

	return key, nil
}

func (s *FileStore) PublicURL(key string) string {
	return localObjectURL(s.publicBaseURL, key)
}

func classifyFileError(op, key string, err error) *Failure {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return newFailure(FailureNotFound, op, key, err)
	case errors.Is(err, fs.ErrPermission):
		return newFailure(FailureAccessDenied, op, key, err)
	default:
		return newFailure(FailureUnknown, op, key, err)
	}
}
