package object_store

import (
	"fmt"

	"go.uber.org/zap"
)

// Options selects and configures a Store backend.
type Options struct {
	Type          string
	S3            S3Config
	FileDir       string
	MemoryObjects int
	PublicBaseURL string
}

// NewStore creates a store instance based on the store type
func NewStore(opts Options, log *zap.Logger) (Store, error) {
	switch opts.Type {
	case "s3":
		store, err := NewS3Store(opts.S3)
		if err != nil {
			return nil, err
		}
		if !store.IsConfigured() {
			log.Warn("S3 store not configured, serving origin URLs only",
				zap.Bool("bucket_set", opts.S3.Bucket != ""),
				zap.Bool("credentials_set", opts.S3.AccessKey != "" && opts.S3.SecretKey != ""),
			)
			return store, nil
		}
		log.Info("Using S3 store",
			zap.String("bucket", opts.S3.Bucket),
			zap.String("region", opts.S3.Region),
			zap.String("endpoint", opts.S3.Endpoint),
		)
		return store, nil
	case "file":
		log.Info("Using file store", zap.String("dir", opts.FileDir))
		return NewFileStore(opts.FileDir, opts.PublicBaseURL)
	case "memory":
		log.Info("Using memory store", zap.Int("max_objects", opts.MemoryObjects))
		return NewMemoryStore(opts.MemoryObjects, opts.PublicBaseURL)
	case "disabled":
		log.Info("Store disabled, serving origin URLs only")
		return NewNoopStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s (supported: s3, file, memory, disabled)", opts.Type)
	}
}
