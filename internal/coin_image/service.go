package coin_image

import (
	"context"
	"errors"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"coinimage/internal/coin_registry"
	"coinimage/internal/object_store"
)

const tracerName = "coinimage/internal/coin_image"

// Outcome records which step of the cache-aside ladder produced the URL.
type Outcome string

const (
	OutcomeNoIdentifier  Outcome = "no_identifier"
	OutcomeStoreDisabled Outcome = "store_disabled"
	OutcomeHit           Outcome = "hit"
	OutcomePopulated     Outcome = "populated"
	OutcomeOriginFailed  Outcome = "origin_failed"
	OutcomePutFailed     Outcome = "put_failed"
)

// Fetcher downloads origin image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, address string) ([]byte, error)
}

// Result is a resolved image URL and how it was obtained.
type Result struct {
	URL     string
	Key     string
	Outcome Outcome
}

// Service resolves coin identifiers to image URLs, populating the store from the origin on a miss.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	registry *coin_registry.Registry
	store    object_store.Store
	fetcher  Fetcher
	logger   *zap.Logger
	tracer   trace.Tracer
}

func New(registry *coin_registry.Registry, store object_store.Store, fetcher Fetcher, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		store:    store,
		fetcher:  fetcher,
		logger:   logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// GetCoinImageURL always returns a usable image URL. Every failure degrades to the origin address.
func (s *Service) GetCoinImageURL(ctx context.Context, identifier string, size coin_registry.Size) string {
	return s.Resolve(ctx, identifier, size).URL
}

// Resolve runs the cache-aside ladder: store check, origin fetch, store populate.
// A failed existence check is logged and treated as a miss, so a later successful
// put still returns the store URL; only fetch and put failures yield the origin address.
func (s *Service) Resolve(ctx context.Context, identifier string, size coin_registry.Size) Result {
	if !size.Valid() {
		size = coin_registry.DefaultSize
	}

	ctx, span := s.tracer.Start(ctx, "coin_image.GetCoinImageURL")
	defer span.End()

	result := s.resolve(ctx, identifier, size)

	span.SetAttributes(
		attribute.String("coin_image.identifier", coin_registry.Normalize(identifier)),
		attribute.String("coin_image.size", size.String()),
		attribute.String("coin_image.outcome", string(result.Outcome)),
	)

	return result
}

func (s *Service) resolve(ctx context.Context, identifier string, size coin_registry.Size) Result {
	if strings.TrimSpace(identifier) == "" {
		return Result{
			URL:     s.registry.ResolveOriginAddress("", size),
			Outcome: OutcomeNoIdentifier,
		}
	}

	id := coin_registry.Normalize(identifier)
	originURL := s.registry.ResolveOriginAddress(id, size)

	if !s.store.IsConfigured() {
		return Result{URL: originURL, Outcome: OutcomeStoreDisabled}
	}

	key := coin_registry.Key(id, size)
	log := s.logger.With(
		zap.String("coin", id),
		zap.String("size", size.String()),
		zap.String("key", key),
	)

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		logStoreFailure(log, "Store existence check failed, treating as miss", err)
	}
	if exists {
		log.Debug("Coin image cache hit")
		return Result{URL: s.store.PublicURL(key), Key: key, Outcome: OutcomeHit}
	}

	data, err := s.fetcher.Fetch(ctx, originURL)
	if err != nil {
		log.Warn("Origin fetch failed, serving origin URL",
			zap.String("origin_url", originURL),
			zap.String("code", string(platformerrors.GetCode(err))),
			zap.Error(err),
		)
		return Result{URL: originURL, Key: key, Outcome: OutcomeOriginFailed}
	}

	if _, err := s.store.Put(ctx, key, data, object_store.ContentTypePNG); err != nil {
		logStoreFailure(log, "Store write failed, serving origin URL", err)
		return Result{URL: originURL, Key: key, Outcome: OutcomePutFailed}
	}

	log.Info("Coin image cached", zap.Int("bytes", len(data)))
	return Result{URL: s.store.PublicURL(key), Key: key, Outcome: OutcomePopulated}
}

func logStoreFailure(log *zap.Logger, msg string, err error) {
	fields := []zap.Field{
		zap.String("failure", string(object_store.KindOf(err))),
		zap.Error(err),
	}

	var failure *object_store.Failure
	if errors.As(err, &failure) {
		fields = append(fields, zap.String("code", string(failure.Code())))
	}

	log.Warn(msg, fields...)
}
