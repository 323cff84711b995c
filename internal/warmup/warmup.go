package warmup

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"coinimage/internal/coin_image"
	"coinimage/internal/coin_registry"
)

// Resolver runs the cache-aside ladder for one coin image.
type Resolver interface {
	Resolve(ctx context.Context, identifier string, size coin_registry.Size) coin_image.Result
}

// Stats counts warmup outcomes.
type Stats struct {
	Total    int
	Outcomes map[coin_image.Outcome]int
}

// ParseSizes parses a list of size names, skipping blanks.
// An empty list yields the default size.
func ParseSizes(values []string) ([]coin_registry.Size, error) {
	sizes := make([]coin_registry.Size, 0, len(values))
	seen := make(map[coin_registry.Size]bool, len(values))

	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		size, err := coin_registry.ParseSize(v)
		if err != nil {
			return nil, err
		}
		if seen[size] {
			continue
		}
		seen[size] = true
		sizes = append(sizes, size)
	}

	if len(sizes) == 0 {
		sizes = append(sizes, coin_registry.DefaultSize)
	}
	return sizes, nil
}

// Run resolves every coin and size pair with at most workers concurrent
// resolutions, populating the store ahead of real traffic.
// Cancelling ctx stops scheduling new work.
func Run(ctx context.Context, resolver Resolver, coins []string, sizes []coin_registry.Size, workers int, log *zap.Logger) Stats {
	if workers <= 0 {
		workers = 1
	}

	log.Info("Starting coin image warmup",
		zap.Int("coins", len(coins)),
		zap.Int("sizes", len(sizes)),
		zap.Int("workers", workers),
	)

	results := make(chan coin_image.Outcome, workers)
	stats := Stats{Outcomes: make(map[coin_image.Outcome]int)}
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		for outcome := range results {
			stats.Total++
			stats.Outcomes[outcome]++
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

schedule:
	for _, coin := range coins {
		coin = strings.TrimSpace(coin)
		if coin == "" {
			continue
		}
		for _, size := range sizes {
			if gctx.Err() != nil {
				break schedule
			}

			g.Go(func() error {
				result := resolver.Resolve(gctx, coin, size)
				log.Debug("Warmup resolved",
					zap.String("coin", coin),
					zap.String("size", size.String()),
					zap.String("outcome", string(result.Outcome)),
				)
				results <- result.Outcome
				return nil
			})
		}
	}

	_ = g.Wait()
	close(results)
	<-collected

	fields := []zap.Field{zap.Int("resolved", stats.Total)}
	for outcome, n := range stats.Outcomes {
		fields = append(fields, zap.Int(string(outcome), n))
	}
	log.Info("Coin image warmup completed", fields...)

	return stats
}
