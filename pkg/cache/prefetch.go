package cache

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Prefetcher runs advisory background fetches with a cap on concurrency.
// Failures are swallowed (logged at Debug): a prefetch exists only to warm
// a cache, and the foreground path will fetch on miss anyway.
type Prefetcher struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewPrefetcher creates a Prefetcher allowing at most maxConcurrent fetches
// in flight. A nil logger discards output.
func NewPrefetcher(maxConcurrent int64, logger *slog.Logger) *Prefetcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Prefetcher{
		sem:    semaphore.NewWeighted(maxConcurrent),
		logger: logger,
	}
}

// Enqueue schedules fetch to run in the background. Excess fetches queue on
// the semaphore rather than piling onto the store. Enqueue never blocks the
// caller and never reports an error.
func (p *Prefetcher) Enqueue(ctx context.Context, key string, fetch func(ctx context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			p.logger.Debug("prefetch abandoned", "key", key, "err", err)
			return
		}
		defer p.sem.Release(1)
		if err := fetch(ctx); err != nil {
			p.logger.Debug("prefetch failed", "key", key, "err", err)
		}
	}()
}

// Wait blocks until all scheduled fetches have finished. Intended for
// shutdown and tests.
func (p *Prefetcher) Wait() {
	p.wg.Wait()
}
