package cache

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// Purger is the subset of Cache the monitor needs: entry count and
// wholesale eviction. Any Cache[V] satisfies it.
type Purger interface {
	Len() int
	Purge()
}

// Monitor periodically estimates the aggregate footprint of registered
// caches and, when the estimate exceeds the budget, clears them wholesale.
// The estimate is coarse (entry count times a per-cache weight); this is a
// pressure valve, not an accountant.
type Monitor struct {
	mu     sync.Mutex
	caches []monitored
	budget int64
	logger *slog.Logger
}

type monitored struct {
	name   string
	cache  Purger
	weight int64 // estimated bytes per entry
}

// NewMonitor creates a Monitor with a footprint budget in estimated bytes.
// A nil logger discards output.
func NewMonitor(budget int64, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Monitor{budget: budget, logger: logger}
}

// Register adds a cache under the monitor with an estimated per-entry
// weight in bytes.
func (m *Monitor) Register(name string, c Purger, entryWeight int64) {
	m.mu.Lock()
	m.caches = append(m.caches, monitored{name: name, cache: c, weight: entryWeight})
	m.mu.Unlock()
}

// Footprint returns the current estimated aggregate size in bytes.
func (m *Monitor) Footprint() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, mc := range m.caches {
		total += int64(mc.cache.Len()) * mc.weight
	}
	return total
}

// Check purges all registered caches if the footprint estimate exceeds the
// budget. Returns true if a purge happened.
func (m *Monitor) Check() bool {
	footprint := m.Footprint()
	if footprint <= m.budget {
		return false
	}
	m.mu.Lock()
	caches := make([]monitored, len(m.caches))
	copy(caches, m.caches)
	m.mu.Unlock()

	m.logger.Warn("cache footprint over budget, purging",
		"estimated_bytes", footprint, "budget_bytes", m.budget)
	for _, mc := range caches {
		mc.cache.Purge()
	}
	return true
}

// Start launches a goroutine calling Check every interval.
// The returned stop function terminates it.
func (m *Monitor) Start(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Check()
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}
