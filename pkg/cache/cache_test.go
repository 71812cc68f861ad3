package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock gives tests deterministic control over entry age.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestGetAfterTTLIsMiss(t *testing.T) {
	clock := newFakeClock()
	c := New[string](10, time.Minute)
	c.now = clock.Now

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v; want v, true", v, ok)
	}

	// One tick short of the TTL: still visible.
	clock.Advance(time.Minute - time.Nanosecond)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired before TTL elapsed")
	}

	// At the TTL boundary: miss, no explicit deletion needed.
	clock.Advance(time.Nanosecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry still visible")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not removed on access, len = %d", c.Len())
	}
}

func TestSetResetsTTLWindow(t *testing.T) {
	clock := newFakeClock()
	c := New[int](10, time.Minute)
	c.now = clock.Now

	c.Set("k", 1)
	clock.Advance(45 * time.Second)
	c.Set("k", 2) // re-insert: new TTL window
	clock.Advance(45 * time.Second)

	v, ok := c.Get("k")
	if !ok || v != 2 {
		t.Fatalf("Get = %d, %v; want 2, true", v, ok)
	}
}

func TestCapacityEvictsExactlyOneLRU(t *testing.T) {
	c := New[int](3, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	// Touch a and c so b becomes the least recently accessed.
	c.Get("a")
	c.Get("c")

	// capacity+1-th distinct key evicts exactly one entry: b.
	c.Set("d", 4)
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("b"); ok {
		t.Fatal("least-recently-accessed entry b survived eviction")
	}
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("entry %q was wrongly evicted", k)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Fatalf("evictions = %d, want 1", got)
	}
}

func TestSweepPurgesExpired(t *testing.T) {
	clock := newFakeClock()
	c := New[int](10, time.Minute)
	c.now = clock.Now

	c.Set("old1", 1)
	c.Set("old2", 2)
	clock.Advance(2 * time.Minute)
	c.Set("fresh", 3)

	if removed := c.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d, want 1", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("Sweep removed a live entry")
	}
}

func TestPurgeAndStats(t *testing.T) {
	c := New[int](5, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Get("nope")

	st := c.Stats()
	if st.Len != 2 || st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("Stats = %+v", st)
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len after Purge = %d", c.Len())
	}
	// Purged entries are gone; the cache stays usable.
	c.Set("a", 3)
	if v, ok := c.Get("a"); !ok || v != 3 {
		t.Fatalf("Get after Purge = %d, %v", v, ok)
	}
}

func TestPrefetcherCapsConcurrency(t *testing.T) {
	p := NewPrefetcher(2, nil)
	var inFlight, peak atomic.Int32

	block := make(chan struct{})
	for i := 0; i < 8; i++ {
		p.Enqueue(context.Background(), "k", func(context.Context) error {
			n := inFlight.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-block
			inFlight.Add(-1)
			return nil
		})
	}
	// Let the goroutines contend on the semaphore.
	time.Sleep(50 * time.Millisecond)
	close(block)
	p.Wait()

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", got)
	}
}

func TestPrefetcherSwallowsFailures(t *testing.T) {
	p := NewPrefetcher(1, nil)
	p.Enqueue(context.Background(), "k", func(context.Context) error {
		return errors.New("store unavailable")
	})
	p.Wait() // must not panic or surface the error
}

func TestMonitorPurgesOverBudget(t *testing.T) {
	c1 := New[int](100, 0)
	c2 := New[int](100, 0)
	m := NewMonitor(1000, nil)
	m.Register("one", c1, 100)
	m.Register("two", c2, 100)

	for i := 0; i < 5; i++ {
		c1.Set(string(rune('a'+i)), i)
	}
	// 5 entries * 100 bytes = 500: under budget, nothing happens.
	if m.Check() {
		t.Fatal("Check purged under budget")
	}

	for i := 0; i < 6; i++ {
		c2.Set(string(rune('a'+i)), i)
	}
	// 1100 estimated: over budget, wholesale purge of every cache.
	if !m.Check() {
		t.Fatal("Check did not purge over budget")
	}
	if c1.Len() != 0 || c2.Len() != 0 {
		t.Fatalf("caches not purged: %d, %d", c1.Len(), c2.Len())
	}
	if m.Footprint() != 0 {
		t.Fatalf("footprint after purge = %d", m.Footprint())
	}
}
