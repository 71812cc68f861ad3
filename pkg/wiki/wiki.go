// Package wiki implements a multi-writer markdown wiki on top of a flat,
// versioned object store. There is no server-side coordinator: correctness
// across independent clients rests entirely on the store's conditional-put
// primitive. The first conditional write to commit wins; the loser observes
// a token mismatch and surfaces the winner's state as an edit conflict.
//
// Layout in the store:
//
//	<pages-prefix>/<path>       markdown documents (path ends in .md)
//	<files-prefix>/<id>         binary attachments
//	<meta-prefix>/pages.json    aggregated page metadata index
//	<meta-prefix>/files.json    attachment metadata index
//	<config-prefix>/wiki.json   runtime configuration (optional)
package wiki

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/googleapis/gax-go/v2"

	"github.com/inkstone-dev/inkstone/pkg/blob"
	"github.com/inkstone-dev/inkstone/pkg/cache"
	"github.com/inkstone-dev/inkstone/pkg/retry"
)

// ContentExt is the recognized document extension.
const ContentExt = ".md"

// Config holds client-side knobs. Zero fields fall back to the
// corresponding Default* values.
type Config struct {
	PagesPrefix  string
	FilesPrefix  string
	MetaPrefix   string
	ConfigPrefix string

	// MaxAttachmentSize is the upload ceiling in bytes.
	MaxAttachmentSize int64

	// PublicBaseURL, when set, is prepended to attachment keys to build
	// resolved access URLs.
	PublicBaseURL string

	// IndexMaxRetries bounds the read-modify-write cycles per index
	// mutation under contention.
	IndexMaxRetries int

	// Cache tuning. Listing/hierarchy caches use ListTTL (short, bounds
	// staleness); documents use DocTTL; resolved attachment URLs use
	// URLTTL (long, they never change once created).
	CacheCapacity int
	DocTTL        time.Duration
	ListTTL       time.Duration
	URLTTL        time.Duration

	// PrefetchConcurrency caps in-flight background fetches.
	PrefetchConcurrency int64

	// MemoryBudget is the coarse cache footprint ceiling in estimated
	// bytes; above it, caches are cleared wholesale.
	MemoryBudget int64
}

// DefaultConfig returns the configuration used when options are omitted.
func DefaultConfig() Config {
	return Config{
		PagesPrefix:         "pages",
		FilesPrefix:         "files",
		MetaPrefix:          "meta",
		ConfigPrefix:        "config",
		MaxAttachmentSize:   10 << 20,
		IndexMaxRetries:     5,
		CacheCapacity:       256,
		DocTTL:              5 * time.Minute,
		ListTTL:             30 * time.Second,
		URLTTL:              time.Hour,
		PrefetchConcurrency: 4,
		MemoryBudget:        64 << 20,
	}
}

// Option configures a Wiki.
type Option func(*Wiki)

// WithLogger sets the structured logger. Default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(w *Wiki) { w.logger = l }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(w *Wiki) { w.cfg = merged(cfg) }
}

// WithRetryPolicy replaces the default store retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(w *Wiki) { w.policy = p }
}

// WithAuthor sets the author identity recorded on writes.
// Default is a generated per-client UUID.
func WithAuthor(author string) Option {
	return func(w *Wiki) { w.author = author }
}

// WithClock overrides the time source. For tests.
func WithClock(now func() time.Time) Option {
	return func(w *Wiki) { w.now = now }
}

// Wiki is a client for one wiki corpus in one object store. Construct
// explicit instances with an injected store; there is no global state, so
// multiple wikis (or multiple stores) can coexist in a process.
//
// Methods are safe for concurrent use within a process, but in-process
// synchronization is beside the point: writers in other processes are
// coordinated only by conditional writes.
type Wiki struct {
	store  blob.Store
	cfg    Config
	policy retry.Policy
	logger *slog.Logger
	now    func() time.Time
	author string

	index     *indexManager
	fileIndex *fileIndexManager

	docCache  *cache.Cache[*Document]
	listCache *cache.Cache[[]PageMeta]
	attCache  *cache.Cache[[]Attachment]
	treeCache *cache.Cache[*Node]
	urlCache  *cache.Cache[string]
	prefetch  *cache.Prefetcher
	monitor   *cache.Monitor

	remote atomic.Pointer[RemoteConfig]
}

// New creates a Wiki on the given store.
func New(store blob.Store, opts ...Option) *Wiki {
	w := &Wiki{
		store:  store,
		cfg:    DefaultConfig(),
		policy: retry.Default(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		author: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(w)
	}

	indexBackoff := gax.Backoff{
		Initial:    50 * time.Millisecond,
		Max:        time.Second,
		Multiplier: 2,
	}
	w.index = &indexManager{
		wiki:       w,
		key:        w.cfg.MetaPrefix + "/pages.json",
		maxRetries: w.cfg.IndexMaxRetries,
		backoff:    indexBackoff,
	}
	w.fileIndex = &fileIndexManager{
		wiki:       w,
		key:        w.cfg.MetaPrefix + "/files.json",
		maxRetries: w.cfg.IndexMaxRetries,
		backoff:    indexBackoff,
	}

	w.docCache = cache.New[*Document](w.cfg.CacheCapacity, w.cfg.DocTTL)
	w.listCache = cache.New[[]PageMeta](8, w.cfg.ListTTL)
	w.attCache = cache.New[[]Attachment](8, w.cfg.ListTTL)
	w.treeCache = cache.New[*Node](8, w.cfg.ListTTL)
	w.urlCache = cache.New[string](w.cfg.CacheCapacity, w.cfg.URLTTL)
	w.prefetch = cache.NewPrefetcher(w.cfg.PrefetchConcurrency, w.logger)

	w.monitor = cache.NewMonitor(w.cfg.MemoryBudget, w.logger)
	w.monitor.Register("documents", w.docCache, 32<<10)
	w.monitor.Register("listings", w.listCache, 64<<10)
	w.monitor.Register("attachments", w.attCache, 64<<10)
	w.monitor.Register("trees", w.treeCache, 64<<10)
	w.monitor.Register("urls", w.urlCache, 256)
	return w
}

// StartMaintenance launches the background cache sweeper and memory
// monitor. The returned stop function terminates both.
func (w *Wiki) StartMaintenance(interval time.Duration) (stop func()) {
	stops := []func(){
		w.docCache.StartSweeper(interval),
		w.listCache.StartSweeper(interval),
		w.attCache.StartSweeper(interval),
		w.treeCache.StartSweeper(interval),
		w.urlCache.StartSweeper(interval),
		w.monitor.Start(interval),
	}
	return func() {
		for _, s := range stops {
			s()
		}
	}
}

// Prefetch warms the document cache for the given paths in the background.
// Purely advisory: failures are swallowed and the foreground path fetches
// on miss regardless.
func (w *Wiki) Prefetch(ctx context.Context, paths ...string) {
	for _, path := range paths {
		if _, ok := w.docCache.Get(path); ok {
			continue
		}
		p := path
		w.prefetch.Enqueue(ctx, p, func(ctx context.Context) error {
			doc, err := w.load(ctx, p)
			if err != nil {
				return err
			}
			w.docCache.Set(p, doc)
			return nil
		})
	}
}

// ---------------------------------------------------------------------------
// key layout
// ---------------------------------------------------------------------------

func (w *Wiki) pageKey(path string) string {
	return w.cfg.PagesPrefix + "/" + path
}

func (w *Wiki) pagePath(key string) string {
	return strings.TrimPrefix(key, w.cfg.PagesPrefix+"/")
}

func (w *Wiki) fileKey(id string) string {
	return w.cfg.FilesPrefix + "/" + id
}

func (w *Wiki) configKey() string {
	return w.cfg.ConfigPrefix + "/wiki.json"
}

// invalidateListings drops the listing-shaped caches after any mutation
// that changes the document set.
func (w *Wiki) invalidateListings() {
	w.listCache.Purge()
	w.treeCache.Purge()
}

// merged fills zero fields of cfg from DefaultConfig.
func merged(cfg Config) Config {
	def := DefaultConfig()
	if cfg.PagesPrefix == "" {
		cfg.PagesPrefix = def.PagesPrefix
	}
	if cfg.FilesPrefix == "" {
		cfg.FilesPrefix = def.FilesPrefix
	}
	if cfg.MetaPrefix == "" {
		cfg.MetaPrefix = def.MetaPrefix
	}
	if cfg.ConfigPrefix == "" {
		cfg.ConfigPrefix = def.ConfigPrefix
	}
	if cfg.MaxAttachmentSize <= 0 {
		cfg.MaxAttachmentSize = def.MaxAttachmentSize
	}
	if cfg.IndexMaxRetries <= 0 {
		cfg.IndexMaxRetries = def.IndexMaxRetries
	}
	if cfg.CacheCapacity <= 0 {
		cfg.CacheCapacity = def.CacheCapacity
	}
	if cfg.DocTTL <= 0 {
		cfg.DocTTL = def.DocTTL
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = def.ListTTL
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = def.URLTTL
	}
	if cfg.PrefetchConcurrency <= 0 {
		cfg.PrefetchConcurrency = def.PrefetchConcurrency
	}
	if cfg.MemoryBudget <= 0 {
		cfg.MemoryBudget = def.MemoryBudget
	}
	return cfg
}
