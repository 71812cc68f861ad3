package wiki

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"

	"github.com/inkstone-dev/inkstone/pkg/blob"
	"github.com/inkstone-dev/inkstone/pkg/jsontime"
)

// PageMeta is one document's entry in the aggregated page index: the
// lightweight metadata needed for browse, hierarchy, and the cheap search
// passes, without fetching the document body.
type PageMeta struct {
	Path      string         `json:"path"`
	Title     string         `json:"title"`
	CreatedAt jsontime.Milli `json:"createdAt"`
	UpdatedAt jsontime.Milli `json:"updatedAt"`
	Author    string         `json:"author"`
	Tags      []string       `json:"tags,omitempty"`
}

// pageIndex is the single well-known aggregated index object. The integer
// version increments on every committed mutation; the blob version token
// guards the read-modify-write cycle.
type pageIndex struct {
	Pages   []PageMeta `json:"pages"`
	Version int        `json:"version"`
}

// errMalformed marks an index object that exists but cannot be decoded.
// Consumers self-heal by rebuilding from a live listing.
var errMalformed = errors.New("wiki: malformed index")

// indexManager maintains the page index via bounded-retry read-modify-write
// cycles. Mutations merge by path (last value per path wins), so concurrent
// writers touching different paths both land; only the blob-level write
// races are retried.
type indexManager struct {
	wiki       *Wiki
	key        string
	maxRetries int
	backoff    gax.Backoff
}

// upsert adds or replaces the entry for meta.Path.
func (m *indexManager) upsert(ctx context.Context, meta PageMeta, expectedVersion *int) error {
	return m.apply(ctx, expectedVersion, func(idx *pageIndex) {
		for i := range idx.Pages {
			if idx.Pages[i].Path == meta.Path {
				idx.Pages[i] = meta
				return
			}
		}
		idx.Pages = append(idx.Pages, meta)
	})
}

// remove drops the entry for docPath, if present.
func (m *indexManager) remove(ctx context.Context, docPath string, expectedVersion *int) error {
	return m.apply(ctx, expectedVersion, func(idx *pageIndex) {
		for i := range idx.Pages {
			if idx.Pages[i].Path == docPath {
				idx.Pages = append(idx.Pages[:i], idx.Pages[i+1:]...)
				return
			}
		}
	})
}

// apply runs one full read-modify-write cycle, retrying the whole cycle
// with backoff when the conditional write loses. An absent index reads as
// empty. If expectedVersion is supplied and the read index disagrees, the
// cycle fails immediately without retrying.
func (m *indexManager) apply(ctx context.Context, expectedVersion *int, mutate func(*pageIndex)) error {
	const op = "index-write"
	bo := m.backoff

	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		idx := &pageIndex{}
		token, err := m.wiki.getJSON(ctx, op, m.key, idx)
		switch {
		case errors.Is(err, blob.ErrNotFound), errors.Is(err, errMalformed):
			idx = &pageIndex{}
			token = ""
		case err != nil:
			return classify(op, m.key, err)
		}
		if expectedVersion != nil && idx.Version != *expectedVersion {
			return &Error{Code: CodeIndexConflict, Op: op, Key: m.key,
				Err: fmt.Errorf("index at version %d, caller expected %d", idx.Version, *expectedVersion)}
		}

		mutate(idx)
		idx.Version++
		sort.Slice(idx.Pages, func(i, j int) bool { return idx.Pages[i].Path < idx.Pages[j].Path })

		if _, err := m.wiki.putJSON(ctx, op, m.key, idx, token); err != nil {
			if errors.Is(err, blob.ErrPreconditionFailed) {
				// Another writer committed between our read and write.
				// Back off and rerun the whole cycle on fresh state.
				select {
				case <-ctx.Done():
					return &Error{Code: CodeUnknown, Op: op, Key: m.key, Err: ctx.Err()}
				case <-time.After(bo.Pause()):
				}
				continue
			}
			return classify(op, m.key, err)
		}
		return nil
	}
	return &Error{Code: CodeIndexConflict, Op: op, Key: m.key,
		Err: fmt.Errorf("%d read-modify-write cycles exhausted under contention", m.maxRetries)}
}

// ---------------------------------------------------------------------------
// listing
// ---------------------------------------------------------------------------

// Pages returns the aggregated metadata for every document, sorted by
// path. It prefers the index object; a missing or malformed index
// self-heals via [Wiki.RebuildIndex].
func (w *Wiki) Pages(ctx context.Context) ([]PageMeta, error) {
	const op = "list"
	if pages, ok := w.listCache.Get("pages"); ok {
		return clonePages(pages), nil
	}
	idx := &pageIndex{}
	_, err := w.getJSON(ctx, op, w.index.key, idx)
	if errors.Is(err, blob.ErrNotFound) || errors.Is(err, errMalformed) {
		return w.RebuildIndex(ctx)
	}
	if err != nil {
		return nil, classify(op, w.index.key, err)
	}
	w.listCache.Set("pages", idx.Pages)
	return clonePages(idx.Pages), nil
}

// clonePages copies a page listing so callers can't mutate the cached one.
func clonePages(pages []PageMeta) []PageMeta {
	out := append([]PageMeta(nil), pages...)
	for i := range out {
		out[i].Tags = append([]string(nil), out[i].Tags...)
	}
	return out
}

// RebuildIndex reconstructs the page index from a live store listing and
// writes it back, replacing whatever was there. Intended for self-healing
// and operator repair; per-document head failures are logged and skipped
// (the entry lands on the next rebuild or write).
func (w *Wiki) RebuildIndex(ctx context.Context) ([]PageMeta, error) {
	const op = "index-rebuild"

	var keys []string
	err := w.policy.Do(ctx, op, func(ctx context.Context) error {
		var err error
		keys, err = w.store.List(ctx, w.cfg.PagesPrefix+"/")
		return err
	})
	if err != nil {
		return nil, classify(op, w.cfg.PagesPrefix, err)
	}

	// Carry the old integer version forward so observers still see a
	// monotonic counter.
	old := &pageIndex{}
	if _, err := w.getJSON(ctx, op, w.index.key, old); err != nil &&
		!errors.Is(err, blob.ErrNotFound) && !errors.Is(err, errMalformed) {
		return nil, classify(op, w.index.key, err)
	}

	idx := &pageIndex{Version: old.Version + 1}
	for _, key := range keys {
		docPath := w.pagePath(key)
		if !strings.HasSuffix(docPath, ContentExt) {
			continue
		}
		var obj *blob.Object
		err := w.policy.Do(ctx, op, func(ctx context.Context) error {
			var err error
			obj, err = w.store.Head(ctx, key)
			return err
		})
		if err != nil {
			w.logger.Warn("index rebuild: skipping unreadable document", "path", docPath, "err", err)
			continue
		}
		idx.Pages = append(idx.Pages, decodePageMeta(docPath, obj.Meta))
	}
	sort.Slice(idx.Pages, func(i, j int) bool { return idx.Pages[i].Path < idx.Pages[j].Path })

	if _, err := w.putJSON(ctx, op, w.index.key, idx, ignoreToken); err != nil {
		// The listing itself is good; the healed index just didn't stick.
		w.logger.Warn("index rebuild write failed", "err", err)
	}
	w.listCache.Set("pages", idx.Pages)
	return clonePages(idx.Pages), nil
}

// decodePageMeta builds an index entry from a document's metadata sidecar.
func decodePageMeta(docPath string, m map[string]string) PageMeta {
	pm := PageMeta{
		Path:      docPath,
		Title:     unescape(m[metaTitle]),
		Author:    unescape(m[metaAuthor]),
		CreatedAt: parseMilli(m[metaCreated]),
		UpdatedAt: parseMilli(m[metaUpdated]),
	}
	if pm.Title == "" {
		pm.Title = strings.TrimSuffix(path.Base(docPath), ContentExt)
	}
	if raw := m[metaTags]; raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if t := unescape(tag); t != "" {
				pm.Tags = append(pm.Tags, t)
			}
		}
	}
	return pm
}

// ---------------------------------------------------------------------------
// JSON object plumbing
// ---------------------------------------------------------------------------

// ignoreToken makes putJSON write unconditionally.
const ignoreToken = "\x00ignore"

// getJSON fetches and decodes a JSON object, returning its version token.
// Decode failures return errMalformed so callers can self-heal.
func (w *Wiki) getJSON(ctx context.Context, op, key string, v any) (string, error) {
	var obj *blob.Object
	err := w.policy.Do(ctx, op, func(ctx context.Context) error {
		var err error
		obj, err = w.store.Get(ctx, key)
		return err
	})
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(obj.Body, v); err != nil {
		return "", fmt.Errorf("%w: %s: %v", errMalformed, key, err)
	}
	return obj.Version, nil
}

// putJSON encodes and writes a JSON object. An empty ifMatch token means
// the object must not exist yet (create); ignoreToken overwrites
// unconditionally.
func (w *Wiki) putJSON(ctx context.Context, op, key string, v any, ifMatch string) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("wiki: %s: encode %s: %w", op, key, err)
	}
	opts := &blob.PutOptions{ContentType: "application/json"}
	switch ifMatch {
	case ignoreToken:
	case "":
		opts.IfNoneMatch = true
	default:
		opts.IfMatch = ifMatch
	}
	var token string
	err = w.policy.Do(ctx, op, func(ctx context.Context) error {
		var err error
		token, err = w.store.Put(ctx, key, body, opts)
		return err
	})
	return token, err
}
