package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/inkstone-dev/inkstone/pkg/blob"
	"github.com/inkstone-dev/inkstone/pkg/jsontime"
)

// Metadata is the per-document bookkeeping persisted in the object's user
// metadata sidecar and mirrored into the aggregated page index.
type Metadata struct {
	CreatedAt jsontime.Milli `json:"createdAt"`
	UpdatedAt jsontime.Milli `json:"updatedAt"`
	Author    string         `json:"author"`
	Version   int            `json:"version"`
	Tags      []string       `json:"tags,omitempty"`
}

// Document is a versioned markdown page.
//
// VersionToken is the store-issued opaque token identifying this exact
// committed state; it changes on every committed write and is the value a
// caller must present to Update for optimistic locking. Version is the
// human-facing integer counter: it increases by exactly 1 per successful
// update relative to the version the updater read.
type Document struct {
	Path         string   `json:"path"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Meta         Metadata `json:"metadata"`
	VersionToken string   `json:"versionToken"`
}

// clone returns a copy so cached documents cannot be mutated by callers.
func (d *Document) clone() *Document {
	cp := *d
	if d.Meta.Tags != nil {
		cp.Meta.Tags = append([]string(nil), d.Meta.Tags...)
	}
	return &cp
}

// pageMeta projects the document into its index entry.
func (d *Document) pageMeta() PageMeta {
	return PageMeta{
		Path:      d.Path,
		Title:     d.Title,
		CreatedAt: d.Meta.CreatedAt,
		UpdatedAt: d.Meta.UpdatedAt,
		Author:    d.Meta.Author,
		Tags:      d.Meta.Tags,
	}
}

// DeleteResult reports the outcome of a document deletion. OrphanedFiles
// lists attachments that were referenced by the deleted document and by no
// other surviving document (by original filename). ConfirmationRequired is
// true iff that list is non-empty: the caller should confirm before bulk
// deleting the orphans.
type DeleteResult struct {
	Path                 string   `json:"path"`
	OrphanedFiles        []string `json:"orphanedFiles"`
	ConfirmationRequired bool     `json:"confirmationRequired"`
}

// ---------------------------------------------------------------------------
// CRUD
// ---------------------------------------------------------------------------

// Create writes a new document. It fails with CodeAlreadyExists if the
// path is taken: the write is conditional on the key not existing, so two
// racing creators cannot both win. The title is derived from the first
// top-level heading in content, falling back to the filename stem.
//
// The aggregated index is updated best-effort after the write; an index
// failure is logged and swallowed, leaving a bounded inconsistency window
// that heals on the next index cycle.
func (w *Wiki) Create(ctx context.Context, docPath, content string, tags ...string) (*Document, error) {
	const op = "create"
	if err := validatePath(op, docPath); err != nil {
		return nil, err
	}
	now := jsontime.Milli(w.now())
	doc := &Document{
		Path:    docPath,
		Title:   deriveTitle(docPath, content),
		Content: content,
		Meta: Metadata{
			CreatedAt: now,
			UpdatedAt: now,
			Author:    w.author,
			Version:   1,
			Tags:      tags,
		},
	}

	token, err := w.putDocument(ctx, op, doc, &blob.PutOptions{IfNoneMatch: true})
	if err != nil {
		if errors.Is(err, blob.ErrPreconditionFailed) {
			return nil, &Error{Code: CodeAlreadyExists, Op: op, Key: docPath, Err: err}
		}
		return nil, classify(op, docPath, err)
	}
	doc.VersionToken = token

	w.docCache.Set(docPath, doc)
	w.invalidateListings()
	if err := w.index.upsert(ctx, doc.pageMeta(), nil); err != nil {
		w.logger.Warn("index add failed after create", "path", docPath, "err", err)
	}
	return doc.clone(), nil
}

// Get returns the document at path, from cache when fresh.
func (w *Wiki) Get(ctx context.Context, docPath string) (*Document, error) {
	const op = "get"
	if err := validatePath(op, docPath); err != nil {
		return nil, err
	}
	if doc, ok := w.docCache.Get(docPath); ok {
		return doc.clone(), nil
	}
	doc, err := w.load(ctx, docPath)
	if err != nil {
		return nil, err
	}
	w.docCache.Set(docPath, doc)
	return doc.clone(), nil
}

// Update replaces a document's content, conditional on expectedToken still
// matching the committed state. On mismatch it returns a [ConflictError]
// carrying the concurrently committed document for caller-driven merge;
// the update is never silently applied and never auto-retried.
func (w *Wiki) Update(ctx context.Context, docPath, content, expectedToken string) (*Document, error) {
	const op = "update"
	if err := validatePath(op, docPath); err != nil {
		return nil, err
	}
	if expectedToken == "" {
		return nil, invalid(op, docPath, "expected version token must not be empty")
	}

	// Fresh read, bypassing the cache: the comparison below must be
	// against the committed state, and on success we need its metadata.
	current, err := w.load(ctx, docPath)
	if err != nil {
		return nil, err
	}
	if current.VersionToken != expectedToken {
		return nil, &ConflictError{Path: docPath, Current: current}
	}

	doc := &Document{
		Path:    docPath,
		Title:   deriveTitle(docPath, content),
		Content: content,
		Meta: Metadata{
			CreatedAt: current.Meta.CreatedAt,
			UpdatedAt: jsontime.Milli(w.now()),
			Author:    w.author,
			Version:   current.Meta.Version + 1,
			Tags:      current.Meta.Tags,
		},
	}

	token, err := w.putDocument(ctx, op, doc, &blob.PutOptions{IfMatch: expectedToken})
	if err != nil {
		if errors.Is(err, blob.ErrPreconditionFailed) {
			// Lost the race between our read and our write: surface
			// the winner's state.
			winner, loadErr := w.load(ctx, docPath)
			if loadErr != nil {
				w.logger.Warn("conflict winner unreadable", "path", docPath, "err", loadErr)
			}
			return nil, &ConflictError{Path: docPath, Current: winner}
		}
		return nil, classify(op, docPath, err)
	}
	doc.VersionToken = token

	w.docCache.Set(docPath, doc)
	w.invalidateListings()
	if err := w.index.upsert(ctx, doc.pageMeta(), nil); err != nil {
		w.logger.Warn("index update failed after update", "path", docPath, "err", err)
	}
	return doc.clone(), nil
}

// Delete removes a document. Before deleting it computes which attachments
// are referenced by this document and by no other, so the caller can decide
// whether to clean them up; see [DeleteResult].
func (w *Wiki) Delete(ctx context.Context, docPath string) (*DeleteResult, error) {
	const op = "delete"
	if err := validatePath(op, docPath); err != nil {
		return nil, err
	}
	doc, err := w.load(ctx, docPath)
	if err != nil {
		return nil, err
	}

	orphans, err := w.orphanCandidates(ctx, doc)
	if err != nil {
		return nil, err
	}

	err = w.policy.Do(ctx, op, func(ctx context.Context) error {
		return w.store.Delete(ctx, w.pageKey(docPath))
	})
	if err != nil {
		return nil, classify(op, docPath, err)
	}

	w.docCache.Delete(docPath)
	w.invalidateListings()
	if err := w.index.remove(ctx, docPath, nil); err != nil {
		w.logger.Warn("index remove failed after delete", "path", docPath, "err", err)
	}

	names := make([]string, 0, len(orphans))
	for _, att := range orphans {
		names = append(names, att.OriginalFilename)
	}
	return &DeleteResult{
		Path:                 docPath,
		OrphanedFiles:        names,
		ConfirmationRequired: len(names) > 0,
	}, nil
}

// ---------------------------------------------------------------------------
// storage plumbing
// ---------------------------------------------------------------------------

// load fetches and decodes a document, always hitting the store.
func (w *Wiki) load(ctx context.Context, docPath string) (*Document, error) {
	var obj *blob.Object
	err := w.policy.Do(ctx, "get", func(ctx context.Context) error {
		var err error
		obj, err = w.store.Get(ctx, w.pageKey(docPath))
		return err
	})
	if err != nil {
		return nil, classify("get", docPath, err)
	}
	return decodeDocument(docPath, obj), nil
}

// putDocument writes content + metadata sidecar through the retry policy.
func (w *Wiki) putDocument(ctx context.Context, op string, doc *Document, opts *blob.PutOptions) (string, error) {
	opts.ContentType = "text/markdown; charset=utf-8"
	opts.Meta = encodeDocMeta(doc)
	var token string
	err := w.policy.Do(ctx, op, func(ctx context.Context) error {
		var err error
		token, err = w.store.Put(ctx, w.pageKey(doc.Path), []byte(doc.Content), opts)
		return err
	})
	return token, err
}

// Metadata sidecar keys. Values must survive HTTP header transport (S3
// user metadata), so free-form strings are query-escaped.
const (
	metaTitle   = "title"
	metaAuthor  = "author"
	metaVersion = "version"
	metaCreated = "created"
	metaUpdated = "updated"
	metaTags    = "tags"
)

func encodeDocMeta(doc *Document) map[string]string {
	m := map[string]string{
		metaTitle:   url.QueryEscape(doc.Title),
		metaAuthor:  url.QueryEscape(doc.Meta.Author),
		metaVersion: strconv.Itoa(doc.Meta.Version),
		metaCreated: strconv.FormatInt(doc.Meta.CreatedAt.Time().UnixMilli(), 10),
		metaUpdated: strconv.FormatInt(doc.Meta.UpdatedAt.Time().UnixMilli(), 10),
	}
	if len(doc.Meta.Tags) > 0 {
		escaped := make([]string, len(doc.Meta.Tags))
		for i, tag := range doc.Meta.Tags {
			escaped[i] = url.QueryEscape(tag)
		}
		m[metaTags] = strings.Join(escaped, ",")
	}
	return m
}

func decodeDocument(docPath string, obj *blob.Object) *Document {
	content := string(obj.Body)
	doc := &Document{
		Path:         docPath,
		Content:      content,
		VersionToken: obj.Version,
	}
	doc.Title = unescape(obj.Meta[metaTitle])
	if doc.Title == "" {
		doc.Title = deriveTitle(docPath, content)
	}
	doc.Meta.Author = unescape(obj.Meta[metaAuthor])
	doc.Meta.Version, _ = strconv.Atoi(obj.Meta[metaVersion])
	if doc.Meta.Version == 0 {
		doc.Meta.Version = 1
	}
	doc.Meta.CreatedAt = parseMilli(obj.Meta[metaCreated])
	doc.Meta.UpdatedAt = parseMilli(obj.Meta[metaUpdated])
	if raw := obj.Meta[metaTags]; raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if t := unescape(tag); t != "" {
				doc.Meta.Tags = append(doc.Meta.Tags, t)
			}
		}
	}
	return doc
}

func unescape(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return out
}

func parseMilli(s string) jsontime.Milli {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return jsontime.Milli{}
	}
	return jsontime.Milli(time.UnixMilli(ms))
}

// ---------------------------------------------------------------------------
// validation and title derivation
// ---------------------------------------------------------------------------

// segmentRe is the allowlist for one path segment: unicode letters and
// digits plus space, dot, dash, underscore. Everything else (separators,
// globs, traversal helpers) is rejected.
var segmentRe = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} ._-]*$`)

// validatePath enforces the document path rules: recognized content
// extension, no traversal segments, no disallowed characters.
func validatePath(op, docPath string) error {
	if docPath == "" {
		return invalid(op, docPath, "path must not be empty")
	}
	if !strings.HasSuffix(docPath, ContentExt) {
		return invalid(op, docPath, "path must end with "+ContentExt)
	}
	if strings.HasPrefix(docPath, "/") {
		return invalid(op, docPath, "path must be relative")
	}
	for _, seg := range strings.Split(docPath, "/") {
		switch {
		case seg == "":
			return invalid(op, docPath, "path must not contain empty segments")
		case seg == "." || seg == "..":
			return invalid(op, docPath, "path must not contain traversal segments")
		case !segmentRe.MatchString(seg):
			return invalid(op, docPath, fmt.Sprintf("segment %q contains disallowed characters", seg))
		}
	}
	return nil
}

// deriveTitle returns the first top-level markdown heading, else the
// filename stem.
func deriveTitle(docPath, content string) string {
	for _, line := range strings.Split(content, "\n") {
		if rest, ok := strings.CutPrefix(line, "# "); ok {
			if title := strings.TrimSpace(rest); title != "" {
				return title
			}
		}
	}
	return strings.TrimSuffix(path.Base(docPath), ContentExt)
}
