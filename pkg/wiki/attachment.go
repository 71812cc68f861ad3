package wiki

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"

	"github.com/inkstone-dev/inkstone/pkg/blob"
	"github.com/inkstone-dev/inkstone/pkg/jsontime"
)

// Attachment is an uploaded binary file. Attachments are immutable: they
// are created by Upload and removed by DeleteAttachment (or bulk orphan
// cleanup), never modified in place.
type Attachment struct {
	// ID is <upload-unix-milli>-<sanitized-filename>, stable once created.
	ID               string         `json:"id"`
	OriginalFilename string         `json:"originalFilename"`
	Size             int64          `json:"size"`
	ContentType      string         `json:"contentType"`
	UploadedAt       jsontime.Milli `json:"uploadedAt"`
	URL              string         `json:"url"`
}

// fileIndex is the secondary JSON index of attachment metadata, kept for
// listing speed. It is purely derived state: a missing or unreadable index
// is rebuilt from a live store listing.
type fileIndex struct {
	Files   []Attachment `json:"files"`
	Version int          `json:"version"`
}

// fileIndexManager maintains files.json with the same bounded
// read-modify-write cycle as the page index.
type fileIndexManager struct {
	wiki       *Wiki
	key        string
	maxRetries int
	backoff    gax.Backoff
}

func (m *fileIndexManager) add(ctx context.Context, att Attachment) error {
	return m.apply(ctx, func(idx *fileIndex) {
		for i := range idx.Files {
			if idx.Files[i].ID == att.ID {
				idx.Files[i] = att
				return
			}
		}
		idx.Files = append(idx.Files, att)
	})
}

func (m *fileIndexManager) remove(ctx context.Context, id string) error {
	return m.apply(ctx, func(idx *fileIndex) {
		for i := range idx.Files {
			if idx.Files[i].ID == id {
				idx.Files = append(idx.Files[:i], idx.Files[i+1:]...)
				return
			}
		}
	})
}

func (m *fileIndexManager) apply(ctx context.Context, mutate func(*fileIndex)) error {
	const op = "file-index-write"
	bo := m.backoff

	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		idx := &fileIndex{}
		token, err := m.wiki.getJSON(ctx, op, m.key, idx)
		switch {
		case errors.Is(err, blob.ErrNotFound), errors.Is(err, errMalformed):
			idx = &fileIndex{}
			token = ""
		case err != nil:
			return classify(op, m.key, err)
		}

		mutate(idx)
		idx.Version++
		sort.Slice(idx.Files, func(i, j int) bool { return idx.Files[i].ID < idx.Files[j].ID })

		if _, err := m.wiki.putJSON(ctx, op, m.key, idx, token); err != nil {
			if errors.Is(err, blob.ErrPreconditionFailed) {
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
// repository operations
// ---------------------------------------------------------------------------

// deniedExts are upload extensions rejected outright.
var deniedExts = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true, ".scr": true,
	".msi": true, ".dll": true, ".sh": true, ".ps1": true, ".vbs": true,
	".php": true, ".jar": true,
}

// Upload stores a binary attachment and its metadata sidecar, returning
// the attachment with its resolved access URL. Validation (size ceiling,
// filename, extension denylist) happens before any I/O.
func (w *Wiki) Upload(ctx context.Context, filename string, content []byte, contentType string) (*Attachment, error) {
	const op = "upload"

	name := strings.TrimSpace(filename)
	if name == "" {
		return nil, invalid(op, filename, "filename must not be empty")
	}
	if ext := strings.ToLower(path.Ext(name)); deniedExts[ext] {
		return nil, invalid(op, name, fmt.Sprintf("extension %s is not allowed", ext))
	}
	if ceiling := w.maxAttachmentSize(); int64(len(content)) > ceiling {
		return nil, invalid(op, name, fmt.Sprintf("size %d exceeds ceiling %d", len(content), ceiling))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploadedAt := w.now()
	att := &Attachment{
		ID:               strconv.FormatInt(uploadedAt.UnixMilli(), 10) + "-" + SanitizeFilename(name),
		OriginalFilename: name,
		Size:             int64(len(content)),
		ContentType:      contentType,
		UploadedAt:       jsontime.Milli(uploadedAt),
	}
	att.URL = w.resolveURL(att.ID)

	err := w.policy.Do(ctx, op, func(ctx context.Context) error {
		_, err := w.store.Put(ctx, w.fileKey(att.ID), content, &blob.PutOptions{
			IfNoneMatch: true,
			ContentType: contentType,
			Meta: map[string]string{
				metaFilename: url.QueryEscape(name),
				metaUploaded: strconv.FormatInt(uploadedAt.UnixMilli(), 10),
			},
		})
		return err
	})
	if err != nil {
		if errors.Is(err, blob.ErrPreconditionFailed) {
			return nil, &Error{Code: CodeAlreadyExists, Op: op, Key: att.ID, Err: err}
		}
		return nil, classify(op, att.ID, err)
	}

	w.attCache.Purge()
	if err := w.fileIndex.add(ctx, *att); err != nil {
		w.logger.Warn("file index add failed after upload", "id", att.ID, "err", err)
	}
	return att, nil
}

// DeleteAttachment removes an attachment by id. Fails with CodeNotFound if
// the id does not exist.
func (w *Wiki) DeleteAttachment(ctx context.Context, id string) error {
	const op = "delete-attachment"
	if id == "" {
		return invalid(op, id, "attachment id must not be empty")
	}

	err := w.policy.Do(ctx, op, func(ctx context.Context) error {
		_, err := w.store.Head(ctx, w.fileKey(id))
		return err
	})
	if err != nil {
		return classify(op, id, err)
	}

	err = w.policy.Do(ctx, op, func(ctx context.Context) error {
		return w.store.Delete(ctx, w.fileKey(id))
	})
	if err != nil {
		return classify(op, id, err)
	}

	w.attCache.Purge()
	w.urlCache.Delete(id)
	if err := w.fileIndex.remove(ctx, id); err != nil {
		w.logger.Warn("file index remove failed after delete", "id", id, "err", err)
	}
	return nil
}

// OpenAttachment returns an attachment's content.
func (w *Wiki) OpenAttachment(ctx context.Context, id string) ([]byte, error) {
	const op = "open-attachment"
	var obj *blob.Object
	err := w.policy.Do(ctx, op, func(ctx context.Context) error {
		var err error
		obj, err = w.store.Get(ctx, w.fileKey(id))
		return err
	})
	if err != nil {
		return nil, classify(op, id, err)
	}
	return obj.Body, nil
}

// Attachments lists all attachments, preferring the secondary JSON index
// for speed and self-healing from a live store listing when the index is
// missing or unreadable.
func (w *Wiki) Attachments(ctx context.Context) ([]Attachment, error) {
	const op = "list-attachments"
	if atts, ok := w.attCache.Get("files"); ok {
		return append([]Attachment(nil), atts...), nil
	}

	idx := &fileIndex{}
	_, err := w.getJSON(ctx, op, w.fileIndex.key, idx)
	switch {
	case err == nil:
		for i := range idx.Files {
			idx.Files[i].URL = w.resolveURL(idx.Files[i].ID)
		}
		w.attCache.Set("files", idx.Files)
		return append([]Attachment(nil), idx.Files...), nil
	case errors.Is(err, blob.ErrNotFound), errors.Is(err, errMalformed):
		return w.rebuildFileIndex(ctx)
	default:
		return nil, classify(op, w.fileIndex.key, err)
	}
}

// rebuildFileIndex reconstructs files.json from a live listing.
func (w *Wiki) rebuildFileIndex(ctx context.Context) ([]Attachment, error) {
	const op = "file-index-rebuild"

	var keys []string
	err := w.policy.Do(ctx, op, func(ctx context.Context) error {
		var err error
		keys, err = w.store.List(ctx, w.cfg.FilesPrefix+"/")
		return err
	})
	if err != nil {
		return nil, classify(op, w.cfg.FilesPrefix, err)
	}

	idx := &fileIndex{Version: 1}
	for _, key := range keys {
		id := strings.TrimPrefix(key, w.cfg.FilesPrefix+"/")
		var obj *blob.Object
		err := w.policy.Do(ctx, op, func(ctx context.Context) error {
			var err error
			obj, err = w.store.Head(ctx, key)
			return err
		})
		if err != nil {
			w.logger.Warn("file index rebuild: skipping unreadable attachment", "id", id, "err", err)
			continue
		}
		idx.Files = append(idx.Files, w.decodeAttachment(id, obj))
	}
	sort.Slice(idx.Files, func(i, j int) bool { return idx.Files[i].ID < idx.Files[j].ID })

	if _, err := w.putJSON(ctx, op, w.fileIndex.key, idx, ignoreToken); err != nil {
		// The listing itself is good; the healed index just didn't stick.
		w.logger.Warn("file index rebuild write failed", "err", err)
	}
	w.attCache.Set("files", idx.Files)
	return append([]Attachment(nil), idx.Files...), nil
}

// Attachment sidecar metadata keys. The original filename is query-escaped
// so it survives header-safe transport (S3 user metadata).
const (
	metaFilename = "filename"
	metaUploaded = "uploaded"
)

// decodeAttachment reconstructs an Attachment from its object metadata,
// falling back to id-derived fields when the sidecar is incomplete.
func (w *Wiki) decodeAttachment(id string, obj *blob.Object) Attachment {
	att := Attachment{
		ID:          id,
		Size:        obj.Size,
		ContentType: obj.ContentType,
		URL:         w.resolveURL(id),
	}
	if raw := obj.Meta[metaFilename]; raw != "" {
		att.OriginalFilename = unescape(raw)
	}
	if ms, err := strconv.ParseInt(obj.Meta[metaUploaded], 10, 64); err == nil {
		att.UploadedAt = jsontime.Milli(time.UnixMilli(ms))
	}

	// Derive what's missing from the id: <unix-milli>-<sanitized-name>.
	if ts, name, ok := strings.Cut(id, "-"); ok {
		if att.OriginalFilename == "" {
			att.OriginalFilename = name
		}
		if att.UploadedAt.IsZero() {
			if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
				att.UploadedAt = jsontime.Milli(time.UnixMilli(ms))
			}
		}
	}
	return att
}

// maxAttachmentSize returns the effective upload ceiling, preferring the
// remote runtime config over the client default.
func (w *Wiki) maxAttachmentSize() int64 {
	if rc := w.remote.Load(); rc != nil && rc.MaxAttachmentSize > 0 {
		return rc.MaxAttachmentSize
	}
	return w.cfg.MaxAttachmentSize
}

// resolveURL builds (and caches) the public access URL for an attachment.
// Resolved URLs never change for a given id, hence the long TTL.
func (w *Wiki) resolveURL(id string) string {
	if u, ok := w.urlCache.Get(id); ok {
		return u
	}
	u := w.fileKey(id)
	base := w.cfg.PublicBaseURL
	if rc := w.remote.Load(); rc != nil && rc.PublicBaseURL != "" {
		base = rc.PublicBaseURL
	}
	if base != "" {
		u = strings.TrimSuffix(base, "/") + "/" + u
	}
	w.urlCache.Set(id, u)
	return u
}

// ---------------------------------------------------------------------------
// filename sanitization
// ---------------------------------------------------------------------------

var (
	disallowedChars = regexp.MustCompile(`[^a-z0-9._-]`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

// SanitizeFilename normalizes a filename for use in storage ids:
// lowercase, disallowed characters replaced with '_', whitespace and
// underscore runs collapsed, leading/trailing separators trimmed.
// The function is deterministic and idempotent:
// SanitizeFilename(SanitizeFilename(x)) == SanitizeFilename(x).
func SanitizeFilename(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.Join(strings.Fields(s), "_")
	s = disallowedChars.ReplaceAllString(s, "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return s
}
