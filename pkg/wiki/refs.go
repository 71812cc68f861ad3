package wiki

import (
	"context"
	"regexp"
	"strings"
)

// linkTargetRe extracts the target of markdown link and image constructs:
// [text](target) and ![alt](target), with optional <...> wrapping.
//
// Reference detection is a heuristic over the raw text, not a structural
// markdown guarantee: non-standard link syntax (reference-style links,
// raw HTML) can produce false negatives.
var linkTargetRe = regexp.MustCompile(`!?\[[^\]]*\]\(\s*<?([^()>\r\n]+?)>?\s*\)`)

// IsReferenced reports whether content contains a markdown link or image
// whose target matches the attachment. Targets are compared
// case-insensitively against four variants: the original filename, the
// sanitized filename, the storage id, and the resolved URL. A variant
// matches only as the whole target or as its trailing path component, so
// "bigimg.png" is not a reference to "img.png".
func IsReferenced(att *Attachment, content string) bool {
	variants := []string{
		strings.ToLower(att.OriginalFilename),
		SanitizeFilename(att.OriginalFilename),
		strings.ToLower(att.ID),
		strings.ToLower(att.URL),
	}
	for _, m := range linkTargetRe.FindAllStringSubmatch(strings.ToLower(content), -1) {
		target := m[1]
		if i := strings.Index(target, ` "`); i >= 0 {
			target = target[:i] // drop a trailing quoted title
		}
		if i := strings.IndexAny(target, "?#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		for _, v := range variants {
			if v == "" {
				continue
			}
			if target == v || strings.HasSuffix(target, "/"+v) {
				return true
			}
		}
	}
	return false
}

// FindOrphansForDocument returns the attachments that are referenced by
// the named document and by no other existing document: the candidates
// that would become orphans if the document were deleted.
func (w *Wiki) FindOrphansForDocument(ctx context.Context, docPath string) ([]Attachment, error) {
	doc, err := w.Get(ctx, docPath)
	if err != nil {
		return nil, err
	}
	return w.orphanCandidates(ctx, doc)
}

// orphanCandidates computes the orphan set for doc as if it were removed.
//
// The scan is best-effort by design: an in-flight edit of another document
// that re-references an attachment is invisible until saved, so a
// candidate reported here may be re-referenced moments later. Callers are
// expected to confirm before bulk deletion.
func (w *Wiki) orphanCandidates(ctx context.Context, doc *Document) ([]Attachment, error) {
	atts, err := w.Attachments(ctx)
	if err != nil {
		return nil, err
	}

	// Candidates: attachments this document references.
	var candidates []Attachment
	for _, att := range atts {
		if IsReferenced(&att, doc.Content) {
			candidates = append(candidates, att)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Drop any candidate referenced by another surviving document.
	others, err := w.documentPaths(ctx)
	if err != nil {
		return nil, err
	}
	for _, other := range others {
		if len(candidates) == 0 {
			break
		}
		if other == doc.Path {
			continue
		}
		otherDoc, err := w.Get(ctx, other)
		if err != nil {
			// Unreadable documents can't prove a reference either way;
			// skip them and keep the scan best-effort.
			w.logger.Warn("orphan scan: skipping unreadable document", "path", other, "err", err)
			continue
		}
		candidates = withoutReferenced(candidates, otherDoc.Content)
	}
	return candidates, nil
}

// FindAllOrphans returns every attachment referenced by zero existing
// documents. O(documents × attachments); acceptable at the intended corpus
// scale (low thousands of documents).
func (w *Wiki) FindAllOrphans(ctx context.Context) ([]Attachment, error) {
	atts, err := w.Attachments(ctx)
	if err != nil {
		return nil, err
	}
	if len(atts) == 0 {
		return nil, nil
	}
	paths, err := w.documentPaths(ctx)
	if err != nil {
		return nil, err
	}

	candidates := append([]Attachment(nil), atts...)
	for _, p := range paths {
		if len(candidates) == 0 {
			break
		}
		doc, err := w.Get(ctx, p)
		if err != nil {
			w.logger.Warn("orphan scan: skipping unreadable document", "path", p, "err", err)
			continue
		}
		candidates = withoutReferenced(candidates, doc.Content)
	}
	return candidates, nil
}

// CleanupOrphans deletes every orphaned attachment and returns the ones
// actually removed. Individual delete failures are logged and skipped so
// one bad object does not block the sweep.
func (w *Wiki) CleanupOrphans(ctx context.Context) ([]Attachment, error) {
	orphans, err := w.FindAllOrphans(ctx)
	if err != nil {
		return nil, err
	}
	var removed []Attachment
	for _, att := range orphans {
		if err := w.DeleteAttachment(ctx, att.ID); err != nil {
			w.logger.Warn("orphan cleanup: delete failed", "id", att.ID, "err", err)
			continue
		}
		removed = append(removed, att)
	}
	return removed, nil
}

// documentPaths lists every existing document path from the store itself
// (the listing is the source of truth; the index may lag).
func (w *Wiki) documentPaths(ctx context.Context) ([]string, error) {
	const op = "scan"
	var keys []string
	err := w.policy.Do(ctx, op, func(ctx context.Context) error {
		var err error
		keys, err = w.store.List(ctx, w.cfg.PagesPrefix+"/")
		return err
	})
	if err != nil {
		return nil, classify(op, w.cfg.PagesPrefix, err)
	}
	var paths []string
	for _, key := range keys {
		if p := w.pagePath(key); strings.HasSuffix(p, ContentExt) {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

// withoutReferenced filters out candidates referenced by content.
func withoutReferenced(candidates []Attachment, content string) []Attachment {
	kept := candidates[:0]
	for _, att := range candidates {
		if !IsReferenced(&att, content) {
			kept = append(kept, att)
		}
	}
	return kept
}
