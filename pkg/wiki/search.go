package wiki

import (
	"context"
	"sort"
	"strings"
)

// MatchType says which search pass matched a result. Lower values are
// higher-priority passes.
type MatchType int

const (
	MatchTitle MatchType = iota
	MatchPath
	MatchTag
	MatchContent
)

func (m MatchType) String() string {
	switch m {
	case MatchTitle:
		return "title"
	case MatchPath:
		return "path"
	case MatchTag:
		return "tag"
	case MatchContent:
		return "content"
	}
	return "unknown"
}

// SearchResult is one ranked hit.
type SearchResult struct {
	Page  PageMeta  `json:"page"`
	Match MatchType `json:"match"`
}

// Search runs a ranked scan over the corpus. An empty query returns no
// results. Four passes run in priority order (title, path segment, tag,
// content), each considering only documents not already matched. The
// content pass requires fetching each remaining document; fetch failures
// are logged and skipped. Results are ordered by pass priority, then
// shallower path depth, then most recently updated.
//
// This is a live scan, not a durable full-text index; it is sized for a
// corpus in the low thousands of documents.
func (w *Wiki) Search(ctx context.Context, query string) ([]SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	pages, err := w.Pages(ctx)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	matched := make(map[string]bool, len(pages))
	add := func(page PageMeta, match MatchType) {
		matched[page.Path] = true
		results = append(results, SearchResult{Page: page, Match: match})
	}

	// Pass 1: title.
	for _, page := range pages {
		if strings.Contains(strings.ToLower(page.Title), q) {
			add(page, MatchTitle)
		}
	}

	// Pass 2: path segments.
	for _, page := range pages {
		if matched[page.Path] {
			continue
		}
		for _, seg := range strings.Split(strings.TrimSuffix(page.Path, ContentExt), "/") {
			if strings.Contains(strings.ToLower(seg), q) {
				add(page, MatchPath)
				break
			}
		}
	}

	// Pass 3: tags.
	for _, page := range pages {
		if matched[page.Path] {
			continue
		}
		for _, tag := range page.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				add(page, MatchTag)
				break
			}
		}
	}

	// Pass 4: content. The expensive one: full fetch per candidate.
	for _, page := range pages {
		if matched[page.Path] {
			continue
		}
		doc, err := w.Get(ctx, page.Path)
		if err != nil {
			w.logger.Warn("search: skipping unreadable document", "path", page.Path, "err", err)
			continue
		}
		if strings.Contains(strings.ToLower(doc.Content), q) {
			add(page, MatchContent)
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Match != b.Match {
			return a.Match < b.Match
		}
		da, db := pathDepth(a.Page.Path), pathDepth(b.Page.Path)
		if da != db {
			return da < db
		}
		return a.Page.UpdatedAt.After(b.Page.UpdatedAt)
	})
	return results, nil
}

func pathDepth(p string) int {
	return strings.Count(p, "/")
}
