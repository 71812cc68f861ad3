package wiki

import (
	"context"
	"testing"
)

func resultPaths(results []SearchResult) []string {
	var paths []string
	for _, r := range results {
		paths = append(paths, r.Page.Path)
	}
	return paths
}

func TestSearchPassPriority(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t)

	// One document per pass, all matching "kafka" through a different field.
	seed := []struct {
		path    string
		content string
		tags    []string
	}{
		{"notes/title-hit.md", "# Kafka Operations\n\nnothing else", nil},
		{"kafka/path-hit.md", "# Unrelated Heading\n\nnothing else", nil},
		{"notes/tag-hit.md", "# Another Heading\n\nnothing else", []string{"kafka"}},
		{"notes/content-hit.md", "# Plain Heading\n\nwe run kafka here", nil},
		{"notes/no-hit.md", "# Quiet\n\nnothing relevant", nil},
	}
	for _, s := range seed {
		if _, err := w.Create(ctx, s.path, s.content, s.tags...); err != nil {
			t.Fatalf("Create %s: %v", s.path, err)
		}
	}

	results, err := w.Search(ctx, "Kafka")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"notes/title-hit.md", "kafka/path-hit.md", "notes/tag-hit.md", "notes/content-hit.md"}
	got := resultPaths(results)
	if len(got) != len(want) {
		t.Fatalf("results = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("results = %v, want %v", got, want)
		}
	}

	wantMatch := []MatchType{MatchTitle, MatchPath, MatchTag, MatchContent}
	for i, r := range results {
		if r.Match != wantMatch[i] {
			t.Errorf("result %d match = %s, want %s", i, r.Match, wantMatch[i])
		}
	}
}

// A title hit outranks a content hit even when the content hit is the
// more recently updated document.
func TestSearchTitleBeatsContent(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t)

	if _, err := w.Create(ctx, "a.md", "# Deploy Guide\n\nsteps"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Create(ctx, "b.md", "# Other\n\nhow we deploy services"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	results, err := w.Search(ctx, "deploy")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v", resultPaths(results))
	}
	if results[0].Page.Path != "a.md" || results[0].Match != MatchTitle {
		t.Fatalf("first = %+v, want title match on a.md", results[0])
	}
	if results[1].Page.Path != "b.md" || results[1].Match != MatchContent {
		t.Fatalf("second = %+v, want content match on b.md", results[1])
	}
}

func TestSearchOrderWithinPass(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t)

	// Same pass (title); deep path loses to shallow, and among equal depth
	// the most recently updated wins.
	if _, err := w.Create(ctx, "x/y/deep.md", "# Alpha Deep"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Create(ctx, "older.md", "# Alpha Older"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Create(ctx, "newer.md", "# Alpha Newer"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	results, err := w.Search(ctx, "alpha")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"newer.md", "older.md", "x/y/deep.md"}
	got := resultPaths(results)
	for i := range want {
		if i >= len(got) || got[i] != want[i] {
			t.Fatalf("results = %v, want %v", got, want)
		}
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t)
	if _, err := w.Create(ctx, "a.md", "# A"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, q := range []string{"", "   "} {
		results, err := w.Search(ctx, q)
		if err != nil {
			t.Fatalf("Search(%q): %v", q, err)
		}
		if len(results) != 0 {
			t.Fatalf("Search(%q) = %v, want none", q, resultPaths(results))
		}
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t)
	if _, err := w.Create(ctx, "a.md", "# МИКСЕД Case Heading"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	results, err := w.Search(ctx, "миксед")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Match != MatchTitle {
		t.Fatalf("results = %+v", results)
	}
}
