package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/inkstone-dev/inkstone/pkg/blob"
	"github.com/inkstone-dev/inkstone/pkg/wiki"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func withTestWiki(t *testing.T) *wiki.Wiki {
	t.Helper()
	w := wiki.New(blob.NewMemory(), wiki.WithAuthor("tester"))
	testWikiOverride = w
	t.Cleanup(func() { testWikiOverride = nil })
	return w
}

func TestCtxCommands(t *testing.T) {
	t.Setenv("INKSTONE_CONFIG", filepath.Join(t.TempDir(), "config.yaml"))

	if err := run(t, "ctx", "add", "dev", "--bucket", "wiki-dev", "--endpoint", "http://localhost:9000", "--path-style"); err != nil {
		t.Fatalf("ctx add: %v", err)
	}
	if err := run(t, "ctx", "add", "prod", "--bucket", "wiki-prod"); err != nil {
		t.Fatalf("ctx add: %v", err)
	}
	if err := run(t, "ctx", "use", "prod"); err != nil {
		t.Fatalf("ctx use: %v", err)
	}
	if err := run(t, "ctx", "use", "missing"); err == nil {
		t.Fatal("ctx use missing succeeded")
	}

	cfg, err := loadLocalConfig()
	if err != nil {
		t.Fatalf("loadLocalConfig: %v", err)
	}
	if cfg.CurrentContext != "prod" {
		t.Fatalf("CurrentContext = %q", cfg.CurrentContext)
	}
	cc, err := cfg.GetContext("dev")
	if err != nil {
		t.Fatalf("GetContext: %v", err)
	}
	if cc.Bucket != "wiki-dev" || !cc.UsePathStyle {
		t.Fatalf("dev context = %+v", cc)
	}

	if err := run(t, "ctx", "remove", "dev"); err != nil {
		t.Fatalf("ctx remove: %v", err)
	}
}

func TestPageCommands(t *testing.T) {
	w := withTestWiki(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "setup.md")
	if err := os.WriteFile(src, []byte("# Getting Started\n\ncontent"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if err := run(t, "page", "create", "guides/setup.md", "-f", src, "--tag", "howto"); err != nil {
		t.Fatalf("page create: %v", err)
	}
	doc, err := w.Get(ctx, "guides/setup.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Title != "Getting Started" || doc.Meta.Version != 1 {
		t.Fatalf("doc = %+v", doc)
	}
	if len(doc.Meta.Tags) != 1 || doc.Meta.Tags[0] != "howto" {
		t.Fatalf("Tags = %v", doc.Meta.Tags)
	}

	if err := os.WriteFile(src, []byte("# Getting Started\n\nrevised"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := run(t, "page", "update", "guides/setup.md", "-f", src, "--token", doc.VersionToken); err != nil {
		t.Fatalf("page update: %v", err)
	}
	doc, err = w.Get(ctx, "guides/setup.md")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Meta.Version != 2 || doc.Content != "# Getting Started\n\nrevised" {
		t.Fatalf("doc after update = %+v", doc)
	}

	// A stale token surfaces the conflict as a command error.
	if err := run(t, "page", "update", "guides/setup.md", "-f", src, "--token", "stale"); err == nil {
		t.Fatal("stale update succeeded")
	}

	if err := run(t, "page", "delete", "guides/setup.md"); err != nil {
		t.Fatalf("page delete: %v", err)
	}
	if _, err := w.Get(ctx, "guides/setup.md"); wiki.ErrorCode(err) != wiki.CodeNotFound {
		t.Fatalf("Get after delete = %v", err)
	}
}

func TestOrphansCleanupCommand(t *testing.T) {
	w := withTestWiki(t)
	ctx := context.Background()

	img := filepath.Join(t.TempDir(), "stray.png")
	if err := os.WriteFile(img, []byte("png"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := run(t, "file", "upload", img); err != nil {
		t.Fatalf("file upload: %v", err)
	}

	if err := run(t, "orphans", "--cleanup"); err != nil {
		t.Fatalf("orphans --cleanup: %v", err)
	}
	atts, err := w.Attachments(ctx)
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if len(atts) != 0 {
		t.Fatalf("Attachments = %+v, want none after cleanup", atts)
	}
}
