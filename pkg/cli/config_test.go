package cli

import (
	"path/filepath"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadConfigWithPath(path)
	if err != nil {
		t.Fatalf("LoadConfigWithPath: %v", err)
	}
	if len(cfg.Contexts) != 0 || cfg.CurrentContext != "" {
		t.Fatalf("fresh config = %+v", cfg)
	}

	err = cfg.AddContext("dev", &Context{
		Bucket:       "wiki-dev",
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
		AccessKey:    "AKIAEXAMPLE",
		SecretKey:    "secret",
		Author:       "dev@example.com",
	})
	if err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	// First context becomes current.
	if cfg.CurrentContext != "dev" {
		t.Fatalf("CurrentContext = %q", cfg.CurrentContext)
	}

	if err := cfg.AddContext("prod", &Context{Bucket: "wiki-prod"}); err != nil {
		t.Fatalf("AddContext: %v", err)
	}
	if cfg.CurrentContext != "dev" {
		t.Fatalf("CurrentContext changed to %q", cfg.CurrentContext)
	}

	// Reload from disk and resolve.
	cfg2, err := LoadConfigWithPath(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	ctx, err := cfg2.ResolveContext("")
	if err != nil {
		t.Fatalf("ResolveContext: %v", err)
	}
	if ctx.Name != "dev" || ctx.Bucket != "wiki-dev" || !ctx.UsePathStyle {
		t.Fatalf("resolved = %+v", ctx)
	}

	if err := cfg2.UseContext("prod"); err != nil {
		t.Fatalf("UseContext: %v", err)
	}
	if err := cfg2.UseContext("missing"); err == nil {
		t.Fatal("UseContext(missing) succeeded")
	}

	if err := cfg2.DeleteContext("prod"); err != nil {
		t.Fatalf("DeleteContext: %v", err)
	}
	if cfg2.CurrentContext != "" {
		t.Fatalf("CurrentContext = %q after deleting current", cfg2.CurrentContext)
	}
	if _, err := cfg2.ResolveContext(""); err == nil {
		t.Fatal("ResolveContext with no current context succeeded")
	}
}

func TestMaskSecret(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"short", "*****"},
		{"AKIA1234EXAMPLE9", "AKIA********PLE9"},
	}
	for _, tc := range cases {
		if got := MaskSecret(tc.in); got != tc.want {
			t.Errorf("MaskSecret(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
