package wiki

import (
	"context"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"photo.png", "photo.png"},
		{"My Photo.PNG", "my_photo.png"},
		{"  spaced   name .jpg ", "spaced_name_.jpg"},
		{"weird@#$chars!.gif", "weird_chars_.gif"},
		{"___already__collapsed___.txt", "already_collapsed_.txt"},
		{"héllo wörld.png", "h_llo_w_rld.png"},
		{"UPPER_CASE-ok.v2.webp", "upper_case-ok.v2.webp"},
	}
	for _, tc := range cases {
		got := SanitizeFilename(tc.in)
		if got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
		// Idempotence: sanitizing twice changes nothing.
		if again := SanitizeFilename(got); again != got {
			t.Errorf("not idempotent: %q -> %q -> %q", tc.in, got, again)
		}
	}
}

func TestUploadValidation(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t, WithConfig(Config{MaxAttachmentSize: 16}))

	cases := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"empty filename", "   ", []byte("x")},
		{"denied extension", "malware.exe", []byte("x")},
		{"denied extension upper", "Script.PS1", []byte("x")},
		{"over size ceiling", "big.png", make([]byte, 17)},
	}
	for _, tc := range cases {
		_, err := w.Upload(ctx, tc.filename, tc.content, "")
		if ErrorCode(err) != CodeInvalidInput {
			t.Errorf("%s: Upload = %v, want %s", tc.name, err, CodeInvalidInput)
		}
	}
}

func TestUploadListDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t, WithConfig(Config{PublicBaseURL: "https://cdn.example.com"}))

	att, err := w.Upload(ctx, "Diagram One.PNG", []byte("pngbytes"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if att.OriginalFilename != "Diagram One.PNG" {
		t.Fatalf("OriginalFilename = %q", att.OriginalFilename)
	}
	if !strings.HasSuffix(att.ID, "-diagram_one.png") {
		t.Fatalf("ID = %q, want <unix-milli>-<sanitized>", att.ID)
	}
	if att.Size != 8 || att.ContentType != "image/png" {
		t.Fatalf("attachment = %+v", att)
	}
	if att.URL != "https://cdn.example.com/files/"+att.ID {
		t.Fatalf("URL = %q", att.URL)
	}
	if att.UploadedAt.IsZero() {
		t.Fatal("UploadedAt not set")
	}

	atts, err := w.Attachments(ctx)
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if len(atts) != 1 || atts[0].ID != att.ID || atts[0].OriginalFilename != att.OriginalFilename {
		t.Fatalf("Attachments = %+v", atts)
	}

	data, err := w.OpenAttachment(ctx, att.ID)
	if err != nil {
		t.Fatalf("OpenAttachment: %v", err)
	}
	if string(data) != "pngbytes" {
		t.Fatalf("content = %q", data)
	}

	if err := w.DeleteAttachment(ctx, att.ID); err != nil {
		t.Fatalf("DeleteAttachment: %v", err)
	}
	atts, err = w.Attachments(ctx)
	if err != nil {
		t.Fatalf("Attachments after delete: %v", err)
	}
	if len(atts) != 0 {
		t.Fatalf("Attachments = %+v, want empty", atts)
	}
}

func TestDeleteAttachmentMissing(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t)
	if err := w.DeleteAttachment(ctx, "170000-ghost.png"); ErrorCode(err) != CodeNotFound {
		t.Fatalf("DeleteAttachment = %v, want %s", err, CodeNotFound)
	}
}

// The files.json index is derived state: when missing or corrupt, listing
// must fall back to a live store scan and heal the index.
func TestAttachmentsSelfHealFromListing(t *testing.T) {
	ctx := context.Background()
	w, store := newTestWiki(t)

	att1, err := w.Upload(ctx, "one.png", []byte("1"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	att2, err := w.Upload(ctx, "two.png", []byte("22"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Corrupt the secondary index and drop the cache.
	if _, err := store.Put(ctx, "meta/files.json", []byte("][garbage"), nil); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	w.attCache.Purge()

	atts, err := w.Attachments(ctx)
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if len(atts) != 2 {
		t.Fatalf("Attachments = %+v, want 2", atts)
	}
	byID := map[string]Attachment{atts[0].ID: atts[0], atts[1].ID: atts[1]}
	for _, want := range []*Attachment{att1, att2} {
		got, ok := byID[want.ID]
		if !ok {
			t.Fatalf("missing %q in healed listing", want.ID)
		}
		if got.OriginalFilename != want.OriginalFilename || got.Size != want.Size {
			t.Fatalf("healed entry = %+v, want %+v", got, want)
		}
	}

	// The healed index must now be readable again.
	w.attCache.Purge()
	idx := &fileIndex{}
	if _, err := w.getJSON(ctx, "test", w.fileIndex.key, idx); err != nil {
		t.Fatalf("healed index unreadable: %v", err)
	}
	if len(idx.Files) != 2 {
		t.Fatalf("healed index = %+v", idx)
	}
}

func TestRemoteConfigOverridesUploadCeiling(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t)

	if err := w.SaveRemoteConfig(ctx, &RemoteConfig{Title: "Team Wiki", MaxAttachmentSize: 4}); err != nil {
		t.Fatalf("SaveRemoteConfig: %v", err)
	}
	if _, err := w.Upload(ctx, "big.png", []byte("12345"), ""); ErrorCode(err) != CodeInvalidInput {
		t.Fatalf("Upload over remote ceiling = %v, want %s", err, CodeInvalidInput)
	}
	if _, err := w.Upload(ctx, "ok.png", []byte("123"), ""); err != nil {
		t.Fatalf("Upload under ceiling: %v", err)
	}
}

func TestAttachmentsReturnsCopies(t *testing.T) {
	ctx := context.Background()
	w, _ := newTestWiki(t)

	if _, err := w.Upload(ctx, "pic.png", []byte("img"), "image/png"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	first, err := w.Attachments(ctx)
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	first[0].OriginalFilename = "mutated"

	// Second call is served from the attachment cache.
	second, err := w.Attachments(ctx)
	if err != nil {
		t.Fatalf("Attachments: %v", err)
	}
	if second[0].OriginalFilename != "pic.png" {
		t.Fatalf("cached listing mutated through caller: %+v", second[0])
	}
}
