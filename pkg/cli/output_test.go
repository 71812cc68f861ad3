package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOutputFormats(t *testing.T) {
	result := map[string]any{"path": "a.md", "version": 2}

	var buf bytes.Buffer
	if err := Output(result, OutputOptions{Format: FormatJSON, Writer: &buf}); err != nil {
		t.Fatalf("Output json: %v", err)
	}
	if !strings.Contains(buf.String(), `"path": "a.md"`) {
		t.Fatalf("json output = %q", buf.String())
	}

	buf.Reset()
	if err := Output(result, OutputOptions{Writer: &buf}); err != nil {
		t.Fatalf("Output default: %v", err)
	}
	// The empty format defaults to YAML.
	if !strings.Contains(buf.String(), "path: a.md") {
		t.Fatalf("yaml output = %q", buf.String())
	}

	buf.Reset()
	if err := Output(result, OutputOptions{Format: FormatYAML, Writer: &buf}); err != nil {
		t.Fatalf("Output yaml: %v", err)
	}
	if !strings.Contains(buf.String(), "version: 2") {
		t.Fatalf("yaml output = %q", buf.String())
	}

	if err := Output(result, OutputOptions{Format: "xml", Writer: &buf}); err == nil {
		t.Fatal("Output with unsupported format succeeded")
	}
}

func TestOutputRaw(t *testing.T) {
	var buf bytes.Buffer
	if err := Output([]byte{0x89, 'P', 'N', 'G'}, OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
		t.Fatalf("Output raw bytes: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), []byte{0x89, 'P', 'N', 'G'}) {
		t.Fatalf("raw bytes = %v", buf.Bytes())
	}

	buf.Reset()
	if err := Output("plain text", OutputOptions{Format: FormatRaw, Writer: &buf}); err != nil {
		t.Fatalf("Output raw string: %v", err)
	}
	if buf.String() != "plain text" {
		t.Fatalf("raw string = %q", buf.String())
	}
}

func TestOutputToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := Output(map[string]string{"k": "v"}, OutputOptions{Format: FormatJSON, File: path}); err != nil {
		t.Fatalf("Output to file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"k": "v"`) {
		t.Fatalf("file contents = %q", data)
	}
}

func TestOutputBytes(t *testing.T) {
	if err := OutputBytes([]byte("x"), ""); err == nil {
		t.Fatal("OutputBytes without a path succeeded")
	}

	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := OutputBytes([]byte{1, 2, 3}, path); err != nil {
		t.Fatalf("OutputBytes: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Fatalf("written bytes = %v", data)
	}
}
