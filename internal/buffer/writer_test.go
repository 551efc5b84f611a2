package buffer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWrite(t *testing.T) {
	// WHAT: A write produces a .md file with frontmatter and payload body.
	// WHY: Downstream digest consumers parse exactly this shape.
	dir := filepath.Join(t.TempDir(), "pending")
	w := NewWriter(dir)

	meta := Metadata{
		Title:       "Plain Title",
		URL:         "https://example.com/a",
		Source:      "tech-watch",
		ContentHash: "abc123",
		AnalyzedAt:  time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
	}
	path, err := w.Write(context.Background(), meta, `{"summary":"x"}`)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "---\n") {
		t.Error("missing frontmatter open")
	}
	for _, want := range []string{
		"title: Plain Title",
		"url: https://example.com/a",
		"source: tech-watch",
		"content_hash: abc123",
		"analyzed_at: 2026-08-31T10:00:00Z",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in:\n%s", want, content)
		}
	}
	if !strings.HasSuffix(content, `{"summary":"x"}`) {
		t.Error("payload not at end of file")
	}
	if strings.HasSuffix(path, ".tmp") {
		t.Error("tmp file returned instead of final path")
	}
}

func TestWrite_AssignsID(t *testing.T) {
	// WHAT: A missing ID is generated and used as the filename.
	// WHY: Callers usually pass only item metadata.
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.Write(context.Background(), Metadata{Title: "T"}, "body")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "buf_") || !strings.HasSuffix(base, ".md") {
		t.Errorf("filename: %q", base)
	}
}

func TestWrite_NoPartialFiles(t *testing.T) {
	// WHAT: After a successful write the directory holds no .tmp leftovers.
	// WHY: Consumers glob the directory; partial files would corrupt digests.
	dir := t.TempDir()
	w := NewWriter(dir)

	if _, err := w.Write(context.Background(), Metadata{ID: "x1", Title: "T"}, "body"); err != nil {
		t.Fatalf("write: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover tmp file: %s", e.Name())
		}
	}
}

func TestYAMLEscape(t *testing.T) {
	// WHAT: Titles with YAML-significant characters are quoted and escaped.
	// WHY: A colon in a title must not break the frontmatter.
	if got := yamlEscape("Plain Title"); got != "Plain Title" {
		t.Errorf("plain: %q", got)
	}
	if got := yamlEscape("Go 1.25: What's New"); got != `"Go 1.25: What's New"` {
		t.Errorf("colon: %q", got)
	}
	if got := yamlEscape(`He said "hi"`); got != `"He said \"hi\""` {
		t.Errorf("quotes: %q", got)
	}
}
