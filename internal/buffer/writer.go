// CLAUDE:SUMMARY Atomic .md file writer with YAML frontmatter for digest hand-off.
// Package buffer writes fresh analysis results as .md files to a filesystem
// buffer for asynchronous consumption by the digest step.
//
// Each file carries YAML frontmatter with item metadata; the body is the
// analysis payload. Files are written atomically (write .tmp then rename) to
// prevent partial reads by consumers.
package buffer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/veille/internal/idgen"
)

// Metadata describes the analyzed item behind a .md file.
type Metadata struct {
	ID          string
	Title       string
	URL         string
	Source      string
	Author      string
	ContentHash string
	AnalyzedAt  time.Time
}

// Writer deposits .md files into the pending directory.
type Writer struct {
	dir   string
	newID idgen.Generator
}

// NewWriter creates a Writer targeting the given pending directory.
// The directory is created on first write if it does not exist.
func NewWriter(pendingDir string) *Writer {
	return &Writer{
		dir:   pendingDir,
		newID: idgen.Prefixed("buf_", idgen.UUIDv7()),
	}
}

// Write creates a .md file with YAML frontmatter + payload body.
// Returns the path of the written file.
func (w *Writer) Write(ctx context.Context, meta Metadata, payload string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("buffer: mkdir %s: %w", w.dir, err)
	}

	if meta.ID == "" {
		meta.ID = w.newID()
	}
	if meta.AnalyzedAt.IsZero() {
		meta.AnalyzedAt = time.Now()
	}

	target := filepath.Join(w.dir, meta.ID+".md")
	tmp := target + ".tmp"

	content := formatFrontmatter(meta) + payload

	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("buffer: write tmp: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("buffer: rename: %w", err)
	}

	return target, nil
}

// formatFrontmatter builds a YAML frontmatter block.
func formatFrontmatter(m Metadata) string {
	return "---\n" +
		"id: " + m.ID + "\n" +
		"title: " + yamlEscape(m.Title) + "\n" +
		"url: " + m.URL + "\n" +
		"source: " + yamlEscape(m.Source) + "\n" +
		"author: " + yamlEscape(m.Author) + "\n" +
		"content_hash: " + m.ContentHash + "\n" +
		"analyzed_at: " + m.AnalyzedAt.UTC().Format(time.RFC3339) + "\n" +
		"---\n\n"
}

// yamlEscape wraps a string in quotes if it contains special YAML characters.
func yamlEscape(s string) string {
	for _, c := range s {
		if c == ':' || c == '#' || c == '\'' || c == '"' || c == '{' || c == '}' || c == '[' || c == ']' || c == ',' || c == '&' || c == '*' || c == '?' || c == '|' || c == '-' || c == '<' || c == '>' || c == '=' || c == '!' || c == '%' || c == '@' || c == '`' || c == '\n' {
			return `"` + escapeDoubleQuotes(s) + `"`
		}
	}
	return s
}

func escapeDoubleQuotes(s string) string {
	result := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			result = append(result, '\\', '"')
		} else if s[i] == '\\' {
			result = append(result, '\\', '\\')
		} else {
			result = append(result, s[i])
		}
	}
	return string(result)
}
