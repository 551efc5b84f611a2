// CLAUDE:SUMMARY RSS/Atom feed connector: conditional-aware fetch, HTML→markdown body, tolerant dates.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/hazyhaar/veille/internal/feed"
	"github.com/hazyhaar/veille/internal/fetch"
)

// RSS polls one RSS 2.0 or Atom 1.0 feed.
type RSS struct {
	name    string
	feedURL string
	fetcher *fetch.Fetcher
	md      *converter.Converter
	logger  *slog.Logger
}

// NewRSS creates a feed connector for one feed URL.
func NewRSS(name, feedURL string, fetcher *fetch.Fetcher, logger *slog.Logger) *RSS {
	if logger == nil {
		logger = slog.Default()
	}
	return &RSS{
		name:    name,
		feedURL: feedURL,
		fetcher: fetcher,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		logger: logger,
	}
}

func (r *RSS) Name() string { return r.name }

// IsAvailable probes the feed URL.
func (r *RSS) IsAvailable(ctx context.Context) bool {
	return r.fetcher.Probe(ctx, r.feedURL)
}

// Collect fetches and parses the feed, returning up to limit items in feed
// order. Entries that fail to parse individually are dropped and logged, not
// fatal to the source.
func (r *RSS) Collect(ctx context.Context, limit int) ([]Item, error) {
	result, err := r.fetcher.Fetch(ctx, r.feedURL, "", "", "")
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetchTimeout, r.name, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, r.name, err)
	}

	parsed, err := feed.Parse(result.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, r.name, err)
	}

	items := make([]Item, 0, len(parsed.Entries))
	for _, entry := range parsed.Entries {
		if limit > 0 && len(items) >= limit {
			break
		}

		published, err := entry.PublishedAt()
		if err != nil {
			// Keep the entry as undated; a broken pubDate is not worth losing it.
			r.logger.Debug("rss: unparseable date", "source", r.name, "raw", entry.Published)
			published = nil
		}

		excerpt := r.htmlToMarkdown(entry.Summary, entry.Summary)
		items = append(items, Item{
			Title:     entry.Title,
			URL:       entry.Link,
			Source:    r.name,
			Body:      r.htmlToMarkdown(entry.Content, excerpt),
			Excerpt:   excerpt,
			Author:    entry.Author,
			Published: published,
			Tags:      entry.Categories,
		})
	}

	r.logger.Debug("rss: collected", "source", r.name, "entries", len(parsed.Entries), "items", len(items))
	return items, nil
}

// htmlToMarkdown converts HTML to structured markdown.
// If conversion fails or produces empty output, returns the fallback text.
func (r *RSS) htmlToMarkdown(html, fallback string) string {
	if html == "" {
		return fallback
	}
	out, err := r.md.ConvertString(html, converter.WithDomain(r.feedURL))
	if err != nil || strings.TrimSpace(out) == "" {
		return fallback
	}
	return strings.TrimSpace(out)
}
