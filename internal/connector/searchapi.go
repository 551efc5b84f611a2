// CLAUDE:SUMMARY Paginated JSON search API connector with dot-notation result walker and field mapping.
package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/hazyhaar/veille/internal/fetch"
)

// SearchAPIConfig describes how to call and parse a paginated JSON API.
type SearchAPIConfig struct {
	Method     string            `json:"method" yaml:"method"`           // HTTP method, default GET
	Headers    map[string]string `json:"headers" yaml:"headers"`         // ${ENV_VAR} expanded
	ResultPath string            `json:"result_path" yaml:"result_path"` // dot-notation: "data.results"
	Fields     map[string]string `json:"fields" yaml:"fields"`           // {"title":"name","url":"link",...}
	PageParam  string            `json:"page_param" yaml:"page_param"`   // query parameter, default "page"
	PerPage    int               `json:"per_page" yaml:"per_page"`       // items per page, default 20
	MaxPages   int               `json:"max_pages" yaml:"max_pages"`     // pagination cap, default 3
}

func (c *SearchAPIConfig) defaults() {
	if c.PageParam == "" {
		c.PageParam = "page"
	}
	if c.PerPage <= 0 {
		c.PerPage = 20
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 3
	}
}

// SearchAPI collects items from a paginated JSON search API.
type SearchAPI struct {
	name    string
	baseURL string
	config  SearchAPIConfig
	headers map[string]string // env-expanded once at construction
	fetcher *fetch.Fetcher
	logger  *slog.Logger
}

// NewSearchAPI creates a search API connector. Header values in cfg may use
// ${ENV_VAR} placeholders; they are expanded once here so secrets stay out
// of config files.
func NewSearchAPI(name, baseURL string, cfg SearchAPIConfig, fetcher *fetch.Fetcher, logger *slog.Logger) *SearchAPI {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	headers := expandEnv(cfg.Headers)
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = "application/json"
	}
	return &SearchAPI{name: name, baseURL: baseURL, config: cfg, headers: headers, fetcher: fetcher, logger: logger}
}

func (s *SearchAPI) Name() string { return s.name }

// IsAvailable probes the API base URL.
func (s *SearchAPI) IsAvailable(ctx context.Context) bool {
	return s.fetcher.Probe(ctx, s.baseURL)
}

// Collect pages through the API until limit items are gathered, the page cap
// is reached, or a page comes back empty. A failure on page 1 fails the
// source; a failure on a later page returns what was already gathered.
func (s *SearchAPI) Collect(ctx context.Context, limit int) ([]Item, error) {
	var items []Item
	for page := 1; page <= s.config.MaxPages; page++ {
		if limit > 0 && len(items) >= limit {
			break
		}

		pageItems, err := s.fetchPage(ctx, page)
		if err != nil {
			if page == 1 {
				if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
					return nil, fmt.Errorf("%w: %s: %v", ErrFetchTimeout, s.name, err)
				}
				return nil, fmt.Errorf("%w: %s: %v", ErrFetch, s.name, err)
			}
			s.logger.Warn("searchapi: page failed, keeping earlier pages",
				"source", s.name, "page", page, "error", err)
			break
		}
		if len(pageItems) == 0 {
			break
		}
		items = append(items, pageItems...)
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	s.logger.Debug("searchapi: collected", "source", s.name, "items", len(items))
	return items, nil
}

func (s *SearchAPI) fetchPage(ctx context.Context, page int) ([]Item, error) {
	pageURL, err := s.pageURL(page)
	if err != nil {
		return nil, err
	}

	result, err := s.fetcher.Get(ctx, pageURL, s.headers)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(result.Body, &raw); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	rows, err := walkPath(raw, s.config.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("walk path %q: %w", s.config.ResultPath, err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, s.extractItem(obj))
	}
	return items, nil
}

func (s *SearchAPI) pageURL(page int) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("base url: %w", err)
	}
	q := u.Query()
	q.Set(s.config.PageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// extractItem maps one JSON object into an Item using the configured field
// mapping, falling back to conventional key names.
func (s *SearchAPI) extractItem(obj map[string]any) Item {
	it := Item{
		Title:   asString(obj[s.field("title", "title")]),
		URL:     asString(obj[s.field("url", "url")]),
		Body:    asString(obj[s.field("body", "text")]),
		Excerpt: asString(obj[s.field("excerpt", "excerpt")]),
		Author:  asString(obj[s.field("author", "author")]),
		Source:  s.name,
	}

	if rawDate := asString(obj[s.field("published", "published_at")]); rawDate != "" {
		if ts, err := dateparse.ParseAny(rawDate); err == nil {
			utc := ts.UTC()
			it.Published = &utc
		} else {
			s.logger.Debug("searchapi: unparseable date", "source", s.name, "raw", rawDate)
		}
	}

	if tags, ok := obj[s.field("tags", "tags")].([]any); ok {
		for _, tag := range tags {
			if t := strings.TrimSpace(asString(tag)); t != "" {
				it.Tags = append(it.Tags, t)
			}
		}
	}
	return it
}

func (s *SearchAPI) field(name, fallback string) string {
	if f, ok := s.config.Fields[name]; ok {
		return f
	}
	return fallback
}

// walkPath walks a dot-notation path into a JSON value, returning the array
// found at that path. An empty path requires the root itself to be an array.
func walkPath(v any, path string) ([]any, error) {
	if path == "" {
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("root is not an array")
		}
		return arr, nil
	}

	current := v
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object at %q, got %T", part, current)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("key %q not found", part)
		}
	}

	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("path %q is not an array", path)
	}
	return arr, nil
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// expandEnv replaces ${ENV_VAR} patterns in header values.
func expandEnv(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		out[k] = os.Expand(v, os.Getenv)
	}
	return out
}
