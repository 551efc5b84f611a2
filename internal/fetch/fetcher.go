// CLAUDE:SUMMARY HTTP fetcher with conditional GET, content-hash change detection, and HEAD availability probe.
// Package fetch implements HTTP content fetching for collectors.
//
// Supports ETag, If-Modified-Since, and content-hash-based change detection,
// plus a cheap availability probe used before fanning out a collection run.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hazyhaar/veille/internal/urlsafe"
)

// Result contains the outcome of a fetch.
type Result struct {
	Body       []byte
	StatusCode int
	Hash       string // SHA-256 of body
	ETag       string // from response header
	LastMod    string // from response header
	Changed    bool   // true if content is new/different
}

// Config configures the fetcher.
type Config struct {
	Timeout  time.Duration // HTTP timeout. Default: 30s.
	MaxBytes int64         // Max response body size. Default: 10MB.
	// UserAgent sent with requests.
	UserAgent string
	// URLValidator validates URLs before fetch and on every redirect.
	// Default: urlsafe.Validate.
	URLValidator func(string) error
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024 // 10MB
	}
	if c.UserAgent == "" {
		c.UserAgent = "veille/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = urlsafe.Validate
	}
}

// Fetcher performs HTTP requests with conditional GET.
type Fetcher struct {
	client *http.Client
	config Config
}

// New creates a Fetcher. The URL validator runs on the initial URL and again
// on every redirect hop.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves a URL. If etag or lastMod are provided, sends conditional
// headers. Returns Changed=false on 304 Not Modified. If prevHash is provided
// and the body hash matches, also returns Changed=false.
func (f *Fetcher) Fetch(ctx context.Context, url, etag, lastMod, prevHash string) (*Result, error) {
	headers := map[string]string{}
	if etag != "" {
		headers["If-None-Match"] = etag
	}
	if lastMod != "" {
		headers["If-Modified-Since"] = lastMod
	}
	return f.get(ctx, url, headers, prevHash)
}

// Get retrieves a URL with extra request headers (API keys and the like).
// Headers never override the configured User-Agent.
func (f *Fetcher) Get(ctx context.Context, url string, headers map[string]string) (*Result, error) {
	return f.get(ctx, url, headers, "")
}

func (f *Fetcher) get(ctx context.Context, url string, headers map[string]string, prevHash string) (*Result, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("URL blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &Result{
			StatusCode: 304,
			Changed:    false,
			ETag:       resp.Header.Get("ETag"),
			LastMod:    resp.Header.Get("Last-Modified"),
		}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return &Result{StatusCode: resp.StatusCode}, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	h := sha256.Sum256(body)
	hash := fmt.Sprintf("%x", h)

	changed := prevHash == "" || hash != prevHash
	return &Result{
		Body:       body,
		StatusCode: resp.StatusCode,
		Hash:       hash,
		ETag:       resp.Header.Get("ETag"),
		LastMod:    resp.Header.Get("Last-Modified"),
		Changed:    changed,
	}, nil
}

// Probe checks whether a URL answers at all, using HEAD with a GET fallback
// for servers that reject HEAD. Any 2xx/3xx response counts as available.
// A probe failure marks the source unavailable for this run; it is not an
// error condition.
func (f *Fetcher) Probe(ctx context.Context, url string) bool {
	if err := f.config.URLValidator(url); err != nil {
		return false
	}

	status, err := f.probeOnce(ctx, http.MethodHead, url)
	if err == nil && status != http.StatusMethodNotAllowed && status != http.StatusNotImplemented {
		return status < 400
	}

	status, err = f.probeOnce(ctx, http.MethodGet, url)
	return err == nil && status < 400
}

func (f *Fetcher) probeOnce(ctx context.Context, method, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	// Drain a little so the connection can be reused, then close.
	io.CopyN(io.Discard, resp.Body, 512) //nolint:errcheck
	resp.Body.Close()
	return resp.StatusCode, nil
}
