// CLAUDE:SUMMARY Get-or-compute analysis cache: dual age ceiling, corruption flagging, buffer hand-off.
// Package analysis puts a content-addressed cache in front of the external
// analysis step.
//
// The cache is keyed by content fingerprint. A hit must satisfy both the
// entry's own TTL and the caller's max-age ceiling; corrupted payloads are
// flagged invalid in place and treated as permanent misses. Computation
// errors propagate to the caller untouched.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/veille/internal/buffer"
	"github.com/hazyhaar/veille/internal/connector"
	"github.com/hazyhaar/veille/internal/fingerprint"
	"github.com/hazyhaar/veille/internal/store"
)

// ComputeFunc is the external analysis callback. Its errors are propagated
// verbatim; the cache neither retries nor suppresses them.
type ComputeFunc func(ctx context.Context, item connector.Item) (json.RawMessage, error)

// Config configures the cache layer.
type Config struct {
	TTL time.Duration // expiry horizon for fresh writes. Default: 168h.
}

func (c *Config) defaults() {
	if c.TTL <= 0 {
		c.TTL = 168 * time.Hour
	}
}

// Cache mediates between callers and the analysis computation.
type Cache struct {
	store  *store.Store
	config Config
	buffer *buffer.Writer // nil disables the digest hand-off
	logger *slog.Logger
}

// New creates a Cache. buf may be nil; when set, every fresh computation is
// also deposited into the digest buffer.
func New(st *store.Store, cfg Config, buf *buffer.Writer, logger *slog.Logger) *Cache {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: st, config: cfg, buffer: buf, logger: logger}
}

// Result is one cache answer.
type Result struct {
	Payload json.RawMessage
	Hit     bool
}

// GetOrCompute returns the cached analysis for the item when a valid,
// unexpired entry no older than maxAge exists, bumping its usage counters.
// Otherwise it invokes compute and caches the fresh payload.
//
// Items without any text have no content fingerprint and bypass the cache
// entirely: the computation runs but its result is not stored.
func (c *Cache) GetOrCompute(ctx context.Context, item connector.Item, compute ComputeFunc, maxAge time.Duration) (*Result, error) {
	fp := fingerprint.New(item.URL, item.Title, item.Body, item.Excerpt)
	if fp.ContentHash == "" {
		payload, err := compute(ctx, item)
		if err != nil {
			return nil, err
		}
		return &Result{Payload: payload}, nil
	}

	entry, err := c.store.GetCacheEntry(ctx, fp.ContentHash, maxAge)
	if err != nil {
		return nil, fmt.Errorf("cache: lookup: %w", err)
	}
	if entry != nil {
		if !json.Valid([]byte(entry.Payload)) {
			// Corrupted payload: flag it in place and fall through to a miss.
			// The row stays for audit.
			if err := c.store.Invalidate(ctx, entry.ID); err != nil {
				c.logger.Warn("cache: invalidate failed", "id", entry.ID, "error", err)
			}
			c.logger.Warn("cache: corrupted payload, invalidated", "content_hash", fp.ContentHash)
		} else {
			if err := c.store.BumpUsage(ctx, entry.ID); err != nil {
				c.logger.Warn("cache: usage bump failed", "id", entry.ID, "error", err)
			}
			return &Result{Payload: json.RawMessage(entry.Payload), Hit: true}, nil
		}
	}

	payload, err := compute(ctx, item)
	if err != nil {
		return nil, err
	}

	if _, err := c.store.PutCacheEntry(ctx, fp.ContentHash, string(payload), c.config.TTL); err != nil {
		// The computation succeeded; a failed cache write must not lose it.
		c.logger.Warn("cache: write failed", "content_hash", fp.ContentHash, "error", err)
	}

	c.depositBuffer(ctx, item, fp.ContentHash, payload)
	return &Result{Payload: payload}, nil
}

// CleanupExpired removes expired, barely-used entries beyond the retention
// window. Returns the number of rows removed.
func (c *Cache) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	removed, err := c.store.CleanupExpired(ctx, retention)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.logger.Info("cache: cleanup", "removed", removed)
	}
	return removed, nil
}

// depositBuffer writes a fresh analysis into the digest buffer. Buffer
// failures are logged only; the analysis itself already succeeded.
func (c *Cache) depositBuffer(ctx context.Context, item connector.Item, contentHash string, payload json.RawMessage) {
	if c.buffer == nil {
		return
	}
	meta := buffer.Metadata{
		Title:       item.Title,
		URL:         item.URL,
		Source:      item.Source,
		Author:      item.Author,
		ContentHash: contentHash,
	}
	if _, err := c.buffer.Write(ctx, meta, string(payload)); err != nil {
		c.logger.Warn("cache: buffer deposit failed", "url", item.URL, "error", err)
	}
}
