// CLAUDE:SUMMARY Source connector capability: Collect + IsAvailable, shared Item shape, fetch error sentinels.
// Package connector defines the source capability consumed by the collector.
//
// A connector fetches raw items from one external source and reports its own
// availability. All variants are treated uniformly by the collection fan-out.
package connector

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrFetchTimeout is returned when a source does not answer within the
// per-fetch timeout.
var ErrFetchTimeout = errors.New("connector: fetch timeout")

// ErrFetch is the base sentinel for transport or parse failures during
// collection. Wrapped with source context by the variants.
var ErrFetch = errors.New("connector: fetch failed")

// Item is one normalized content item produced by a connector.
// Immutable once produced.
type Item struct {
	Title     string
	URL       string
	Source    string
	Body      string // full text, optional
	Excerpt   string
	Author    string
	Published *time.Time // nil when the source carries no timestamp
	Tags      []string
}

// WordCount counts whitespace-separated words in the item's text, preferring
// the body over the excerpt.
func (it Item) WordCount() int {
	text := it.Body
	if text == "" {
		text = it.Excerpt
	}
	return len(strings.Fields(text))
}

// Connector fetches items from one external source.
type Connector interface {
	// Name identifies the source in stats, limits, and logs.
	Name() string

	// Collect fetches up to limit items. Failures are reported as errors
	// wrapping ErrFetch or ErrFetchTimeout; they never panic.
	Collect(ctx context.Context, limit int) ([]Item, error)

	// IsAvailable probes the source cheaply. It must respect the context
	// deadline and never panic; a probe failure simply skips the source
	// for the current run.
	IsAvailable(ctx context.Context) bool
}
