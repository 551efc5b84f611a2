// CLAUDE:SUMMARY Ingestion orchestrator: probe, parallel fan-out, filter, dedup, near-dup pass, sort, truncate.
// Package collector orchestrates one ingestion run across all configured
// source connectors.
//
// A run proceeds through fixed phases: availability probing, parallel
// collection with per-source limits and timeouts, age and quality filtering,
// persistent deduplication, an in-run near-duplicate title pass, recency
// sorting, and truncation. Partial source failures are captured per source
// and never abort the run; only "zero sources available" short-circuits, and
// even that returns a completed empty run.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/veille/internal/connector"
	"github.com/hazyhaar/veille/internal/fingerprint"
	"github.com/hazyhaar/veille/internal/store"
)

// Config bounds one collection run.
type Config struct {
	TotalLimit          int            // overall item cap. Default: 50.
	SourceLimits        map[string]int // per-source caps by connector name
	DefaultSourceLimit  int            // cap for sources absent from SourceLimits. Default: 20.
	Keywords            []string       // when non-empty, items must match at least one
	MaxAgeDays          int            // drop dated items older than this. Default: 7.
	MinTitleLength      int            // quality bar. Default: 10.
	DisableDedup        bool          // dedup runs by default; set to skip both dedup passes
	SimilarityThreshold float64       // Jaccard threshold for the near-dup pass, (0,1]. Default: 0.75.
	ProbeTimeout        time.Duration // per-source availability probe. Default: 10s.
	FetchTimeout        time.Duration // per-source collect budget. Default: 30s.
}

func (c *Config) defaults() {
	if c.TotalLimit <= 0 {
		c.TotalLimit = 50
	}
	if c.DefaultSourceLimit <= 0 {
		c.DefaultSourceLimit = 20
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 7
	}
	if c.MinTitleLength <= 0 {
		c.MinTitleLength = 10
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = 0.75
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 30 * time.Second
	}
}

// SourceStats holds per-source volume counters for one run.
type SourceStats struct {
	Raw       int     `json:"raw"`
	Final     int     `json:"final"`
	Retention float64 `json:"retention"`
}

// Run is the result of one collection invocation.
type Run struct {
	StartedAt        time.Time
	Elapsed          time.Duration
	RequestedLimit   int
	Items            []connector.Item
	RawCount         int
	FilteredCount    int // items surviving the age/quality/keyword filter
	UniqueCount      int // items surviving both dedup passes
	DuplicatesByType map[store.MatchType]int
	NearDuplicates   int
	SourceStats      map[string]*SourceStats
	Errors           []string
}

// Collector fans out to all configured connectors.
type Collector struct {
	store      *store.Store
	connectors []connector.Connector
	config     Config
	logger     *slog.Logger
}

// New creates a Collector.
func New(st *store.Store, conns []connector.Connector, cfg Config, logger *slog.Logger) *Collector {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{store: st, connectors: conns, config: cfg, logger: logger}
}

// fetchResult is one fan-out slot. Errors stay in their slot; they never
// cancel sibling fetches.
type fetchResult struct {
	name  string
	items []connector.Item
	err   error
}

// CollectAll runs one full collection. The returned Run is always complete,
// even when every source failed; the error return covers only store-level
// failures during dedup.
func (c *Collector) CollectAll(ctx context.Context) (*Run, error) {
	run := &Run{
		StartedAt:        time.Now(),
		RequestedLimit:   c.config.TotalLimit,
		DuplicatesByType: make(map[store.MatchType]int),
		SourceStats:      make(map[string]*SourceStats),
	}

	available := c.probe(ctx, run)
	if len(available) == 0 {
		run.Errors = append(run.Errors, "no sources available")
		run.Items = []connector.Item{}
		c.finish(ctx, run)
		return run, nil
	}

	merged := c.fanOut(ctx, available, run)
	run.RawCount = len(merged)

	filtered := c.filter(merged)
	run.FilteredCount = len(filtered)

	unique, err := c.dedup(ctx, filtered, run)
	if err != nil {
		return nil, err
	}
	run.UniqueCount = len(unique)

	// Recency sort: newest first, undated items last, stable otherwise.
	sort.SliceStable(unique, func(i, j int) bool {
		a, b := unique[i].Published, unique[j].Published
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	if len(unique) > c.config.TotalLimit {
		unique = unique[:c.config.TotalLimit]
	}
	run.Items = unique

	c.sourceStats(run)
	c.finish(ctx, run)
	return run, nil
}

// probe checks each connector's availability within the probe timeout.
// Unavailable sources are skipped with a log line, not an error.
func (c *Collector) probe(ctx context.Context, run *Run) []connector.Connector {
	available := make([]connector.Connector, 0, len(c.connectors))
	for _, conn := range c.connectors {
		probeCtx, cancel := context.WithTimeout(ctx, c.config.ProbeTimeout)
		ok := conn.IsAvailable(probeCtx)
		cancel()
		if !ok {
			c.logger.Info("collector: source unavailable, skipping", "source", conn.Name())
			continue
		}
		available = append(available, conn)
	}
	return available
}

// fanOut launches one fetch task per available source and joins them all.
func (c *Collector) fanOut(ctx context.Context, available []connector.Connector, run *Run) []connector.Item {
	slots := make([]fetchResult, len(available))
	var wg sync.WaitGroup
	for i, conn := range available {
		wg.Add(1)
		go func(i int, conn connector.Connector) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
			defer cancel()

			limit := c.config.DefaultSourceLimit
			if l, ok := c.config.SourceLimits[conn.Name()]; ok {
				limit = l
			}
			items, err := conn.Collect(fetchCtx, limit)
			slots[i] = fetchResult{name: conn.Name(), items: items, err: err}
		}(i, conn)
	}
	wg.Wait()

	var merged []connector.Item
	for _, slot := range slots {
		stats := &SourceStats{Raw: len(slot.items)}
		run.SourceStats[slot.name] = stats
		if slot.err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", slot.name, slot.err))
			c.logger.Warn("collector: source failed", "source", slot.name, "error", slot.err)
			continue
		}
		merged = append(merged, slot.items...)
	}
	return merged
}

// filter applies the age window, the minimal quality bar, and the keyword
// allowlist. Undated items pass the age check.
func (c *Collector) filter(items []connector.Item) []connector.Item {
	cutoff := time.Now().UTC().AddDate(0, 0, -c.config.MaxAgeDays)

	out := make([]connector.Item, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.URL) == "" {
			continue
		}
		if len(strings.TrimSpace(it.Title)) < c.config.MinTitleLength {
			continue
		}
		if it.Published != nil && it.Published.UTC().Before(cutoff) {
			continue
		}
		if len(c.config.Keywords) > 0 && !c.matchesKeywords(it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func (c *Collector) matchesKeywords(it connector.Item) bool {
	haystack := strings.ToLower(strings.Join(append([]string{it.Title, it.Body, it.Excerpt}, it.Tags...), " "))
	for _, kw := range c.config.Keywords {
		if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// dedup runs the persisted index pass and then the in-run near-duplicate
// title pass. First seen in arrival order wins.
func (c *Collector) dedup(ctx context.Context, items []connector.Item, run *Run) ([]connector.Item, error) {
	if c.config.DisableDedup {
		return items, nil
	}

	survivors := make([]connector.Item, 0, len(items))
	for _, it := range items {
		fp := fingerprint.New(it.URL, it.Title, it.Body, it.Excerpt)

		record := &store.ContentItem{
			URLHash:     fp.URLHash,
			ContentHash: fp.ContentHash,
			TitleKey:    fp.TitleKey,
			Title:       it.Title,
			URL:         it.URL,
			Source:      it.Source,
			Excerpt:     it.Excerpt,
			Author:      it.Author,
			WordCount:   it.WordCount(),
		}
		if it.Published != nil {
			ms := it.Published.UnixMilli()
			record.PublishedAt = &ms
		}
		if len(it.Tags) > 0 {
			if tags, err := json.Marshal(it.Tags); err == nil {
				record.TagsJSON = string(tags)
			}
		}

		_, wasNew, verdict, err := c.store.RecordIfNew(ctx, record)
		if err != nil {
			return nil, fmt.Errorf("collector: dedup: %w", err)
		}
		if !wasNew {
			run.DuplicatesByType[verdict.MatchType]++
			continue
		}
		survivors = append(survivors, it)
	}

	return c.nearDupPass(survivors, run), nil
}

// nearDupPass drops later items whose title token sets are Jaccard-similar
// to an earlier survivor beyond the configured threshold.
func (c *Collector) nearDupPass(items []connector.Item, run *Run) []connector.Item {
	kept := make([]connector.Item, 0, len(items))
	seen := make([]map[string]struct{}, 0, len(items))

	for _, it := range items {
		tokens := titleTokens(it.Title)
		dup := false
		for _, prev := range seen {
			if jaccard(tokens, prev) >= c.config.SimilarityThreshold {
				dup = true
				break
			}
		}
		if dup {
			run.NearDuplicates++
			continue
		}
		kept = append(kept, it)
		seen = append(seen, tokens)
	}
	return kept
}

func titleTokens(title string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(fingerprint.Normalize(title)) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes |A∩B| / |A∪B| over token sets. An empty set is similar
// to nothing, itself included: a title that normalizes to zero tokens must
// never knock out another such title.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// sourceStats fills per-source final counts and retention rates from the
// truncated item list.
func (c *Collector) sourceStats(run *Run) {
	for _, it := range run.Items {
		if stats, ok := run.SourceStats[it.Source]; ok {
			stats.Final++
		}
	}
	for _, stats := range run.SourceStats {
		if stats.Raw > 0 {
			stats.Retention = float64(stats.Final) / float64(stats.Raw)
		}
	}
}

// finish stamps elapsed time and persists the run summary. Persistence
// failures are logged, never escalated.
func (c *Collector) finish(ctx context.Context, run *Run) {
	run.Elapsed = time.Since(run.StartedAt)

	record := &store.RunRecord{
		StartedAt:      run.StartedAt.UnixMilli(),
		DurationMs:     run.Elapsed.Milliseconds(),
		RequestedLimit: run.RequestedLimit,
		RawCount:       run.RawCount,
		FilteredCount:  run.FilteredCount,
		UniqueCount:    run.UniqueCount,
		FinalCount:     len(run.Items),
		DupURL:         run.DuplicatesByType[store.MatchURL],
		DupContent:     run.DuplicatesByType[store.MatchContent],
		DupTitle:       run.DuplicatesByType[store.MatchTitle],
		DupNear:        run.NearDuplicates,
	}
	if data, err := json.Marshal(run.SourceStats); err == nil {
		record.SourcesJSON = string(data)
	}
	if data, err := json.Marshal(run.Errors); err == nil && string(data) != "null" {
		record.ErrorsJSON = string(data)
	}

	if err := c.store.InsertRun(ctx, record); err != nil {
		c.logger.Warn("collector: run log write failed", "error", err)
	}

	c.logger.Info("collector: run complete",
		"raw", run.RawCount,
		"filtered", run.FilteredCount,
		"unique", run.UniqueCount,
		"final", len(run.Items),
		"near_dups", run.NearDuplicates,
		"errors", len(run.Errors),
		"elapsed", run.Elapsed.Round(time.Millisecond))
}
