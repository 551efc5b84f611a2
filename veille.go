// CLAUDE:SUMMARY Service facade: wires fetcher, connectors, store, collector, and analysis cache; business methods.
// Package veille is a content ingestion, deduplication, and analysis-cache
// engine. A Service owns a single sqlite database and a fixed set of source
// connectors; CollectAll runs one ingestion pass, Analyze answers through the
// content-addressed cache, and the remaining methods expose run history and
// statistics.
package veille

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/veille/internal/analysis"
	"github.com/hazyhaar/veille/internal/buffer"
	"github.com/hazyhaar/veille/internal/collector"
	"github.com/hazyhaar/veille/internal/connector"
	"github.com/hazyhaar/veille/internal/fetch"
	"github.com/hazyhaar/veille/internal/store"
)

// Service is the main veille orchestrator.
type Service struct {
	db           *sql.DB
	store        *store.Store
	fetcher      *fetch.Fetcher
	collector    *collector.Collector
	cache        *analysis.Cache
	buffer       *buffer.Writer
	logger       *slog.Logger
	config       *Config
	sources      []string              // connector names, declaration order
	urlValidator func(string) error    // nil means the fetch package default
	extraConns   []connector.Connector // injected via WithConnectors
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithURLValidator overrides the URL validation applied before every fetch
// and on every redirect hop. Use in tests with httptest servers that listen
// on loopback addresses.
func WithURLValidator(fn func(string) error) ServiceOption {
	return func(svc *Service) { svc.urlValidator = fn }
}

// WithConnectors appends ready-made connectors to the configured source set.
func WithConnectors(conns ...connector.Connector) ServiceOption {
	return func(svc *Service) { svc.extraConns = append(svc.extraConns, conns...) }
}

// New creates a veille Service over db. The schema is applied (idempotently)
// before the service is returned; db stays owned by the caller.
func New(db *sql.DB, cfg *Config, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		db:     db,
		logger: logger,
		config: cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}

	// The validator override must land before the fetcher is built: the
	// fetcher captures it in its redirect policy.
	fetchCfg := cfg.Fetch
	if svc.urlValidator != nil {
		fetchCfg.URLValidator = svc.urlValidator
	}
	svc.fetcher = fetch.New(fetchCfg)

	conns, err := svc.buildConnectors(cfg.Sources)
	if err != nil {
		return nil, err
	}
	conns = append(conns, svc.extraConns...)

	seen := make(map[string]bool, len(conns))
	for _, c := range conns {
		if seen[c.Name()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSource, c.Name())
		}
		seen[c.Name()] = true
		svc.sources = append(svc.sources, c.Name())
	}

	if err := store.ApplySchema(db); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	svc.store = store.NewStore(db)

	if cfg.BufferDir != "" {
		svc.buffer = buffer.NewWriter(cfg.BufferDir)
	}

	svc.collector = collector.New(svc.store, conns, cfg.Collector, logger)
	svc.cache = analysis.New(svc.store, cfg.Analysis, svc.buffer, logger)

	return svc, nil
}

// buildConnectors instantiates the declared source set.
func (svc *Service) buildConnectors(sources []SourceConfig) ([]connector.Connector, error) {
	conns := make([]connector.Connector, 0, len(sources))
	for _, sc := range sources {
		if sc.Name == "" || sc.URL == "" {
			return nil, fmt.Errorf("%w: source needs a name and a url", ErrInvalidInput)
		}
		switch sc.Type {
		case SourceRSS:
			conns = append(conns, connector.NewRSS(sc.Name, sc.URL, svc.fetcher, svc.logger))
		case SourceSearchAPI:
			conns = append(conns, connector.NewSearchAPI(sc.Name, sc.URL, sc.API, svc.fetcher, svc.logger))
		default:
			return nil, fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, sc.Type)
		}
	}
	return conns, nil
}

// Close shuts down the service. The database handle is left open for the
// caller to close.
func (svc *Service) Close() error {
	svc.logger.Info("veille: closed")
	return nil
}

// SourceNames returns the configured connector names in declaration order.
func (svc *Service) SourceNames() []string {
	out := make([]string, len(svc.sources))
	copy(out, svc.sources)
	return out
}

// CollectAll runs one full collection pass across all configured sources and
// records the day's performance metrics. A metrics write failure is logged
// and never fails the run.
func (svc *Service) CollectAll(ctx context.Context) (*Run, error) {
	run, err := svc.collector.CollectAll(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := svc.RecordMetrics(ctx, run); err != nil {
		svc.logger.Warn("veille: metrics write failed", "error", err)
	}
	return run, nil
}

// Analyze returns the analysis payload for item, served from the cache when a
// valid entry no older than maxAge exists, and computed (then cached)
// otherwise. Computation errors propagate uncached.
func (svc *Service) Analyze(ctx context.Context, item Item, compute AnalyzeFunc, maxAge time.Duration) (*AnalysisResult, error) {
	return svc.cache.GetOrCompute(ctx, item, compute, maxAge)
}

// RecordMetrics upserts today's performance_metrics row from a finished run
// plus the current cache statistics. Reruns on the same date overwrite the
// earlier values.
func (svc *Service) RecordMetrics(ctx context.Context, run *Run) (*MetricsRecord, error) {
	rec := &MetricsRecord{
		CollectionTimeMs: run.Elapsed.Milliseconds(),
		TotalTimeMs:      run.Elapsed.Milliseconds(),
		Collected:        len(run.Items),
	}

	dups := run.NearDuplicates
	for _, n := range run.DuplicatesByType {
		dups += n
	}
	if run.FilteredCount > 0 {
		rec.DuplicationRate = float64(dups) / float64(run.FilteredCount)
	}

	cs, err := svc.store.CacheStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("cache statistics: %w", err)
	}
	rec.Analyzed = cs.TotalEntries
	rec.CacheHitRate = cs.CacheEfficiency

	id, err := svc.store.UpsertMetrics(ctx, rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id
	return rec, nil
}

// RunHistory returns the most recent persisted collection runs, newest first.
func (svc *Service) RunHistory(ctx context.Context, limit int) ([]*RunRecord, error) {
	return svc.store.RunHistory(ctx, limit)
}

// Stats summarizes the store contents.
func (svc *Service) Stats(ctx context.Context) (*Stats, error) {
	return svc.store.GetStats(ctx)
}

// DuplicateStats returns rolling duplication rates over the last days of
// collected items.
func (svc *Service) DuplicateStats(ctx context.Context, days int) (*DuplicateStats, error) {
	return svc.store.DuplicateStats(ctx, days)
}

// CacheStats returns aggregate counters over the analysis cache.
func (svc *Service) CacheStats(ctx context.Context) (*CacheStats, error) {
	return svc.store.CacheStatistics(ctx)
}

// PerformanceHistory returns up to days of performance_metrics rows, newest
// first.
func (svc *Service) PerformanceHistory(ctx context.Context, days int) ([]*MetricsRecord, error) {
	return svc.store.MetricsHistory(ctx, days)
}

// CleanupExpired removes analysis cache entries that are expired, barely
// used, and untouched for longer than retention. Returns the removed count.
func (svc *Service) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	return svc.cache.CleanupExpired(ctx, retention)
}

// ApplySchema creates or migrates the veille schema on db. Idempotent.
func ApplySchema(db *sql.DB) error {
	return store.ApplySchema(db)
}
