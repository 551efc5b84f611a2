// CLAUDE:SUMMARY Public type aliases re-exporting the internal item, run, verdict, and stats types.
package veille

import (
	"github.com/hazyhaar/veille/internal/analysis"
	"github.com/hazyhaar/veille/internal/collector"
	"github.com/hazyhaar/veille/internal/connector"
	"github.com/hazyhaar/veille/internal/store"
)

// Item is one collected content item.
type Item = connector.Item

// Connector is the capability every content source implements.
type Connector = connector.Connector

// Run is the result of one collection invocation.
type Run = collector.Run

// SourceStats holds per-source volume counters for one run.
type SourceStats = collector.SourceStats

// Verdict is the outcome of a duplicate check.
type Verdict = store.Verdict

// MatchType classifies how an item matched the dedup index.
type MatchType = store.MatchType

// Match types, in lookup order. The score constants give the similarity
// attached to each.
const (
	MatchNone    = store.MatchNone
	MatchURL     = store.MatchURL
	MatchContent = store.MatchContent
	MatchTitle   = store.MatchTitle
)

// AnalyzeFunc is the external analysis callback invoked on cache misses.
type AnalyzeFunc = analysis.ComputeFunc

// AnalysisResult is one answer from the analysis cache.
type AnalysisResult = analysis.Result

// Stats summarizes the store contents.
type Stats = store.Stats

// CacheStats holds aggregate counters over the analysis cache.
type CacheStats = store.CacheStats

// DuplicateStats holds rolling duplication rates over the dedup index.
type DuplicateStats = store.DuplicateStats

// MetricsRecord is one performance_metrics row (one per calendar date).
type MetricsRecord = store.MetricsRecord

// RunRecord is one persisted collection run summary.
type RunRecord = store.RunRecord
