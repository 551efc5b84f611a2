// CLAUDE:SUMMARY Per-date performance metrics upsert and historical read-back.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/veille/internal/idgen"
)

var metricsID = idgen.Prefixed("met_", idgen.UUIDv7())

// UpsertMetrics writes one performance_metrics row keyed by calendar date.
// A rerun the same day overwrites the earlier row. Returns the row id.
func (s *Store) UpsertMetrics(ctx context.Context, m *MetricsRecord) (string, error) {
	if m.Date == "" {
		m.Date = time.Now().Format("2006-01-02")
	}
	if m.ID == "" {
		m.ID = metricsID()
	}
	m.RecordedAt = time.Now().UnixMilli()

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO performance_metrics (id, date, collection_time_ms, analysis_time_ms,
		 synthesis_time_ms, total_time_ms, collected, analyzed, in_digest,
		 cache_hit_rate, duplication_rate, avg_quality_score, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
		    collection_time_ms = excluded.collection_time_ms,
		    analysis_time_ms = excluded.analysis_time_ms,
		    synthesis_time_ms = excluded.synthesis_time_ms,
		    total_time_ms = excluded.total_time_ms,
		    collected = excluded.collected,
		    analyzed = excluded.analyzed,
		    in_digest = excluded.in_digest,
		    cache_hit_rate = excluded.cache_hit_rate,
		    duplication_rate = excluded.duplication_rate,
		    avg_quality_score = excluded.avg_quality_score,
		    recorded_at = excluded.recorded_at`,
		m.ID, m.Date, m.CollectionTimeMs, m.AnalysisTimeMs, m.SynthesisTimeMs,
		m.TotalTimeMs, m.Collected, m.Analyzed, m.InDigest,
		m.CacheHitRate, m.DuplicationRate, m.AvgQualityScore, m.RecordedAt,
	)
	if err != nil {
		return "", fmt.Errorf("upsert metrics: %w", err)
	}

	// On a same-day rerun the original row id survives; read it back.
	var id string
	if err := s.DB.QueryRowContext(ctx,
		`SELECT id FROM performance_metrics WHERE date = ?`, m.Date).Scan(&id); err != nil {
		return "", fmt.Errorf("read metrics id: %w", err)
	}
	return id, nil
}

// MetricsHistory returns the most recent `days` daily records, newest first.
func (s *Store) MetricsHistory(ctx context.Context, days int) ([]*MetricsRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, date, collection_time_ms, analysis_time_ms, synthesis_time_ms,
		 total_time_ms, collected, analyzed, in_digest, cache_hit_rate,
		 duplication_rate, avg_quality_score, recorded_at
		 FROM performance_metrics ORDER BY date DESC LIMIT ?`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MetricsRecord
	for rows.Next() {
		var m MetricsRecord
		if err := rows.Scan(&m.ID, &m.Date, &m.CollectionTimeMs, &m.AnalysisTimeMs,
			&m.SynthesisTimeMs, &m.TotalTimeMs, &m.Collected, &m.Analyzed, &m.InDigest,
			&m.CacheHitRate, &m.DuplicationRate, &m.AvgQualityScore, &m.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
