// CLAUDE:SUMMARY Collection run log: insert one summary row per run, read back recent history.
package store

import (
	"context"
	"fmt"

	"github.com/hazyhaar/veille/internal/idgen"
)

var runID = idgen.Prefixed("run_", idgen.UUIDv7())

// InsertRun persists one collection run summary.
func (s *Store) InsertRun(ctx context.Context, r *RunRecord) error {
	if r.ID == "" {
		r.ID = runID()
	}
	if r.SourcesJSON == "" {
		r.SourcesJSON = "{}"
	}
	if r.ErrorsJSON == "" {
		r.ErrorsJSON = "[]"
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO collection_log (id, started_at, duration_ms, requested_limit,
		 raw_count, filtered_count, unique_count, final_count,
		 dup_url, dup_content, dup_title, dup_near, sources_json, errors_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt, r.DurationMs, r.RequestedLimit,
		r.RawCount, r.FilteredCount, r.UniqueCount, r.FinalCount,
		r.DupURL, r.DupContent, r.DupTitle, r.DupNear, r.SourcesJSON, r.ErrorsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunHistory returns the most recent runs, newest first.
func (s *Store) RunHistory(ctx context.Context, limit int) ([]*RunRecord, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, requested_limit,
		 raw_count, filtered_count, unique_count, final_count,
		 dup_url, dup_content, dup_title, dup_near, sources_json, errors_json
		 FROM collection_log ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.DurationMs, &r.RequestedLimit,
			&r.RawCount, &r.FilteredCount, &r.UniqueCount, &r.FinalCount,
			&r.DupURL, &r.DupContent, &r.DupTitle, &r.DupNear,
			&r.SourcesJSON, &r.ErrorsJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
