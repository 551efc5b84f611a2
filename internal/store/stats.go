// CLAUDE:SUMMARY Whole-store aggregate counters for the admin surface.
package store

import (
	"context"
	"fmt"
)

// GetStats returns aggregate row counts across all tables.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.DB.QueryRowContext(ctx,
		`SELECT
		  (SELECT COUNT(*) FROM content_items),
		  (SELECT COUNT(*) FROM analysis_cache),
		  (SELECT COUNT(*) FROM collection_log),
		  (SELECT COUNT(*) FROM performance_metrics)`).
		Scan(&st.Items, &st.CacheEntries, &st.Runs, &st.MetricsDays)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}
