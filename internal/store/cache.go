// CLAUDE:SUMMARY Analysis cache rows: lookup with dual age ceiling, usage bump, invalidation, upsert, cleanup sweep.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/veille/internal/idgen"
)

var cacheID = idgen.Prefixed("che_", idgen.UUIDv7())

// GetCacheEntry returns the entry for a content hash if it is valid, not
// past its TTL, and not older than maxAge (the caller's own ceiling; both
// checks must pass). Returns (nil, nil) on a miss.
//
// The read does not bump usage; callers that accept the payload call
// BumpUsage, and callers that find it corrupted call Invalidate instead.
func (s *Store) GetCacheEntry(ctx context.Context, contentHash string, maxAge time.Duration) (*CacheEntry, error) {
	now := time.Now().UnixMilli()
	minCreatedAt := now - maxAge.Milliseconds()

	row := s.DB.QueryRowContext(ctx,
		`SELECT id, content_hash, payload, created_at, last_used_at, use_count, expires_at, is_valid
		 FROM analysis_cache
		 WHERE content_hash = ? AND is_valid = 1 AND expires_at > ? AND created_at >= ?`,
		contentHash, now, minCreatedAt)

	entry, err := scanCacheEntry(row)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// BumpUsage increments use_count and refreshes last_used_at after a hit.
func (s *Store) BumpUsage(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE analysis_cache SET use_count = use_count + 1, last_used_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
	return err
}

// Invalidate flips is_valid off in place. The row stays for audit; every
// later lookup treats it as a permanent miss.
func (s *Store) Invalidate(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE analysis_cache SET is_valid = 0 WHERE id = ?`, id)
	return err
}

// PutCacheEntry writes a fresh entry for a content hash, replacing any
// previous row for the same hash. The new entry starts at use_count 1 with
// a full TTL horizon and is_valid set.
func (s *Store) PutCacheEntry(ctx context.Context, contentHash, payload string, ttl time.Duration) (*CacheEntry, error) {
	now := time.Now().UnixMilli()
	entry := &CacheEntry{
		ID:          cacheID(),
		ContentHash: contentHash,
		Payload:     payload,
		CreatedAt:   now,
		LastUsedAt:  now,
		UseCount:    1,
		ExpiresAt:   now + ttl.Milliseconds(),
		IsValid:     true,
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO analysis_cache (id, content_hash, payload, created_at, last_used_at, use_count, expires_at, is_valid)
		 VALUES (?, ?, ?, ?, ?, 1, ?, 1)
		 ON CONFLICT(content_hash) DO UPDATE SET
		    id = excluded.id,
		    payload = excluded.payload,
		    created_at = excluded.created_at,
		    last_used_at = excluded.last_used_at,
		    use_count = 1,
		    expires_at = excluded.expires_at,
		    is_valid = 1`,
		entry.ID, entry.ContentHash, entry.Payload, entry.CreatedAt, entry.LastUsedAt, entry.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("put cache entry: %w", err)
	}
	return entry, nil
}

// RawCacheEntry returns the entry for a content hash regardless of validity
// or age. Returns (nil, nil) when absent. Used by tests and diagnostics.
func (s *Store) RawCacheEntry(ctx context.Context, contentHash string) (*CacheEntry, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, content_hash, payload, created_at, last_used_at, use_count, expires_at, is_valid
		 FROM analysis_cache WHERE content_hash = ?`, contentHash)
	return scanCacheEntry(row)
}

// CleanupExpired removes entries that are past their TTL, were used at most
// once, and have not been touched within the retention window. Heavily
// reused entries survive in storage past expiry; they are still never served
// once expired.
func (s *Store) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	now := time.Now().UnixMilli()
	cutoff := now - retention.Milliseconds()

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM analysis_cache
		 WHERE expires_at <= ? AND use_count <= 1 AND last_used_at < ?`,
		now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired: %w", err)
	}
	return res.RowsAffected()
}

// CacheStatistics aggregates cache health counters. Efficiency is the reuse
// fraction: of all recorded uses, how many were served from cache rather
// than computed fresh.
func (s *Store) CacheStatistics(ctx context.Context) (*CacheStats, error) {
	now := time.Now().UnixMilli()

	var st CacheStats
	var totalUses sql.NullInt64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN is_valid = 1 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN is_valid = 1 AND expires_at <= ? THEN 1 ELSE 0 END), 0),
		        SUM(use_count)
		 FROM analysis_cache`, now).
		Scan(&st.TotalEntries, &st.ValidEntries, &st.ExpiredValid, &totalUses)
	if err != nil {
		return nil, fmt.Errorf("cache stats: %w", err)
	}

	st.TotalUses = totalUses.Int64
	if st.TotalEntries > 0 {
		st.AvgUseCount = float64(st.TotalUses) / float64(st.TotalEntries)
	}
	if st.TotalUses > 0 {
		st.CacheEfficiency = float64(st.TotalUses-int64(st.TotalEntries)) / float64(st.TotalUses)
	}
	return &st, nil
}

func scanCacheEntry(row *sql.Row) (*CacheEntry, error) {
	var e CacheEntry
	var valid int
	err := row.Scan(&e.ID, &e.ContentHash, &e.Payload, &e.CreatedAt, &e.LastUsedAt,
		&e.UseCount, &e.ExpiresAt, &valid)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}
	e.IsValid = valid != 0
	return &e, nil
}
