// CLAUDE:SUMMARY Applies the complete ingestion schema: dedup index, analysis cache, metrics, run log.
package store

import "database/sql"

// Schema is the complete ingestion schema. Applied idempotently on startup.
const Schema = `
-- Dedup index: one row per item ever seen. Never updated, never deleted —
-- history is authoritative for future dedup decisions.
CREATE TABLE IF NOT EXISTS content_items (
    id            TEXT PRIMARY KEY,
    url_hash      TEXT NOT NULL UNIQUE,
    content_hash  TEXT NOT NULL DEFAULT '',
    title_key     TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL,
    url           TEXT NOT NULL,
    source        TEXT NOT NULL DEFAULT '',
    excerpt       TEXT NOT NULL DEFAULT '',
    author        TEXT NOT NULL DEFAULT '',
    tags_json     TEXT NOT NULL DEFAULT '[]',
    published_at  INTEGER,
    collected_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_content_items_content_hash ON content_items(content_hash);
CREATE INDEX IF NOT EXISTS idx_content_items_title_key ON content_items(title_key);
CREATE INDEX IF NOT EXISTS idx_content_items_collected ON content_items(collected_at DESC);
CREATE INDEX IF NOT EXISTS idx_content_items_source ON content_items(source);

-- Analysis cache keyed by content hash. Rows are mutated on every hit
-- (use_count, last_used_at) and removed only by the cleanup sweep.
CREATE TABLE IF NOT EXISTS analysis_cache (
    id            TEXT PRIMARY KEY,
    content_hash  TEXT NOT NULL UNIQUE,
    payload       TEXT NOT NULL,
    created_at    INTEGER NOT NULL,
    last_used_at  INTEGER NOT NULL,
    use_count     INTEGER NOT NULL DEFAULT 1,
    expires_at    INTEGER NOT NULL,
    is_valid      INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_analysis_cache_expires ON analysis_cache(expires_at);

-- One metrics row per calendar day; reruns the same day overwrite.
CREATE TABLE IF NOT EXISTS performance_metrics (
    id                 TEXT PRIMARY KEY,
    date               TEXT NOT NULL UNIQUE,
    collection_time_ms INTEGER NOT NULL DEFAULT 0,
    analysis_time_ms   INTEGER NOT NULL DEFAULT 0,
    synthesis_time_ms  INTEGER NOT NULL DEFAULT 0,
    total_time_ms      INTEGER NOT NULL DEFAULT 0,
    collected          INTEGER NOT NULL DEFAULT 0,
    analyzed           INTEGER NOT NULL DEFAULT 0,
    in_digest          INTEGER NOT NULL DEFAULT 0,
    cache_hit_rate     REAL NOT NULL DEFAULT 0,
    duplication_rate   REAL NOT NULL DEFAULT 0,
    avg_quality_score  REAL NOT NULL DEFAULT 0,
    recorded_at        INTEGER NOT NULL
);

-- Run log (observability): one row per collection run.
CREATE TABLE IF NOT EXISTS collection_log (
    id              TEXT PRIMARY KEY,
    started_at      INTEGER NOT NULL,
    duration_ms     INTEGER NOT NULL DEFAULT 0,
    requested_limit INTEGER NOT NULL DEFAULT 0,
    raw_count       INTEGER NOT NULL DEFAULT 0,
    filtered_count  INTEGER NOT NULL DEFAULT 0,
    unique_count    INTEGER NOT NULL DEFAULT 0,
    final_count     INTEGER NOT NULL DEFAULT 0,
    dup_url         INTEGER NOT NULL DEFAULT 0,
    dup_content     INTEGER NOT NULL DEFAULT 0,
    dup_title       INTEGER NOT NULL DEFAULT 0,
    dup_near        INTEGER NOT NULL DEFAULT 0,
    sources_json    TEXT NOT NULL DEFAULT '{}',
    errors_json     TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_collection_log_time ON collection_log(started_at DESC);
`

// Migration001WordCount adds word_count to content_items.
// Safe to run on existing databases (guarded by applyColumnMigration).
const Migration001WordCount = `
ALTER TABLE content_items ADD COLUMN word_count INTEGER NOT NULL DEFAULT 0;
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return err
	}
	applyColumnMigration(db, "content_items", "word_count", Migration001WordCount)
	return nil
}

// applyColumnMigration adds a column if it doesn't exist (idempotent).
func applyColumnMigration(db *sql.DB, table, column, ddl string) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column).Scan(&count)
	if err != nil || count > 0 {
		return
	}
	db.Exec(ddl)
}
