package store

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA foreign_keys=ON")
	if err := ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplySchema(t *testing.T) {
	// WHAT: Verify schema creates all tables without error.
	// WHY: Schema is the foundation — if it fails, nothing works.
	db := openTestDB(t)
	for _, table := range []string{"content_items", "analysis_cache", "performance_metrics", "collection_log"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestApplySchema_Idempotent(t *testing.T) {
	// WHAT: Applying the schema twice is a no-op.
	// WHY: Every startup applies the schema against an existing database.
	db := openTestDB(t)
	if err := ApplySchema(db); err != nil {
		t.Fatalf("second apply: %v", err)
	}
	// Column migration must also be idempotent.
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('content_items') WHERE name = 'word_count'`).Scan(&count)
	if err != nil || count != 1 {
		t.Errorf("word_count column count = %d (err=%v), want 1", count, err)
	}
}

func TestGetStats(t *testing.T) {
	// WHAT: Aggregate counters reflect inserted rows.
	// WHY: The admin surface reports these counts.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	if _, _, _, err := s.RecordIfNew(ctx, &ContentItem{URLHash: "u1", Title: "A", URL: "https://a"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := s.PutCacheEntry(ctx, "c1", `{}`, 1000); err != nil {
		t.Fatalf("put cache: %v", err)
	}
	if err := s.InsertRun(ctx, &RunRecord{StartedAt: 1}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if _, err := s.UpsertMetrics(ctx, &MetricsRecord{Date: "2026-08-30"}); err != nil {
		t.Fatalf("upsert metrics: %v", err)
	}

	st, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Items != 1 || st.CacheEntries != 1 || st.Runs != 1 || st.MetricsDays != 1 {
		t.Errorf("stats: %+v, want all ones", st)
	}
}

func TestUpsertMetrics_SameDayOverwrites(t *testing.T) {
	// WHAT: Two upserts for the same date leave one row, with the later values.
	// WHY: One metrics record per calendar day; reruns overwrite.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	id1, err := s.UpsertMetrics(ctx, &MetricsRecord{Date: "2026-08-31", Collected: 10})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	id2, err := s.UpsertMetrics(ctx, &MetricsRecord{Date: "2026-08-31", Collected: 25, CacheHitRate: 0.5})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Errorf("same-day rerun changed row id: %q vs %q", id1, id2)
	}

	hist, err := s.MetricsHistory(ctx, 7)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("history rows: got %d, want 1", len(hist))
	}
	if hist[0].Collected != 25 || hist[0].CacheHitRate != 0.5 {
		t.Errorf("row not overwritten: %+v", hist[0])
	}
}

func TestMetricsHistory_NewestFirst(t *testing.T) {
	// WHAT: History is ordered by date descending and bounded by the limit.
	// WHY: Callers ask for "the last N days".
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	for _, d := range []string{"2026-08-28", "2026-08-30", "2026-08-29"} {
		if _, err := s.UpsertMetrics(ctx, &MetricsRecord{Date: d}); err != nil {
			t.Fatalf("upsert %s: %v", d, err)
		}
	}

	hist, err := s.MetricsHistory(ctx, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("rows: got %d, want 2", len(hist))
	}
	if hist[0].Date != "2026-08-30" || hist[1].Date != "2026-08-29" {
		t.Errorf("order: got %s, %s", hist[0].Date, hist[1].Date)
	}
}

func TestRunLog(t *testing.T) {
	// WHAT: Insert run summaries and read them back newest first.
	// WHY: Run history feeds the admin surface.
	db := openTestDB(t)
	s := NewStore(db)
	ctx := context.Background()

	for i, started := range []int64{100, 300, 200} {
		r := &RunRecord{StartedAt: started, FinalCount: i}
		if err := s.InsertRun(ctx, r); err != nil {
			t.Fatalf("insert run: %v", err)
		}
		if r.ID == "" {
			t.Fatal("run id not assigned")
		}
	}

	runs, err := s.RunHistory(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("rows: got %d, want 3", len(runs))
	}
	if runs[0].StartedAt != 300 {
		t.Errorf("newest first: got started_at %d", runs[0].StartedAt)
	}
	if runs[0].SourcesJSON != "{}" || runs[0].ErrorsJSON != "[]" {
		t.Errorf("json defaults: %q %q", runs[0].SourcesJSON, runs[0].ErrorsJSON)
	}
}
