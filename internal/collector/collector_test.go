package collector

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/veille/internal/connector"
	"github.com/hazyhaar/veille/internal/store"
)

// fakeSource is a scripted connector for orchestrator tests.
type fakeSource struct {
	name      string
	items     []connector.Item
	err       error
	available bool
}

func (f *fakeSource) Name() string                      { return f.name }
func (f *fakeSource) IsAvailable(context.Context) bool  { return f.available }
func (f *fakeSource) Collect(_ context.Context, limit int) ([]connector.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.items) > limit {
		return f.items[:limit], nil
	}
	return f.items, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := store.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return store.NewStore(db)
}

func datedItem(source, title, url string, age time.Duration) connector.Item {
	ts := time.Now().UTC().Add(-age)
	return connector.Item{
		Title:     title,
		URL:       url,
		Source:    source,
		Body:      "body for " + title,
		Published: &ts,
	}
}

func TestCollectAll_HappyPath(t *testing.T) {
	// WHAT: Two healthy sources produce a merged, sorted, deduped run.
	// WHY: The end-to-end orchestration path.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "alpha", available: true, items: []connector.Item{
			datedItem("alpha", "Older Story About Databases", "https://a/1", 48*time.Hour),
		}},
		&fakeSource{name: "beta", available: true, items: []connector.Item{
			datedItem("beta", "Newer Story About Compilers", "https://b/1", time.Hour),
		}},
	}

	c := New(st, conns, Config{}, nil)
	run, err := c.CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Errors) != 0 {
		t.Errorf("errors: %v", run.Errors)
	}
	if run.RawCount != 2 || len(run.Items) != 2 {
		t.Fatalf("counts: raw=%d final=%d", run.RawCount, len(run.Items))
	}
	// Newest first.
	if run.Items[0].Source != "beta" {
		t.Errorf("sort order: first item from %s", run.Items[0].Source)
	}
	if run.SourceStats["alpha"].Raw != 1 || run.SourceStats["alpha"].Final != 1 {
		t.Errorf("alpha stats: %+v", run.SourceStats["alpha"])
	}
	if run.SourceStats["alpha"].Retention != 1.0 {
		t.Errorf("retention: %f", run.SourceStats["alpha"].Retention)
	}
}

func TestCollectAll_UnavailableSkipped(t *testing.T) {
	// WHAT: An unavailable source is skipped without an error entry.
	// WHY: Probe failures are routine, not run failures.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "down", available: false, items: []connector.Item{
			datedItem("down", "Should Never Appear Anywhere", "https://d/1", time.Hour),
		}},
		&fakeSource{name: "up", available: true, items: []connector.Item{
			datedItem("up", "The Only Collected Item", "https://u/1", time.Hour),
		}},
	}

	run, err := New(st, conns, Config{}, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Items) != 1 || run.Items[0].Source != "up" {
		t.Errorf("items: %+v", run.Items)
	}
	if len(run.Errors) != 0 {
		t.Errorf("skip is not an error: %v", run.Errors)
	}
	if _, ok := run.SourceStats["down"]; ok {
		t.Error("skipped source should have no stats slot")
	}
}

func TestCollectAll_ZeroSources(t *testing.T) {
	// WHAT: No available sources returns a completed empty run.
	// WHY: Fatal-only-when-nothing-to-do; the caller still gets a Run.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "a", available: false},
		&fakeSource{name: "b", available: false},
	}

	run, err := New(st, conns, Config{}, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Items) != 0 {
		t.Errorf("items: %d", len(run.Items))
	}
	if len(run.Errors) == 0 {
		t.Error("zero sources should populate the error list")
	}

	// The run is still logged.
	runs, err := st.RunHistory(context.Background(), 5)
	if err != nil || len(runs) != 1 {
		t.Errorf("run log: %d rows, err=%v", len(runs), err)
	}
}

func TestCollectAll_PartialFailure(t *testing.T) {
	// WHAT: One failing source of N still yields the others' items plus an error.
	// WHY: Partial-failure isolation is the point of the fan-out design.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "good", available: true, items: []connector.Item{
			datedItem("good", "A Perfectly Good Article", "https://g/1", time.Hour),
		}},
		&fakeSource{name: "bad", available: true, err: errors.New("connection reset")},
	}

	run, err := New(st, conns, Config{}, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Items) != 1 {
		t.Errorf("items: %d, want 1", len(run.Items))
	}
	if len(run.Errors) != 1 {
		t.Fatalf("errors: %v", run.Errors)
	}
}

func TestCollectAll_Filtering(t *testing.T) {
	// WHAT: Age, title length, and empty-URL checks drop items; undated pass.
	// WHY: The minimal quality bar and age window of the filter phase.
	st := newTestStore(t)
	undated := connector.Item{Title: "Undated But Otherwise Fine", URL: "https://u/undated", Source: "src", Body: "text"}
	conns := []connector.Connector{
		&fakeSource{name: "src", available: true, items: []connector.Item{
			datedItem("src", "Recent Enough To Survive", "https://u/ok", 24*time.Hour),
			datedItem("src", "Far Too Old To Keep Around", "https://u/old", 30*24*time.Hour),
			datedItem("src", "short", "https://u/short", time.Hour),       // title under the bar
			datedItem("src", "Missing A URL Entirely Here", "", time.Hour), // no URL
			undated,
		}},
	}

	run, err := New(st, conns, Config{MaxAgeDays: 7}, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if run.RawCount != 5 {
		t.Errorf("raw: %d", run.RawCount)
	}
	if run.FilteredCount != 2 {
		t.Fatalf("filtered: %d, want 2", run.FilteredCount)
	}
	// Dated item first, undated last.
	if run.Items[0].URL != "https://u/ok" || run.Items[1].URL != "https://u/undated" {
		t.Errorf("order: %q then %q", run.Items[0].URL, run.Items[1].URL)
	}
}

func TestCollectAll_KeywordFilter(t *testing.T) {
	// WHAT: With keywords configured, non-matching items are dropped.
	// WHY: Keyword filters narrow broad feeds to the watched topics.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "src", available: true, items: []connector.Item{
			datedItem("src", "Advances In Rust Tooling", "https://k/1", time.Hour),
			datedItem("src", "Gardening Tips For August", "https://k/2", time.Hour),
		}},
	}

	cfg := Config{Keywords: []string{"rust"}}
	run, err := New(st, conns, cfg, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Items) != 1 || run.Items[0].URL != "https://k/1" {
		t.Errorf("items: %+v", run.Items)
	}
}

func TestCollectAll_PersistentDedup(t *testing.T) {
	// WHAT: A second run over the same feed flags everything as duplicate.
	// WHY: The persisted index survives across runs.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "src", available: true, items: []connector.Item{
			datedItem("src", "A Story We Will See Twice", "https://p/1", time.Hour),
		}},
	}
	c := New(st, conns, Config{}, nil)

	first, err := c.CollectAll(context.Background())
	if err != nil || len(first.Items) != 1 {
		t.Fatalf("first run: items=%d err=%v", len(first.Items), err)
	}

	second, err := c.CollectAll(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.Items) != 0 {
		t.Errorf("second run items: %d, want 0", len(second.Items))
	}
	if second.DuplicatesByType[store.MatchURL] != 1 {
		t.Errorf("url dups: %+v", second.DuplicatesByType)
	}
}

func TestCollectAll_DedupDisabled(t *testing.T) {
	// WHAT: With DisableDedup set, repeated items pass straight through.
	// WHY: The switch bypasses both dedup passes.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "src", available: true, items: []connector.Item{
			datedItem("src", "Exactly The Same Headline", "https://d/1", time.Hour),
			datedItem("src", "Exactly The Same Headline", "https://d/2", time.Hour),
		}},
	}

	run, err := New(st, conns, Config{DisableDedup: true}, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Items) != 2 {
		t.Errorf("items: %d, want 2", len(run.Items))
	}
}

func TestCollectAll_DedupOnByDefault(t *testing.T) {
	// WHAT: A zero-value Config deduplicates: the same URL delivered twice in
	// one run yields one item and one url-match duplicate.
	// WHY: Deduplication is the engine's core function; an unset flag must not
	// silently turn it off.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "src", available: true, items: []connector.Item{
			datedItem("src", "A Headline Served Twice Over", "https://z/1", time.Hour),
			datedItem("src", "A Headline Served Twice Over", "https://z/1", 2*time.Hour),
		}},
	}

	run, err := New(st, conns, Config{}, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Items) != 1 {
		t.Errorf("items: %d, want 1", len(run.Items))
	}
	if run.DuplicatesByType[store.MatchURL] != 1 {
		t.Errorf("url dups: %+v", run.DuplicatesByType)
	}
}

func TestCollectAll_NearDuplicateThreshold(t *testing.T) {
	// WHAT: Title Jaccard similarity against the threshold decides near-dups:
	// flagged at 0.7, passed at 0.95.
	// WHY: The threshold is caller-supplied, not hard-coded.
	titles := []connector.Item{
		datedItem("src", "Intro to Caching Systems", "https://x/1", time.Hour),
		datedItem("src", "Intro to Caching Systems – Updated", "https://x/2", 2*time.Hour),
	}

	for _, tc := range []struct {
		threshold float64
		wantFinal int
		wantNear  int
	}{
		{0.7, 1, 1},
		{0.95, 2, 0},
	} {
		st := newTestStore(t)
		conns := []connector.Connector{&fakeSource{name: "src", available: true, items: titles}}
		cfg := Config{SimilarityThreshold: tc.threshold, MinTitleLength: 5}

		run, err := New(st, conns, cfg, nil).CollectAll(context.Background())
		if err != nil {
			t.Fatalf("threshold %.2f: %v", tc.threshold, err)
		}
		if len(run.Items) != tc.wantFinal {
			t.Errorf("threshold %.2f: items=%d, want %d", tc.threshold, len(run.Items), tc.wantFinal)
		}
		if run.NearDuplicates != tc.wantNear {
			t.Errorf("threshold %.2f: near=%d, want %d", tc.threshold, run.NearDuplicates, tc.wantNear)
		}
		// First seen wins.
		if tc.wantFinal == 1 && run.Items[0].URL != "https://x/1" {
			t.Errorf("threshold %.2f: survivor %q, want first-seen", tc.threshold, run.Items[0].URL)
		}
	}
}

func TestCollectAll_Truncation(t *testing.T) {
	// WHAT: The run is capped at TotalLimit after sorting.
	// WHY: Truncation must keep the newest items, not arbitrary ones.
	st := newTestStore(t)
	items := []connector.Item{
		datedItem("src", "The Oldest Of The Three", "https://t/1", 72*time.Hour),
		datedItem("src", "The Newest Of The Three", "https://t/2", time.Hour),
		datedItem("src", "The Middle Of The Three", "https://t/3", 24*time.Hour),
	}
	conns := []connector.Connector{&fakeSource{name: "src", available: true, items: items}}

	cfg := Config{TotalLimit: 2, MaxAgeDays: 30}
	run, err := New(st, conns, cfg, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Items) != 2 {
		t.Fatalf("items: %d, want 2", len(run.Items))
	}
	if run.Items[0].URL != "https://t/2" || run.Items[1].URL != "https://t/3" {
		t.Errorf("kept: %q, %q", run.Items[0].URL, run.Items[1].URL)
	}
}

func TestCollectAll_RunPersisted(t *testing.T) {
	// WHAT: Every run writes one collection_log row with the phase counts.
	// WHY: Run history is the operational record of the engine.
	st := newTestStore(t)
	conns := []connector.Connector{
		&fakeSource{name: "src", available: true, items: []connector.Item{
			datedItem("src", "A Single Logged Article", "https://l/1", time.Hour),
		}},
	}

	if _, err := New(st, conns, Config{}, nil).CollectAll(context.Background()); err != nil {
		t.Fatalf("collect: %v", err)
	}

	runs, err := st.RunHistory(context.Background(), 5)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("rows: %d", len(runs))
	}
	if runs[0].RawCount != 1 || runs[0].FinalCount != 1 {
		t.Errorf("counts: %+v", runs[0])
	}
	if runs[0].SourcesJSON == "{}" {
		t.Error("source stats not serialized")
	}
}

func TestJaccard(t *testing.T) {
	// WHAT: Token-set Jaccard similarity edge cases.
	// WHY: The near-dup pass depends on exact set arithmetic.
	set := func(words ...string) map[string]struct{} {
		m := make(map[string]struct{})
		for _, w := range words {
			m[w] = struct{}{}
		}
		return m
	}
	if got := jaccard(set("a", "b"), set("a", "b")); got != 1 {
		t.Errorf("identical: %f", got)
	}
	if got := jaccard(set("a", "b"), set("c", "d")); got != 0 {
		t.Errorf("disjoint: %f", got)
	}
	if got := jaccard(set("a", "b", "c", "d"), set("a", "b", "c", "d", "e")); got != 0.8 {
		t.Errorf("4-of-5: %f", got)
	}
	if got := jaccard(set(), set()); got != 0 {
		t.Errorf("both empty: %f", got)
	}
	if got := jaccard(set("a"), set()); got != 0 {
		t.Errorf("one empty: %f", got)
	}
}

func TestCollectAll_SymbolTitlesNotNearDuplicates(t *testing.T) {
	// WHAT: Titles that normalize to zero tokens do not near-dup each other.
	// WHY: Empty token sets have no overlap to measure; treating them as
	// identical would collapse unrelated symbol-heavy headlines.
	st := newTestStore(t)
	ts1 := time.Now().UTC().Add(-time.Hour)
	ts2 := time.Now().UTC().Add(-2 * time.Hour)
	conns := []connector.Connector{
		&fakeSource{name: "src", available: true, items: []connector.Item{
			{Title: "$$$ ??? !!! ///", URL: "https://s/1", Source: "src", Body: "markets rally", Published: &ts1},
			{Title: "+++ ### %%% &&&", URL: "https://s/2", Source: "src", Body: "storms forecast", Published: &ts2},
		}},
	}

	run, err := New(st, conns, Config{MinTitleLength: 5}, nil).CollectAll(context.Background())
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(run.Items) != 2 {
		t.Errorf("items: %d, want 2", len(run.Items))
	}
	if run.NearDuplicates != 0 {
		t.Errorf("near dups: %d, want 0", run.NearDuplicates)
	}
}
