// CLAUDE:SUMMARY All store data types: ContentItem, Verdict, CacheEntry, MetricsRecord, RunRecord, stats.
package store

// MatchType classifies how an incoming item matched the dedup index.
type MatchType string

const (
	MatchNone    MatchType = "none"
	MatchURL     MatchType = "url"
	MatchContent MatchType = "content"
	MatchTitle   MatchType = "title"
)

// Similarity scores assigned per match type. Fixed: an exact URL match is
// certain, an exact content match nearly so, an exact normalized-title match
// is a strong signal.
const (
	ScoreURL     = 1.0
	ScoreContent = 0.95
	ScoreTitle   = 0.8
)

// ContentItem is one persisted dedup record. Rows are written once and never
// mutated or deleted.
type ContentItem struct {
	ID          string `json:"id"`
	URLHash     string `json:"url_hash"`
	ContentHash string `json:"content_hash"`
	TitleKey    string `json:"title_key"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	Excerpt     string `json:"excerpt"`
	Author      string `json:"author"`
	TagsJSON    string `json:"tags_json"`
	WordCount   int    `json:"word_count"`
	PublishedAt *int64 `json:"published_at,omitempty"` // epoch ms, nil when undated
	CollectedAt int64  `json:"collected_at"`           // epoch ms
}

// Verdict is the transient result of a dedup lookup. Not persisted.
type Verdict struct {
	IsDuplicate     bool      `json:"is_duplicate"`
	MatchedRecordID string    `json:"matched_record_id,omitempty"`
	MatchType       MatchType `json:"match_type"`
	SimilarityScore float64   `json:"similarity_score"`
}

// CacheEntry is one analysis-cache row keyed by content hash.
type CacheEntry struct {
	ID          string `json:"id"`
	ContentHash string `json:"content_hash"`
	Payload     string `json:"payload"`
	CreatedAt   int64  `json:"created_at"`
	LastUsedAt  int64  `json:"last_used_at"`
	UseCount    int64  `json:"use_count"`
	ExpiresAt   int64  `json:"expires_at"`
	IsValid     bool   `json:"is_valid"`
}

// MetricsRecord is one performance_metrics row, keyed by calendar date.
type MetricsRecord struct {
	ID               string  `json:"id"`
	Date             string  `json:"date"` // YYYY-MM-DD
	CollectionTimeMs int64   `json:"collection_time_ms"`
	AnalysisTimeMs   int64   `json:"analysis_time_ms"`
	SynthesisTimeMs  int64   `json:"synthesis_time_ms"`
	TotalTimeMs      int64   `json:"total_time_ms"`
	Collected        int     `json:"collected"`
	Analyzed         int     `json:"analyzed"`
	InDigest         int     `json:"in_digest"`
	CacheHitRate     float64 `json:"cache_hit_rate"`
	DuplicationRate  float64 `json:"duplication_rate"`
	AvgQualityScore  float64 `json:"avg_quality_score"`
	RecordedAt       int64   `json:"recorded_at"`
}

// RunRecord is one collection_log row summarizing a collection run.
type RunRecord struct {
	ID             string `json:"id"`
	StartedAt      int64  `json:"started_at"`
	DurationMs     int64  `json:"duration_ms"`
	RequestedLimit int    `json:"requested_limit"`
	RawCount       int    `json:"raw_count"`
	FilteredCount  int    `json:"filtered_count"`
	UniqueCount    int    `json:"unique_count"`
	FinalCount     int    `json:"final_count"`
	DupURL         int    `json:"dup_url"`
	DupContent     int    `json:"dup_content"`
	DupTitle       int    `json:"dup_title"`
	DupNear        int    `json:"dup_near"`
	SourcesJSON    string `json:"sources_json"`
	ErrorsJSON     string `json:"errors_json"`
}

// CacheStats holds aggregate counters over the analysis cache.
type CacheStats struct {
	TotalEntries    int     `json:"total_entries"`
	ValidEntries    int     `json:"valid_entries"`
	ExpiredValid    int     `json:"expired_valid"`
	TotalUses       int64   `json:"total_uses"`
	AvgUseCount     float64 `json:"avg_use_count"`
	CacheEfficiency float64 `json:"cache_efficiency"` // reuse fraction: (uses - entries) / uses
}

// DuplicateStats holds rolling duplication counters over a recent window.
type DuplicateStats struct {
	WindowDays     int     `json:"window_days"`
	TotalItems     int     `json:"total_items"`
	UniqueURLs     int     `json:"unique_urls"`
	UniqueContent  int     `json:"unique_content"`
	UniqueTitles   int     `json:"unique_titles"`
	ContentDupRate float64 `json:"content_dup_rate"`
	TitleDupRate   float64 `json:"title_dup_rate"`
}

// Stats holds aggregate counters for the whole store.
type Stats struct {
	Items        int `json:"items"`
	CacheEntries int `json:"cache_entries"`
	Runs         int `json:"runs"`
	MetricsDays  int `json:"metrics_days"`
}
