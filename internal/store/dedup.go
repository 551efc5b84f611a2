// CLAUDE:SUMMARY Dedup index: CheckDuplicate lookup chain, idempotent RecordIfNew, rolling DuplicateStats.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/veille/internal/idgen"
)

var itemID = idgen.Prefixed("itm_", idgen.UUIDv7())

// CheckDuplicate classifies an incoming fingerprint against the index.
// Lookup order: exact url_hash, then exact content_hash, then exact
// title_key. The first match wins and sets the verdict's similarity score.
// An empty content hash or title key skips that lookup entirely.
func (s *Store) CheckDuplicate(ctx context.Context, urlHash, contentHash, titleKey string) (*Verdict, error) {
	if id, err := s.findBy(ctx, "url_hash", urlHash); err != nil {
		return nil, err
	} else if id != "" {
		return &Verdict{IsDuplicate: true, MatchedRecordID: id, MatchType: MatchURL, SimilarityScore: ScoreURL}, nil
	}

	if contentHash != "" {
		if id, err := s.findBy(ctx, "content_hash", contentHash); err != nil {
			return nil, err
		} else if id != "" {
			return &Verdict{IsDuplicate: true, MatchedRecordID: id, MatchType: MatchContent, SimilarityScore: ScoreContent}, nil
		}
	}

	if titleKey != "" {
		if id, err := s.findBy(ctx, "title_key", titleKey); err != nil {
			return nil, err
		} else if id != "" {
			return &Verdict{IsDuplicate: true, MatchedRecordID: id, MatchType: MatchTitle, SimilarityScore: ScoreTitle}, nil
		}
	}

	return &Verdict{MatchType: MatchNone}, nil
}

func (s *Store) findBy(ctx context.Context, column, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	var id string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id FROM content_items WHERE `+column+` = ? LIMIT 1`, value).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dedup lookup %s: %w", column, err)
	}
	return id, nil
}

// RecordIfNew re-checks duplication and inserts a dedup record when the item
// is new. Returns the record id, whether a new row was created, and the
// verdict that was reached. Insert races on url_hash resolve to the existing
// row's id rather than an error.
func (s *Store) RecordIfNew(ctx context.Context, item *ContentItem) (string, bool, *Verdict, error) {
	verdict, err := s.CheckDuplicate(ctx, item.URLHash, item.ContentHash, item.TitleKey)
	if err != nil {
		return "", false, nil, err
	}
	if verdict.IsDuplicate {
		return verdict.MatchedRecordID, false, verdict, nil
	}

	if item.ID == "" {
		item.ID = itemID()
	}
	if item.CollectedAt == 0 {
		item.CollectedAt = time.Now().UnixMilli()
	}
	if item.TagsJSON == "" {
		item.TagsJSON = "[]"
	}

	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO content_items (id, url_hash, content_hash, title_key, title, url,
		source, excerpt, author, tags_json, word_count, published_at, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url_hash) DO NOTHING`,
		item.ID, item.URLHash, item.ContentHash, item.TitleKey, item.Title, item.URL,
		item.Source, item.Excerpt, item.Author, item.TagsJSON, item.WordCount,
		item.PublishedAt, item.CollectedAt,
	)
	if err != nil {
		return "", false, nil, fmt.Errorf("insert item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, nil, err
	}
	if affected == 0 {
		// Lost an insert race: another writer recorded the same URL between
		// our check and our insert. Resolve to the winner's id.
		existing, err := s.findBy(ctx, "url_hash", item.URLHash)
		if err != nil {
			return "", false, nil, err
		}
		v := &Verdict{IsDuplicate: true, MatchedRecordID: existing, MatchType: MatchURL, SimilarityScore: ScoreURL}
		return existing, false, v, nil
	}

	return item.ID, true, verdict, nil
}

// GetItem retrieves one dedup record by id.
func (s *Store) GetItem(ctx context.Context, id string) (*ContentItem, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, url_hash, content_hash, title_key, title, url, source, excerpt,
		author, tags_json, word_count, published_at, collected_at
		FROM content_items WHERE id = ?`, id)

	var it ContentItem
	err := row.Scan(
		&it.ID, &it.URLHash, &it.ContentHash, &it.TitleKey, &it.Title, &it.URL,
		&it.Source, &it.Excerpt, &it.Author, &it.TagsJSON, &it.WordCount,
		&it.PublishedAt, &it.CollectedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	return &it, nil
}

// CountItems returns the total number of dedup records.
func (s *Store) CountItems(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items`).Scan(&count)
	return count, err
}

// DuplicateStats computes rolling duplication rates over items collected in
// the last `days` days. A content duplication rate of 0.1 means one in ten
// recently collected items shared body text with another.
func (s *Store) DuplicateStats(ctx context.Context, days int) (*DuplicateStats, error) {
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()

	var st DuplicateStats
	st.WindowDays = days
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COUNT(DISTINCT url_hash),
		        COUNT(DISTINCT CASE WHEN content_hash != '' THEN content_hash END),
		        COUNT(DISTINCT CASE WHEN title_key != '' THEN title_key END)
		 FROM content_items WHERE collected_at >= ?`, cutoff).
		Scan(&st.TotalItems, &st.UniqueURLs, &st.UniqueContent, &st.UniqueTitles)
	if err != nil {
		return nil, fmt.Errorf("duplicate stats: %w", err)
	}

	if st.TotalItems > 0 {
		st.ContentDupRate = float64(st.TotalItems-st.UniqueContent) / float64(st.TotalItems)
		st.TitleDupRate = float64(st.TotalItems-st.UniqueTitles) / float64(st.TotalItems)
	}
	return &st, nil
}
