package sqlstore

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// UpsertContent writes the extraction result for a bookmark.
func (q *Queries) UpsertContent(ctx context.Context, c *domain.BookmarkContent) error {
	_, err := q.exec(ctx, `INSERT INTO bookmark_contents
		(bookmark_id, extracted_text, extracted_at, content_hash, fetch_status, fetch_error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (bookmark_id) DO UPDATE SET
			extracted_text = excluded.extracted_text,
			extracted_at = excluded.extracted_at,
			content_hash = excluded.content_hash,
			fetch_status = excluded.fetch_status,
			fetch_error = excluded.fetch_error`,
		c.BookmarkID, c.ExtractedText, c.ExtractedAt, c.ContentHash, c.FetchStatus, c.FetchError)
	if err != nil {
		return fmt.Errorf("upsert content for bookmark %d: %w", c.BookmarkID, err)
	}
	return nil
}

// GetContent loads the stored extraction result of a bookmark.
func (q *Queries) GetContent(ctx context.Context, bookmarkID int64) (*domain.BookmarkContent, error) {
	var c domain.BookmarkContent
	if err := q.get(ctx, &c, `SELECT bookmark_id, extracted_text, extracted_at, content_hash, fetch_status, fetch_error
		FROM bookmark_contents WHERE bookmark_id = ?`, bookmarkID); err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertLinkCheck appends a liveness observation.
func (q *Queries) InsertLinkCheck(ctx context.Context, lc *domain.LinkCheck) error {
	id, err := q.insert(ctx, `INSERT INTO link_checks
		(bookmark_id, checked_at, status_code, final_url, result_type, latency_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lc.BookmarkID, lc.CheckedAt, lc.StatusCode, lc.FinalURL, lc.ResultType, lc.LatencyMS, lc.Error)
	if err != nil {
		return fmt.Errorf("insert link check: %w", err)
	}
	lc.ID = id
	return nil
}

// LinkChecks lists the checks of a bookmark, newest first.
func (q *Queries) LinkChecks(ctx context.Context, bookmarkID int64) ([]domain.LinkCheck, error) {
	var out []domain.LinkCheck
	if err := q.sel(ctx, &out, `SELECT id, bookmark_id, checked_at, status_code, final_url, result_type, latency_ms, error
		FROM link_checks WHERE bookmark_id = ? ORDER BY checked_at DESC, id DESC`, bookmarkID); err != nil {
		return nil, fmt.Errorf("list link checks: %w", err)
	}
	return out, nil
}
