package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

const bookmarkColumns = `id, user_id, folder_id, url, normalized_url, title, notes,
	link_status, last_checked_at, deleted_at, deleted_by, created_at, updated_at`

// lookupChunk bounds the size of IN (...) lists.
const lookupChunk = 400

// GetBookmark loads one bookmark of the user, active or not, with its tags.
func (q *Queries) GetBookmark(ctx context.Context, userID, id int64) (*domain.Bookmark, error) {
	var b domain.Bookmark
	err := q.get(ctx, &b, `SELECT `+bookmarkColumns+` FROM bookmarks WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return nil, err
	}
	if err := q.loadTags(ctx, []*domain.Bookmark{&b}); err != nil {
		return nil, err
	}
	return &b, nil
}

// FindActiveByNormalized returns the oldest active bookmark with the
// normalized URL.
func (q *Queries) FindActiveByNormalized(ctx context.Context, userID int64, normalized string) (*domain.Bookmark, error) {
	var b domain.Bookmark
	err := q.get(ctx, &b, `SELECT `+bookmarkColumns+` FROM bookmarks
		WHERE user_id = ? AND normalized_url = ? AND deleted_at IS NULL
		ORDER BY id LIMIT 1`, userID, normalized)
	if err != nil {
		return nil, err
	}
	if err := q.loadTags(ctx, []*domain.Bookmark{&b}); err != nil {
		return nil, err
	}
	return &b, nil
}

// FindDeletedByNormalized returns the most recently updated soft-deleted
// bookmark with the normalized URL.
func (q *Queries) FindDeletedByNormalized(ctx context.Context, userID int64, normalized string) (*domain.Bookmark, error) {
	var b domain.Bookmark
	err := q.get(ctx, &b, `SELECT `+bookmarkColumns+` FROM bookmarks
		WHERE user_id = ? AND normalized_url = ? AND deleted_at IS NOT NULL
		ORDER BY updated_at DESC, id DESC LIMIT 1`, userID, normalized)
	if err != nil {
		return nil, err
	}
	if err := q.loadTags(ctx, []*domain.Bookmark{&b}); err != nil {
		return nil, err
	}
	return &b, nil
}

// BookmarksByNormalized returns every bookmark (active and deleted) whose
// normalized URL is in the given set. Lookups are chunked.
func (q *Queries) BookmarksByNormalized(ctx context.Context, userID int64, normalized []string) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	for _, chunk := range chunks(normalized, lookupChunk) {
		query, args, err := q.in(`SELECT `+bookmarkColumns+` FROM bookmarks
			WHERE user_id = ? AND normalized_url IN (?)
			ORDER BY updated_at DESC, id DESC`, userID, chunk)
		if err != nil {
			return nil, err
		}
		var rows []domain.Bookmark
		if err := q.sel(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("bookmarks by normalized url: %w", err)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// BookmarksByIDs returns the user's bookmarks with the given ids, any state.
func (q *Queries) BookmarksByIDs(ctx context.Context, userID int64, ids []int64) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	for _, chunk := range chunks(ids, lookupChunk) {
		query, args, err := q.in(`SELECT `+bookmarkColumns+` FROM bookmarks
			WHERE user_id = ? AND id IN (?) ORDER BY id`, userID, chunk)
		if err != nil {
			return nil, err
		}
		var rows []domain.Bookmark
		if err := q.sel(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("bookmarks by id: %w", err)
		}
		out = append(out, rows...)
	}
	if err := q.loadTagsSlice(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveBookmarksByRecency lists active bookmarks, most recently updated first.
func (q *Queries) ActiveBookmarksByRecency(ctx context.Context, userID int64) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	if err := q.sel(ctx, &out, `SELECT `+bookmarkColumns+` FROM bookmarks
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY updated_at DESC, id DESC`, userID); err != nil {
		return nil, fmt.Errorf("active bookmarks: %w", err)
	}
	return out, nil
}

// SnapshotBookmarks lists active bookmarks in creation order, with tags.
func (q *Queries) SnapshotBookmarks(ctx context.Context, userID int64) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	if err := q.sel(ctx, &out, `SELECT `+bookmarkColumns+` FROM bookmarks
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC`, userID); err != nil {
		return nil, fmt.Errorf("snapshot bookmarks: %w", err)
	}
	if err := q.loadTagsSlice(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveNormalizedURLs returns the normalized URL of every active bookmark.
// Duplicates are preserved.
func (q *Queries) ActiveNormalizedURLs(ctx context.Context, userID int64) ([]string, error) {
	var out []string
	if err := q.sel(ctx, &out, `SELECT normalized_url FROM bookmarks
		WHERE user_id = ? AND deleted_at IS NULL ORDER BY id`, userID); err != nil {
		return nil, fmt.Errorf("active normalized urls: %w", err)
	}
	return out, nil
}

// CountActiveBookmarks counts the user's non-deleted bookmarks.
func (q *Queries) CountActiveBookmarks(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM bookmarks WHERE user_id = ? AND deleted_at IS NULL`, userID); err != nil {
		return 0, fmt.Errorf("count bookmarks: %w", err)
	}
	return n, nil
}

// InsertBookmark stores a new bookmark and sets b.ID. Tags are not written.
func (q *Queries) InsertBookmark(ctx context.Context, b *domain.Bookmark) error {
	id, err := q.insert(ctx, `INSERT INTO bookmarks
		(user_id, folder_id, url, normalized_url, title, notes, link_status, last_checked_at,
		 deleted_at, deleted_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.FolderID, b.URL, b.NormalizedURL, b.Title, b.Notes, b.LinkStatus, b.LastCheckedAt,
		b.DeletedAt, b.DeletedBy, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}
	b.ID = id
	return nil
}

// UpdateBookmark writes every mutable column of b. Tags are not written.
func (q *Queries) UpdateBookmark(ctx context.Context, b *domain.Bookmark) error {
	n, err := q.exec(ctx, `UPDATE bookmarks SET
		folder_id = ?, url = ?, normalized_url = ?, title = ?, notes = ?,
		link_status = ?, last_checked_at = ?, deleted_at = ?, deleted_by = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		b.FolderID, b.URL, b.NormalizedURL, b.Title, b.Notes,
		b.LinkStatus, b.LastCheckedAt, b.DeletedAt, b.DeletedBy, b.UpdatedAt,
		b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update bookmark %d: %w", b.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearAllFolderRefs detaches every bookmark of the user, deleted ones included.
func (q *Queries) ClearAllFolderRefs(ctx context.Context, userID int64) (int64, error) {
	n, err := q.exec(ctx, `UPDATE bookmarks SET folder_id = NULL WHERE user_id = ? AND folder_id IS NOT NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear folder refs: %w", err)
	}
	return n, nil
}

// BookmarksInFolder lists every bookmark (any state) filed in the folder.
func (q *Queries) BookmarksInFolder(ctx context.Context, userID, folderID int64) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	if err := q.sel(ctx, &out, `SELECT `+bookmarkColumns+` FROM bookmarks
		WHERE user_id = ? AND folder_id = ? ORDER BY id`, userID, folderID); err != nil {
		return nil, fmt.Errorf("bookmarks in folder: %w", err)
	}
	if err := q.loadTagsSlice(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// LinkTargets lists active bookmarks to check, never-checked first then
// oldest check first. A non-empty ids restricts the set.
func (q *Queries) LinkTargets(ctx context.Context, userID int64, ids []int64) ([]domain.Bookmark, error) {
	const order = ` ORDER BY CASE WHEN last_checked_at IS NULL THEN 0 ELSE 1 END, last_checked_at ASC, id ASC`
	var out []domain.Bookmark
	if len(ids) == 0 {
		if err := q.sel(ctx, &out, `SELECT `+bookmarkColumns+` FROM bookmarks
			WHERE user_id = ? AND deleted_at IS NULL`+order, userID); err != nil {
			return nil, fmt.Errorf("link targets: %w", err)
		}
	} else {
		for _, chunk := range chunks(ids, lookupChunk) {
			query, args, err := q.in(`SELECT `+bookmarkColumns+` FROM bookmarks
				WHERE user_id = ? AND deleted_at IS NULL AND id IN (?)`+order, userID, chunk)
			if err != nil {
				return nil, err
			}
			var rows []domain.Bookmark
			if err := q.sel(ctx, &rows, query, args...); err != nil {
				return nil, fmt.Errorf("link targets: %w", err)
			}
			out = append(out, rows...)
		}
	}
	if err := q.loadTagsSlice(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// StaleBookmarks lists active bookmarks across all users whose last check is
// missing or older than before, never-checked first.
func (q *Queries) StaleBookmarks(ctx context.Context, before time.Time, limit int) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	if err := q.sel(ctx, &out, `SELECT `+bookmarkColumns+` FROM bookmarks
		WHERE deleted_at IS NULL AND (last_checked_at IS NULL OR last_checked_at < ?)
		ORDER BY CASE WHEN last_checked_at IS NULL THEN 0 ELSE 1 END, last_checked_at ASC, id ASC
		LIMIT ?`, before, limit); err != nil {
		return nil, fmt.Errorf("stale bookmarks: %w", err)
	}
	if err := q.loadTagsSlice(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeletedBefore lists bookmarks soft-deleted before the threshold.
func (q *Queries) DeletedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Bookmark, error) {
	var out []domain.Bookmark
	if err := q.sel(ctx, &out, `SELECT `+bookmarkColumns+` FROM bookmarks
		WHERE deleted_at IS NOT NULL AND deleted_at < ? ORDER BY deleted_at, id LIMIT ?`, before, limit); err != nil {
		return nil, fmt.Errorf("deleted bookmarks: %w", err)
	}
	return out, nil
}

// HardDeleteBookmark removes the row; content, tag links and link checks cascade.
func (q *Queries) HardDeleteBookmark(ctx context.Context, id int64) error {
	if _, err := q.exec(ctx, `DELETE FROM bookmark_contents WHERE bookmark_id = ?`, id); err != nil {
		return fmt.Errorf("delete bookmark content: %w", err)
	}
	if _, err := q.exec(ctx, `DELETE FROM link_checks WHERE bookmark_id = ?`, id); err != nil {
		return fmt.Errorf("delete link checks: %w", err)
	}
	if _, err := q.exec(ctx, `DELETE FROM bookmark_tags WHERE bookmark_id = ?`, id); err != nil {
		return fmt.Errorf("delete bookmark tags: %w", err)
	}
	n, err := q.exec(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
