package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// SetBookmarkTags replaces the bookmark's tag set. names are expected to be
// normalized already (see domain.ParseTags). Missing tags are created.
func (q *Queries) SetBookmarkTags(ctx context.Context, userID, bookmarkID int64, names []string) error {
	if _, err := q.exec(ctx, `DELETE FROM bookmark_tags WHERE bookmark_id = ?`, bookmarkID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, name := range names {
		tagID, err := q.ensureTag(ctx, userID, name)
		if err != nil {
			return err
		}
		if _, err := q.exec(ctx, `INSERT INTO bookmark_tags (bookmark_id, tag_id) VALUES (?, ?)`, bookmarkID, tagID); err != nil {
			return fmt.Errorf("link tag %q: %w", name, err)
		}
	}
	return nil
}

func (q *Queries) ensureTag(ctx context.Context, userID int64, name string) (int64, error) {
	var id int64
	err := q.get(ctx, &id, `SELECT id FROM tags WHERE user_id = ? AND name = ?`, userID, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("lookup tag %q: %w", name, err)
	}
	id, err = q.insert(ctx, `INSERT INTO tags (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return 0, fmt.Errorf("create tag %q: %w", name, err)
	}
	return id, nil
}

type tagRow struct {
	BookmarkID int64  `db:"bookmark_id"`
	Name       string `db:"name"`
}

// loadTags fills Tags on each bookmark, sorted by name.
func (q *Queries) loadTags(ctx context.Context, bookmarks []*domain.Bookmark) error {
	if len(bookmarks) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Bookmark, len(bookmarks))
	ids := make([]int64, 0, len(bookmarks))
	for _, b := range bookmarks {
		b.Tags = []string{}
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}
	for _, chunk := range chunks(ids, lookupChunk) {
		query, args, err := q.in(`SELECT bt.bookmark_id, t.name FROM bookmark_tags bt
			JOIN tags t ON t.id = bt.tag_id
			WHERE bt.bookmark_id IN (?) ORDER BY t.name`, chunk)
		if err != nil {
			return err
		}
		var rows []tagRow
		if err := q.sel(ctx, &rows, query, args...); err != nil {
			return fmt.Errorf("load tags: %w", err)
		}
		for _, r := range rows {
			if b, ok := byID[r.BookmarkID]; ok {
				b.Tags = append(b.Tags, r.Name)
			}
		}
	}
	return nil
}

func (q *Queries) loadTagsSlice(ctx context.Context, bookmarks []domain.Bookmark) error {
	ptrs := make([]*domain.Bookmark, len(bookmarks))
	for i := range bookmarks {
		ptrs[i] = &bookmarks[i]
	}
	return q.loadTags(ctx, ptrs)
}

// LoadTags fills Tags on the given bookmarks.
func (q *Queries) LoadTags(ctx context.Context, bookmarks []domain.Bookmark) error {
	return q.loadTagsSlice(ctx, bookmarks)
}
