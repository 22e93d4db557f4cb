package sqlstore

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

const folderColumns = `id, user_id, name, parent_id, created_at, updated_at`

// GetFolder loads one folder of the user.
func (q *Queries) GetFolder(ctx context.Context, userID, id int64) (*domain.Folder, error) {
	var f domain.Folder
	if err := q.get(ctx, &f, `SELECT `+folderColumns+` FROM folders WHERE user_id = ? AND id = ?`, userID, id); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindFolder looks a folder up by its (name, parent) key.
func (q *Queries) FindFolder(ctx context.Context, userID int64, name string, parentID *int64) (*domain.Folder, error) {
	var f domain.Folder
	var err error
	if parentID == nil {
		err = q.get(ctx, &f, `SELECT `+folderColumns+` FROM folders
			WHERE user_id = ? AND name = ? AND parent_id IS NULL ORDER BY id LIMIT 1`, userID, name)
	} else {
		err = q.get(ctx, &f, `SELECT `+folderColumns+` FROM folders
			WHERE user_id = ? AND name = ? AND parent_id = ? ORDER BY id LIMIT 1`, userID, name, *parentID)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// InsertFolder stores a new folder and sets f.ID.
func (q *Queries) InsertFolder(ctx context.Context, f *domain.Folder) error {
	id, err := q.insert(ctx, `INSERT INTO folders (user_id, name, parent_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`, f.UserID, f.Name, f.ParentID, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert folder %q: %w", f.Name, err)
	}
	f.ID = id
	return nil
}

// UpdateFolder writes name, parent and updated_at.
func (q *Queries) UpdateFolder(ctx context.Context, f *domain.Folder) error {
	n, err := q.exec(ctx, `UPDATE folders SET name = ?, parent_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`, f.Name, f.ParentID, f.UpdatedAt, f.ID, f.UserID)
	if err != nil {
		return fmt.Errorf("update folder %d: %w", f.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFolder removes one folder row. Children and filed bookmarks must
// have been detached first.
func (q *Queries) DeleteFolder(ctx context.Context, userID, id int64) error {
	n, err := q.exec(ctx, `DELETE FROM folders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete folder %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFolders returns all folders of the user ordered by name.
func (q *Queries) ListFolders(ctx context.Context, userID int64) ([]domain.Folder, error) {
	var out []domain.Folder
	if err := q.sel(ctx, &out, `SELECT `+folderColumns+` FROM folders
		WHERE user_id = ? ORDER BY name ASC, id ASC`, userID); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return out, nil
}
