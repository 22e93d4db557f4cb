package foldertree

import (
	"context"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
)

// DeleteSubtree deletes the folder and all its descendants, children first.
// Bookmarks filed in a deleted folder are moved to the root and get an
// update event. Returns the number of folders deleted.
func DeleteSubtree(ctx context.Context, store Store, userID, folderID int64) (int, error) {
	folders, err := store.ListFolders(ctx, userID)
	if err != nil {
		return 0, err
	}
	t := NewTree(folders)
	return deleteOrdered(ctx, store, userID, t, t.PostOrder(folderID))
}

// DeleteAll deletes every folder of the user, children first.
func DeleteAll(ctx context.Context, store Store, userID int64) (int, error) {
	folders, err := store.ListFolders(ctx, userID)
	if err != nil {
		return 0, err
	}
	t := NewTree(folders)
	return deleteOrdered(ctx, store, userID, t, t.PostOrderAll())
}

func deleteOrdered(ctx context.Context, store Store, userID int64, t *Tree, order []int64) (int, error) {
	deleted := 0
	for _, id := range order {
		bookmarks, err := store.BookmarksInFolder(ctx, userID, id)
		if err != nil {
			return deleted, err
		}
		for i := range bookmarks {
			b := &bookmarks[i]
			b.FolderID = nil
			b.UpdatedAt = domain.Now()
			if err := store.UpdateBookmark(ctx, b); err != nil {
				return deleted, err
			}
			if err := eventlog.RecordBookmark(ctx, store, b, domain.ActionUpdate); err != nil {
				return deleted, err
			}
		}

		f, _ := t.Folder(id)
		if err := eventlog.RecordFolder(ctx, store, &f, domain.ActionDelete); err != nil {
			return deleted, err
		}
		if err := store.DeleteFolder(ctx, userID, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
