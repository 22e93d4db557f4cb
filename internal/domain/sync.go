package domain

import (
	"encoding/json"
	"time"
)

// SyncEvent is one immutable entry of a user's change log. ID is the cursor.
type SyncEvent struct {
	ID         int64           `db:"id" json:"cursor"`
	UserID     int64           `db:"user_id" json:"-"`
	EntityType EntityType      `db:"entity_type" json:"entity_type"`
	EntityID   int64           `db:"entity_id" json:"entity_id"`
	Action     Action          `db:"action" json:"action"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// SyncClient tracks the last acknowledged cursor of one client device.
type SyncClient struct {
	ID         int64     `db:"id" json:"-"`
	UserID     int64     `db:"user_id" json:"-"`
	ClientID   string    `db:"client_id" json:"client_id"`
	Platform   *string   `db:"platform" json:"platform"`
	LastCursor int64     `db:"last_cursor" json:"last_cursor"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// BookmarkPayload is the wire shape of a bookmark in events and snapshots.
type BookmarkPayload struct {
	ID        int64      `json:"id"`
	URL       string     `json:"url"`
	Title     *string    `json:"title"`
	Notes     *string    `json:"notes"`
	FolderID  *int64     `json:"folder_id"`
	Tags      []string   `json:"tags"`
	UpdatedAt *time.Time `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at"`
}

// FolderPayload is the wire shape of a folder in events and snapshots.
type FolderPayload struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	ParentID  *int64     `json:"parent_id"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// SerializeBookmark builds the payload of b. Tags are emitted sorted.
func SerializeBookmark(b *Bookmark) BookmarkPayload {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	updated := b.UpdatedAt
	return BookmarkPayload{
		ID:        b.ID,
		URL:       b.URL,
		Title:     b.Title,
		Notes:     b.Notes,
		FolderID:  b.FolderID,
		Tags:      ParseTagList(tags),
		UpdatedAt: &updated,
		DeletedAt: b.DeletedAt,
	}
}

// SerializeFolder builds the payload of f.
func SerializeFolder(f *Folder) FolderPayload {
	updated := f.UpdatedAt
	return FolderPayload{
		ID:        f.ID,
		Name:      f.Name,
		ParentID:  f.ParentID,
		UpdatedAt: &updated,
	}
}
