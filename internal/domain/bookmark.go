package domain

import "time"

// Bookmark is a user-owned saved URL.
// Soft-deleted bookmarks (DeletedAt != nil) stay in the table so that a
// later create for the same normalized URL can restore them.
type Bookmark struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	ID     int64 `db:"id" json:"id"`
	UserID int64 `db:"user_id" json:"-"`

	// URL is the address as submitted by the client.
	URL string `db:"url" json:"url"`

	// NormalizedURL is the dedupe key, see NormalizeURL.
	NormalizedURL string `db:"normalized_url" json:"-"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	Title    *string  `db:"title" json:"title"`
	Notes    *string  `db:"notes" json:"notes"`
	FolderID *int64   `db:"folder_id" json:"folder_id"`
	Tags     []string `db:"-" json:"tags"`

	// ─────────────────────────────
	// Liveness
	// ─────────────────────────────

	LinkStatus    *string    `db:"link_status" json:"link_status,omitempty"`
	LastCheckedAt *time.Time `db:"last_checked_at" json:"last_checked_at,omitempty"`

	// ─────────────────────────────
	// Lifecycle
	// ─────────────────────────────

	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at"`
	DeletedBy *int64     `db:"deleted_by" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Active reports whether the bookmark is not soft-deleted.
func (b *Bookmark) Active() bool { return b.DeletedAt == nil }

// TitleOr returns the title, or def when the bookmark has none.
func (b *Bookmark) TitleOr(def string) string {
	if b.Title == nil || *b.Title == "" {
		return def
	}
	return *b.Title
}

// BookmarkContent holds the last extraction result for a bookmark.
type BookmarkContent struct {
	BookmarkID    int64      `db:"bookmark_id"`
	ExtractedText *string    `db:"extracted_text"`
	ExtractedAt   *time.Time `db:"extracted_at"`
	ContentHash   *string    `db:"content_hash"`
	FetchStatus   *string    `db:"fetch_status"`
	FetchError    *string    `db:"fetch_error"`
}

// LinkCheck is one append-only liveness observation.
type LinkCheck struct {
	ID         int64     `db:"id"`
	BookmarkID int64     `db:"bookmark_id"`
	CheckedAt  time.Time `db:"checked_at"`
	StatusCode *int      `db:"status_code"`
	FinalURL   *string   `db:"final_url"`
	ResultType string    `db:"result_type"`
	LatencyMS  *int64    `db:"latency_ms"`
	Error      *string   `db:"error"`
}

// Folder is a node of a user's folder tree. ParentID nil means root.
type Folder struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	ParentID  *int64    `db:"parent_id" json:"parent_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// User owns bookmarks, folders, tags, clients and jobs.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	CreatedAt time.Time `db:"created_at"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Deref returns *p, or the zero value when p is nil.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// SameID reports whether two optional ids are equal.
func SameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Now is the clock used for persisted timestamps. Truncated to microseconds
// so values compare equal after a round-trip through any supported store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
