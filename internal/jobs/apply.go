package jobs

import (
	"context"
	"strings"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// ContentWriter persists extraction results. *sqlstore.Queries implements it.
type ContentWriter interface {
	UpsertContent(ctx context.Context, c *domain.BookmarkContent) error
}

// NotesPolicy controls how extracted text lands in a bookmark's notes.
type NotesPolicy int

const (
	// NotesReplace overwrites notes with non-empty extracted text.
	NotesReplace NotesPolicy = iota
	// NotesFillBlank writes extracted text only when notes are blank.
	NotesFillBlank
)

// ApplyContent copies a fetch result onto b and stores the content row.
// Internal bookmarks get the N/A status and nothing is stored. The caller
// writes b back; the returned flag reports whether the notes changed, in
// which case UpdatedAt has been bumped.
func ApplyContent(ctx context.Context, w ContentWriter, b *domain.Bookmark, ex content.Extracted, policy NotesPolicy, now time.Time) (bool, error) {
	if domain.HasInternalTag(b.Tags) {
		MarkInternal(b, now)
		return false, nil
	}

	b.LinkStatus = domain.Ptr(ex.Status)
	b.LastCheckedAt = &now

	text := ex.Text
	c := &domain.BookmarkContent{
		BookmarkID:    b.ID,
		ExtractedText: &text,
		ExtractedAt:   &now,
		ContentHash:   domain.Ptr(content.Hash(text)),
		FetchStatus:   domain.Ptr(ex.Status),
	}
	if ex.Error != "" {
		c.FetchError = domain.Ptr(ex.Error)
	}
	if err := w.UpsertContent(ctx, c); err != nil {
		return false, err
	}

	before := b.Notes
	extracted := strings.TrimSpace(text)
	switch {
	case extracted != "" && (policy == NotesReplace || domain.NotesBlank(b.Notes)):
		b.Notes = &extracted
	case domain.NotesBlank(b.Notes):
		b.Notes = nil
	}

	changed := !sameText(before, b.Notes)
	if changed {
		b.UpdatedAt = now
	}
	return changed, nil
}

// MarkInternal flags a bookmark that is never fetched.
func MarkInternal(b *domain.Bookmark, now time.Time) {
	b.LinkStatus = domain.Ptr(domain.LinkNotApplic)
	b.LastCheckedAt = &now
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
