package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	rows []domain.BookmarkContent
}

func (w *recordingWriter) UpsertContent(_ context.Context, c *domain.BookmarkContent) error {
	w.rows = append(w.rows, *c)
	return nil
}

func TestApplyContent(t *testing.T) {
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name        string
		notes       *string
		text        string
		policy      NotesPolicy
		wantNotes   *string
		wantChanged bool
	}{
		{"replace with text", domain.Ptr("old"), " fresh ", NotesReplace, domain.Ptr("fresh"), true},
		{"fill keeps existing", domain.Ptr("old"), "fresh", NotesFillBlank, domain.Ptr("old"), false},
		{"fill blank", nil, "fresh", NotesFillBlank, domain.Ptr("fresh"), true},
		{"empty text keeps notes", domain.Ptr("old"), "", NotesReplace, domain.Ptr("old"), false},
		{"none is cleared", domain.Ptr("None"), "", NotesReplace, nil, true},
		{"nil stays nil", nil, "  ", NotesReplace, nil, false},
		{"same text unchanged", domain.Ptr("same"), "same", NotesReplace, domain.Ptr("same"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWriter{}
			b := &domain.Bookmark{ID: 1, Notes: tt.notes, UpdatedAt: earlier}
			ex := content.Extracted{Status: domain.LinkAlive, Text: tt.text}

			changed, err := ApplyContent(context.Background(), w, b, ex, tt.policy, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantNotes, b.Notes)
			assert.Equal(t, domain.LinkAlive, domain.Deref(b.LinkStatus))
			assert.Equal(t, now, *b.LastCheckedAt)
			if tt.wantChanged {
				assert.Equal(t, now, b.UpdatedAt)
			} else {
				assert.Equal(t, earlier, b.UpdatedAt)
			}
			require.Len(t, w.rows, 1)
			assert.Equal(t, content.Hash(tt.text), domain.Deref(w.rows[0].ContentHash))
			assert.Nil(t, w.rows[0].FetchError)
		})
	}
}

func TestApplyContentInternalBookmark(t *testing.T) {
	w := &recordingWriter{}
	now := time.Now()
	b := &domain.Bookmark{ID: 2, Tags: []string{"internal"}}

	changed, err := ApplyContent(context.Background(), w, b, content.Extracted{Status: domain.LinkAlive, Text: "x"}, NotesReplace, now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.LinkNotApplic, domain.Deref(b.LinkStatus))
	assert.Empty(t, w.rows)
}

func TestApplyContentRecordsError(t *testing.T) {
	w := &recordingWriter{}
	b := &domain.Bookmark{ID: 3}

	_, err := ApplyContent(context.Background(), w, b, content.Extracted{Status: domain.LinkDNSError, Error: "no such host"}, NotesReplace, time.Now())
	require.NoError(t, err)
	require.Len(t, w.rows, 1)
	assert.Equal(t, "no such host", domain.Deref(w.rows[0].FetchError))
	assert.Equal(t, domain.LinkDNSError, domain.Deref(w.rows[0].FetchStatus))
}
