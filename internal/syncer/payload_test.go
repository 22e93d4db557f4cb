package syncer_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/foldertree"
	"github.com/MrSnakeDoc/linkloom/internal/syncer"
)

func TestOperationDecoding(t *testing.T) {
	var op syncer.Operation
	require.NoError(t, json.Unmarshal([]byte(`{
		"entity_type":"bookmark","op":"update","id":"12",
		"updated_at":"2024-05-01T10:00:00",
		"bookmark":{"title":null,"notes":42,"folder_id":"abc","tags":["B","a",3]}
	}`), &op))

	assert.Equal(t, syncer.FlexID(12), op.ID)
	assert.True(t, op.UpdatedAt.Valid)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), op.UpdatedAt.Time)

	b := op.Bookmark
	require.NotNil(t, b)
	assert.False(t, b.URL.Set)
	assert.True(t, b.Title.Set)
	assert.Equal(t, syncer.FlexString(""), b.Title.Value)
	assert.Equal(t, syncer.FlexString("42"), b.Notes.Value)
	assert.True(t, b.FolderID.Set)
	assert.Nil(t, b.FolderID.Value.Ptr())
	assert.Equal(t, syncer.TagList{"3", "a", "b"}, b.Tags.Value)
}

func TestParseClientTime(t *testing.T) {
	tests := []struct {
		in   string
		ok   bool
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", true, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T12:00:00.5+02:00", true, time.Date(2024, 5, 1, 10, 0, 0, 5e8, time.UTC)},
		{"2024-05-01 10:00:00", true, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01", true, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"yesterday", false, time.Time{}},
		{"", false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := syncer.ParseClientTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestFlexBool(t *testing.T) {
	for raw, want := range map[string]bool{
		`true`: true, `1`: true, `"yes"`: true, `" On "`: true,
		`false`: false, `0`: false, `"no"`: false, `null`: false, `{}`: false,
	} {
		var v syncer.FlexBool
		require.NoError(t, json.Unmarshal([]byte(raw), &v), raw)
		assert.Equal(t, want, bool(v), raw)
	}
}

func TestParseLocalBookmarks(t *testing.T) {
	got := syncer.ParseLocalBookmarks([]json.RawMessage{
		json.RawMessage(`{"id":7,"url":"example.com/x","title":"  X ","notes":"None","tags":"a;b","parent_id":"p1","folder_path":["A",1,""]}`),
		json.RawMessage(`{"id":"8","url":"https://y.example","folder_local_id":"f9","parent_id":"p1"}`),
		json.RawMessage(`{"url":""}`),
		json.RawMessage(`[]`),
	})
	require.Len(t, got, 2)

	assert.Equal(t, "7", got[0].ID)
	assert.Equal(t, "https://example.com/x", got[0].NormalizedURL)
	assert.Equal(t, "X", domain.Deref(got[0].Title))
	assert.Nil(t, got[0].Notes)
	assert.Equal(t, []string{"a", "b"}, got[0].Tags)
	assert.Equal(t, "p1", got[0].FolderLocalID)
	assert.Equal(t, []string{"A", "1"}, got[0].FolderPath)

	assert.Equal(t, "f9", got[1].FolderLocalID)
	assert.Equal(t, []string{}, got[1].Tags)
	assert.Nil(t, got[1].FolderPath)
}

func TestParseLocalFolders(t *testing.T) {
	got := syncer.ParseLocalFolders([]json.RawMessage{
		json.RawMessage(`{"id":"a","title":"Alpha"}`),
		json.RawMessage(`{"id":"b","parent_id":"b","name":"Beta"}`),
		json.RawMessage(`{"id":"a","title":"Again"}`),
		json.RawMessage(`{"title":"No id"}`),
		json.RawMessage(`{"id":3,"parent_id":"a"}`),
	})
	assert.Equal(t, []foldertree.LocalFolder{
		{ID: "a", Title: "Alpha"},
		{ID: "b", Title: "Beta"},
		{ID: "3", Title: domain.DefaultFolderName, ParentID: "a"},
	}, got)
}
