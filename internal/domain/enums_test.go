package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyncMode(t *testing.T) {
	m, err := ParseSyncMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeReplaceLocalWithServer, m)

	m, err = ParseSyncMode("two_way_merge")
	require.NoError(t, err)
	assert.Equal(t, "SYNC BOOKMARKS BOTH WAYS", m.ConfirmPhrase())

	_, err = ParseSyncMode("merge_everything")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("")
	require.NoError(t, err)
	assert.Equal(t, EntityBookmark, et)

	for _, in := range []string{"Folder", " folder ", "FOLDER"} {
		et, err = ParseEntityType(in)
		require.NoError(t, err, in)
		assert.Equal(t, EntityFolder, et, in)
	}

	_, err = ParseEntityType("tag")
	assert.Error(t, err)
}

func TestJobStatus(t *testing.T) {
	for _, s := range []JobStatus{JobDone, JobFailed, JobStopped} {
		assert.True(t, s.Terminal(), s)
		assert.False(t, s.Active(), s)
	}
	for _, s := range []JobStatus{JobPending, JobRunning} {
		assert.False(t, s.Terminal(), s)
		assert.True(t, s.Active(), s)
	}
}

func TestLinkStatusSets(t *testing.T) {
	assert.True(t, IsProblematic(LinkNotFound))
	assert.True(t, IsProblematic("404"))
	assert.False(t, IsProblematic(LinkAlive))
	assert.False(t, IsProblematic(LinkNotApplic))
	assert.True(t, IsTransient(LinkServerError))
	assert.False(t, IsTransient(LinkDNSError))
}

func TestSerializeBookmark(t *testing.T) {
	b := &Bookmark{ID: 7, URL: "https://x.io", Tags: []string{"b", "A"}}
	p := SerializeBookmark(b)
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.Nil(t, p.DeletedAt)
	assert.NotNil(t, p.UpdatedAt)

	empty := SerializeBookmark(&Bookmark{ID: 1})
	assert.Equal(t, []string{}, empty.Tags)
}
