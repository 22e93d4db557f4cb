package sqlstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore/sqlstoretest"
)

func TestBookmarkLookups(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")

	b := sqlstoretest.Bookmark(t, s, uid, "https://Example.com/a", "Go", "web")

	got, err := s.Q().FindActiveByNormalized(ctx, uid, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, []string{"go", "web"}, got.Tags)

	_, err = s.Q().FindDeletedByNormalized(ctx, uid, "https://example.com/a")
	assert.ErrorIs(t, err, sqlstore.ErrNotFound)

	now := domain.Now()
	got.DeletedAt = &now
	got.DeletedBy = &uid
	got.UpdatedAt = now
	require.NoError(t, s.Q().UpdateBookmark(ctx, got))

	n, err := s.Q().CountActiveBookmarks(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	deleted, err := s.Q().FindDeletedByNormalized(ctx, uid, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, b.ID, deleted.ID)
	require.NotNil(t, deleted.DeletedAt)
	assert.True(t, deleted.DeletedAt.Equal(now))

	rows, err := s.Q().BookmarksByNormalized(ctx, uid, []string{"https://example.com/a", "https://nope.io/"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBookmarksAreScopedToUser(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	alice := sqlstoretest.User(t, s, "alice")
	bob := sqlstoretest.User(t, s, "bob")

	b := sqlstoretest.Bookmark(t, s, alice, "https://x.io")

	_, err := s.Q().GetBookmark(ctx, bob, b.ID)
	assert.ErrorIs(t, err, sqlstore.ErrNotFound)
}

func TestEventsSinceAndCursor(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")

	var ids []int64
	for i := 0; i < 3; i++ {
		e := &domain.SyncEvent{
			UserID:     uid,
			EntityType: domain.EntityBookmark,
			EntityID:   int64(i + 1),
			Action:     domain.ActionCreate,
			Payload:    json.RawMessage(`{"id":1}`),
			CreatedAt:  domain.Now(),
		}
		require.NoError(t, s.Q().AppendEvent(ctx, e))
		ids = append(ids, e.ID)
	}
	assert.True(t, ids[0] < ids[1] && ids[1] < ids[2])

	events, err := s.Q().EventsSince(ctx, uid, ids[0], 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ids[1], events[0].ID)
	assert.JSONEq(t, `{"id":1}`, string(events[0].Payload))

	latest, err := s.Q().LatestCursor(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest)

	other := sqlstoretest.User(t, s, "bob")
	latest, err = s.Q().LatestCursor(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(0), latest)
}

func TestEnsureClient(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")
	now := domain.Now()

	c, err := s.Q().EnsureClient(ctx, uid, "laptop", domain.Ptr("firefox"), now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.LastCursor)

	require.NoError(t, s.Q().SetClientCursor(ctx, c.ID, 42, now))

	again, err := s.Q().EnsureClient(ctx, uid, "laptop", domain.Ptr("chrome"), now)
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, int64(42), again.LastCursor)
	assert.Equal(t, "chrome", *again.Platform)
}

func TestJobLifecycle(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")
	now := domain.Now()

	j := &domain.Job{UserID: uid, Kind: domain.JobDeadLink, Status: domain.JobPending, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Q().InsertJob(ctx, j))

	ok, err := s.Q().MarkJobRunning(ctx, j.ID, 3, now)
	require.NoError(t, err)
	assert.True(t, ok)

	j.Progress = 33
	j.Checked = 1
	j.UpdatedAt = now
	require.NoError(t, s.Q().UpdateJobProgress(ctx, j))

	j.Status = domain.JobDone
	j.FinishedAt = &now
	ok, err = s.Q().FinishJob(ctx, j)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second terminal write is refused.
	j.Status = domain.JobFailed
	ok, err = s.Q().FinishJob(ctx, j)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := s.Q().GetJob(ctx, uid, j.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, stored.Status)
	assert.Equal(t, 1, stored.Checked)
	assert.Equal(t, 3, stored.Targets)

	err = s.Q().UpdateJobProgress(ctx, j)
	assert.ErrorIs(t, err, sqlstore.ErrNotFound)
}

func TestInTxRollsBack(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")
	boom := errors.New("boom")

	err := s.InTx(ctx, func(q *sqlstore.Queries) error {
		now := domain.Now()
		f := &domain.Folder{UserID: uid, Name: "Work", CreatedAt: now, UpdatedAt: now}
		if err := q.InsertFolder(ctx, f); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	folders, err := s.Q().ListFolders(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestLinkTargetsOrder(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")

	checked := sqlstoretest.Bookmark(t, s, uid, "https://old.io")
	old := domain.Now().Add(-time.Hour)
	checked.LastCheckedAt = &old
	require.NoError(t, s.Q().UpdateBookmark(ctx, checked))
	fresh := sqlstoretest.Bookmark(t, s, uid, "https://new.io")

	targets, err := s.Q().LinkTargets(ctx, uid, nil)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, fresh.ID, targets[0].ID)
	assert.Equal(t, checked.ID, targets[1].ID)

	only, err := s.Q().LinkTargets(ctx, uid, []int64{checked.ID})
	require.NoError(t, err)
	require.Len(t, only, 1)
}

func TestTokens(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")
	now := domain.Now()

	require.NoError(t, s.Q().CreateAPIToken(ctx, uid, "cli", "hash-1", now))
	got, err := s.Q().UserIDForToken(ctx, "hash-1", now)
	require.NoError(t, err)
	assert.Equal(t, uid, got)

	_, err = s.Q().UserIDForToken(ctx, "hash-2", now)
	assert.ErrorIs(t, err, sqlstore.ErrNotFound)
}
