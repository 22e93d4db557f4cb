package jobs

import (
	"context"
	"testing"

	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore/sqlstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportJob(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "alice")

	sqlstoretest.Bookmark(t, s, uid, "https://active.example/")
	deleted := sqlstoretest.Bookmark(t, s, uid, "https://deleted.example/")
	deleted.DeletedAt = domain.Ptr(domain.Now())
	require.NoError(t, s.Q().UpdateBookmark(ctx, deleted))

	entries := []domain.ImportEntry{
		{URL: "https://new.example/page", Title: "New", Tags: []string{"Go"}, FolderPath: []string{"Work", "Projects"}},
		{URL: "https://new.example/page#section", Title: "Dup"},
		{URL: "   "},
		{URL: "https://ACTIVE.example"},
		{URL: "https://deleted.example/", Title: "Back again", FolderPath: []string{"Work"}},
		{URL: "https://second.example/", FolderPath: []string{"Work"}},
	}

	f := newFakeFetcher()
	f.set("https://new.example/page", content.Extracted{Status: domain.LinkAlive, Text: "new page"})
	f.set("https://second.example/", content.Extracted{Status: domain.LinkTimeout, Error: "timed out"})

	m := newTestManager(t, s, f)
	job, err := m.StartImport(ctx, uid, entries)
	require.NoError(t, err)
	m.Wait()

	got := loadJob(t, s, uid, job.ID)
	assert.Equal(t, domain.JobDone, got.Status)
	assert.Nil(t, got.ErrorMessage)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, 6, got.Targets)
	assert.Equal(t, 3, got.Created)
	assert.Equal(t, 3, got.Skipped)
	assert.Equal(t, 0, got.Failed)
	assert.Equal(t, 1, got.Errors)
	assert.Len(t, f.calls, 3)

	folders, err := s.Q().ListFolders(ctx, uid)
	require.NoError(t, err)
	require.Len(t, folders, 2)

	created, err := s.Q().FindActiveByNormalized(ctx, uid, "https://new.example/page")
	require.NoError(t, err)
	assert.Equal(t, "New", domain.Deref(created.Title))
	assert.Equal(t, []string{"go"}, created.Tags)
	assert.Equal(t, "new page", domain.Deref(created.Notes))
	require.NotNil(t, created.FolderID)

	restored, err := s.Q().GetBookmark(ctx, uid, deleted.ID)
	require.NoError(t, err)
	assert.True(t, restored.Active())
	assert.Equal(t, "Back again", domain.Deref(restored.Title))
	require.NotNil(t, restored.FolderID)

	second, err := s.Q().FindActiveByNormalized(ctx, uid, "https://second.example/")
	require.NoError(t, err)
	assert.Equal(t, domain.LinkTimeout, domain.Deref(second.LinkStatus))
	assert.Nil(t, second.Notes)

	events, err := s.Q().EventsSince(ctx, uid, 0, 100)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, e := range events {
		counts[string(e.EntityType)+":"+string(e.Action)]++
	}
	assert.Equal(t, 2, counts["folder:create"])
	assert.Equal(t, 2, counts["bookmark:create"])
	assert.Equal(t, 1, counts["bookmark:restore"])

	d, err := m.Details(ctx, uid, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, d.ProcessedItems)
	assert.Equal(t, 6, d.TotalItems)
	assert.Equal(t, "Import completed.", domain.Deref(d.StatusMessage))
}

func TestImportJobEmptyUpload(t *testing.T) {
	s := sqlstoretest.New(t)
	uid := sqlstoretest.User(t, s, "bob")

	m := newTestManager(t, s, newFakeFetcher())
	job, err := m.StartImport(context.Background(), uid, nil)
	require.NoError(t, err)
	m.Wait()

	got := loadJob(t, s, uid, job.ID)
	assert.Equal(t, domain.JobDone, got.Status)
	assert.Equal(t, "No bookmarks found in upload.", domain.Deref(got.ErrorMessage))
}

func TestImportJobOnlyDuplicates(t *testing.T) {
	s := sqlstoretest.New(t)
	uid := sqlstoretest.User(t, s, "carol")
	sqlstoretest.Bookmark(t, s, uid, "https://dup.example/")

	f := newFakeFetcher()
	m := newTestManager(t, s, f)
	job, err := m.StartImport(context.Background(), uid, []domain.ImportEntry{
		{URL: "https://dup.example/"},
		{URL: "https://dup.example/?"},
	})
	require.NoError(t, err)
	m.Wait()

	got := loadJob(t, s, uid, job.ID)
	assert.Equal(t, domain.JobDone, got.Status)
	assert.Equal(t, 2, got.Skipped)
	assert.Equal(t, 100, got.Progress)
	assert.Empty(t, f.calls)
}

func TestPlanImportPrefersActiveMatch(t *testing.T) {
	s := sqlstoretest.New(t)
	ctx := context.Background()
	uid := sqlstoretest.User(t, s, "dave")

	old := sqlstoretest.Bookmark(t, s, uid, "https://both.example/")
	old.DeletedAt = domain.Ptr(domain.Now())
	require.NoError(t, s.Q().UpdateBookmark(ctx, old))
	sqlstoretest.Bookmark(t, s, uid, "https://both.example/")

	plan, err := planImport(ctx, s.Q(), uid, []domain.ImportEntry{{URL: "https://both.example/"}})
	require.NoError(t, err)
	assert.Empty(t, plan.work)
	assert.Equal(t, 1, plan.skipped)
}
