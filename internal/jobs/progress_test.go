package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore/sqlstoretest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepJob releases one gated fetch at a time and returns the persisted
// progress seen before the first item and after each of the n items.
// start is the processed count before any fetch completes.
func stepJob(t *testing.T, m *Manager, s *sqlstore.Store, f *fakeFetcher, uid, jobID int64, start, n int) []int {
	t.Helper()
	ctx := context.Background()

	require.Eventually(t, func() bool { return f.callCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	first := loadJob(t, s, uid, jobID)
	require.Equal(t, domain.JobRunning, first.Status)
	seen := []int{first.Progress}

	for i := 1; i <= n; i++ {
		f.gate <- struct{}{}
		if i == n {
			break
		}
		require.Eventually(t, func() bool {
			d, err := m.Details(ctx, uid, jobID)
			return err == nil && d.ProcessedItems == start+i
		}, 5*time.Second, 5*time.Millisecond, "item %d", i)

		got := loadJob(t, s, uid, jobID)
		assert.Equal(t, domain.JobRunning, got.Status, "item %d", i)
		seen = append(seen, got.Progress)
	}

	m.Wait()
	last := loadJob(t, s, uid, jobID)
	require.Equal(t, domain.JobDone, last.Status)
	return append(seen, last.Progress)
}

func assertNonDecreasing(t *testing.T, seen []int) {
	t.Helper()
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "progress went back: %v", seen)
	}
	assert.Equal(t, 100, seen[len(seen)-1], "progress %v", seen)
}

func gatedFetcher(t *testing.T) *fakeFetcher {
	t.Helper()
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	return f
}

func TestImportProgressNeverDecreases(t *testing.T) {
	s := sqlstoretest.New(t)
	uid := sqlstoretest.User(t, s, "alice")
	sqlstoretest.Bookmark(t, s, uid, "https://known.example/")

	f := gatedFetcher(t)
	m := newTestManager(t, s, f, func(o *Options) { o.Workers.Import = 1 })
	t.Cleanup(func() { close(f.gate) })

	entries := []domain.ImportEntry{
		{URL: "https://known.example/"},
		{URL: "https://one.example/"},
		{URL: "https://two.example/"},
		{URL: "https://three.example/"},
		{URL: "https://four.example/"},
	}
	job, err := m.StartImport(context.Background(), uid, entries)
	require.NoError(t, err)

	seen := stepJob(t, m, s, f, uid, job.ID, 1, 4)
	assert.Equal(t, []int{20, 40, 60, 80, 100}, seen)
	assertNonDecreasing(t, seen)
}

func TestDeadLinkProgressNeverDecreases(t *testing.T) {
	s := sqlstoretest.New(t)
	uid := sqlstoretest.User(t, s, "bob")
	for _, u := range []string{"https://a.example/", "https://b.example/", "https://c.example/"} {
		sqlstoretest.Bookmark(t, s, uid, u)
	}

	f := gatedFetcher(t)
	m := newTestManager(t, s, f, func(o *Options) { o.Workers.DeadLink = 1 })
	t.Cleanup(func() { close(f.gate) })

	job, err := m.StartDeadLinkCheck(context.Background(), uid, nil)
	require.NoError(t, err)

	seen := stepJob(t, m, s, f, uid, job.ID, 0, 3)
	assert.Equal(t, []int{0, 33, 66, 100}, seen)
	assertNonDecreasing(t, seen)
}
