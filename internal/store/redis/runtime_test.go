package redis

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestJobRuntimeRoundTrip(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rt := &domain.JobRuntime{
		JobID:          7,
		Kind:           domain.JobDeadLink,
		Status:         domain.JobRunning,
		StartedAt:      &started,
		ProcessedItems: 3,
		TotalItems:     10,
		CurrentURL:     domain.Ptr("https://example.com"),
		StatusMessage:  "Checking links...",
	}
	require.NoError(t, s.SaveJobRuntime(ctx, rt))

	got, err := s.GetJobRuntime(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, rt.ProcessedItems, got.ProcessedItems)
	assert.Equal(t, "https://example.com", *got.CurrentURL)
	assert.True(t, started.Equal(*got.StartedAt))

	ids, err := s.ActiveJobIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
	assert.Equal(t, time.Hour, mr.TTL(JobRuntimeKey(7)))
}

func TestTerminalRuntimeLeavesActiveSet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rt := &domain.JobRuntime{JobID: 1, Status: domain.JobRunning}
	require.NoError(t, s.SaveJobRuntime(ctx, rt))
	rt.Status = domain.JobDone
	require.NoError(t, s.SaveJobRuntime(ctx, rt))

	ids, err := s.ActiveJobIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = s.GetJobRuntime(ctx, 1)
	assert.NoError(t, err)
}

func TestDeleteJobRuntime(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJobRuntime(ctx, &domain.JobRuntime{JobID: 2, Status: domain.JobRunning}))
	require.NoError(t, s.DeleteJobRuntime(ctx, 2))

	_, err := s.GetJobRuntime(ctx, 2)
	assert.ErrorIs(t, err, ErrRuntimeNotFound)
}

func TestPruneRuntimes(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveJobRuntime(ctx, &domain.JobRuntime{JobID: 3, Status: domain.JobRunning}))
	require.NoError(t, s.SaveJobRuntime(ctx, &domain.JobRuntime{JobID: 4, Status: domain.JobRunning}))
	mr.FastForward(2 * time.Hour)
	require.NoError(t, s.SaveJobRuntime(ctx, &domain.JobRuntime{JobID: 4, Status: domain.JobRunning}))

	pruned, err := s.PruneRuntimes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	ids, err := s.ActiveJobIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids)
}

func TestExtractJobID(t *testing.T) {
	id, err := ExtractJobID(JobRuntimeKey(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = ExtractJobID(KeyPrefixJobRuntime)
	assert.Error(t, err)
	_, err = ExtractJobID(KeyPrefixJobRuntime + "abc")
	assert.Error(t, err)
}
