package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultRuntimeTTL is how long a mirrored job runtime is kept (24 hours)
const DefaultRuntimeTTL = 24 * time.Hour

// ErrRuntimeNotFound is returned when no snapshot is mirrored for a job
var ErrRuntimeNotFound = errors.New("job runtime not found")

// Store mirrors job runtime snapshots so that a restarted or second
// process can still answer progress polls.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultRuntimeTTL
	}
	return &Store{
		client: client,
		ttl:    ttl,
	}
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// SaveJobRuntime stores a snapshot and tracks whether the job is still active
func (s *Store) SaveJobRuntime(ctx context.Context, rt *domain.JobRuntime) error {
	data, err := json.Marshal(rt)
	if err != nil {
		return fmt.Errorf("failed to marshal job runtime: %w", err)
	}

	member := strconv.FormatInt(rt.JobID, 10)
	pipe := s.client.Pipeline()
	pipe.Set(ctx, JobRuntimeKey(rt.JobID), data, s.ttl)
	if rt.Status.Terminal() {
		pipe.SRem(ctx, ActiveJobsKey(), member)
	} else {
		pipe.SAdd(ctx, ActiveJobsKey(), member)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save job runtime: %w", err)
	}
	return nil
}

// GetJobRuntime retrieves the mirrored snapshot of a job
func (s *Store) GetJobRuntime(ctx context.Context, jobID int64) (*domain.JobRuntime, error) {
	data, err := s.client.Get(ctx, JobRuntimeKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRuntimeNotFound
		}
		return nil, fmt.Errorf("failed to get job runtime: %w", err)
	}

	var rt domain.JobRuntime
	if err := json.Unmarshal(data, &rt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job runtime: %w", err)
	}
	return &rt, nil
}

// DeleteJobRuntime removes the snapshot of a job
func (s *Store) DeleteJobRuntime(ctx context.Context, jobID int64) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, JobRuntimeKey(jobID))
	pipe.SRem(ctx, ActiveJobsKey(), strconv.FormatInt(jobID, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete job runtime: %w", err)
	}
	return nil
}

// ActiveJobIDs lists jobs whose last mirrored status was not terminal
func (s *Store) ActiveJobIDs(ctx context.Context) ([]int64, error) {
	members, err := s.client.SMembers(ctx, ActiveJobsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active job ids: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			// Skip members that are not ours
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// PruneRuntimes drops snapshots whose key has expired from the active set
func (s *Store) PruneRuntimes(ctx context.Context) (int, error) {
	ids, err := s.ActiveJobIDs(ctx)
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, id := range ids {
		n, err := s.client.Exists(ctx, JobRuntimeKey(id)).Result()
		if err != nil {
			return pruned, fmt.Errorf("failed to check job runtime: %w", err)
		}
		if n > 0 {
			continue
		}
		if err := s.client.SRem(ctx, ActiveJobsKey(), strconv.FormatInt(id, 10)).Err(); err != nil {
			return pruned, fmt.Errorf("failed to prune job runtime: %w", err)
		}
		pruned++
	}
	return pruned, nil
}
