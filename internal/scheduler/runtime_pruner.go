package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/linkloom/internal/logger"
)

// RuntimeIndex is the part of the redis runtime mirror the pruner needs.
type RuntimeIndex interface {
	PruneRuntimes(ctx context.Context) (int, error)
}

// RuntimePruner drops expired job runtimes from the redis active set on
// startup, so that a previous process's jobs are not reported as live.
type RuntimePruner struct {
	store  RuntimeIndex
	logger logger.Logger
}

// NewRuntimePruner creates a new runtime pruner
func NewRuntimePruner(store RuntimeIndex, log logger.Logger) *RuntimePruner {
	return &RuntimePruner{
		store:  store,
		logger: log.Named("runtime-pruner"),
	}
}

// Prune removes stale members and logs how many were dropped
func (rp *RuntimePruner) Prune(ctx context.Context) error {
	rp.logger.Info("pruning job runtimes in redis")

	n, err := rp.store.PruneRuntimes(ctx)
	if err != nil {
		return err
	}

	if n == 0 {
		rp.logger.Info("no stale job runtimes found in redis")
		return nil
	}

	rp.logger.Info("pruned job runtimes from redis",
		logger.Int("count", n))

	return nil
}
