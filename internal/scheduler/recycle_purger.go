package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

const (
	// DefaultPurgeAfter is how long a bookmark stays in the recycle bin
	DefaultPurgeAfter = 30 * 24 * time.Hour // 30 days

	purgeBatch = 200
)

// RecyclePurger permanently removes bookmarks that have been soft-deleted
// for longer than the threshold.
type RecyclePurger struct {
	store     *sqlstore.Store
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewRecyclePurger creates a new recycle bin purger
func NewRecyclePurger(
	store *sqlstore.Store,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *RecyclePurger {
	if threshold == 0 {
		threshold = DefaultPurgeAfter
	}

	return &RecyclePurger{
		store:     store,
		logger:    log.Named("recycle-purger"),
		interval:  interval,
		threshold: threshold,
		now:       domain.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs a purge immediately, then on every tick
func (p *RecyclePurger) Start(ctx context.Context) error {
	if _, err := p.Purge(ctx); err != nil {
		p.logger.Warn("initial recycle purge failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := p.Purge(ctx); err != nil {
					p.logger.Error("recycle purge failed",
						logger.Error(err))
				}
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the purger
func (p *RecyclePurger) Stop() {
	close(p.stopCh)
}

// Purge hard-deletes expired bookmarks in batches, logging a purge event
// for each one in the same transaction. It returns the number removed.
func (p *RecyclePurger) Purge(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-p.threshold)
	total := 0

	for {
		n := 0
		err := p.store.InTx(ctx, func(q *sqlstore.Queries) error {
			rows, err := q.DeletedBefore(ctx, cutoff, purgeBatch)
			if err != nil {
				return err
			}
			for _, b := range rows {
				if err := q.HardDeleteBookmark(ctx, b.ID); err != nil {
					return err
				}
				payload := map[string]int64{"id": b.ID}
				if _, err := eventlog.Record(ctx, q, b.UserID, domain.EntityBookmark, b.ID, domain.ActionPurge, payload); err != nil {
					return err
				}
			}
			n = len(rows)
			return nil
		})
		if err != nil {
			return total, err
		}
		total += n
		if n < purgeBatch {
			break
		}
	}

	if total > 0 {
		p.logger.Info("recycle purge completed",
			logger.Int("bookmarks_purged", total),
			logger.String("older_than", p.threshold.String()))
	} else {
		p.logger.Debug("no bookmarks to purge")
	}
	return total, nil
}
