package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/jobs"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/metrics"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

const (
	DefaultSweepInterval = 24 * time.Hour
	DefaultStaleAfter    = 7 * 24 * time.Hour
	DefaultSweepLimit    = 50
)

// LinkChecker probes one URL. *content.Fetcher implements it.
type LinkChecker interface {
	CheckLink(ctx context.Context, url string) content.LinkResult
}

// DeadLinkSweeper periodically re-checks the stalest bookmarks of every
// user, outside of any user-started job.
type DeadLinkSweeper struct {
	store      *sqlstore.Store
	checker    LinkChecker
	metrics    *metrics.Metrics
	logger     logger.Logger
	interval   time.Duration
	staleAfter time.Duration
	limit      int
	now        func() time.Time
	cron       *cron.Cron
}

// NewDeadLinkSweeper creates a sweeper. Zero values select the defaults.
func NewDeadLinkSweeper(
	store *sqlstore.Store,
	checker LinkChecker,
	m *metrics.Metrics,
	log logger.Logger,
	interval, staleAfter time.Duration,
	limit int,
) *DeadLinkSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	return &DeadLinkSweeper{
		store:      store,
		checker:    checker,
		metrics:    m,
		logger:     log.Named("deadlink-sweeper"),
		interval:   interval,
		staleAfter: staleAfter,
		limit:      limit,
		now:        domain.Now,
		cron:       cron.New(),
	}
}

// Start schedules the sweep every interval. The first run happens one
// interval after start.
func (s *DeadLinkSweeper) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("dead link sweep failed",
				logger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule dead link sweep: %w", err)
	}

	s.cron.Start()
	s.logger.Info("dead link sweeper started",
		logger.Duration("interval", s.interval),
		logger.Duration("stale_after", s.staleAfter),
		logger.Int("limit", s.limit))
	return nil
}

// Stop waits for a running sweep to return
func (s *DeadLinkSweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("dead link sweeper stopped")
}

// Sweep checks up to limit stale bookmarks and returns how many were
// visited. Internal bookmarks are marked N/A without a request.
func (s *DeadLinkSweeper) Sweep(ctx context.Context) (int, error) {
	rows, err := s.store.Q().StaleBookmarks(ctx, s.now().Add(-s.staleAfter), s.limit)
	if err != nil {
		return 0, err
	}

	visited := 0
	for i := range rows {
		if ctx.Err() != nil {
			break
		}
		b := &rows[i]
		if err := s.check(ctx, b); err != nil {
			s.logger.Warn("failed to store sweep result",
				logger.Int64("bookmark_id", b.ID),
				logger.Error(err))
			continue
		}
		visited++
	}

	s.logger.Info("dead link sweep completed",
		logger.Int("candidates", len(rows)),
		logger.Int("checked", visited))
	return visited, nil
}

func (s *DeadLinkSweeper) check(ctx context.Context, b *domain.Bookmark) error {
	if domain.HasInternalTag(b.Tags) {
		jobs.MarkInternal(b, s.now())
		return s.store.Q().UpdateBookmark(ctx, b)
	}

	res := s.checker.CheckLink(ctx, b.URL)
	s.metrics.LinkResult(res.Status)
	now := s.now()

	return s.store.InTx(ctx, func(q *sqlstore.Queries) error {
		lc := &domain.LinkCheck{
			BookmarkID: b.ID,
			CheckedAt:  now,
			ResultType: res.Status,
			LatencyMS:  domain.Ptr(res.Latency.Milliseconds()),
		}
		if res.StatusCode != 0 {
			lc.StatusCode = domain.Ptr(res.StatusCode)
		}
		if res.FinalURL != "" {
			lc.FinalURL = domain.Ptr(res.FinalURL)
		}
		if res.Error != "" {
			lc.Error = domain.Ptr(res.Error)
		}
		if err := q.InsertLinkCheck(ctx, lc); err != nil {
			return err
		}

		b.LinkStatus = domain.Ptr(res.Status)
		b.LastCheckedAt = &now
		return q.UpdateBookmark(ctx, b)
	})
}
