package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

// loadEnrichmentTargets keeps the requested order. Missing, deleted and
// internal bookmarks are counted as skipped; internal ones get N/A.
func (m *Manager) loadEnrichmentTargets(ctx context.Context, userID int64, ids []int64) ([]item, int, error) {
	var items []item
	skipped := 0
	err := m.store.InTx(ctx, func(q *sqlstore.Queries) error {
		rows, err := q.BookmarksByIDs(ctx, userID, ids)
		if err != nil {
			return err
		}
		byID := make(map[int64]*domain.Bookmark, len(rows))
		for i := range rows {
			byID[rows[i].ID] = &rows[i]
		}

		now := m.now()
		for _, id := range ids {
			b, ok := byID[id]
			if !ok || !b.Active() {
				skipped++
				continue
			}
			if domain.HasInternalTag(b.Tags) {
				MarkInternal(b, now)
				if err := q.UpdateBookmark(ctx, b); err != nil {
					return err
				}
				skipped++
				continue
			}
			items = append(items, item{index: len(items), bookmarkID: b.ID, url: b.URL, title: b.Title})
		}
		return nil
	})
	return items, skipped, err
}

func (m *Manager) runEnrichment(ids []int64) executeFunc {
	return func(r *run) (outcome, error) {
		userID := r.job.UserID
		items, skipped, err := m.loadEnrichmentTargets(r.ctx, userID, ids)
		if err != nil {
			return outcome{}, fmt.Errorf("load enrichment targets: %w", err)
		}
		r.job.Skipped = skipped
		total := len(items)
		if total == 0 {
			return done(textsFor(domain.JobEnrichment).empty), nil
		}

		r.job.Targets = total
		if err := r.progress(0, total, nil, nil, "Fetching content..."); err != nil {
			return outcome{}, err
		}

		stopped, err := r.fanOut(items, m.workers.forKind(domain.JobEnrichment), func(f fetched) error {
			message := "Enriched " + f.url
			var applied bool
			err := m.store.InTx(r.ctx, func(q *sqlstore.Queries) error {
				var err error
				applied, err = m.storeContent(r.ctx, q, userID, f)
				return err
			})

			switch {
			case err != nil:
				m.log.Warn("failed sync enrichment for bookmark",
					logger.Int64("bookmark_id", f.bookmarkID),
					logger.UserID(userID),
					logger.Error(err))
				r.job.Errors++
				message = "Failed to store content: " + truncate(err.Error(), 140)
			case !applied:
				r.job.Skipped++
				message = "Skipped " + f.url
			case f.ex.Error != "":
				r.job.Errors++
			}
			r.job.Checked++
			m.metrics.LinkResult(f.ex.Status)

			return r.progress(r.job.Checked, total, f.title, domain.Ptr(f.url), message)
		})
		if err != nil {
			return outcome{}, err
		}
		if stopped {
			return r.stopped(), nil
		}

		if r.job.Errors > 0 {
			return done(fmt.Sprintf("Finished with %d request/storage errors.", r.job.Errors)), nil
		}
		return done(""), nil
	}
}

// storeContent applies a fetch result to the bookmark. It reports false
// when the bookmark vanished, was deleted or became internal meanwhile.
func (m *Manager) storeContent(ctx context.Context, q *sqlstore.Queries, userID int64, f fetched) (bool, error) {
	b, err := q.GetBookmark(ctx, userID, f.bookmarkID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !b.Active() {
		return false, nil
	}

	now := m.now()
	if domain.HasInternalTag(b.Tags) {
		MarkInternal(b, now)
		return false, q.UpdateBookmark(ctx, b)
	}

	changed, err := ApplyContent(ctx, q, b, f.ex, NotesReplace, now)
	if err != nil {
		return false, err
	}
	if err := q.UpdateBookmark(ctx, b); err != nil {
		return false, err
	}
	if changed {
		if err := eventlog.RecordBookmark(ctx, q, b, domain.ActionUpdate); err != nil {
			return false, err
		}
	}
	return true, nil
}
