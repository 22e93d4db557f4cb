package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

// loadLinkTargets lists the bookmarks to check, never-checked first. Internal
// bookmarks are marked N/A on the way and left out.
func (m *Manager) loadLinkTargets(ctx context.Context, userID int64, ids []int64) ([]item, error) {
	var items []item
	err := m.store.InTx(ctx, func(q *sqlstore.Queries) error {
		rows, err := q.LinkTargets(ctx, userID, ids)
		if err != nil {
			return err
		}
		now := m.now()
		for i := range rows {
			b := &rows[i]
			if domain.HasInternalTag(b.Tags) {
				MarkInternal(b, now)
				if err := q.UpdateBookmark(ctx, b); err != nil {
					return err
				}
				continue
			}
			items = append(items, item{index: len(items), bookmarkID: b.ID, url: b.URL, title: b.Title})
		}
		return nil
	})
	return items, err
}

func (m *Manager) runDeadLink(ids []int64) executeFunc {
	return func(r *run) (outcome, error) {
		userID := r.job.UserID
		items, err := m.loadLinkTargets(r.ctx, userID, ids)
		if err != nil {
			return outcome{}, fmt.Errorf("load link targets: %w", err)
		}
		total := len(items)
		if total == 0 {
			return done(textsFor(domain.JobDeadLink).empty), nil
		}

		r.job.Targets = total
		if err := r.progress(0, total, nil, nil, "Checking links..."); err != nil {
			return outcome{}, err
		}

		stopped, err := r.fanOut(items, m.workers.forKind(domain.JobDeadLink), func(f fetched) error {
			status := f.ex.Status
			errText := f.ex.Error
			message := "Checked " + f.url

			err := m.store.InTx(r.ctx, func(q *sqlstore.Queries) error {
				return m.storeCheck(r.ctx, q, userID, f)
			})
			if err != nil {
				status = domain.LinkUnreachable
				errText = err.Error()
				message = "Failed to store check result: " + truncate(err.Error(), 140)
			}

			r.job.Checked++
			if domain.IsProblematic(status) {
				r.job.Problematic++
			} else {
				r.job.Alive++
			}
			if errText != "" {
				r.job.Errors++
			}
			m.metrics.LinkResult(status)

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

// storeCheck records one fetch result on the bookmark and appends the
// LinkCheck row. A bookmark removed meanwhile is skipped.
func (m *Manager) storeCheck(ctx context.Context, q *sqlstore.Queries, userID int64, f fetched) error {
	b, err := q.GetBookmark(ctx, userID, f.bookmarkID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !b.Active() {
		return nil
	}

	now := m.now()
	changed, err := ApplyContent(ctx, q, b, f.ex, NotesReplace, now)
	if err != nil {
		return err
	}
	if err := q.UpdateBookmark(ctx, b); err != nil {
		return err
	}
	if changed {
		if err := eventlog.RecordBookmark(ctx, q, b, domain.ActionUpdate); err != nil {
			return err
		}
	}

	check := &domain.LinkCheck{
		BookmarkID: b.ID,
		CheckedAt:  now,
		ResultType: f.ex.Status,
		LatencyMS:  domain.Ptr(f.latency.Milliseconds()),
	}
	if f.ex.StatusCode > 0 {
		check.StatusCode = domain.Ptr(f.ex.StatusCode)
	}
	if f.ex.FinalURL != "" {
		check.FinalURL = domain.Ptr(f.ex.FinalURL)
	}
	if f.ex.Error != "" {
		check.Error = domain.Ptr(f.ex.Error)
	}
	return q.InsertLinkCheck(ctx, check)
}
