package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/eventlog"
	"github.com/MrSnakeDoc/linkloom/internal/foldertree"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

type importWork struct {
	entry      domain.ImportEntry
	normalized string
	// restoreID is the soft-deleted bookmark to bring back, 0 to create.
	restoreID int64
}

type importPlan struct {
	work    []importWork
	skipped int
}

// planImport drops entries with unusable URLs, entries already active on
// the server and repeats inside the upload. Soft-deleted matches are
// restored instead of duplicated.
func planImport(ctx context.Context, q *sqlstore.Queries, userID int64, entries []domain.ImportEntry) (importPlan, error) {
	normalized := make([]string, len(entries))
	lookup := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		n := domain.NormalizeURL(e.URL)
		normalized[i] = n
		if n != "" && !seen[n] {
			seen[n] = true
			lookup = append(lookup, n)
		}
	}

	rows, err := q.BookmarksByNormalized(ctx, userID, lookup)
	if err != nil {
		return importPlan{}, err
	}
	existing := make(map[string]domain.Bookmark, len(rows))
	for _, b := range rows {
		prev, ok := existing[b.NormalizedURL]
		if !ok || (!prev.Active() && b.Active()) {
			existing[b.NormalizedURL] = b
		}
	}

	var plan importPlan
	planned := make(map[string]bool, len(entries))
	for i, e := range entries {
		n := normalized[i]
		if n == "" || planned[n] {
			plan.skipped++
			continue
		}
		planned[n] = true

		w := importWork{entry: e, normalized: n}
		if b, ok := existing[n]; ok {
			if b.Active() {
				plan.skipped++
				continue
			}
			w.restoreID = b.ID
		}
		plan.work = append(plan.work, w)
	}
	return plan, nil
}

func (m *Manager) runImport(entries []domain.ImportEntry) executeFunc {
	return func(r *run) (outcome, error) {
		total := len(entries)
		r.track(func(rt *domain.JobRuntime) { rt.TotalItems = total })
		if total == 0 {
			return done(textsFor(domain.JobImport).empty), nil
		}

		userID := r.job.UserID
		plan, err := planImport(r.ctx, m.store.Q(), userID, entries)
		if err != nil {
			return outcome{}, fmt.Errorf("plan import: %w", err)
		}

		r.job.Targets = total
		r.job.Skipped = plan.skipped
		processed := plan.skipped
		if plan.skipped > 0 {
			err = r.progress(processed, total, domain.Ptr("Skipping duplicate bookmarks"), nil,
				fmt.Sprintf("Skipped %d existing or duplicate bookmarks.", plan.skipped))
		} else {
			err = r.progress(processed, total, nil, nil, "Importing bookmarks...")
		}
		if err != nil {
			return outcome{}, err
		}

		items := make([]item, len(plan.work))
		for i, w := range plan.work {
			items[i] = item{index: i, url: w.entry.URL, title: domain.CleanTitle(w.entry.Title)}
		}

		folders := foldertree.NewReconciler(m.store.Q(), userID)
		stopped, err := r.fanOut(items, m.workers.forKind(domain.JobImport), func(f fetched) error {
			w := plan.work[f.index]
			message := "Imported bookmark"

			var restored bool
			err := m.store.InTx(r.ctx, func(q *sqlstore.Queries) error {
				folderID, err := folders.WithStore(q).EnsurePath(r.ctx, w.entry.FolderPath)
				if err != nil {
					return err
				}
				now := m.now()
				if w.restoreID != 0 {
					restored, err = restoreBookmark(r.ctx, q, userID, w, folderID, f.ex, now)
					return err
				}
				_, err = createBookmark(r.ctx, q, userID, w, folderID, f.ex, now)
				return err
			})

			switch {
			case err != nil:
				folders.Reset()
				r.job.Failed++
				message = "Failed: " + truncate(err.Error(), 160)
			case w.restoreID != 0 && !restored:
				r.job.Skipped++
				message = "Skipped already active bookmark"
			case w.restoreID != 0:
				r.job.Created++
				message = "Restored bookmark"
			default:
				r.job.Created++
			}
			if f.ex.Error != "" {
				r.job.Errors++
			}

			processed++
			return r.progress(processed, total, f.title, domain.Ptr(f.url), message)
		})
		if err != nil {
			return outcome{}, err
		}
		if stopped {
			return r.stopped(), nil
		}

		if r.job.Failed > 0 {
			return done(fmt.Sprintf("%d bookmarks failed to import.", r.job.Failed)), nil
		}
		return done(""), nil
	}
}

func createBookmark(ctx context.Context, q *sqlstore.Queries, userID int64, w importWork, folderID *int64, ex content.Extracted, now time.Time) (*domain.Bookmark, error) {
	notes := w.entry.Notes
	b := &domain.Bookmark{
		UserID:        userID,
		URL:           w.entry.URL,
		NormalizedURL: w.normalized,
		Title:         domain.CleanTitle(w.entry.Title),
		Notes:         domain.NormalizeNotes(&notes),
		FolderID:      folderID,
		Tags:          domain.ParseTagList(w.entry.Tags),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := q.InsertBookmark(ctx, b); err != nil {
		return nil, err
	}
	if len(b.Tags) > 0 {
		if err := q.SetBookmarkTags(ctx, userID, b.ID, b.Tags); err != nil {
			return nil, err
		}
	}
	if _, err := ApplyContent(ctx, q, b, ex, NotesFillBlank, now); err != nil {
		return nil, err
	}
	if err := q.UpdateBookmark(ctx, b); err != nil {
		return nil, err
	}
	if err := eventlog.RecordBookmark(ctx, q, b, domain.ActionCreate); err != nil {
		return nil, err
	}
	return b, nil
}

// restoreBookmark revives a soft-deleted bookmark, keeping its own title and
// folder when set. It reports false when the bookmark is already active.
func restoreBookmark(ctx context.Context, q *sqlstore.Queries, userID int64, w importWork, folderID *int64, ex content.Extracted, now time.Time) (bool, error) {
	b, err := q.GetBookmark(ctx, userID, w.restoreID)
	if errors.Is(err, sqlstore.ErrNotFound) {
		_, err = createBookmark(ctx, q, userID, w, folderID, ex, now)
		return err == nil, err
	}
	if err != nil {
		return false, err
	}
	if b.Active() {
		return false, nil
	}

	b.DeletedAt = nil
	b.DeletedBy = nil
	if b.Title == nil {
		b.Title = domain.CleanTitle(w.entry.Title)
	}
	if b.FolderID == nil {
		b.FolderID = folderID
	}
	if _, err := ApplyContent(ctx, q, b, ex, NotesFillBlank, now); err != nil {
		return false, err
	}
	b.UpdatedAt = now
	if err := q.UpdateBookmark(ctx, b); err != nil {
		return false, err
	}
	if err := eventlog.RecordBookmark(ctx, q, b, domain.ActionRestore); err != nil {
		return false, err
	}
	return true, nil
}
