package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

const jobColumns = `id, user_id, kind, status, progress, error_message,
	targets, created, skipped, checked, alive, problematic, errors, failed,
	created_at, updated_at, started_at, finished_at`

// InsertJob stores a new job record and sets j.ID.
func (q *Queries) InsertJob(ctx context.Context, j *domain.Job) error {
	id, err := q.insert(ctx, `INSERT INTO jobs (user_id, kind, status, progress, targets, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		j.UserID, string(j.Kind), string(j.Status), j.Progress, j.Targets, j.CreatedAt, j.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	j.ID = id
	return nil
}

// GetJob loads a job of the user. userID 0 skips the ownership filter.
func (q *Queries) GetJob(ctx context.Context, userID, id int64) (*domain.Job, error) {
	var j domain.Job
	var err error
	if userID == 0 {
		err = q.get(ctx, &j, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	} else {
		err = q.get(ctx, &j, `SELECT `+jobColumns+` FROM jobs WHERE id = ? AND user_id = ?`, id, userID)
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// MarkJobRunning moves a pending job to running and resets its counters.
// It returns false when the job is no longer pending.
func (q *Queries) MarkJobRunning(ctx context.Context, id int64, targets int, now time.Time) (bool, error) {
	n, err := q.exec(ctx, `UPDATE jobs SET status = ?, progress = 0, error_message = NULL,
		targets = ?, created = 0, skipped = 0, checked = 0, alive = 0, problematic = 0, errors = 0, failed = 0,
		started_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.JobRunning), targets, now, now, id, string(domain.JobPending))
	if err != nil {
		return false, fmt.Errorf("mark job running: %w", err)
	}
	return n == 1, nil
}

// UpdateJobProgress writes progress and counters of a running job.
func (q *Queries) UpdateJobProgress(ctx context.Context, j *domain.Job) error {
	n, err := q.exec(ctx, `UPDATE jobs SET progress = ?,
		targets = ?, created = ?, skipped = ?, checked = ?, alive = ?, problematic = ?, errors = ?, failed = ?,
		updated_at = ?
		WHERE id = ? AND status = ?`,
		j.Progress, j.Targets, j.Created, j.Skipped, j.Checked, j.Alive, j.Problematic, j.Errors, j.Failed,
		j.UpdatedAt, j.ID, string(domain.JobRunning))
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FinishJob moves a pending or running job to a terminal status. It
// returns false when the job was already terminal, so a terminal state is
// written exactly once.
func (q *Queries) FinishJob(ctx context.Context, j *domain.Job) (bool, error) {
	n, err := q.exec(ctx, `UPDATE jobs SET status = ?, progress = ?, error_message = ?,
		targets = ?, created = ?, skipped = ?, checked = ?, alive = ?, problematic = ?, errors = ?, failed = ?,
		finished_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		string(j.Status), j.Progress, j.ErrorMessage,
		j.Targets, j.Created, j.Skipped, j.Checked, j.Alive, j.Problematic, j.Errors, j.Failed,
		j.FinishedAt, j.UpdatedAt,
		j.ID, string(domain.JobPending), string(domain.JobRunning))
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	return n == 1, nil
}

// DeleteJob removes a job record of the user.
func (q *Queries) DeleteJob(ctx context.Context, userID, id int64) error {
	n, err := q.exec(ctx, `DELETE FROM jobs WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveJobs counts pending and running jobs across all users.
func (q *Queries) CountActiveJobs(ctx context.Context) (int, error) {
	var n int
	if err := q.get(ctx, &n, `SELECT COUNT(*) FROM jobs WHERE status IN (?, ?)`,
		string(domain.JobPending), string(domain.JobRunning)); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n, nil
}

// AbandonActiveJobs fails every pending or running job. It runs at startup,
// when no job of a previous process can still be executing.
func (q *Queries) AbandonActiveJobs(ctx context.Context, message string, now time.Time) (int64, error) {
	n, err := q.exec(ctx, `UPDATE jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE status IN (?, ?)`,
		string(domain.JobFailed), message, now, now,
		string(domain.JobPending), string(domain.JobRunning))
	if err != nil {
		return 0, fmt.Errorf("abandon active jobs: %w", err)
	}
	return n, nil
}
