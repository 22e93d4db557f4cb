// Package jobs runs long background work (imports, dead-link checks and
// content enrichment) outside the request path.
//
// Each job is a persisted record plus one coordinator goroutine. The
// coordinator fans outbound fetches out to a bounded errgroup, then commits
// the results one by one in completion order. Only the coordinator touches
// the record's counters. Live progress is published to a Registry and,
// when configured, mirrored to Redis.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/metrics"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

var (
	// ErrNotFound is returned when the job does not exist for the user.
	ErrNotFound = errors.New("job not found")
	// ErrJobActive is returned when deleting a job that is not terminal.
	ErrJobActive = errors.New("job is still active")
)

// Fetcher retrieves and extracts one URL. *content.Fetcher implements it.
type Fetcher interface {
	FetchAndExtract(ctx context.Context, url string) content.Extracted
}

// RuntimeMirror stores runtime snapshots outside the process.
// *redis.Store implements it.
type RuntimeMirror interface {
	SaveJobRuntime(ctx context.Context, rt *domain.JobRuntime) error
	GetJobRuntime(ctx context.Context, jobID int64) (*domain.JobRuntime, error)
	DeleteJobRuntime(ctx context.Context, jobID int64) error
}

// Workers is the pool size per job kind.
type Workers struct {
	Import     int
	DeadLink   int
	Enrichment int
}

func (w Workers) forKind(kind domain.JobKind) int {
	n := 1
	switch kind {
	case domain.JobImport:
		n = w.Import
	case domain.JobDeadLink:
		n = w.DeadLink
	case domain.JobEnrichment:
		n = w.Enrichment
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Options configures a Manager. Mirror and Metrics are optional.
type Options struct {
	Store    *sqlstore.Store
	Fetcher  Fetcher
	Registry *Registry
	Mirror   RuntimeMirror
	Metrics  *metrics.Metrics
	Logger   logger.Logger
	Workers  Workers
}

// Manager creates, runs, stops and deletes jobs.
type Manager struct {
	base     context.Context
	store    *sqlstore.Store
	fetcher  Fetcher
	registry *Registry
	mirror   RuntimeMirror
	metrics  *metrics.Metrics
	log      logger.Logger
	workers  Workers
	now      func() time.Time

	wg sync.WaitGroup
}

// NewManager creates a manager whose jobs live as long as ctx. Cancelling
// ctx interrupts running jobs and aborts in-flight fetches.
func NewManager(ctx context.Context, opts Options) *Manager {
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("jobs")
	return &Manager{
		base:     ctx,
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		registry: reg,
		mirror:   opts.Mirror,
		metrics:  opts.Metrics,
		log:      log,
		workers:  opts.Workers,
		now:      domain.Now,
	}
}

// Registry returns the registry the manager publishes to.
func (m *Manager) Registry() *Registry { return m.registry }

// StartImport persists a pending import job for the parsed entries and
// starts it in the background.
func (m *Manager) StartImport(ctx context.Context, userID int64, entries []domain.ImportEntry) (*domain.Job, error) {
	return m.start(ctx, userID, domain.JobImport, m.runImport(entries))
}

// StartDeadLinkCheck starts a link check over the user's active bookmarks,
// or over ids when given.
func (m *Manager) StartDeadLinkCheck(ctx context.Context, userID int64, ids []int64) (*domain.Job, error) {
	return m.start(ctx, userID, domain.JobDeadLink, m.runDeadLink(uniqueIDs(ids)))
}

// StartEnrichment fetches content for the given bookmarks.
func (m *Manager) StartEnrichment(ctx context.Context, userID int64, ids []int64) (*domain.Job, error) {
	return m.start(ctx, userID, domain.JobEnrichment, m.runEnrichment(uniqueIDs(ids)))
}

func (m *Manager) start(ctx context.Context, userID int64, kind domain.JobKind, fn executeFunc) (*domain.Job, error) {
	now := m.now()
	job := &domain.Job{
		UserID:    userID,
		Kind:      kind,
		Status:    domain.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Q().InsertJob(ctx, job); err != nil {
		return nil, err
	}

	stop, cancel := context.WithCancel(m.base)
	m.registry.Attach(job.ID, kind, cancel)
	m.metrics.JobStarted(string(kind))
	m.log.Info("job created",
		logger.JobID(job.ID),
		logger.String("kind", string(kind)),
		logger.UserID(userID))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		m.execute(stop, job, fn)
	}()

	return job, nil
}

// Details is a job record merged with its live runtime.
type Details struct {
	*domain.Job
	ProcessedItems int      `json:"processed_items"`
	TotalItems     int      `json:"total_items"`
	TotalFailed    int      `json:"total_failed"`
	CurrentTitle   *string  `json:"current_title"`
	CurrentURL     *string  `json:"current_url"`
	ItemsPerSecond *float64 `json:"items_per_second"`
	ETASeconds     *int     `json:"eta_seconds"`
	ElapsedSeconds *int     `json:"elapsed_seconds"`
	StatusMessage  *string  `json:"status_message"`
	CanStop        bool     `json:"can_stop"`
	CanDelete      bool     `json:"can_delete"`
}

// Details returns the job with its runtime snapshot. The local registry is
// preferred; the mirror answers for jobs this process never ran.
func (m *Manager) Details(ctx context.Context, userID, jobID int64) (*Details, error) {
	job, err := m.getJob(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	rt, ok := m.registry.Snapshot(jobID)
	if !ok && m.mirror != nil {
		mirrored, err := m.mirror.GetJobRuntime(ctx, jobID)
		if err == nil {
			rt, ok = *mirrored, true
		}
	}

	d := &Details{
		Job:         job,
		TotalFailed: job.Failed,
		CanStop:     job.Status.Active(),
		CanDelete:   job.Status.Terminal(),
	}
	if ok {
		d.ProcessedItems = rt.ProcessedItems
		d.TotalItems = rt.TotalItems
		d.CurrentTitle = rt.CurrentTitle
		d.CurrentURL = rt.CurrentURL
		if rt.StatusMessage != "" {
			d.StatusMessage = domain.Ptr(rt.StatusMessage)
		}
		rates := ComputeRates(rt, m.now())
		d.ElapsedSeconds = rates.ElapsedSeconds
		d.ItemsPerSecond = rates.ItemsPerSecond
		d.ETASeconds = rates.ETASeconds
	}
	if job.Status.Terminal() && d.ProcessedItems == 0 {
		d.ProcessedItems = processedFromCounters(job)
	}
	if d.TotalItems == 0 {
		d.TotalItems = job.Targets
	}
	return d, nil
}

func processedFromCounters(job *domain.Job) int {
	if job.Kind == domain.JobImport {
		return job.Created + job.Skipped + job.Failed
	}
	return job.Checked
}

// Stop requests a cooperative stop. It reports false, changing nothing,
// when the job is already terminal.
func (m *Manager) Stop(ctx context.Context, userID, jobID int64) (bool, error) {
	job, err := m.getJob(ctx, userID, jobID)
	if err != nil {
		return false, err
	}
	if !job.Status.Active() {
		return false, nil
	}

	if !m.registry.Attached(jobID) {
		// No coordinator in this process owns the job.
		now := m.now()
		job.Status = domain.JobStopped
		job.ErrorMessage = domain.Ptr(msgStoppedByUser)
		job.FinishedAt = &now
		job.UpdatedAt = now
		return m.store.Q().FinishJob(ctx, job)
	}

	m.registry.RequestStop(jobID)
	rt := m.registry.Update(jobID, func(rt *domain.JobRuntime) {
		rt.StatusMessage = textsFor(job.Kind).stopping
	})
	m.mirrorRuntime(ctx, rt)
	m.log.Info("job stop requested", logger.JobID(jobID))
	return true, nil
}

// Delete removes a terminal job and its runtime.
func (m *Manager) Delete(ctx context.Context, userID, jobID int64) error {
	job, err := m.getJob(ctx, userID, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return ErrJobActive
	}
	if err := m.store.Q().DeleteJob(ctx, userID, jobID); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	m.registry.Forget(jobID)
	if m.mirror != nil {
		if err := m.mirror.DeleteJobRuntime(ctx, jobID); err != nil {
			m.log.Warn("failed to delete mirrored job runtime",
				logger.JobID(jobID), logger.Error(err))
		}
	}
	return nil
}

// RecoverAbandoned fails the jobs a previous process left pending or
// running. Call it once at startup, before any job is started.
func (m *Manager) RecoverAbandoned(ctx context.Context) (int64, error) {
	n, err := m.store.Q().AbandonActiveJobs(ctx, msgInterruptedRestart, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Warn("marked abandoned jobs as failed", logger.Int64("count", n))
	}
	return n, nil
}

// Wait blocks until every spawned job and its in-flight fetches return.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) getJob(ctx context.Context, userID, jobID int64) (*domain.Job, error) {
	job, err := m.store.Q().GetJob(ctx, userID, jobID)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load job %d: %w", jobID, err)
	}
	return job, nil
}

func (m *Manager) mirrorRuntime(ctx context.Context, rt domain.JobRuntime) {
	if m.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := m.mirror.SaveJobRuntime(ctx, &rt); err != nil {
		m.log.Debug("failed to mirror job runtime",
			logger.JobID(rt.JobID), logger.Error(err))
	}
}

func uniqueIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
