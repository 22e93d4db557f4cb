package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/linkloom/internal/content"
	"github.com/MrSnakeDoc/linkloom/internal/domain"
	"github.com/MrSnakeDoc/linkloom/internal/logger"
	"github.com/MrSnakeDoc/linkloom/internal/store/sqlstore"
)

const (
	msgStoppedByUser      = "Stopped by user."
	msgInterrupted        = "Interrupted by shutdown."
	msgInterruptedRestart = "Interrupted by restart."
	msgRecordGone         = "Job record disappeared."
)

type kindTexts struct {
	preparing string
	empty     string
	done      string
	failed    string
	stopping  string
}

var texts = map[domain.JobKind]kindTexts{
	domain.JobImport: {
		preparing: "Planning import...",
		empty:     "No bookmarks found in upload.",
		done:      "Import completed.",
		failed:    "Import failed.",
		stopping:  "Stop requested. Finishing active imports...",
	},
	domain.JobDeadLink: {
		preparing: "Preparing dead-link targets...",
		empty:     "No bookmarks need checking.",
		done:      "Dead-link check complete.",
		failed:    "Check failed.",
		stopping:  "Stop requested. Finishing active checks...",
	},
	domain.JobEnrichment: {
		preparing: "Preparing enrichment targets...",
		empty:     "No bookmarks need enrichment.",
		done:      "Enrichment complete.",
		failed:    "Enrichment failed.",
		stopping:  "Stop requested. Finishing active fetches...",
	},
}

func textsFor(kind domain.JobKind) kindTexts {
	return texts[kind]
}

// outcome is the terminal status an executor asks for.
type outcome struct {
	status  domain.JobStatus
	message string
}

func done(message string) outcome {
	return outcome{status: domain.JobDone, message: message}
}

// executeFunc plans and processes one job. A returned error fails the job.
type executeFunc func(r *run) (outcome, error)

// run is the coordinator-owned state of one executing job.
type run struct {
	m *Manager
	// job is the persisted record; only the coordinator mutates it.
	job *domain.Job
	// stop is cancelled by a stop request or by process shutdown.
	stop context.Context
	// ctx is used for store writes and outlives stop.
	ctx     context.Context
	started time.Time
	final   domain.JobStatus
}

func (m *Manager) execute(stop context.Context, job *domain.Job, fn executeFunc) {
	r := &run{
		m:    m,
		job:  job,
		stop: stop,
		ctx:  context.WithoutCancel(m.base),
	}
	created := m.now()

	defer m.registry.Release(job.ID)
	defer func() {
		m.metrics.JobFinished(string(job.Kind), string(r.final), m.now().Sub(created))
	}()
	defer func() {
		if p := recover(); p != nil {
			m.log.Error("job panicked",
				logger.JobID(job.ID),
				logger.String("kind", string(job.Kind)),
				logger.Any("panic", p))
			r.finish(domain.JobFailed, fmt.Sprintf("internal error: %v", p))
		}
	}()

	current, err := m.store.Q().GetJob(r.ctx, 0, job.ID)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			m.log.Warn("job record disappeared before start", logger.JobID(job.ID))
			r.final = domain.JobFailed
			r.track(func(rt *domain.JobRuntime) {
				rt.Status = domain.JobFailed
				rt.StatusMessage = msgRecordGone
			})
			return
		}
		r.finish(domain.JobFailed, err.Error())
		return
	}
	r.job = current
	if current.Status.Terminal() {
		r.final = current.Status
		return
	}

	r.started = m.now()
	r.track(func(rt *domain.JobRuntime) {
		rt.Status = domain.JobRunning
		rt.StartedAt = &r.started
		rt.StatusMessage = textsFor(job.Kind).preparing
	})

	if stop.Err() != nil {
		r.finish(domain.JobStopped, r.stopMessage())
		return
	}

	ok, err := m.store.Q().MarkJobRunning(r.ctx, job.ID, 0, r.started)
	if err != nil {
		r.finish(domain.JobFailed, err.Error())
		return
	}
	if !ok {
		m.log.Warn("job left pending state before start", logger.JobID(job.ID))
		r.final = domain.JobFailed
		return
	}
	r.job.Status = domain.JobRunning
	r.job.Progress = 0
	r.job.ErrorMessage = nil
	r.job.JobCounters = domain.JobCounters{}
	r.job.StartedAt = &r.started

	m.log.Info("job started",
		logger.JobID(job.ID),
		logger.String("kind", string(job.Kind)))

	out, err := fn(r)
	if err != nil {
		m.log.Error("job failed",
			logger.JobID(job.ID),
			logger.String("kind", string(job.Kind)),
			logger.Error(err))
		r.finish(domain.JobFailed, err.Error())
		return
	}
	r.finish(out.status, out.message)
}

// stopMessage tells a user stop apart from a process shutdown.
func (r *run) stopMessage() string {
	if r.m.registry.StopRequested(r.job.ID) {
		return msgStoppedByUser
	}
	return msgInterrupted
}

func (r *run) stopped() outcome {
	return outcome{status: domain.JobStopped, message: r.stopMessage()}
}

// track updates the runtime snapshot and mirrors it.
func (r *run) track(fn func(rt *domain.JobRuntime)) domain.JobRuntime {
	rt := r.m.registry.Update(r.job.ID, fn)
	r.m.mirrorRuntime(r.ctx, rt)
	return rt
}

// progress persists the counters and publishes the current item.
func (r *run) progress(processed, total int, title, url *string, message string) error {
	now := r.m.now()
	r.job.Progress = percent(processed, total)
	r.job.UpdatedAt = now
	if err := r.m.store.Q().UpdateJobProgress(r.ctx, r.job); err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return errors.New(msgRecordGone)
		}
		return err
	}

	r.track(func(rt *domain.JobRuntime) {
		rt.ProcessedItems = processed
		rt.TotalItems = total
		rt.CurrentTitle = title
		rt.CurrentURL = url
		rt.StatusMessage = message
	})
	return nil
}

// finish writes the terminal status. The store only accepts it from
// pending or running, so a job finishes once.
func (r *run) finish(status domain.JobStatus, message string) {
	now := r.m.now()
	t := textsFor(r.job.Kind)

	rt := r.track(func(rt *domain.JobRuntime) {
		rt.Status = status
		rt.FinishedAt = &now
		switch {
		case message != "":
			rt.StatusMessage = message
		case status == domain.JobDone:
			rt.StatusMessage = t.done
		default:
			rt.StatusMessage = t.failed
		}
	})
	r.final = status

	r.job.Status = status
	if rt.TotalItems > 0 {
		r.job.Progress = percent(rt.ProcessedItems, rt.TotalItems)
	} else if status == domain.JobDone {
		r.job.Progress = 100
	}
	r.job.ErrorMessage = nil
	if message != "" {
		r.job.ErrorMessage = domain.Ptr(message)
	}
	r.job.FinishedAt = &now
	r.job.UpdatedAt = now

	ok, err := r.m.store.Q().FinishJob(r.ctx, r.job)
	switch {
	case err != nil:
		r.m.log.Error("failed to persist job result",
			logger.JobID(r.job.ID), logger.Error(err))
	case !ok:
		r.m.log.Warn("job already terminal", logger.JobID(r.job.ID))
	default:
		r.m.log.Info("job finished",
			logger.JobID(r.job.ID),
			logger.String("kind", string(r.job.Kind)),
			logger.String("status", string(status)),
			logger.Int("processed", rt.ProcessedItems),
			logger.Int("total", rt.TotalItems))
	}
}

// item is one unit of fan-out work.
type item struct {
	index      int
	bookmarkID int64
	url        string
	title      *string
}

type fetched struct {
	item
	ex      content.Extracted
	latency time.Duration
}

// fanOut fetches every item on a pool of workers and hands each result to
// commit in completion order. The stop context is checked before each
// commit; once it is done, queued items are discarded, in-flight fetches
// run to completion in the background and fanOut reports stopped. A commit
// error aborts the same way and is returned.
func (r *run) fanOut(items []item, workers int, commit func(f fetched) error) (bool, error) {
	if len(items) == 0 {
		return false, nil
	}

	dispatch, cancel := context.WithCancel(r.stop)
	defer cancel()

	results := make(chan fetched, len(items))
	g := new(errgroup.Group)
	g.SetLimit(workers)

	r.m.wg.Add(1)
	go func() {
		defer r.m.wg.Done()
		defer close(results)
		for _, it := range items {
			if dispatch.Err() != nil {
				break
			}
			g.Go(func() error {
				if dispatch.Err() != nil {
					return nil
				}
				results <- r.fetch(it)
				return nil
			})
		}
		_ = g.Wait()
	}()

	for f := range results {
		if r.stop.Err() != nil {
			return true, nil
		}
		if err := commit(f); err != nil {
			return false, err
		}
		r.m.metrics.JobItem(string(r.job.Kind))
	}
	return false, nil
}

func (r *run) fetch(it item) (out fetched) {
	out.item = it
	begin := time.Now()
	defer func() {
		if p := recover(); p != nil {
			out.ex = content.Extracted{Status: domain.LinkUnreachable, Error: fmt.Sprint(p)}
		}
		out.latency = time.Since(begin)
	}()
	out.ex = r.m.fetcher.FetchAndExtract(r.m.base, it.url)
	return out
}

func percent(processed, total int) int {
	if total <= 0 {
		return 100
	}
	p := processed * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
