package jobs

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// Registry holds the live state of the jobs executing in this process:
// one runtime snapshot, one cancel func and one stop flag per job.
// All reads return copies.
type Registry struct {
	mu       sync.Mutex
	runtimes map[int64]domain.JobRuntime
	cancels  map[int64]context.CancelFunc
	stops    map[int64]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		runtimes: make(map[int64]domain.JobRuntime),
		cancels:  make(map[int64]context.CancelFunc),
		stops:    make(map[int64]struct{}),
	}
}

// Attach registers a job about to execute. A stop requested before Attach
// cancels immediately.
func (r *Registry) Attach(jobID int64, kind domain.JobKind, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancels[jobID] = cancel
	r.runtimes[jobID] = domain.JobRuntime{JobID: jobID, Kind: kind, Status: domain.JobPending}
	if _, ok := r.stops[jobID]; ok {
		cancel()
	}
}

// RequestStop flags the job and cancels its stop context.
func (r *Registry) RequestStop(jobID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stops[jobID] = struct{}{}
	if cancel, ok := r.cancels[jobID]; ok {
		cancel()
	}
}

// StopRequested reports whether a stop was requested for the job.
func (r *Registry) StopRequested(jobID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.stops[jobID]
	return ok
}

// Update applies fn to the job's snapshot and returns a copy of the result.
func (r *Registry) Update(jobID int64, fn func(rt *domain.JobRuntime)) domain.JobRuntime {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.runtimes[jobID]
	if !ok {
		rt = domain.JobRuntime{JobID: jobID}
	}
	fn(&rt)
	r.runtimes[jobID] = rt
	return rt
}

// Snapshot returns a copy of the job's runtime.
func (r *Registry) Snapshot(jobID int64) (domain.JobRuntime, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.runtimes[jobID]
	return rt, ok
}

// Release drops the cancel func and stop flag once the job has finished.
// The snapshot stays readable until Forget.
func (r *Registry) Release(jobID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cancels, jobID)
	delete(r.stops, jobID)
}

// Forget removes everything known about the job.
func (r *Registry) Forget(jobID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.runtimes, jobID)
	delete(r.cancels, jobID)
	delete(r.stops, jobID)
}

// Attached reports whether a coordinator in this process owns the job.
func (r *Registry) Attached(jobID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.cancels[jobID]
	return ok
}

// Running returns the number of jobs currently attached.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.cancels)
}

// Rates are the throughput figures derived from a runtime snapshot.
type Rates struct {
	ElapsedSeconds *int
	ItemsPerSecond *float64
	ETASeconds     *int
}

// ComputeRates derives elapsed time, items per second and the remaining
// time estimate. Elapsed runs to FinishedAt once the job is over.
func ComputeRates(rt domain.JobRuntime, now time.Time) Rates {
	var out Rates
	if rt.StartedAt == nil {
		return out
	}
	end := now
	if rt.FinishedAt != nil {
		end = *rt.FinishedAt
	}
	elapsed := end.Sub(*rt.StartedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	secs := int(elapsed)
	out.ElapsedSeconds = &secs

	if elapsed > 0 && rt.ProcessedItems > 0 {
		ips := math.Round(float64(rt.ProcessedItems)/elapsed*100) / 100
		out.ItemsPerSecond = &ips
		if rt.TotalItems > rt.ProcessedItems && ips > 0 {
			eta := int(float64(rt.TotalItems-rt.ProcessedItems) / ips)
			out.ETASeconds = &eta
		}
	}
	return out
}
