// Package jobmgr runs named jobs on a bounded number of goroutines, with
// cancellation, status callbacks, and in-memory tracking of running jobs.
//
// Typical usage:
//
//	jm := jobmgr.NewManager(4, func(msg string) {
//	    log.Println("JOB:", msg)
//	})
//
//	// blocks until a slot is free and the job returns
//	err := jm.Run(ctx, "guild-1/resolve/7", func(ctx context.Context) error {
//	    return resolve(ctx)
//	})
//
//	// from another goroutine: abandon everything queued or running for guild-1
//	jm.StopPrefix("guild-1/")
//
// Jobs are removed automatically on completion. A job waiting for a slot counts
// as running and can be stopped before it starts.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrJobRunning is returned when a job with the same name is already tracked.
var ErrJobRunning = errors.New("job is already running")

// Job represents a tracked unit of work.
type Job struct {
	Name   string
	Cancel context.CancelFunc
}

// StatusReporter receives lifecycle events for jobs.
// Example messages:
//
//	running:guild-1/resolve/7
//	error:guild-1/resolve/7:context canceled
//	done:guild-1/resolve/7
type StatusReporter func(string)

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	slots    *semaphore.Weighted
	limit    int
	Reporter StatusReporter
}

// NewManager creates a Manager that runs at most limit jobs at once.
// The reporter callback may be nil.
func NewManager(limit int, reporter StatusReporter) *Manager {
	if limit < 1 {
		limit = 1
	}
	return &Manager{
		jobs:     make(map[string]*Job),
		slots:    semaphore.NewWeighted(int64(limit)),
		limit:    limit,
		Reporter: reporter,
	}
}

// Limit returns the maximum number of concurrently executing jobs.
func (m *Manager) Limit() int { return m.limit }

// Run executes runner in the calling goroutine once a slot is available and
// blocks until it returns. The runner's context is cancelled when ctx is done
// or the job is stopped by name.
func (m *Manager) Run(ctx context.Context, name string, runner func(ctx context.Context) error) error {
	jobCtx, job, err := m.track(ctx, name)
	if err != nil {
		return err
	}
	defer m.untrack(job)

	if err := m.slots.Acquire(jobCtx, 1); err != nil {
		m.report("error:" + name + ":" + err.Error())
		return err
	}
	defer m.slots.Release(1)

	return m.exec(jobCtx, name, runner)
}

// Stop cancels a running job by name.
// If the job is not running, an error is returned.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}

	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// StopPrefix cancels every job whose name starts with prefix and returns how many were stopped.
func (m *Manager) StopPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for name, job := range m.jobs {
		if strings.HasPrefix(name, prefix) {
			job.Cancel()
			delete(m.jobs, name)
			n++
		}
	}
	return n
}

// List returns the sorted names of active jobs.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Status returns a human-readable summary of active jobs.
// If none are running: "No jobs are running."
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

func (m *Manager) track(parent context.Context, name string) (context.Context, *Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[name]; exists {
		return nil, nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	ctx, cancel := context.WithCancel(parent)
	job := &Job{Name: name, Cancel: cancel}
	m.jobs[name] = job
	return ctx, job, nil
}

// untrack removes job unless Stop already replaced or removed it.
func (m *Manager) untrack(job *Job) {
	job.Cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs[job.Name] == job {
		delete(m.jobs, job.Name)
	}
}

func (m *Manager) exec(ctx context.Context, name string, runner func(ctx context.Context) error) error {
	m.report("running:" + name)
	err := runner(ctx)
	if err != nil {
		m.report("error:" + name + ":" + err.Error())
	} else {
		m.report("done:" + name)
	}
	return err
}

// report delivers lifecycle messages to the reporter if present.
func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
