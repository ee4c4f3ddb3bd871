package scheduler

import (
	"context"
	"sync"
	"time"
)

// TaskFunc is one periodic job. It must honor ctx cancellation at its
// blocking points.
type TaskFunc func(ctx context.Context) error

// Spec declares a task to register.
type Spec struct {
	Name     string
	Interval time.Duration
	Func     TaskFunc
}

// Task is one scheduled job with its local counters. Counter fields are
// guarded by mu; the single-flight guard is runMu, taken non-blocking at
// every tick.
type Task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
	shared   bool

	runMu sync.Mutex

	mu             sync.Mutex
	running        bool
	lastRun        time.Time
	nextRun        time.Time
	executionCount int64
	failureCount   int64
	skippedCount   int64
	lastDuration   float64
}

// advance moves the next fire time one interval along the grid. A task
// that never ran seeds the grid from the current run's start; a stale
// restored grid point fast-forwards to the first future tick.
func (t *Task) advance(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nextRun.IsZero() {
		t.nextRun = now.Add(t.interval)
		return
	}
	t.nextRun = t.nextRun.Add(t.interval)
	for !t.nextRun.After(now) {
		t.nextRun = t.nextRun.Add(t.interval)
	}
}

func (t *Task) next() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextRun
}

// Status is the read-only view of a task exposed by the API.
type Status struct {
	Name           string     `json:"name"`
	Shared         bool       `json:"shared"`
	Interval       float64    `json:"interval_seconds"`
	IsRunning      bool       `json:"is_running"`
	ExecutionCount int64      `json:"execution_count"`
	FailureCount   int64      `json:"failure_count"`
	SkippedCount   int64      `json:"skipped_count"`
	ExecutionTime  float64    `json:"execution_time"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	NextRun        *time.Time `json:"next_run,omitempty"`
}

func (t *Task) status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Status{
		Name:           t.name,
		Shared:         t.shared,
		Interval:       t.interval.Seconds(),
		IsRunning:      t.running,
		ExecutionCount: t.executionCount,
		FailureCount:   t.failureCount,
		SkippedCount:   t.skippedCount,
		ExecutionTime:  t.lastDuration,
	}
	if !t.lastRun.IsZero() {
		lr := t.lastRun
		s.LastRun = &lr
	}
	if !t.nextRun.IsZero() {
		nr := t.nextRun
		s.NextRun = &nr
	}
	return s
}
