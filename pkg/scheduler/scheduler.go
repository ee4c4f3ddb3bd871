package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openskulk/skulk/pkg/cache"
	"github.com/openskulk/skulk/pkg/log"
	"github.com/openskulk/skulk/pkg/metrics"
)

const initLockTTL = 5 * time.Minute

// Scheduler owns the periodic tasks of one worker process. Shared tasks
// are registered only by the election winner; per-worker tasks by every
// worker.
type Scheduler struct {
	cache    *cache.Client
	workerID string
	leader   bool
	tasks    []*Task

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger zerolog.Logger
}

func New(c *cache.Client) *Scheduler {
	return &Scheduler{
		cache:    c,
		workerID: uuid.NewString(),
		logger:   log.WithComponent("scheduler"),
	}
}

// WorkerID returns this process's identity, used as the lock value.
func (s *Scheduler) WorkerID() string { return s.workerID }

// IsLeader reports whether this worker won the shared-task election.
// Valid after Init.
func (s *Scheduler) IsLeader() bool { return s.leader }

// Init elects the shared-task owner and registers the task sets. The
// election lock is advisory: when the cache is unreachable every worker
// registers the shared tasks, which are idempotent against the store.
// Restored checkpoints keep counters and the schedule grid across
// restarts.
func (s *Scheduler) Init(ctx context.Context, shared, perWorker []Spec) error {
	electionLog := log.WithWorkerID(s.workerID)

	won, err := s.cache.SetIfAbsent(ctx, cache.InitLockKey, s.workerID, initLockTTL)
	if err != nil {
		electionLog.Warn().Err(err).Msg("Cache unreachable, assuming shared-task ownership")
		won = true
	}
	s.leader = won

	if won {
		electionLog.Info().Msg("Registering shared tasks")
		for _, spec := range shared {
			s.register(spec, true)
		}
	} else {
		electionLog.Info().Msg("Shared tasks owned by another worker")
	}
	for _, spec := range perWorker {
		s.register(spec, false)
	}

	for _, t := range s.tasks {
		stats, err := s.cache.GetTaskStats(ctx, t.name)
		if err != nil {
			s.logger.Warn().Str("task", t.name).Err(err).Msg("Cannot restore task checkpoint")
			continue
		}
		if stats == nil {
			continue
		}
		t.mu.Lock()
		t.executionCount = stats.ExecutionCount
		t.failureCount = stats.FailureCount
		t.lastRun = stats.LastRun
		t.nextRun = stats.NextRun
		t.mu.Unlock()
		s.logger.Debug().
			Str("task", t.name).
			Int64("execution_count", stats.ExecutionCount).
			Time("next_run", stats.NextRun).
			Msg("Restored task checkpoint")
	}
	return nil
}

func (s *Scheduler) register(spec Spec, shared bool) {
	s.tasks = append(s.tasks, &Task{
		name:     spec.Name,
		interval: spec.Interval,
		fn:       spec.Func,
		shared:   shared,
	})
	s.logger.Info().
		Str("task", spec.Name).
		Dur("interval", spec.Interval).
		Bool("shared", shared).
		Msg("Task registered")
}

// Start launches one tick loop per task. A task whose restored next fire
// time is in the past runs immediately.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.runLoop(ctx, t)
	}
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Scheduler started")
}

// Stop cancels every loop and waits for in-flight runs to observe the
// cancellation.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Scheduler stopped")
}

// Status returns a snapshot of every registered task.
func (s *Scheduler) Status() []Status {
	out := make([]Status, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.status())
	}
	return out
}

// runLoop fires ticks on the task's grid. Ticks keep firing while a slow
// run is still active; the single-flight guard turns those into skips,
// never into queued executions.
func (s *Scheduler) runLoop(ctx context.Context, t *Task) {
	defer s.wg.Done()
	for {
		next := t.next()
		now := time.Now()
		if !next.IsZero() && next.After(now) {
			timer := time.NewTimer(next.Sub(now))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return
		}
		s.tick(ctx, t)
	}
}

func (s *Scheduler) tick(ctx context.Context, t *Task) {
	start := time.Now()
	t.advance(start)

	if !t.runMu.TryLock() {
		t.mu.Lock()
		t.skippedCount++
		t.mu.Unlock()
		metrics.RecordTaskSkip(t.name)
		s.logger.Warn().Str("task", t.name).Msg("Previous run still active, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer t.runMu.Unlock()
		s.execute(ctx, t, start)
	}()
}

func (s *Scheduler) execute(ctx context.Context, t *Task, start time.Time) {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
	metrics.SetTaskRunning(t.name, true)
	s.logger.Debug().Str("task", t.name).Msg("Task starting")

	err := t.fn(ctx)
	elapsed := time.Since(start).Seconds()
	metrics.SetTaskRunning(t.name, false)
	if !errors.Is(err, context.Canceled) {
		metrics.RecordTaskExecution(t.name, err == nil, elapsed)
	}

	t.mu.Lock()
	t.running = false
	t.lastRun = start
	t.lastDuration = elapsed
	switch {
	case err == nil:
		t.executionCount++
	case errors.Is(err, context.Canceled):
		// Shutdown, not a task failure.
	default:
		t.failureCount++
	}
	snapshot := cache.TaskStats{
		ExecutionCount: t.executionCount,
		FailureCount:   t.failureCount,
		LastRun:        t.lastRun,
		NextRun:        t.nextRun,
		ExecutionTime:  t.lastDuration,
	}
	t.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error().Str("task", t.name).Err(err).Msg("Task failed")
	} else if err == nil {
		s.logger.Debug().Str("task", t.name).Float64("execution_time", elapsed).Msg("Task finished")
	}

	// Checkpoint with a fresh context so the final write survives
	// shutdown cancellation.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.SaveTaskStats(saveCtx, t.name, snapshot); err != nil {
		s.logger.Warn().Str("task", t.name).Err(err).Msg("Cannot persist task checkpoint")
	}
}
