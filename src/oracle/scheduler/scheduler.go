// Package scheduler drives named tasks on fixed intervals with
// per-task overlap protection.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is one scheduled unit of work. The error becomes the task's
// lastError in the status snapshot.
type Task func(ctx context.Context) error

// TaskStatus is the introspection surface per registered task, read by
// the health checker and operator tooling.
type TaskStatus struct {
	Running    bool      `json:"running"`
	LastRun    time.Time `json:"lastRun"`
	LastError  string    `json:"lastError,omitempty"`
	IntervalMS int64     `json:"intervalMs"`
}

type entry struct {
	name     string
	interval time.Duration
	task     Task

	// running guards against overlapping executions of the same task;
	// distinct tasks run fully concurrently.
	running atomic.Bool

	mu        sync.Mutex
	lastRun   time.Time
	lastError string

	cancel context.CancelFunc
}

// Scheduler runs registered tasks on recurring timers.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*entry
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	log     zerolog.Logger
}

// New returns an empty scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*entry),
		log:   log,
	}
}

// Register adds a task, replacing any existing registration of the
// same name. When the scheduler is already started the new task's
// timer is armed immediately, and with immediate=true the task also
// runs once right away.
func (s *Scheduler) Register(name string, interval time.Duration, task Task, immediate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[name]; ok {
		if old.cancel != nil {
			old.cancel()
		}
		s.log.Debug().Str("task", name).Msg("replacing task registration")
	}

	e := &entry{name: name, interval: interval, task: task}
	s.tasks[name] = e

	if s.started {
		s.launch(e, immediate)
	}
}

// Start arms one recurring timer per registered task and fires each
// task once immediately. Starting twice only logs a warning.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warn().Msg("scheduler already started")
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, e := range s.tasks {
		s.launch(e, true)
	}
	s.log.Info().Int("tasks", len(s.tasks)).Msg("scheduler started")
}

// launch arms the ticker loop for one task. Caller holds s.mu.
func (s *Scheduler) launch(e *entry, runNow bool) {
	loopCtx, cancel := context.WithCancel(s.ctx)
	e.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if runNow {
			go s.run(e)
		}
		t := time.NewTicker(e.interval)
		defer t.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-t.C:
				go s.run(e)
			}
		}
	}()
}

// run executes one tick. Runs deliberately take a background context:
// Stop clears the timers but lets in-flight work finish un-awaited.
func (s *Scheduler) run(e *entry) {
	if !e.running.CompareAndSwap(false, true) {
		s.log.Debug().Str("task", e.name).Msg("previous run still in progress, skipping tick")
		return
	}
	defer e.running.Store(false)

	err := e.task(context.Background())

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.lastError = err.Error()
		s.log.Error().Err(err).Str("task", e.name).Msg("task failed")
		return
	}
	e.lastRun = time.Now()
	e.lastError = ""
}

// Stop clears every timer. Idempotent; in-flight task executions are
// not joined.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info().Msg("scheduler stopped")
}

// Status snapshots every task's state.
func (s *Scheduler) Status() map[string]TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]TaskStatus, len(s.tasks))
	for name, e := range s.tasks {
		e.mu.Lock()
		out[name] = TaskStatus{
			Running:    e.running.Load(),
			LastRun:    e.lastRun,
			LastError:  e.lastError,
			IntervalMS: e.interval.Milliseconds(),
		}
		e.mu.Unlock()
	}
	return out
}
