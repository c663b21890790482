// Package scheduler runs named tasks on fixed intervals,
// non-overlapping with themselves. The sweep cadences of the engine
// are configuration; this package only knows "run T every D".
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type task struct {
	name     string
	every    time.Duration
	fn       func(ctx context.Context)
	inFlight atomic.Bool
}

// Scheduler owns a fixed set of periodic tasks. It can be stopped and
// restarted through the admin API.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []*task
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status is the admin-facing snapshot. ActiveTasks lists the tasks
// executing at the moment of the call.
type Status struct {
	Running     bool     `json:"running"`
	ActiveTasks []string `json:"active_tasks"`
}

func New() *Scheduler { return &Scheduler{} }

// Add registers a task. Must be called before the first Start.
func (s *Scheduler) Add(name string, every time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, &task{name: name, every: every, fn: fn})
}

// Start launches one ticker loop per task. A second Start while
// running is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(runCtx, t)
	}
	zap.L().Info("scheduler started", zap.Int("tasks", len(s.tasks)))
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	defer s.wg.Done()
	tk := time.NewTicker(t.every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			s.runOnce(ctx, t)
		}
	}
}

// runOnce executes the task inline, so a run that outlasts its
// interval simply absorbs the dropped ticks instead of overlapping
// itself. The inFlight flag feeds Status and guards Trigger.
func (s *Scheduler) runOnce(ctx context.Context, t *task) {
	if !t.inFlight.CompareAndSwap(false, true) {
		zap.L().Debug("scheduler task still busy", zap.String("task", t.name))
		return
	}
	defer t.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("scheduler task panicked",
				zap.String("task", t.name), zap.Any("panic", r))
		}
	}()
	t.fn(ctx)
}

// Trigger runs a task by name out of schedule, still respecting the
// non-overlap guard. Returns false when the task is unknown or busy.
func (s *Scheduler) Trigger(ctx context.Context, name string) bool {
	s.mu.Lock()
	var target *task
	for _, t := range s.tasks {
		if t.name == name {
			target = t
		}
	}
	s.mu.Unlock()
	if target == nil || target.inFlight.Load() {
		return false
	}
	s.runOnce(ctx, target)
	return true
}

// Stop cancels all loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	zap.L().Info("scheduler stopped")
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running, ActiveTasks: []string{}}
	for _, t := range s.tasks {
		if t.inFlight.Load() {
			st.ActiveTasks = append(st.ActiveTasks, t.name)
		}
	}
	return st
}
