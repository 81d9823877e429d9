package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"PriceFusion/pkg/logger"
)

// TaskFunc is a scheduled unit of work.
type TaskFunc func(ctx context.Context) error

// TaskStatus is the outcome of the latest run of a task.
type TaskStatus struct {
	Name     string        `json:"name"`
	Schedule string        `json:"schedule"`
	Running  bool          `json:"running"`
	LastRun  time.Time     `json:"last_run"`
	LastErr  string        `json:"last_error,omitempty"`
	Duration time.Duration `json:"duration"`
	Runs     int           `json:"runs"`
}

type task struct {
	fn     TaskFunc
	status TaskStatus
}

// Scheduler runs named tasks on cron schedules ("@every 30m", "0 */6 * * *").
// A task still running when its next tick fires is skipped.
type Scheduler struct {
	cron    *cron.Cron
	log     *logger.Logger
	timeout time.Duration

	mu    sync.Mutex
	tasks map[string]*task

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler; each run gets at most timeout (0 disables it).
func New(log *logger.Logger, timeout time.Duration) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(),
		log:     log.With("scheduler"),
		timeout: timeout,
		tasks:   make(map[string]*task),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name.
func (s *Scheduler) Add(name, schedule string, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tasks[name]; dup {
		return fmt.Errorf("task %q already scheduled", name)
	}
	t := &task{fn: fn, status: TaskStatus{Name: name, Schedule: schedule}}
	if _, err := s.cron.AddFunc(schedule, func() { s.run(name) }); err != nil {
		return fmt.Errorf("schedule %q: %w", name, err)
	}
	s.tasks[name] = t
	return nil
}

// RunNow executes a task synchronously outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	_, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.run(name)
}

func (s *Scheduler) run(name string) error {
	s.mu.Lock()
	t := s.tasks[name]
	if t.status.Running {
		s.mu.Unlock()
		s.log.Warn("task still running, skipping tick", logger.String("task", name))
		return nil
	}
	t.status.Running = true
	s.mu.Unlock()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := t.fn(ctx)
	elapsed := time.Since(start)

	s.mu.Lock()
	t.status.Running = false
	t.status.LastRun = start
	t.status.Duration = elapsed
	t.status.Runs++
	t.status.LastErr = ""
	if err != nil {
		t.status.LastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("scheduled task failed", logger.String("task", name), logger.Duration("elapsed", elapsed), logger.Error(err))
	} else {
		s.log.Info("scheduled task done", logger.String("task", name), logger.Duration("elapsed", elapsed))
	}
	return err
}

// Status snapshots every task.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.status)
	}
	return out
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels running tasks and waits for them up to ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
