// Package tasks schedules task modules on cron expressions.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"botframe/pkg/logger"
)

var (
	// ErrAlreadyRegistered is returned when a task id is taken.
	ErrAlreadyRegistered = errors.New("task already registered")
	// ErrNotFound is returned for unknown task ids.
	ErrNotFound = errors.New("task not found")
)

// Task is a module run on a schedule.
type Task struct {
	ID          string
	Category    string
	Description string
	// Schedule is a standard five-field cron expression or a descriptor
	// such as "@hourly" or "@every 10m".
	Schedule string
	// Immediate runs the task once when the scheduler starts.
	Immediate bool
	Run       func(ctx context.Context) error
}

// Status is a snapshot of a task's run history.
type Status struct {
	ID          string    `json:"id"`
	Category    string    `json:"category"`
	Schedule    string    `json:"schedule"`
	Enabled     bool      `json:"enabled"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	RunCount    int       `json:"run_count"`
	LastError   string    `json:"last_error"`
	LastSuccess bool      `json:"last_success"`
}

type entry struct {
	task    *Task
	id      cron.EntryID
	enabled bool
	status  Status
}

// Options configures a Scheduler.
type Options struct {
	Location *time.Location
	// Timeout bounds a single run. Zero means five minutes.
	Timeout time.Duration
}

// Scheduler runs tasks with robfig/cron.
type Scheduler struct {
	log       *logger.Logger
	scheduler *cron.Cron
	timeout   time.Duration

	tasks   map[string]*entry
	mu      sync.RWMutex
	started bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a stopped scheduler.
func New(log *logger.Logger, opts Options) *Scheduler {
	log = log.Named("tasks")
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}

	clog := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		log: log,
		scheduler: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		timeout: opts.Timeout,
		tasks:   make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add validates and schedules task.
func (s *Scheduler) Add(task *Task) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("task id cannot be empty")
	}
	if task.Run == nil {
		return fmt.Errorf("task %s: run cannot be nil", task.ID)
	}
	if _, err := cron.ParseStandard(task.Schedule); err != nil {
		return fmt.Errorf("task %s: invalid schedule %q: %w", task.ID, task.Schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, task.ID)
	}

	e := &entry{
		task:    task,
		enabled: true,
		status:  Status{ID: task.ID, Category: task.Category, Schedule: task.Schedule},
	}
	if err := s.schedule(e); err != nil {
		return err
	}
	s.tasks[task.ID] = e

	s.log.Info("Added task",
		zap.String("task", task.ID),
		zap.String("schedule", task.Schedule))

	if s.started && task.Immediate {
		go s.execute(task.ID)
	}
	return nil
}

// Remove unschedules and forgets the task.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.scheduler.Remove(e.id)
	delete(s.tasks, id)

	s.log.Info("Removed task", zap.String("task", id))
	return nil
}

// Enable resumes a disabled task.
func (s *Scheduler) Enable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.enabled {
		return nil
	}
	e.enabled = true
	return s.schedule(e)
}

// Disable stops scheduling a task without removing it.
func (s *Scheduler) Disable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !e.enabled {
		return nil
	}
	e.enabled = false
	s.scheduler.Remove(e.id)
	e.id = 0
	e.status.NextRun = time.Time{}
	return nil
}

// Get returns the status of task id.
func (s *Scheduler) Get(id string) (Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.tasks[id]
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.snapshot(e), nil
}

// List returns the status of every task, sorted by id.
func (s *Scheduler) List() []Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Status, 0, len(s.tasks))
	for _, e := range s.tasks {
		out = append(out, s.snapshot(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunNow runs task id synchronously, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.mu.RLock()
	e, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.run(ctx, e.task)
}

// Start starts the cron loop and the immediate tasks.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	s.started = true
	var immediate []string
	for id, e := range s.tasks {
		if e.enabled && e.task.Immediate {
			immediate = append(immediate, id)
		}
	}
	s.mu.Unlock()

	s.scheduler.Start()
	for _, id := range immediate {
		go s.execute(id)
	}

	s.log.Info("Started task scheduler", zap.Int("tasks", len(s.List())))
	return nil
}

// Stop stops the cron loop, cancels running tasks and waits for them.
func (s *Scheduler) Stop() error {
	done := s.scheduler.Stop()
	s.cancel()
	<-done.Done()

	s.log.Info("Task scheduler stopped")
	return nil
}

// schedule adds e to the cron loop. Caller holds s.mu.
func (s *Scheduler) schedule(e *entry) error {
	id := e.task.ID
	eid, err := s.scheduler.AddFunc(e.task.Schedule, func() { s.execute(id) })
	if err != nil {
		return fmt.Errorf("scheduling task %s: %w", id, err)
	}
	e.id = eid
	return nil
}

// snapshot copies the status of e. Caller holds s.mu.
func (s *Scheduler) snapshot(e *entry) Status {
	st := e.status
	st.Enabled = e.enabled
	if e.enabled {
		st.NextRun = s.scheduler.Entry(e.id).Next
	}
	return st
}

func (s *Scheduler) execute(id string) {
	s.mu.RLock()
	e, ok := s.tasks[id]
	enabled := ok && e.enabled
	s.mu.RUnlock()
	if !enabled {
		return
	}
	if err := s.run(s.ctx, e.task); err != nil {
		s.log.Error("Task failed", zap.String("task", id), zap.Error(err))
	}
}

func (s *Scheduler) run(ctx context.Context, task *Task) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.log.Debug("Running task", zap.String("task", task.ID))
	started := time.Now()
	err := task.Run(ctx)

	s.mu.Lock()
	if e, ok := s.tasks[task.ID]; ok && e.task == task {
		e.status.LastRun = started
		e.status.RunCount++
		e.status.LastSuccess = err == nil
		e.status.LastError = ""
		if err != nil {
			e.status.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("task %s: %w", task.ID, err)
	}
	s.log.Debug("Task completed",
		zap.String("task", task.ID),
		zap.Duration("took", time.Since(started)))
	return nil
}

// cronLogger adapts the logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
