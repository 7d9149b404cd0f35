package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	gferrors "github.com/vnykmshr/shardpool/pkg/common/errors"
	"github.com/vnykmshr/shardpool/pkg/common/validation"
	"github.com/vnykmshr/shardpool/pkg/metrics"
	"github.com/vnykmshr/shardpool/pkg/scheduling/workerpool"
)

const module = "scheduler"

var (
	// ErrTaskExists is returned when an id is already scheduled.
	ErrTaskExists = errors.New("task already scheduled")

	// ErrTooManyTasks is returned when MaxTasks entries are already scheduled.
	ErrTooManyTasks = errors.New("maximum number of scheduled tasks reached")

	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// Task represents a scheduled task.
type Task struct {
	ID       string
	RunAt    time.Time
	Interval time.Duration // Zero for one-time tasks
	Cron     string        // Empty unless scheduled with ScheduleCron
	Created  time.Time
}

// Stats counts scheduler dispatches.
type Stats struct {
	Scheduled  int
	Dispatched int64
	Rejected   int64
}

// Scheduler hands tasks to an executor at a point in time, at a fixed
// interval or on a cron schedule.
type Scheduler interface {
	// Basic scheduling
	Schedule(id string, task workerpool.Task, runAt time.Time) error
	ScheduleAfter(id string, task workerpool.Task, delay time.Duration) error
	ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error

	// Cron scheduling
	ScheduleCron(id string, cronExpr string, task workerpool.Task) error

	// Task management
	Cancel(id string) bool
	CancelAll()
	List() []Task
	Stats() Stats

	// Lifecycle
	Start() error
	Stop() <-chan struct{}
}

// Config holds scheduler configuration.
type Config struct {
	// Executor receives due tasks. Required. The scheduler never shuts it down.
	Executor workerpool.Executor

	// Name labels logs and metrics (default: "default").
	Name string

	Location     *time.Location // For cron scheduling
	TickInterval time.Duration  // How often to check for ready tasks (default: 50ms)
	MaxTasks     int            // Maximum number of scheduled tasks (default: 10000)

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records dispatches when set.
	Metrics *metrics.Registry
}

type scheduledTask struct {
	id           string
	task         workerpool.Task
	runAt        time.Time
	interval     time.Duration
	cronExpr     string
	cronSchedule cron.Schedule
	created      time.Time
}

type scheduler struct {
	executor     workerpool.Executor
	name         string
	location     *time.Location
	tickInterval time.Duration
	maxTasks     int
	cronParser   cron.Parser
	logger       *slog.Logger
	metrics      *metrics.Registry

	dispatched atomic.Int64
	rejected   atomic.Int64

	mu      sync.RWMutex
	tasks   map[string]*scheduledTask
	done    chan struct{}
	stopped chan struct{}
	running bool
}

// New creates a scheduler with default configuration that feeds exec.
func New(exec workerpool.Executor) (Scheduler, error) {
	return NewWithConfig(Config{Executor: exec})
}

// NewWithConfig creates a scheduler with custom configuration.
func NewWithConfig(cfg Config) (Scheduler, error) {
	if cfg.Executor == nil {
		return nil, validation.ValidateNotNil(module, "Executor", nil)
	}
	if err := validation.ValidateNonNegative(module, "MaxTasks", cfg.MaxTasks); err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = "default"
	}

	location := cfg.Location
	if location == nil {
		location = time.Local
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = 50 * time.Millisecond
	}

	maxTasks := cfg.MaxTasks
	if maxTasks <= 0 {
		maxTasks = 10000
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &scheduler{
		executor:     cfg.Executor,
		name:         name,
		location:     location,
		tickInterval: tickInterval,
		maxTasks:     maxTasks,
		cronParser:   cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:       logger.With("component", module, "scheduler", name),
		metrics:      cfg.Metrics,
		tasks:        make(map[string]*scheduledTask),
	}, nil
}

func validateEntry(id string, task workerpool.Task) error {
	if err := validation.ValidateNotEmpty(module, "id", id); err != nil {
		return err
	}
	if len(id) > 255 {
		return gferrors.NewValidationError(module, "id", id, "too long (max 255 characters)")
	}
	if task == nil {
		return workerpool.ErrNilTask
	}
	return nil
}

// add inserts entry unless its id is taken or the scheduler is full.
func (s *scheduler) add(entry *scheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[entry.id]; exists {
		return fmt.Errorf("%w: %q", ErrTaskExists, entry.id)
	}
	if len(s.tasks) >= s.maxTasks {
		return fmt.Errorf("%w (%d)", ErrTooManyTasks, s.maxTasks)
	}

	entry.created = time.Now()
	s.tasks[entry.id] = entry
	s.logger.Debug("task scheduled", "id", entry.id, "run_at", entry.runAt)
	return nil
}

func (s *scheduler) Schedule(id string, task workerpool.Task, runAt time.Time) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	if runAt.IsZero() {
		return gferrors.NewValidationError(module, "runAt", runAt, "cannot be zero")
	}

	return s.add(&scheduledTask{id: id, task: task, runAt: runAt})
}

func (s *scheduler) ScheduleAfter(id string, task workerpool.Task, delay time.Duration) error {
	return s.Schedule(id, task, time.Now().Add(delay))
}

func (s *scheduler) ScheduleRepeating(id string, task workerpool.Task, interval time.Duration) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration(module, "interval", interval); err != nil {
		return err
	}

	return s.add(&scheduledTask{id: id, task: task, runAt: time.Now(), interval: interval})
}

func (s *scheduler) ScheduleCron(id string, cronExpr string, task workerpool.Task) error {
	if err := validateEntry(id, task); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty(module, "cronExpr", cronExpr); err != nil {
		return err
	}

	schedule, err := s.cronParser.Parse(cronExpr)
	if err != nil {
		return gferrors.NewValidationError(module, "cronExpr", cronExpr, err.Error()).
			WithHint("use six fields with seconds, e.g. \"*/5 * * * * *\", or a descriptor such as @hourly")
	}

	return s.add(&scheduledTask{
		id:           id,
		task:         task,
		runAt:        schedule.Next(time.Now().In(s.location)),
		cronExpr:     cronExpr,
		cronSchedule: schedule,
	})
}

func (s *scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[id]; exists {
		delete(s.tasks, id)
		return true
	}
	return false
}

func (s *scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = make(map[string]*scheduledTask)
}

func (s *scheduler) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, Task{
			ID:       t.id,
			RunAt:    t.runAt,
			Interval: t.interval,
			Cron:     t.cronExpr,
			Created:  t.created,
		})
	}

	// Sort by run time
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].RunAt.Before(tasks[j].RunAt)
	})

	return tasks
}

func (s *scheduler) Stats() Stats {
	s.mu.RLock()
	scheduled := len(s.tasks)
	s.mu.RUnlock()

	return Stats{
		Scheduled:  scheduled,
		Dispatched: s.dispatched.Load(),
		Rejected:   s.rejected.Load(),
	}
}

func (s *scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.run(s.done, s.stopped)
	s.logger.Info("scheduler started", "tick_interval", s.tickInterval)
	return nil
}

// Stop halts dispatching. The returned channel closes once the dispatch
// loop has exited; tasks already handed to the executor are unaffected.
func (s *scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		stopped := make(chan struct{})
		close(stopped)
		return stopped
	}

	s.running = false
	close(s.done)
	s.logger.Info("scheduler stopping")
	return s.stopped
}

func (s *scheduler) run(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			s.processReadyTasks(now)
		}
	}
}

func (s *scheduler) processReadyTasks(now time.Time) {
	s.mu.Lock()
	if len(s.tasks) == 0 {
		s.mu.Unlock()
		return
	}

	readyTasks := make([]*scheduledTask, 0, len(s.tasks))
	for id, task := range s.tasks {
		if task.runAt.After(now) {
			continue
		}
		readyTasks = append(readyTasks, task)

		switch {
		case task.interval > 0:
			task.runAt = now.Add(task.interval)
		case task.cronSchedule != nil:
			task.runAt = task.cronSchedule.Next(now.In(s.location))
		default:
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()

	for _, task := range readyTasks {
		s.dispatch(task)
	}
}

// dispatch hands task to the executor. A rejection skips this occurrence;
// repeating and cron entries fire again on their next run time.
func (s *scheduler) dispatch(task *scheduledTask) {
	err := s.executor.ExecuteWithContext(context.Background(), task.task)
	if err != nil {
		s.rejected.Add(1)
		if s.metrics != nil {
			s.metrics.SchedulerDispatchFailures.WithLabelValues(s.name).Inc()
		}
		s.logger.Warn("scheduled task rejected", "id", task.id, "error", err)
		return
	}

	s.dispatched.Add(1)
	if s.metrics != nil {
		s.metrics.SchedulerDispatched.WithLabelValues(s.name).Inc()
	}
	s.logger.Debug("scheduled task dispatched", "id", task.id)
}
