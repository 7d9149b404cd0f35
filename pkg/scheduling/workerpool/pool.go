package workerpool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Executor is the capability set shared by every dispatcher variant.
type Executor interface {
	// Execute places task for asynchronous execution. It never blocks and
	// returns a *RejectionError (matching ErrRejected) when the task is not
	// accepted.
	Execute(task Task) error

	// ExecuteWithContext is Execute with a context handed to Task.Execute.
	ExecuteWithContext(ctx context.Context, task Task) error

	// Shutdown stops accepting new tasks and lets queued tasks finish.
	Shutdown()

	// ShutdownNow stops accepting new tasks, stops every worker and drops
	// queued tasks. A task that is already running is allowed to finish.
	ShutdownNow()
}

// State is the shutdown state of a Pool.
type State int32

const (
	// StateAccepting is the initial state.
	StateAccepting State = iota
	// StateDraining follows Shutdown.
	StateDraining
	// StateStopped follows ShutdownNow.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	State       State
	Workers     int
	LiveWorkers int
	Submitted   int64
	Rejected    int64
	Completed   int64
	Failed      int64
	Discarded   int64
	QueueDepths []int
}

// Pool is the fixed-size sharded executor.
type Pool struct {
	config  Config
	logger  *slog.Logger
	workers []*worker

	next  atomic.Uint64
	state atomic.Int32
	live  atomic.Int32

	submitted atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	discarded atomic.Int64

	workerWg sync.WaitGroup
	done     chan struct{}

	listenersMu   sync.Mutex
	stopListeners []func()
}

var _ Executor = (*Pool)(nil)

// New creates a pool with config.CoreWorkers workers and starts them
// immediately.
func New(config Config) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	p := &Pool{
		config: config,
		logger: config.Logger.With("component", module),
		done:   make(chan struct{}),
	}

	p.logger.Info("worker pool starting",
		"core_workers", config.CoreWorkers,
		"max_pool_size", config.MaxPoolSize,
		"queue_size", config.QueueSize,
		"idle_timeout", config.IdleTimeout,
		"min_spare_workers", config.MinSpareWorkers,
	)

	p.workers = make([]*worker, config.CoreWorkers)
	for i := range p.workers {
		p.workers[i] = newWorker(i, p, config.QueueSize, config.IdleTimeout)
	}

	p.live.Store(int32(len(p.workers)))
	p.workerWg.Add(len(p.workers))
	for _, w := range p.workers {
		go w.run()
	}

	go func() {
		p.workerWg.Wait()
		close(p.done)
	}()

	return p, nil
}

// addStopListener registers fn to run on the worker goroutine each time a
// worker exits, after LiveWorkers has been decremented.
func (p *Pool) addStopListener(fn func()) {
	p.listenersMu.Lock()
	p.stopListeners = append(p.stopListeners, fn)
	p.listenersMu.Unlock()
}

func (p *Pool) notifyWorkerStopped() {
	p.listenersMu.Lock()
	listeners := append([]func(){}, p.stopListeners...)
	p.listenersMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// MustNew is like New but panics if the configuration is invalid.
func MustNew(config Config) *Pool {
	p, err := New(config)
	if err != nil {
		panic(err)
	}
	return p
}

// Execute adds a task to the pool for execution with context.Background().
func (p *Pool) Execute(task Task) error {
	return p.ExecuteWithContext(context.Background(), task)
}

// ExecuteWithContext selects the next queue round-robin and offers task to
// it without blocking. ctx is passed to the task's Execute method; the pool
// never cancels it.
//
// A submission racing with Shutdown or ShutdownNow may still be accepted.
func (p *Pool) ExecuteWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if p.State() != StateAccepting {
		return p.reject(newRejection(ReasonShutdown, -1))
	}

	if err := ctx.Err(); err != nil {
		rerr := newRejection(ReasonCanceled, -1)
		rerr.Cause = err
		return p.reject(rerr)
	}

	index := int((p.next.Add(1) - 1) % uint64(len(p.workers)))
	switch err := p.workers[index].queue.offer(taskWithContext{task: task, ctx: ctx}); err {
	case nil:
	case errQueueFull:
		return p.reject(newRejection(ReasonQueueFull, index))
	default:
		return p.reject(newRejection(ReasonWorkerStopped, index))
	}

	p.submitted.Add(1)
	p.logger.Debug("task placed", "queue", index)
	return nil
}

func (p *Pool) reject(err *RejectionError) error {
	p.rejected.Add(1)
	p.logger.Debug("task rejected", "reason", err.Reason, "queue", err.Queue)
	return err
}

// Shutdown moves the pool to StateDraining. Queued tasks still run and each
// worker exits after its queue has been empty for IdleTimeout.
func (p *Pool) Shutdown() {
	if p.state.CompareAndSwap(int32(StateAccepting), int32(StateDraining)) {
		p.logger.Info("worker pool shutting down", "live_workers", p.LiveWorkers())
	}
}

// ShutdownNow moves the pool to StateStopped and signals every worker.
// It does not wait for running tasks; see AwaitTermination.
func (p *Pool) ShutdownNow() {
	if State(p.state.Swap(int32(StateStopped))) == StateStopped {
		return
	}

	p.logger.Warn("worker pool stopping now", "live_workers", p.LiveWorkers())
	for _, w := range p.workers {
		w.stop()
	}
}

// AwaitTermination blocks until every worker has exited or ctx is done.
func (p *Pool) AwaitTermination(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminated returns a channel closed once every worker has exited.
func (p *Pool) Terminated() <-chan struct{} {
	return p.done
}

// WorkerCount returns the number of workers created at construction.
func (p *Pool) WorkerCount() int {
	return len(p.workers)
}

// LiveWorkers returns the number of workers that have not exited yet.
func (p *Pool) LiveWorkers() int {
	return int(p.live.Load())
}

// State returns the current shutdown state.
func (p *Pool) State() State {
	return State(p.state.Load())
}

// Config returns the configuration the pool was built with, defaults applied.
func (p *Pool) Config() Config {
	return p.config
}

// QueueDepths returns the number of pending tasks per queue.
func (p *Pool) QueueDepths() []int {
	depths := make([]int, len(p.workers))
	for i, w := range p.workers {
		depths[i] = w.queue.len()
	}
	return depths
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		State:       p.State(),
		Workers:     p.WorkerCount(),
		LiveWorkers: p.LiveWorkers(),
		Submitted:   p.submitted.Load(),
		Rejected:    p.rejected.Load(),
		Completed:   p.completed.Load(),
		Failed:      p.failed.Load(),
		Discarded:   p.discarded.Load(),
		QueueDepths: p.QueueDepths(),
	}
}
