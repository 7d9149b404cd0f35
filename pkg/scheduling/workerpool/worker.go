package workerpool

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// StopReason tells why a worker exited.
type StopReason int

const (
	// StopIdle means the worker saw no task within its idle timeout.
	StopIdle StopReason = iota
	// StopSignalled means ShutdownNow stopped the worker.
	StopSignalled
)

func (r StopReason) String() string {
	if r == StopIdle {
		return "idle"
	}
	return "signalled"
}

// worker owns exactly one queue and consumes it until it idles out or is stopped.
type worker struct {
	id          int
	pool        *Pool
	queue       *boundedQueue
	idleTimeout time.Duration
	logger      *slog.Logger

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newWorker(id int, pool *Pool, capacity int, idleTimeout time.Duration) *worker {
	w := &worker{
		id:          id,
		pool:        pool,
		queue:       newBoundedQueue(capacity),
		idleTimeout: idleTimeout,
		logger:      pool.logger.With("worker", id),
		stopCh:      make(chan struct{}),
	}
	w.running.Store(true)
	return w
}

// stop signals the worker. It never blocks.
func (w *worker) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *worker) stopSignalled() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// run is the main loop for a worker.
func (w *worker) run() {
	defer w.pool.workerWg.Done()

	w.logger.Debug("worker started")
	if w.pool.config.OnWorkerStart != nil {
		w.pool.config.OnWorkerStart(w.id)
	}

	reason := w.loop()

	w.running.Store(false)
	w.pool.live.Add(-1)
	w.pool.notifyWorkerStopped()

	switch reason {
	case StopIdle:
		w.logger.Info("worker idle, exiting", "idle_timeout", w.idleTimeout)
	case StopSignalled:
		w.logger.Debug("worker stopped")
	}
	if w.pool.config.OnWorkerStop != nil {
		w.pool.config.OnWorkerStop(w.id, reason)
	}
}

func (w *worker) loop() StopReason {
	for {
		if w.stopSignalled() {
			w.discardQueued()
			return StopSignalled
		}

		item, res := w.queue.poll(w.idleTimeout, w.stopCh)
		switch res {
		case pollStopped:
			w.discardQueued()
			return StopSignalled
		case pollTimedOut:
			if w.queue.closeIfEmpty() {
				return StopIdle
			}
			continue
		}

		// Both the queue and stopCh may be ready at once; a stopped worker
		// must not start another task.
		if w.stopSignalled() {
			w.discard(item)
			w.discardQueued()
			return StopSignalled
		}

		w.execute(item)
	}
}

// execute runs a single task and isolates its failure from the worker.
func (w *worker) execute(item taskWithContext) {
	start := time.Now()
	err := w.safeExecute(item)
	duration := time.Since(start)

	if err == nil {
		w.pool.completed.Add(1)
		w.logger.Debug("task completed", "duration", duration)
		return
	}

	w.pool.failed.Add(1)
	taskErr := &TaskError{WorkerID: w.id, Cause: err}
	if perr, ok := err.(*PanicError); ok {
		w.logger.Error("task panicked", "error", perr, "duration", duration, "stack", string(perr.Stack))
	} else {
		w.logger.Error("task failed", "error", err, "duration", duration)
	}
	if w.pool.config.OnTaskError != nil {
		w.pool.config.OnTaskError(taskErr)
	}
}

func (w *worker) safeExecute(item taskWithContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return item.task.Execute(item.ctx)
}

func (w *worker) discard(item taskWithContext) {
	item.discard(ErrDiscarded)
	w.pool.discarded.Add(1)
}

func (w *worker) discardQueued() {
	dropped := w.queue.closeAndDrain()
	for _, item := range dropped {
		w.discard(item)
	}
	if len(dropped) > 0 {
		w.logger.Warn("queued tasks discarded", "count", len(dropped))
	}
}
