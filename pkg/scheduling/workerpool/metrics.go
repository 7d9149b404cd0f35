package workerpool

import (
	"context"
	"strconv"
	"time"

	"github.com/vnykmshr/shardpool/pkg/metrics"
)

// introspector is implemented by executors that expose their worker layout.
type introspector interface {
	WorkerCount() int
	LiveWorkers() int
	QueueDepths() []int
}

// stopNotifier is implemented by executors that report worker exits.
type stopNotifier interface {
	addStopListener(fn func())
}

// MetricsExecutor wraps an Executor with Prometheus instrumentation.
type MetricsExecutor struct {
	next    Executor
	name    string
	metrics *metrics.Registry
}

var _ Executor = (*MetricsExecutor)(nil)

// NewMetricsExecutor wraps next so that every submission and execution is
// recorded under the pool label name. A nil registry selects
// metrics.DefaultRegistry. When next is a *Pool the gauges also refresh
// each time a worker exits.
func NewMetricsExecutor(next Executor, name string, registry *metrics.Registry) *MetricsExecutor {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	me := &MetricsExecutor{next: next, name: name, metrics: registry}
	if n, ok := next.(stopNotifier); ok {
		n.addStopListener(me.Observe)
	}
	me.Observe()
	return me
}

// Execute implements Executor.
func (me *MetricsExecutor) Execute(task Task) error {
	return me.ExecuteWithContext(context.Background(), task)
}

// ExecuteWithContext implements Executor.
func (me *MetricsExecutor) ExecuteWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}

	wrapped := &metricsTask{
		Task:     task,
		executor: me,
		queuedAt: time.Now(),
	}
	if err := me.next.ExecuteWithContext(ctx, wrapped); err != nil {
		if reason, ok := RejectionReason(err); ok {
			me.metrics.TasksRejected.WithLabelValues(me.name, reason.String()).Inc()
		}
		return err
	}

	me.metrics.TasksSubmitted.WithLabelValues(me.name).Inc()
	me.Observe()
	return nil
}

// Shutdown implements Executor.
func (me *MetricsExecutor) Shutdown() {
	me.next.Shutdown()
}

// ShutdownNow implements Executor.
func (me *MetricsExecutor) ShutdownNow() {
	me.next.ShutdownNow()
	me.Observe()
}

// Unwrap returns the decorated executor.
func (me *MetricsExecutor) Unwrap() Executor {
	return me.next
}

// Observe refreshes the size, live and queue gauges when the wrapped
// executor exposes them.
func (me *MetricsExecutor) Observe() {
	in, ok := me.next.(introspector)
	if !ok {
		return
	}

	me.metrics.WorkerPoolSize.WithLabelValues(me.name).Set(float64(in.WorkerCount()))
	me.metrics.WorkerPoolLive.WithLabelValues(me.name).Set(float64(in.LiveWorkers()))
	for i, depth := range in.QueueDepths() {
		me.metrics.WorkerPoolQueued.WithLabelValues(me.name, strconv.Itoa(i)).Set(float64(depth))
	}
}

// metricsTask wraps a task to record wait and execution time.
type metricsTask struct {
	Task
	executor *MetricsExecutor
	queuedAt time.Time
}

func (mt *metricsTask) Execute(ctx context.Context) error {
	m := mt.executor.metrics
	name := mt.executor.name

	start := time.Now()
	m.TaskQueueWait.WithLabelValues(name).Observe(start.Sub(mt.queuedAt).Seconds())

	// Failures are counted before the panic propagates to the worker.
	completed := false
	defer func() {
		m.TaskExecutionDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		m.TasksExecuted.WithLabelValues(name).Inc()
		if !completed {
			m.TasksFailed.WithLabelValues(name).Inc()
		}
		mt.executor.Observe()
	}()

	if err := mt.Task.Execute(ctx); err != nil {
		return err
	}
	completed = true
	m.TasksCompleted.WithLabelValues(name).Inc()
	return nil
}

func (mt *metricsTask) discard(err error) {
	mt.executor.metrics.TasksDiscarded.WithLabelValues(mt.executor.name).Inc()
	if d, ok := mt.Task.(discardable); ok {
		d.discard(err)
	}
}
