package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for shardpool components.
type Registry struct {
	// Worker Pool Metrics
	TasksSubmitted        *prometheus.CounterVec
	TasksRejected         *prometheus.CounterVec
	TasksExecuted         *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TasksDiscarded        *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	TaskQueueWait         *prometheus.HistogramVec
	WorkerPoolSize        *prometheus.GaugeVec
	WorkerPoolLive        *prometheus.GaugeVec
	WorkerPoolQueued      *prometheus.GaugeVec

	// Scheduler Metrics
	SchedulerDispatched       *prometheus.CounterVec
	SchedulerDispatchFailures *prometheus.CounterVec

	// Admission Metrics
	AdmissionAllowed *prometheus.CounterVec
	AdmissionDenied  *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by shardpool components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistryWithConfig(DefaultConfig())
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a registry honoring the namespace and
// constant labels of config.
func NewRegistryWithConfig(config Config) *Registry {
	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := config.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	buckets := config.Buckets
	if buckets == nil {
		buckets = DefaultBuckets
	}

	factory := promauto.With(reg)
	counter := func(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.Labels,
		}, labels)
	}
	gauge := func(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.Labels,
		}, labels)
	}
	histogram := func(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   subsystem,
			Name:        name,
			Help:        help,
			Buckets:     buckets,
			ConstLabels: config.Labels,
		}, labels)
	}

	return &Registry{
		TasksSubmitted: counter("workerpool", "tasks_submitted_total",
			"Total number of tasks accepted into a worker queue", "pool"),
		TasksRejected: counter("workerpool", "tasks_rejected_total",
			"Total number of rejected submissions", "pool", "reason"),
		TasksExecuted: counter("workerpool", "tasks_executed_total",
			"Total number of tasks executed", "pool"),
		TasksCompleted: counter("workerpool", "tasks_completed_total",
			"Total number of tasks completed successfully", "pool"),
		TasksFailed: counter("workerpool", "tasks_failed_total",
			"Total number of tasks that returned an error or panicked", "pool"),
		TasksDiscarded: counter("workerpool", "tasks_discarded_total",
			"Total number of queued tasks dropped by ShutdownNow", "pool"),
		TaskExecutionDuration: histogram("workerpool", "task_duration_seconds",
			"Time spent executing tasks", "pool"),
		TaskQueueWait: histogram("workerpool", "queue_wait_seconds",
			"Time tasks spent queued before execution", "pool"),
		WorkerPoolSize: gauge("workerpool", "size",
			"Number of workers created at construction", "pool"),
		WorkerPoolLive: gauge("workerpool", "live_workers",
			"Number of workers that have not exited", "pool"),
		WorkerPoolQueued: gauge("workerpool", "queued_tasks",
			"Number of tasks pending per queue", "pool", "queue"),

		SchedulerDispatched: counter("scheduler", "tasks_dispatched_total",
			"Total number of scheduled tasks handed to the executor", "scheduler"),
		SchedulerDispatchFailures: counter("scheduler", "dispatch_failures_total",
			"Total number of scheduled tasks the executor rejected", "scheduler"),

		AdmissionAllowed: counter("admission", "allowed_total",
			"Total number of submissions admitted by a limiter", "limiter"),
		AdmissionDenied: counter("admission", "denied_total",
			"Total number of submissions denied by a limiter", "limiter"),
	}
}
