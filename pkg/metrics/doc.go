// Package metrics provides Prometheus instrumentation for shardpool components.
//
// A Registry groups every collector used by the worker pool decorator, the
// scheduler and the admission limiters. Create one per Prometheus registerer:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.NewRegistry(reg)
//	exec := workerpool.NewMetricsExecutor(pool, "ingest", m)
//
// and expose it with promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).
//
// # Available Metrics
//
// Worker pool:
//
//   - shardpool_workerpool_tasks_submitted_total{pool}
//   - shardpool_workerpool_tasks_rejected_total{pool,reason}
//   - shardpool_workerpool_tasks_executed_total{pool}
//   - shardpool_workerpool_tasks_completed_total{pool}
//   - shardpool_workerpool_tasks_failed_total{pool}
//   - shardpool_workerpool_tasks_discarded_total{pool}
//   - shardpool_workerpool_task_duration_seconds{pool}
//   - shardpool_workerpool_queue_wait_seconds{pool}
//   - shardpool_workerpool_size{pool}
//   - shardpool_workerpool_live_workers{pool}
//   - shardpool_workerpool_queued_tasks{pool,queue}
//
// Scheduler:
//
//   - shardpool_scheduler_tasks_dispatched_total{scheduler}
//   - shardpool_scheduler_dispatch_failures_total{scheduler}
//
// Admission limiting:
//
//   - shardpool_admission_allowed_total{limiter}
//   - shardpool_admission_denied_total{limiter}
package metrics
