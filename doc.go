/*
Package shardpool provides a fixed-size worker pool in which every worker owns
its own bounded queue, together with the admission, scheduling and metrics
pieces that sit around it.

Task Execution (pkg/scheduling):
  - workerpool: Round-robin placement over per-worker queues, Futures,
    Shutdown and ShutdownNow, idle worker termination
  - scheduler: Delayed, interval and cron tasks fed into any Executor

Admission (pkg/ratelimit):
  - bucket: Token bucket limiter usable in front of a pool
  - distributed: Fixed window quota shared by many instances through Redis

Observability (pkg/metrics):
  - Prometheus collectors for pools, schedulers and limiters

Example usage:

	import (
		"github.com/vnykmshr/shardpool/pkg/ratelimit/bucket"
		"github.com/vnykmshr/shardpool/pkg/scheduling/workerpool"
	)

	pool := workerpool.MustNew(workerpool.DefaultConfig()) // 4 queues of 10
	limiter, _ := bucket.New(10, 20)                       // 10 per second, burst 20
	exec, _ := workerpool.NewLimited(pool, limiter)

	future, err := workerpool.Submit(exec, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		// rejected: queue full, rate limited or shut down
	}
	value, _ := future.Get()

	pool.Shutdown()

A submission is never blocked and never moved to another queue: when the
chosen queue is full the task is rejected with an error matching
workerpool.ErrRejected.

The shardpool command in cmd/shardpool runs a configurable batch through a
pool and prints how many tasks were accepted, rejected and executed.
*/
package shardpool
