/*
Package workerpool provides a fixed-size, sharded worker pool.

A Pool owns a fixed set of workers created at construction. Each worker owns
a bounded FIFO queue of its own; submissions are placed round-robin across the
queues without ever blocking the caller. When the chosen queue is full the
submission is rejected instead of spilling over to another queue.

Basic usage:

	pool, err := workerpool.New(workerpool.Config{
		CoreWorkers: 4,
		QueueSize:   10,
		IdleTimeout: 5 * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.ShutdownNow()

	err = pool.Execute(workerpool.TaskFunc(func(ctx context.Context) error {
		return doWork(ctx)
	}))
	if errors.Is(err, workerpool.ErrRejected) {
		// queue full or pool shut down; retrying is up to the caller
	}

Computations that produce a value are submitted with the generic Submit
function, which returns a Future immediately:

	future, err := workerpool.Submit(pool, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		return err
	}
	v, err := future.Get()

Worker lifecycle:

Every worker blocks on its own queue for at most Config.IdleTimeout. A worker
that receives nothing within that window stops for good and is never
replaced, so WorkerCount stays at the construction value while LiveWorkers
decays towards zero under sparse load. Submissions that land on a stopped
worker's queue are rejected with ReasonWorkerStopped.

A task that returns an error or panics is isolated: the worker logs it,
reports it through Config.OnTaskError and moves on to the next task. A
Future attached to a failed computation completes with the error.

Shutdown:

Shutdown stops accepting work and lets every worker drain its queue; each
worker exits once its queue has stayed empty for IdleTimeout. ShutdownNow
stops accepting work and signals every worker at once: a task already running
finishes (its context is not cancelled), queued tasks are dropped and any
Future attached to them completes with ErrDiscarded. Neither call blocks;
use AwaitTermination to wait for the workers to exit.

Variants:

Executor is the capability set shared by every dispatcher. Besides *Pool,
MetricsExecutor records Prometheus metrics around any Executor, and
LimitedExecutor rejects submissions that exceed an admission rate.

MaxPoolSize and MinSpareWorkers are validated and kept in the Config but
never drive scaling: the worker count is fixed for the lifetime of a Pool.
*/
package workerpool
