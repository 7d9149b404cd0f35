// Package scheduling groups the execution primitives of shardpool.
//
//   - workerpool: fixed-size sharded executor with per-worker bounded queues
//   - scheduler: delayed, repeating and cron submission into any executor
//
// Worker Pool:
//
//	pool, err := workerpool.New(workerpool.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer pool.Shutdown()
//
//	if err := pool.Execute(workerpool.Action(work)); err != nil {
//		// rejected: queue full, worker idled out, or pool shut down
//	}
//
// Task Scheduler:
//
//	s, _ := scheduler.New(pool)
//	_ = s.Start()
//	defer func() { <-s.Stop() }()
//
//	_ = s.ScheduleCron("cleanup", "0 */5 * * * *", cleanupTask)
package scheduling
