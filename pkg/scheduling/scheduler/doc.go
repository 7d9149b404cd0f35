// Package scheduler feeds a workerpool.Executor on a timetable.
//
// Entries run once at a point in time, repeatedly at a fixed interval, or on
// a cron schedule parsed by github.com/robfig/cron/v3 (six fields with
// seconds, or descriptors such as @hourly):
//
//	s, err := scheduler.New(pool)
//	if err != nil {
//		return err
//	}
//	_ = s.Start()
//	defer func() { <-s.Stop() }()
//
//	_ = s.ScheduleAfter("warmup", task, 5*time.Second)
//	_ = s.ScheduleRepeating("heartbeat", task, time.Minute)
//	_ = s.ScheduleCron("nightly", "0 0 2 * * *", task)
//
// A due entry is handed to the executor with ExecuteWithContext, which never
// blocks. When the executor rejects it (full queue, shutdown, rate limit) the
// occurrence is skipped, logged at Warn and counted in Stats().Rejected;
// repeating and cron entries fire again on their next run time.
//
// The scheduler never shuts the executor down. Stop only halts the dispatch
// loop.
package scheduler
