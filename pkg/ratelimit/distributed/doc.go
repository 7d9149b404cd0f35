// Package distributed provides admission limiting shared across processes,
// using Redis as the coordination backend.
//
// FixedWindow counts admissions per window in a Redis key and allows at most
// Config.Limit of them across every instance that uses the same Key. The
// check-and-increment runs as a single Lua script, so concurrent instances
// never over-admit.
//
// # Quick Start
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//
//	limiter, err := distributed.NewFixedWindow(ctx, distributed.Config{
//		Redis:  rdb,
//		Key:    "shardpool:ingest",
//		Limit:  100,
//		Window: time.Second,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer limiter.Close()
//
//	exec, _ := workerpool.NewLimited(pool, limiter)
//
// # Fallback Strategy
//
// When Redis cannot be reached within RedisTimeout, Allow defers to
// Config.LocalLimiter if FallbackToLocal is set, and denies otherwise:
//
//	local, _ := bucket.New(50, 50)
//	config.FallbackToLocal = true
//	config.LocalLimiter = local
package distributed
