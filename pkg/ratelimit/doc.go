/*
Package ratelimit groups the admission limiters that can sit in front of a
worker pool:

  - bucket: in-process token bucket built on golang.org/x/time/rate
  - distributed: fixed window shared across processes through Redis

Both satisfy workerpool.Limiter and are attached with workerpool.NewLimited:

	limiter, _ := bucket.New(100, 20) // 100 submissions/sec, burst of 20
	exec, _ := workerpool.NewLimited(pool, limiter)

A denied submission is rejected synchronously with
workerpool.ReasonRateLimited and never reaches a worker queue.
*/
package ratelimit
