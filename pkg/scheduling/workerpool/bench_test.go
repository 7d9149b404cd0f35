package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"
)

// BenchmarkExecute measures placement and execution of trivial tasks.
func BenchmarkExecute(b *testing.B) {
	pool := MustNew(testConfig(4, 1000, time.Minute))
	defer pool.ShutdownNow()

	task := Action(func() {})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			for {
				err := pool.Execute(task)
				if err == nil || !errors.Is(err, ErrRejected) {
					break
				}
			}
		}
	})
}

// BenchmarkSubmit measures the Future round trip.
func BenchmarkSubmit(b *testing.B) {
	pool := MustNew(testConfig(4, 1000, time.Minute))
	defer pool.ShutdownNow()

	fn := func(context.Context) (int, error) { return 1, nil }

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f, err := Submit(pool, fn)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := f.Get(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRejection measures the cost of a rejected placement.
func BenchmarkRejection(b *testing.B) {
	pool := MustNew(testConfig(1, 1, time.Minute))
	release := make(chan struct{})
	defer func() {
		close(release)
		pool.ShutdownNow()
	}()

	started := make(chan struct{})
	_ = pool.Execute(Action(func() {
		close(started)
		<-release
	}))
	<-started
	_ = pool.Execute(Action(func() {}))

	task := Action(func() {})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pool.Execute(task)
	}
}
