package workerpool

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/shardpool/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(workers, queueSize int, idle time.Duration) Config {
	return Config{
		CoreWorkers: workers,
		QueueSize:   queueSize,
		IdleTimeout: idle,
		Logger:      quietLogger(),
	}
}

// newTestPool builds a pool that is stopped and fully terminated when the
// test ends.
func newTestPool(t *testing.T, config Config) *Pool {
	t.Helper()
	pool, err := New(config)
	testutil.AssertNoError(t, err)
	t.Cleanup(func() {
		pool.ShutdownNow()
		ctx, cancel := context.WithTimeout(context.Background(), testutil.TestTimeout)
		defer cancel()
		if err := pool.AwaitTermination(ctx); err != nil {
			t.Errorf("pool did not terminate: %v", err)
		}
	})
	return pool
}

// gate blocks tasks until it is opened.
type gate struct {
	started atomic.Int32
	release chan struct{}
}

func newGate() *gate {
	return &gate{release: make(chan struct{})}
}

func (g *gate) task() Task {
	return TaskFunc(func(context.Context) error {
		g.started.Add(1)
		<-g.release
		return nil
	})
}

func (g *gate) open() {
	close(g.release)
}

// occupy places one blocking task on every worker and waits until all of
// them are running, leaving every queue empty.
func occupy(t *testing.T, pool *Pool) *gate {
	t.Helper()
	g := newGate()
	t.Cleanup(func() {
		select {
		case <-g.release:
		default:
			g.open()
		}
	})
	for i := 0; i < pool.WorkerCount(); i++ {
		testutil.AssertNoError(t, pool.Execute(g.task()))
	}
	testutil.Eventually(t, func() bool {
		return int(g.started.Load()) == pool.WorkerCount()
	}, testutil.TestTimeout, time.Millisecond)
	return g
}

func counting(n *atomic.Int64) Task {
	return Action(func() { n.Add(1) })
}
