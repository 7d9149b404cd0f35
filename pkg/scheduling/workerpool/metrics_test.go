package workerpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/shardpool/internal/testutil"
	"github.com/vnykmshr/shardpool/pkg/metrics"
)

func newTestMetrics() *metrics.Registry {
	return metrics.NewRegistry(prometheus.NewRegistry())
}

func TestMetricsExecutor_RecordsOutcomes(t *testing.T) {
	pool := newTestPool(t, testConfig(2, 10, 5*time.Second))
	m := newTestMetrics()
	exec := NewMetricsExecutor(pool, "test", m)

	testutil.AssertEqual(t, promtestutil.ToFloat64(m.WorkerPoolSize.WithLabelValues("test")), 2.0)

	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, exec.Execute(Action(func() {})))
	}
	testutil.AssertNoError(t, exec.Execute(TaskFunc(func(context.Context) error {
		return errors.New("boom")
	})))
	testutil.AssertNoError(t, exec.Execute(Action(func() { panic("boom") })))

	testutil.Eventually(t, func() bool {
		return promtestutil.ToFloat64(m.TasksExecuted.WithLabelValues("test")) == 5
	}, testutil.TestTimeout, time.Millisecond)

	testutil.AssertEqual(t, promtestutil.ToFloat64(m.TasksSubmitted.WithLabelValues("test")), 5.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(m.TasksCompleted.WithLabelValues("test")), 3.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(m.TasksFailed.WithLabelValues("test")), 2.0)
	testutil.AssertEqual(t, promtestutil.CollectAndCount(m.TaskExecutionDuration), 1)
	testutil.AssertEqual(t, pool.LiveWorkers(), 2)
}

func TestMetricsExecutor_RecordsRejections(t *testing.T) {
	pool := newTestPool(t, testConfig(1, 1, 5*time.Second))
	m := newTestMetrics()
	exec := NewMetricsExecutor(pool, "test", m)
	occupy(t, pool)

	testutil.AssertNoError(t, exec.Execute(Action(func() {})))
	err := exec.Execute(Action(func() {}))
	testutil.AssertErrorIs(t, err, ErrRejected)

	exec.Shutdown()
	err = exec.Execute(Action(func() {}))
	testutil.AssertErrorIs(t, err, ErrRejected)

	testutil.AssertEqual(t, promtestutil.ToFloat64(m.TasksRejected.WithLabelValues("test", "queue_full")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(m.TasksRejected.WithLabelValues("test", "shutdown")), 1.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(m.WorkerPoolQueued.WithLabelValues("test", "0")), 1.0)
}

func TestMetricsExecutor_DiscardedFuturesStillComplete(t *testing.T) {
	pool := newTestPool(t, testConfig(1, 10, 5*time.Second))
	m := newTestMetrics()
	exec := NewMetricsExecutor(pool, "test", m)
	g := occupy(t, pool)

	f, err := Submit(exec, func(context.Context) (int, error) { return 1, nil })
	testutil.AssertNoError(t, err)

	exec.ShutdownNow()
	g.open()

	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	_, err = f.GetWithContext(ctx)
	testutil.AssertErrorIs(t, err, ErrDiscarded)
	testutil.AssertEqual(t, promtestutil.ToFloat64(m.TasksDiscarded.WithLabelValues("test")), 1.0)
	testutil.AssertEqual(t, exec.Unwrap(), Executor(pool))
}

func TestMetricsExecutor_LiveGaugeFollowsIdleExit(t *testing.T) {
	pool := newTestPool(t, testConfig(3, 10, 50*time.Millisecond))
	m := newTestMetrics()
	exec := NewMetricsExecutor(pool, "test", m)

	testutil.AssertEqual(t, promtestutil.ToFloat64(m.WorkerPoolLive.WithLabelValues("test")), 3.0)

	// No submissions after Shutdown, so only worker exits can move the gauge.
	exec.Shutdown()
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	testutil.AssertNoError(t, pool.AwaitTermination(ctx))

	testutil.AssertEqual(t, promtestutil.ToFloat64(m.WorkerPoolLive.WithLabelValues("test")), 0.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(m.WorkerPoolSize.WithLabelValues("test")), 3.0)
}
