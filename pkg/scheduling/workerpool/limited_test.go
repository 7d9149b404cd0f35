package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/shardpool/internal/testutil"
	gferrors "github.com/vnykmshr/shardpool/pkg/common/errors"
)

// quotaLimiter allows the first n calls.
type quotaLimiter struct {
	remaining atomic.Int64
}

func newQuotaLimiter(n int64) *quotaLimiter {
	l := &quotaLimiter{}
	l.remaining.Store(n)
	return l
}

func (l *quotaLimiter) Allow(context.Context) bool {
	return l.remaining.Add(-1) >= 0
}

func TestNewLimited_RequiresDependencies(t *testing.T) {
	pool := newTestPool(t, testConfig(1, 1, 5*time.Second))

	_, err := NewLimited(nil, newQuotaLimiter(1))
	testutil.AssertErrorIs(t, err, ErrNilExecutor)

	_, err = NewLimited(pool, nil)
	testutil.AssertErrorIs(t, err, ErrNilLimiter)
}

func TestLimitedExecutor_DeniesOverQuota(t *testing.T) {
	pool := newTestPool(t, testConfig(2, 10, 5*time.Second))
	m := newTestMetrics()
	exec, err := NewLimited(pool, newQuotaLimiter(3),
		WithLimiterName("quota"),
		WithLimiterMetrics(m),
		WithLimiterLogger(quietLogger()),
	)
	testutil.AssertNoError(t, err)

	var executed atomic.Int64
	allowed, denied := 0, 0
	for i := 0; i < 5; i++ {
		err := exec.Execute(counting(&executed))
		if err == nil {
			allowed++
			continue
		}
		denied++
		testutil.AssertErrorIs(t, err, ErrRejected)
		testutil.AssertErrorIs(t, err, gferrors.ErrRateLimited)
		reason, _ := RejectionReason(err)
		testutil.AssertEqual(t, reason, ReasonRateLimited)
	}

	testutil.AssertEqual(t, allowed, 3)
	testutil.AssertEqual(t, denied, 2)
	testutil.Eventually(t, func() bool { return executed.Load() == 3 }, testutil.TestTimeout, time.Millisecond)

	testutil.AssertEqual(t, promtestutil.ToFloat64(m.AdmissionAllowed.WithLabelValues("quota")), 3.0)
	testutil.AssertEqual(t, promtestutil.ToFloat64(m.AdmissionDenied.WithLabelValues("quota")), 2.0)
	testutil.AssertEqual(t, pool.Stats().Rejected, int64(0))
}

func TestLimitedExecutor_ForwardsShutdown(t *testing.T) {
	pool := newTestPool(t, testConfig(1, 1, 5*time.Second))
	limiter := newQuotaLimiter(10)
	exec, err := NewLimited(pool, limiter, WithLimiterLogger(quietLogger()))
	testutil.AssertNoError(t, err)

	exec.Shutdown()
	testutil.AssertEqual(t, pool.State(), StateDraining)

	err = exec.Execute(Action(func() {}))
	reason, _ := RejectionReason(err)
	testutil.AssertEqual(t, reason, ReasonShutdown)
	testutil.AssertEqual(t, limiter.remaining.Load(), int64(10))

	exec.ShutdownNow()
	testutil.AssertEqual(t, pool.State(), StateStopped)
}

func TestLimitedExecutor_RefusedSubmissionsKeepQuota(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(pool *Pool)
		ctx    func() context.Context
		reason RejectReason
	}{
		{
			name:   "draining pool",
			setup:  func(pool *Pool) { pool.Shutdown() },
			ctx:    context.Background,
			reason: ReasonShutdown,
		},
		{
			name:   "stopped pool",
			setup:  func(pool *Pool) { pool.ShutdownNow() },
			ctx:    context.Background,
			reason: ReasonShutdown,
		},
		{
			name:  "canceled context",
			setup: func(*Pool) {},
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
			reason: ReasonCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := newTestPool(t, testConfig(2, 4, 5*time.Second))
			m := newTestMetrics()
			limiter := newQuotaLimiter(1)
			// Admission sits outside the metrics decorator, as in the driver.
			exec, err := NewLimited(NewMetricsExecutor(pool, "test", m), limiter,
				WithLimiterName("quota"),
				WithLimiterMetrics(m),
				WithLimiterLogger(quietLogger()),
			)
			testutil.AssertNoError(t, err)

			tt.setup(pool)
			err = exec.ExecuteWithContext(tt.ctx(), Action(func() {}))
			testutil.AssertErrorIs(t, err, ErrRejected)
			reason, _ := RejectionReason(err)
			testutil.AssertEqual(t, reason, tt.reason)

			testutil.AssertEqual(t, limiter.remaining.Load(), int64(1))
			testutil.AssertEqual(t, promtestutil.ToFloat64(m.AdmissionAllowed.WithLabelValues("quota")), 0.0)
			testutil.AssertEqual(t, promtestutil.ToFloat64(m.AdmissionDenied.WithLabelValues("quota")), 0.0)
			testutil.AssertEqual(t, promtestutil.ToFloat64(m.TasksRejected.WithLabelValues("test", tt.reason.String())), 1.0)
		})
	}
}
