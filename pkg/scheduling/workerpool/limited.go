package workerpool

import (
	"context"
	"log/slog"

	"github.com/vnykmshr/shardpool/pkg/metrics"
)

// Limiter decides whether a submission may proceed. Implementations must be
// safe for concurrent use and must not block.
type Limiter interface {
	Allow(ctx context.Context) bool
}

// LimitedExecutor rejects submissions that its Limiter denies before they
// reach the wrapped executor.
//
// Submissions the wrapped executor would refuse outright (it, or a pool it
// decorates, is no longer accepting, or ctx is already done) are forwarded
// without consulting the Limiter, so they do not spend quota. A submission
// admitted by the Limiter and then rejected for a full queue still does.
type LimitedExecutor struct {
	next    Executor
	limiter Limiter
	name    string
	metrics *metrics.Registry
	logger  *slog.Logger
}

var _ Executor = (*LimitedExecutor)(nil)

// LimitedOption configures a LimitedExecutor.
type LimitedOption func(*LimitedExecutor)

// WithLimiterName sets the limiter label used in metrics and logs.
func WithLimiterName(name string) LimitedOption {
	return func(le *LimitedExecutor) { le.name = name }
}

// WithLimiterMetrics records admission decisions in registry.
func WithLimiterMetrics(registry *metrics.Registry) LimitedOption {
	return func(le *LimitedExecutor) { le.metrics = registry }
}

// WithLimiterLogger sets the logger for denied submissions.
func WithLimiterLogger(logger *slog.Logger) LimitedOption {
	return func(le *LimitedExecutor) { le.logger = logger }
}

// NewLimited wraps next with admission control.
func NewLimited(next Executor, limiter Limiter, opts ...LimitedOption) (*LimitedExecutor, error) {
	if next == nil {
		return nil, ErrNilExecutor
	}
	if limiter == nil {
		return nil, ErrNilLimiter
	}

	le := &LimitedExecutor{
		next:    next,
		limiter: limiter,
		name:    "default",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(le)
	}
	le.logger = le.logger.With("component", "admission", "limiter", le.name)
	return le, nil
}

// Execute implements Executor.
func (le *LimitedExecutor) Execute(task Task) error {
	return le.ExecuteWithContext(context.Background(), task)
}

// ExecuteWithContext implements Executor. A denied submission returns a
// *RejectionError with ReasonRateLimited.
func (le *LimitedExecutor) ExecuteWithContext(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if ctx.Err() != nil || !accepting(le.next) {
		return le.next.ExecuteWithContext(ctx, task)
	}

	if !le.limiter.Allow(ctx) {
		if le.metrics != nil {
			le.metrics.AdmissionDenied.WithLabelValues(le.name).Inc()
		}
		le.logger.Debug("submission denied")
		return newRejection(ReasonRateLimited, -1)
	}

	if le.metrics != nil {
		le.metrics.AdmissionAllowed.WithLabelValues(le.name).Inc()
	}
	return le.next.ExecuteWithContext(ctx, task)
}

// accepting follows Unwrap until it finds an executor reporting its State.
// Executors that report nothing are assumed to be accepting.
func accepting(exec Executor) bool {
	for exec != nil {
		if s, ok := exec.(interface{ State() State }); ok {
			return s.State() == StateAccepting
		}
		u, ok := exec.(interface{ Unwrap() Executor })
		if !ok {
			return true
		}
		exec = u.Unwrap()
	}
	return true
}

// Shutdown implements Executor.
func (le *LimitedExecutor) Shutdown() {
	le.next.Shutdown()
}

// ShutdownNow implements Executor.
func (le *LimitedExecutor) ShutdownNow() {
	le.next.ShutdownNow()
}

// Unwrap returns the decorated executor.
func (le *LimitedExecutor) Unwrap() Executor {
	return le.next
}
