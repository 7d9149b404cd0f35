package workerpool

import (
	"errors"
	"fmt"

	gferrors "github.com/vnykmshr/shardpool/pkg/common/errors"
)

var (
	// ErrRejected is matched by every submission rejection.
	ErrRejected = errors.New("submission rejected")

	// ErrNilTask is returned when a nil task or computation is submitted.
	ErrNilTask = errors.New("task cannot be nil")

	// ErrDiscarded completes Futures whose task was dropped by ShutdownNow.
	ErrDiscarded = errors.New("task discarded by ShutdownNow")

	// ErrNilExecutor is returned when a decorator is given a nil executor.
	ErrNilExecutor = errors.New("executor cannot be nil")

	// ErrNilLimiter is returned when NewLimited is given a nil limiter.
	ErrNilLimiter = errors.New("limiter cannot be nil")
)

// RejectReason identifies why a submission was rejected.
type RejectReason int

const (
	// ReasonShutdown means the pool is draining or stopped.
	ReasonShutdown RejectReason = iota
	// ReasonQueueFull means the round-robin target queue was at capacity.
	ReasonQueueFull
	// ReasonWorkerStopped means the target queue's worker already idled out.
	ReasonWorkerStopped
	// ReasonCanceled means the submission context was already done.
	ReasonCanceled
	// ReasonRateLimited means an admission limiter denied the submission.
	ReasonRateLimited
)

func (r RejectReason) String() string {
	switch r {
	case ReasonShutdown:
		return "shutdown"
	case ReasonQueueFull:
		return "queue_full"
	case ReasonWorkerStopped:
		return "worker_stopped"
	case ReasonCanceled:
		return "canceled"
	case ReasonRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// RejectionError is returned synchronously when a submission is not accepted.
// It matches ErrRejected via errors.Is and unwraps to its Cause.
type RejectionError struct {
	Reason RejectReason
	// Queue is the target queue index, or -1 when no queue was selected.
	Queue int
	Cause error
}

func newRejection(reason RejectReason, queue int) *RejectionError {
	var cause error
	switch reason {
	case ReasonQueueFull:
		cause = gferrors.ErrCapacityExceeded
	case ReasonRateLimited:
		cause = gferrors.ErrRateLimited
	default:
		cause = gferrors.ErrClosed
	}
	return &RejectionError{Reason: reason, Queue: queue, Cause: cause}
}

func (e *RejectionError) Error() string {
	if e.Queue >= 0 {
		return fmt.Sprintf("workerpool: submission rejected (%s, queue %d): %v", e.Reason, e.Queue, e.Cause)
	}
	return fmt.Sprintf("workerpool: submission rejected (%s): %v", e.Reason, e.Cause)
}

// Is reports whether target is ErrRejected.
func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

// Unwrap returns the underlying cause.
func (e *RejectionError) Unwrap() error {
	return e.Cause
}

// RejectionReason extracts the reason from a rejection error.
func RejectionReason(err error) (RejectReason, bool) {
	var rerr *RejectionError
	if errors.As(err, &rerr) {
		return rerr.Reason, true
	}
	return 0, false
}
