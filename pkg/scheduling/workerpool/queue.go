package workerpool

import (
	"errors"
	"sync"
	"time"
)

var (
	errQueueFull   = errors.New("queue full")
	errQueueClosed = errors.New("queue closed")
)

type pollResult int

const (
	polled pollResult = iota
	pollTimedOut
	pollStopped
)

// boundedQueue is a fixed-capacity FIFO with many producers and exactly one
// consumer. The items channel is never closed; closed only guards offers so
// that the consumer can retire the queue atomically.
type boundedQueue struct {
	items chan taskWithContext

	mu     sync.Mutex
	closed bool
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{items: make(chan taskWithContext, capacity)}
}

// offer inserts item without blocking.
func (q *boundedQueue) offer(item taskWithContext) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	default:
		return errQueueFull
	}
}

// poll waits up to timeout for the next item. Only the owning worker calls it.
func (q *boundedQueue) poll(timeout time.Duration, stop <-chan struct{}) (taskWithContext, pollResult) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case item := <-q.items:
		return item, polled
	case <-stop:
		return taskWithContext{}, pollStopped
	case <-timer.C:
		return taskWithContext{}, pollTimedOut
	}
}

// closeIfEmpty retires the queue when nothing is pending. It returns false
// if an item arrived in the meantime.
func (q *boundedQueue) closeIfEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		return false
	}
	q.closed = true
	return true
}

// closeAndDrain retires the queue and returns everything still pending.
func (q *boundedQueue) closeAndDrain() []taskWithContext {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	var drained []taskWithContext
	for {
		select {
		case item := <-q.items:
			drained = append(drained, item)
		default:
			return drained
		}
	}
}

func (q *boundedQueue) len() int {
	return len(q.items)
}
