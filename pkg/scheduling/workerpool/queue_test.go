package workerpool

import (
	"context"
	"testing"
	"time"

	"github.com/vnykmshr/shardpool/internal/testutil"
)

func item() taskWithContext {
	return taskWithContext{task: Action(func() {}), ctx: context.Background()}
}

func TestBoundedQueue_OfferRespectsCapacity(t *testing.T) {
	q := newBoundedQueue(2)

	testutil.AssertNoError(t, q.offer(item()))
	testutil.AssertNoError(t, q.offer(item()))
	testutil.AssertErrorIs(t, q.offer(item()), errQueueFull)
	testutil.AssertEqual(t, q.len(), 2)
}

func TestBoundedQueue_Poll(t *testing.T) {
	t.Run("returns pending item", func(t *testing.T) {
		q := newBoundedQueue(1)
		testutil.AssertNoError(t, q.offer(item()))

		_, res := q.poll(time.Second, nil)
		testutil.AssertEqual(t, res, polled)
		testutil.AssertEqual(t, q.len(), 0)
	})

	t.Run("times out on empty queue", func(t *testing.T) {
		q := newBoundedQueue(1)

		start := time.Now()
		_, res := q.poll(20*time.Millisecond, nil)
		testutil.AssertEqual(t, res, pollTimedOut)
		if time.Since(start) < 20*time.Millisecond {
			t.Error("poll returned before the timeout elapsed")
		}
	})

	t.Run("wakes on stop", func(t *testing.T) {
		q := newBoundedQueue(1)
		stop := make(chan struct{})
		close(stop)

		_, res := q.poll(time.Hour, stop)
		testutil.AssertEqual(t, res, pollStopped)
	})
}

func TestBoundedQueue_CloseIfEmpty(t *testing.T) {
	q := newBoundedQueue(2)
	testutil.AssertNoError(t, q.offer(item()))

	testutil.AssertEqual(t, q.closeIfEmpty(), false)
	testutil.AssertNoError(t, q.offer(item()))

	q.poll(time.Second, nil)
	q.poll(time.Second, nil)
	testutil.AssertEqual(t, q.closeIfEmpty(), true)
	testutil.AssertErrorIs(t, q.offer(item()), errQueueClosed)
}

func TestBoundedQueue_CloseAndDrain(t *testing.T) {
	q := newBoundedQueue(3)
	for i := 0; i < 3; i++ {
		testutil.AssertNoError(t, q.offer(item()))
	}

	drained := q.closeAndDrain()
	testutil.AssertEqual(t, len(drained), 3)
	testutil.AssertEqual(t, q.len(), 0)
	testutil.AssertErrorIs(t, q.offer(item()), errQueueClosed)
}
