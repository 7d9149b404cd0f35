package workerpool

import (
	"context"
	"runtime/debug"
	"sync"
)

// Callable is a computation that produces a value or fails.
type Callable[T any] func(ctx context.Context) (T, error)

// Future is a handle to the eventual outcome of a submitted Callable.
// It completes exactly once, with either a value or an error.
type Future[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) complete(value T, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Done returns a channel that is closed once the Future has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the Future completes.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.value, f.err
}

// GetWithContext blocks until the Future completes or ctx is done. When ctx
// wins, the zero value and ctx.Err() are returned and the Future is left
// untouched.
func (f *Future[T]) GetWithContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryGet returns the outcome without blocking. ok is false while pending.
func (f *Future[T]) TryGet() (value T, ok bool, err error) {
	select {
	case <-f.done:
		return f.value, true, f.err
	default:
		var zero T
		return zero, false, nil
	}
}

// futureTask adapts a Callable to Task, fulfilling its Future.
type futureTask[T any] struct {
	fn     Callable[T]
	future *Future[T]
}

func (ft *futureTask[T]) Execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{Value: r, Stack: debug.Stack()}
			var zero T
			ft.future.complete(zero, perr)
			err = perr
		}
	}()

	value, err := ft.fn(ctx)
	ft.future.complete(value, err)
	return err
}

func (ft *futureTask[T]) discard(err error) {
	var zero T
	ft.future.complete(zero, err)
}

// Submit wraps fn in a task, hands it to exec and returns its Future
// immediately. When exec rejects the task, no Future is returned.
func Submit[T any](exec Executor, fn Callable[T]) (*Future[T], error) {
	return SubmitWithContext(context.Background(), exec, fn)
}

// SubmitWithContext is Submit with a context handed to fn.
func SubmitWithContext[T any](ctx context.Context, exec Executor, fn Callable[T]) (*Future[T], error) {
	if fn == nil {
		return nil, ErrNilTask
	}

	ft := &futureTask[T]{fn: fn, future: newFuture[T]()}
	if err := exec.ExecuteWithContext(ctx, ft); err != nil {
		return nil, err
	}
	return ft.future, nil
}
