package workerpool

import (
	"context"
	"fmt"
)

// Task represents a unit of work that can be executed by a worker.
type Task interface {
	// Execute runs the task with the given context.
	// It should respect context cancellation and return any error encountered.
	Execute(ctx context.Context) error
}

// TaskFunc is a function type that implements the Task interface.
type TaskFunc func(ctx context.Context) error

// Execute implements the Task interface for TaskFunc.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Action adapts a plain side-effecting function to the Task interface.
type Action func()

// Execute implements the Task interface for Action.
func (a Action) Execute(context.Context) error {
	a()
	return nil
}

// discardable is implemented by tasks that must observe being dropped
// from a queue by ShutdownNow.
type discardable interface {
	discard(err error)
}

// taskWithContext is the unit stored in a worker queue.
type taskWithContext struct {
	task Task
	ctx  context.Context
}

func (twc taskWithContext) discard(err error) {
	if d, ok := twc.task.(discardable); ok {
		d.discard(err)
	}
}

// PanicError is the error produced when a task body panics.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// TaskError reports a failed task to Config.OnTaskError.
type TaskError struct {
	WorkerID int
	Cause    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("worker %d: task failed: %v", e.WorkerID, e.Cause)
}

// Unwrap returns the error returned or raised by the task.
func (e *TaskError) Unwrap() error {
	return e.Cause
}
