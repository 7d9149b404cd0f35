package workerpool

import (
	"log/slog"
	"time"

	"github.com/vnykmshr/shardpool/pkg/common/validation"
)

const module = "workerpool"

// Config holds configuration options for creating a worker pool.
type Config struct {
	// CoreWorkers is the number of workers, and queues, created at construction.
	// Must be greater than 0.
	CoreWorkers int

	// MaxPoolSize is validated (>= CoreWorkers) and retained but never
	// consulted: the pool does not grow. Zero means CoreWorkers.
	MaxPoolSize int

	// QueueSize is the capacity of each worker's queue. Must be greater than 0.
	QueueSize int

	// IdleTimeout is how long a worker waits on an empty queue before it
	// stops permanently. Must be greater than 0.
	IdleTimeout time.Duration

	// MinSpareWorkers is validated (>= 0) and retained but never consulted.
	MinSpareWorkers int

	// Logger receives lifecycle and task failure logs.
	// If nil, slog.Default() is used.
	Logger *slog.Logger

	// OnWorkerStart is called from the worker goroutine when it starts.
	OnWorkerStart func(workerID int)

	// OnWorkerStop is called from the worker goroutine right before it exits.
	OnWorkerStop func(workerID int, reason StopReason)

	// OnTaskError is called when a task returns an error or panics.
	// It runs on the worker goroutine and must not block for long.
	OnTaskError func(err *TaskError)
}

// DefaultConfig returns the configuration used by the demo driver:
// 4 core workers, max pool size 8, queue size 10, 5s idle timeout,
// 2 spare workers.
func DefaultConfig() Config {
	return Config{
		CoreWorkers:     4,
		MaxPoolSize:     8,
		QueueSize:       10,
		IdleTimeout:     5 * time.Second,
		MinSpareWorkers: 2,
	}
}

// Validate checks the configuration and returns a *errors.ValidationError
// describing the first invalid field.
func (c Config) Validate() error {
	if err := validation.ValidatePositive(module, "CoreWorkers", c.CoreWorkers); err != nil {
		return err
	}
	if err := validation.ValidatePositive(module, "QueueSize", c.QueueSize); err != nil {
		return err
	}
	if err := validation.ValidatePositiveDuration(module, "IdleTimeout", c.IdleTimeout); err != nil {
		return err
	}
	if c.MaxPoolSize != 0 {
		if err := validation.ValidateAtLeast(module, "MaxPoolSize", c.MaxPoolSize, "CoreWorkers", c.CoreWorkers); err != nil {
			return err
		}
	}
	return validation.ValidateNonNegative(module, "MinSpareWorkers", c.MinSpareWorkers)
}

func (c Config) withDefaults() Config {
	if c.MaxPoolSize == 0 {
		c.MaxPoolSize = c.CoreWorkers
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
