// Package driver runs a timed batch of tasks through a worker pool and
// reports what happened to them.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/shardpool/internal/config"
	"github.com/vnykmshr/shardpool/pkg/metrics"
	"github.com/vnykmshr/shardpool/pkg/ratelimit/bucket"
	"github.com/vnykmshr/shardpool/pkg/ratelimit/distributed"
	"github.com/vnykmshr/shardpool/pkg/scheduling/workerpool"
)

// poolLabel is the pool label on every driver metric.
const poolLabel = "driver"

// Driver owns a pool, its decorators and the batch settings.
type Driver struct {
	cfg    *config.Config
	runID  string
	logger *slog.Logger
	out    io.Writer

	pool     *workerpool.Pool
	exec     workerpool.Executor
	registry *prometheus.Registry
	metrics  *metrics.Registry

	redis  *redis.Client
	window *distributed.FixedWindow
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithOutput sets where the progress bar is drawn. Defaults to os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(d *Driver) { d.out = w }
}

// New validates cfg and builds the pool with its metrics and admission
// decorators. Close must be called to stop the pool.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:      cfg,
		runID:    uuid.NewString(),
		logger:   slog.Default(),
		out:      os.Stderr,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("run_id", d.runID)
	d.metrics = metrics.NewRegistry(d.registry)

	pool, err := workerpool.New(cfg.WorkerPool(d.logger))
	if err != nil {
		return nil, err
	}
	d.pool = pool

	exec, err := d.decorate(ctx, workerpool.NewMetricsExecutor(pool, poolLabel, d.metrics))
	if err != nil {
		pool.ShutdownNow()
		d.closeRedis()
		return nil, err
	}
	d.exec = exec
	return d, nil
}

// decorate wraps exec with the configured admission limiters.
func (d *Driver) decorate(ctx context.Context, exec workerpool.Executor) (workerpool.Executor, error) {
	adm := d.cfg.Admission

	var local *bucket.Limiter
	if adm.Rate > 0 {
		lim, err := bucket.New(bucket.Limit(adm.Rate), adm.Burst)
		if err != nil {
			return nil, err
		}
		local = lim
	}

	if adm.RedisAddr != "" {
		d.redis = redis.NewClient(&redis.Options{Addr: adm.RedisAddr})
		wcfg := distributed.Config{
			Redis:  d.redis,
			Key:    adm.RedisKey,
			Limit:  adm.WindowLimit,
			Window: adm.Window,
			Logger: d.logger,
		}
		if local != nil {
			wcfg.FallbackToLocal = true
			wcfg.LocalLimiter = local
		}
		window, err := distributed.NewFixedWindow(ctx, wcfg)
		if err != nil {
			return nil, fmt.Errorf("distributed admission: %w", err)
		}
		d.window = window
		return d.limit(exec, "redis", window)
	}

	if local != nil {
		return d.limit(exec, "local", local)
	}
	return exec, nil
}

func (d *Driver) limit(exec workerpool.Executor, name string, lim workerpool.Limiter) (workerpool.Executor, error) {
	return workerpool.NewLimited(exec, lim,
		workerpool.WithLimiterName(name),
		workerpool.WithLimiterMetrics(d.metrics),
		workerpool.WithLimiterLogger(d.logger),
	)
}

// RunID identifies this driver in logs and status output.
func (d *Driver) RunID() string {
	return d.runID
}

// Pool returns the underlying pool.
func (d *Driver) Pool() *workerpool.Pool {
	return d.pool
}

// Result summarizes a run.
type Result struct {
	RunID      string
	Tasks      int
	Accepted   int64
	Rejected   int64
	RejectedBy map[string]int64
	// Executed counts tasks that finished before the report was taken.
	Executed    int64
	SubmitTime  time.Duration
	TotalTime   time.Duration
	AverageTime time.Duration
	Hard        bool
	Pool        workerpool.Stats
}

// Run submits the batch, shuts the pool down, waits the grace period and
// reports. Rejections are counted, not returned.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	run := d.cfg.Run
	logger := d.logger.With("component", "driver")
	logger.Info("run starting", "tasks", run.Tasks, "producers", run.Producers, "task_duration", run.TaskDuration)

	var (
		accepted, executed atomic.Int64
		mu                 sync.Mutex
		rejectedBy         = map[string]int64{}
	)

	var bar *progressbar.ProgressBar
	if run.Progress {
		bar = progressbar.NewOptions(run.Tasks,
			progressbar.OptionSetWriter(d.out),
			progressbar.OptionSetDescription("Submitting tasks"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for p := 0; p < run.Producers; p++ {
		producer := p
		g.Go(func() error {
			for id := producer + 1; id <= run.Tasks; id += run.Producers {
				err := d.exec.ExecuteWithContext(ctx, d.task(id, logger, &executed))
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, workerpool.ErrRejected):
					reason, _ := workerpool.RejectionReason(err)
					mu.Lock()
					rejectedBy[reason.String()]++
					mu.Unlock()
					logger.Warn("task rejected", "task", id, "reason", reason)
				default:
					return fmt.Errorf("submit task %d: %w", id, err)
				}
				if bar != nil {
					_ = bar.Add(1)
				}

				if run.SubmitInterval > 0 {
					select {
					case <-time.After(run.SubmitInterval):
					case <-gctx.Done():
						return gctx.Err()
					}
				}
			}
			return nil
		})
	}
	submitErr := g.Wait()
	submitTime := time.Since(start)
	if bar != nil {
		_ = bar.Finish()
	}

	if run.Hard {
		d.exec.ShutdownNow()
	} else {
		d.exec.Shutdown()
	}
	if submitErr != nil {
		return nil, submitErr
	}

	select {
	case <-time.After(run.Grace):
	case <-d.pool.Terminated():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res := &Result{
		RunID:      d.runID,
		Tasks:      run.Tasks,
		Accepted:   accepted.Load(),
		RejectedBy: rejectedBy,
		Executed:   executed.Load(),
		SubmitTime: submitTime,
		TotalTime:  time.Since(start),
		Hard:       run.Hard,
		Pool:       d.pool.Stats(),
	}
	mu.Lock()
	for _, n := range rejectedBy {
		res.Rejected += n
	}
	mu.Unlock()
	if res.Executed > 0 {
		res.AverageTime = res.TotalTime / time.Duration(res.Executed)
	}

	logger.Info("run finished",
		"accepted", res.Accepted,
		"rejected", res.Rejected,
		"executed", res.Executed,
		"total_time", res.TotalTime,
		"average_time", res.AverageTime,
	)
	return res, nil
}

// task sleeps for the configured duration, logging its start and finish.
func (d *Driver) task(id int, logger *slog.Logger, executed *atomic.Int64) workerpool.Task {
	return workerpool.TaskFunc(func(ctx context.Context) error {
		logger.Info("task started", "task", id)
		select {
		case <-time.After(d.cfg.Run.TaskDuration):
		case <-ctx.Done():
			return ctx.Err()
		}
		executed.Add(1)
		logger.Info("task finished", "task", id)
		return nil
	})
}

// Close stops the pool, waits for its workers and releases Redis resources.
func (d *Driver) Close(ctx context.Context) error {
	d.exec.ShutdownNow()
	err := d.pool.AwaitTermination(ctx)
	d.closeRedis()
	return err
}

func (d *Driver) closeRedis() {
	if d.window != nil {
		if err := d.window.Close(); err != nil {
			d.logger.Warn("deregister distributed limiter", "error", err)
		}
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}
