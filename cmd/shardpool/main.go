// Command shardpool submits a batch of timed tasks to a sharded worker pool,
// shuts it down and prints what happened to every submission.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vnykmshr/shardpool/internal/config"
	"github.com/vnykmshr/shardpool/internal/driver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "shardpool: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a YAML configuration file")
		tasks      = flag.Int("tasks", 0, "number of tasks to submit (overrides config)")
		hard       = flag.Bool("hard", false, "use ShutdownNow instead of Shutdown after submitting")
		progress   = flag.Bool("progress", false, "draw a submission progress bar")
		statusAddr = flag.String("status-addr", "", "serve /status, /metrics and /healthz on this address")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn or error")
		logFormat  = flag.String("log-format", "", "log format: text or json")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *tasks > 0 {
		cfg.Run.Tasks = *tasks
	}
	if *hard {
		cfg.Run.Hard = true
	}
	if *progress {
		cfg.Run.Progress = true
	}
	if *statusAddr != "" {
		cfg.Status.Addr = *statusAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := driver.New(ctx, cfg, driver.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.Close(closeCtx); err != nil {
			logger.Warn("workers still running at exit", "error", err)
		}
	}()

	var srv *http.Server
	if cfg.Status.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.Status.Addr,
			Handler:           d.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("status server listening", "addr", cfg.Status.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", "error", err)
			}
		}()
	}

	res, err := d.Run(ctx)
	if err != nil {
		return err
	}
	if err := res.Render(os.Stdout); err != nil {
		return err
	}

	if srv != nil {
		if cfg.Status.Hold > 0 {
			logger.Info("holding status server", "hold", cfg.Status.Hold)
			select {
			case <-time.After(cfg.Status.Hold):
			case <-ctx.Done():
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", "error", err)
		}
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	cfg.ApplyEnv()
	return cfg, nil
}
