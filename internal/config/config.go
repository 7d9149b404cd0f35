// Package config loads the shardpool driver configuration from YAML,
// SHARDPOOL_* environment variables and defaults.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	gferrors "github.com/vnykmshr/shardpool/pkg/common/errors"
	"github.com/vnykmshr/shardpool/pkg/common/validation"
	"github.com/vnykmshr/shardpool/pkg/scheduling/workerpool"
)

const module = "config"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHARDPOOL_"

// Config holds all configuration for the shardpool driver
type Config struct {
	Pool      PoolConfig      `yaml:"pool"`
	Run       RunConfig       `yaml:"run"`
	Log       LogConfig       `yaml:"log"`
	Status    StatusConfig    `yaml:"status"`
	Admission AdmissionConfig `yaml:"admission"`
}

// PoolConfig mirrors workerpool.Config
type PoolConfig struct {
	CoreWorkers     int           `yaml:"core_workers"`
	MaxPoolSize     int           `yaml:"max_pool_size"`
	QueueSize       int           `yaml:"queue_size"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	MinSpareWorkers int           `yaml:"min_spare_workers"`
}

// RunConfig describes the batch the driver submits
type RunConfig struct {
	Tasks          int           `yaml:"tasks"`
	TaskDuration   time.Duration `yaml:"task_duration"`
	SubmitInterval time.Duration `yaml:"submit_interval"`
	Producers      int           `yaml:"producers"`
	Grace          time.Duration `yaml:"grace"`
	Hard           bool          `yaml:"hard"`
	Progress       bool          `yaml:"progress"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StatusConfig holds the status server configuration. An empty Addr
// disables the server.
type StatusConfig struct {
	Addr string        `yaml:"addr"`
	Hold time.Duration `yaml:"hold"`
}

// AdmissionConfig holds the optional admission limiters. Zero values
// disable them.
type AdmissionConfig struct {
	Rate        float64       `yaml:"rate"`
	Burst       int           `yaml:"burst"`
	RedisAddr   string        `yaml:"redis_addr"`
	RedisKey    string        `yaml:"redis_key"`
	WindowLimit int64         `yaml:"window_limit"`
	Window      time.Duration `yaml:"window"`
}

// Default returns the configuration of the reference run: 4 core workers,
// max pool size 8, queue size 10, 5s idle timeout, 2 spare workers, 100
// tasks of 100ms and a 2s grace period.
func Default() *Config {
	pool := workerpool.DefaultConfig()
	return &Config{
		Pool: PoolConfig{
			CoreWorkers:     pool.CoreWorkers,
			MaxPoolSize:     pool.MaxPoolSize,
			QueueSize:       pool.QueueSize,
			IdleTimeout:     pool.IdleTimeout,
			MinSpareWorkers: pool.MinSpareWorkers,
		},
		Run: RunConfig{
			Tasks:        100,
			TaskDuration: 100 * time.Millisecond,
			Producers:    1,
			Grace:        2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Admission: AdmissionConfig{
			RedisKey: "shardpool:admission",
			Window:   time.Second,
		},
	}
}

// Load reads path on top of the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}

		// Expand environment variables
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from SHARDPOOL_* variables. Unparseable values
// are ignored.
func (c *Config) ApplyEnv() {
	c.Pool.CoreWorkers = getEnvInt("CORE_WORKERS", c.Pool.CoreWorkers)
	c.Pool.MaxPoolSize = getEnvInt("MAX_POOL_SIZE", c.Pool.MaxPoolSize)
	c.Pool.QueueSize = getEnvInt("QUEUE_SIZE", c.Pool.QueueSize)
	c.Pool.IdleTimeout = getEnvDuration("IDLE_TIMEOUT", c.Pool.IdleTimeout)
	c.Pool.MinSpareWorkers = getEnvInt("MIN_SPARE_WORKERS", c.Pool.MinSpareWorkers)

	c.Run.Tasks = getEnvInt("TASKS", c.Run.Tasks)
	c.Run.TaskDuration = getEnvDuration("TASK_DURATION", c.Run.TaskDuration)
	c.Run.SubmitInterval = getEnvDuration("SUBMIT_INTERVAL", c.Run.SubmitInterval)
	c.Run.Producers = getEnvInt("PRODUCERS", c.Run.Producers)
	c.Run.Grace = getEnvDuration("GRACE", c.Run.Grace)
	c.Run.Hard = getEnvBool("HARD", c.Run.Hard)
	c.Run.Progress = getEnvBool("PROGRESS", c.Run.Progress)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.Status.Addr = getEnv("STATUS_ADDR", c.Status.Addr)
	c.Status.Hold = getEnvDuration("STATUS_HOLD", c.Status.Hold)

	c.Admission.Rate = getEnvFloat("ADMISSION_RATE", c.Admission.Rate)
	c.Admission.Burst = getEnvInt("ADMISSION_BURST", c.Admission.Burst)
	c.Admission.RedisAddr = getEnv("REDIS_ADDR", c.Admission.RedisAddr)
	c.Admission.RedisKey = getEnv("REDIS_KEY", c.Admission.RedisKey)
	c.Admission.WindowLimit = int64(getEnvInt("WINDOW_LIMIT", int(c.Admission.WindowLimit)))
	c.Admission.Window = getEnvDuration("WINDOW", c.Admission.Window)
}

// Validate checks the driver settings and the pool settings.
func (c *Config) Validate() error {
	if err := c.WorkerPool(nil).Validate(); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative(module, "run.tasks", c.Run.Tasks); err != nil {
		return err
	}
	if err := validation.ValidatePositive(module, "run.producers", c.Run.Producers); err != nil {
		return err
	}
	for field, d := range map[string]time.Duration{
		"run.task_duration":   c.Run.TaskDuration,
		"run.submit_interval": c.Run.SubmitInterval,
		"run.grace":           c.Run.Grace,
		"status.hold":         c.Status.Hold,
	} {
		if d < 0 {
			return gferrors.NewValidationError(module, field, d, "cannot be negative")
		}
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	if c.Admission.Rate > 0 {
		if err := validation.ValidatePositive(module, "admission.burst", c.Admission.Burst); err != nil {
			return err
		}
	}
	if c.Admission.RedisAddr != "" {
		if err := validation.ValidateNotEmpty(module, "admission.redis_key", c.Admission.RedisKey); err != nil {
			return err
		}
		if c.Admission.WindowLimit <= 0 {
			return validation.ValidatePositive(module, "admission.window_limit", int(c.Admission.WindowLimit))
		}
	}
	return nil
}

// WorkerPool converts the pool section into a workerpool.Config.
func (c *Config) WorkerPool(logger *slog.Logger) workerpool.Config {
	return workerpool.Config{
		CoreWorkers:     c.Pool.CoreWorkers,
		MaxPoolSize:     c.Pool.MaxPoolSize,
		QueueSize:       c.Pool.QueueSize,
		IdleTimeout:     c.Pool.IdleTimeout,
		MinSpareWorkers: c.Pool.MinSpareWorkers,
		Logger:          logger,
	}
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, gferrors.NewValidationError(module, "log.level", l.Level, "unknown level").
			WithHint("use debug, info, warn or error")
	}
	return level, nil
}

// NewLogger builds a text or JSON slog logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
