package distributed

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// LocalLimiter is consulted when Redis cannot be reached and
// Config.FallbackToLocal is set.
type LocalLimiter interface {
	Allow(ctx context.Context) bool
}

// Stats holds distributed rate limiter statistics.
type Stats struct {
	Limit           int64
	Window          time.Duration
	Remaining       int64
	WindowStart     time.Time
	TotalRequests   int64
	AllowedRequests int64
	DeniedRequests  int64
	ActiveInstances []string
}

// Config holds configuration for the distributed admission limiter.
type Config struct {
	// Redis client for coordination
	Redis redis.UniversalClient

	// Key is the Redis key prefix for this limiter
	Key string

	// Limit is the number of admissions shared by all instances per window
	Limit int64

	// Window is the length of a counting window (defaults to 1s)
	Window time.Duration

	// InstanceID uniquely identifies this application instance
	InstanceID string

	// FallbackToLocal enables local rate limiting if Redis is unavailable
	FallbackToLocal bool

	// LocalLimiter is used when Redis is unavailable (if FallbackToLocal is true)
	LocalLimiter LocalLimiter

	// RedisTimeout is the timeout for Redis operations
	RedisTimeout time.Duration

	// RetryInterval controls how often Wait re-checks the window (defaults to 100ms)
	RetryInterval time.Duration

	// KeyTTL is how long config, stats and instance keys live (defaults to 1 hour)
	KeyTTL time.Duration

	// Logger receives Redis failures. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns a default distributed rate limiter configuration.
func DefaultConfig() Config {
	return Config{
		Window:          time.Second,
		InstanceID:      uuid.NewString(),
		FallbackToLocal: true,
		RedisTimeout:    500 * time.Millisecond,
		RetryInterval:   100 * time.Millisecond,
		KeyTTL:          time.Hour,
	}
}

// validateConfig validates the limiter configuration.
func validateConfig(config Config) error {
	if config.Redis == nil {
		return &ConfigError{"redis client is required"}
	}
	if config.Key == "" {
		return &ConfigError{"key is required"}
	}
	if config.Limit <= 0 {
		return &ConfigError{"limit must be positive"}
	}
	if config.Window < 0 {
		return &ConfigError{"window cannot be negative"}
	}
	if config.Window > 0 && config.Window < time.Millisecond {
		return &ConfigError{"window must be at least 1ms"}
	}
	return nil
}

// applyConfigDefaults sets default values for unspecified config fields.
func applyConfigDefaults(config Config) Config {
	defaults := DefaultConfig()
	if config.Window == 0 {
		config.Window = defaults.Window
	}
	if config.InstanceID == "" {
		config.InstanceID = defaults.InstanceID
	}
	if config.RedisTimeout == 0 {
		config.RedisTimeout = defaults.RedisTimeout
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = defaults.RetryInterval
	}
	if config.KeyTTL == 0 {
		config.KeyTTL = defaults.KeyTTL
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return config
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "distributed rate limiter config error: " + e.Message
}

// RedisError represents a Redis operation error.
type RedisError struct {
	Operation string
	Err       error
}

func (e *RedisError) Error() string {
	return "redis error in " + e.Operation + ": " + e.Err.Error()
}

func (e *RedisError) Unwrap() error {
	return e.Err
}

// redisKeys generates Redis keys for the limiter's data structures.
func redisKeys(prefix string) map[string]string {
	return map[string]string{
		"window":    prefix + ":window",
		"config":    prefix + ":config",
		"stats":     prefix + ":stats",
		"instances": prefix + ":instances",
	}
}
