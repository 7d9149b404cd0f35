package distributed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindow admits at most Config.Limit events per window across every
// instance sharing the same Redis key.
type FixedWindow struct {
	config Config
	keys   map[string]string
	logger *slog.Logger

	// Lua script for atomic check-and-increment
	checkAndIncrementScript *redis.Script
}

// NewFixedWindow creates a Redis-backed fixed window limiter and registers
// this instance.
func NewFixedWindow(ctx context.Context, config Config) (*FixedWindow, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config = applyConfigDefaults(config)

	fw := &FixedWindow{
		config:                  config,
		keys:                    redisKeys(config.Key),
		logger:                  config.Logger.With("component", "distributed_limiter", "key", config.Key),
		checkAndIncrementScript: redis.NewScript(luaFixedWindowCheckAndIncrement),
	}

	if err := fw.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize fixed window: %w", err)
	}
	return fw, nil
}

// initialize sets up the initial state in Redis.
func (fw *FixedWindow) initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fw.config.RedisTimeout)
	defer cancel()

	pipe := fw.config.Redis.Pipeline()

	pipe.HSet(ctx, fw.keys["config"], map[string]interface{}{
		"limit":     fw.config.Limit,
		"window_ms": fw.config.Window.Milliseconds(),
	})
	pipe.Expire(ctx, fw.keys["config"], fw.config.KeyTTL)

	pipe.HSetNX(ctx, fw.keys["stats"], "total_requests", 0)
	pipe.HSetNX(ctx, fw.keys["stats"], "allowed_requests", 0)
	pipe.HSetNX(ctx, fw.keys["stats"], "denied_requests", 0)
	pipe.Expire(ctx, fw.keys["stats"], fw.config.KeyTTL)

	pipe.SAdd(ctx, fw.keys["instances"], fw.config.InstanceID)
	pipe.Expire(ctx, fw.keys["instances"], fw.config.KeyTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return &RedisError{"initialize", err}
	}
	return nil
}

// windowStart returns the start of the window containing t.
func (fw *FixedWindow) windowStart(t time.Time) time.Time {
	return t.Truncate(fw.config.Window)
}

// windowKey returns the Redis key for the window containing t.
func (fw *FixedWindow) windowKey(t time.Time) string {
	return fmt.Sprintf("%s:%d", fw.keys["window"], fw.windowStart(t).UnixMilli())
}

// Allow reports whether an event may happen now.
func (fw *FixedWindow) Allow(ctx context.Context) bool {
	return fw.AllowN(ctx, 1)
}

// AllowN reports whether n events may happen now. On Redis failure it
// defers to the local limiter when configured and denies otherwise.
func (fw *FixedWindow) AllowN(ctx context.Context, n int) bool {
	if n <= 0 {
		return true
	}

	allowed, err := fw.checkAndIncrement(ctx, n)
	if err == nil {
		return allowed
	}

	fw.logger.Warn("distributed admission check failed", "error", err)
	if fw.config.FallbackToLocal && fw.config.LocalLimiter != nil {
		for i := 0; i < n; i++ {
			if !fw.config.LocalLimiter.Allow(ctx) {
				return false
			}
		}
		return true
	}
	return false
}

func (fw *FixedWindow) checkAndIncrement(ctx context.Context, n int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, fw.config.RedisTimeout)
	defer cancel()

	result, err := fw.checkAndIncrementScript.Run(ctx, fw.config.Redis,
		[]string{fw.windowKey(time.Now()), fw.keys["stats"]},
		n,
		fw.config.Limit,
		fw.config.Window.Milliseconds(),
	).Int64()
	if err != nil {
		return false, &RedisError{"check_and_increment", err}
	}
	return result == 1, nil
}

// Wait blocks until an event is admitted or ctx is done.
func (fw *FixedWindow) Wait(ctx context.Context) error {
	ticker := time.NewTicker(fw.config.RetryInterval)
	defer ticker.Stop()

	for {
		if fw.Allow(ctx) {
			return nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats returns current limiter statistics.
func (fw *FixedWindow) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, fw.config.RedisTimeout)
	defer cancel()

	now := time.Now()
	pipe := fw.config.Redis.Pipeline()
	instancesCmd := pipe.SMembers(ctx, fw.keys["instances"])
	statsCmd := pipe.HGetAll(ctx, fw.keys["stats"])
	currentCmd := pipe.Get(ctx, fw.windowKey(now))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, &RedisError{"stats", err}
	}

	statsMap := statsCmd.Val()
	total, _ := strconv.ParseInt(statsMap["total_requests"], 10, 64)
	allowed, _ := strconv.ParseInt(statsMap["allowed_requests"], 10, 64)
	denied, _ := strconv.ParseInt(statsMap["denied_requests"], 10, 64)
	current, _ := strconv.ParseInt(currentCmd.Val(), 10, 64)

	return &Stats{
		Limit:           fw.config.Limit,
		Window:          fw.config.Window,
		Remaining:       max(0, fw.config.Limit-current),
		WindowStart:     fw.windowStart(now),
		TotalRequests:   total,
		AllowedRequests: allowed,
		DeniedRequests:  denied,
		ActiveInstances: instancesCmd.Val(),
	}, nil
}

// Reset clears the current window and statistics.
func (fw *FixedWindow) Reset(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, fw.config.RedisTimeout)
	defer cancel()

	err := fw.config.Redis.Del(ctx,
		fw.windowKey(time.Now()),
		fw.keys["stats"],
		fw.keys["config"],
		fw.keys["instances"],
	).Err()
	if err != nil {
		return &RedisError{"reset", err}
	}
	return fw.initialize(ctx)
}

// Close deregisters this instance.
func (fw *FixedWindow) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), fw.config.RedisTimeout)
	defer cancel()

	if err := fw.config.Redis.SRem(ctx, fw.keys["instances"], fw.config.InstanceID).Err(); err != nil {
		return &RedisError{"close", err}
	}
	return nil
}

// Lua script for fixed window operations
const luaFixedWindowCheckAndIncrement = `
-- KEYS[1]: current window key
-- KEYS[2]: stats key
-- ARGV[1]: requests count
-- ARGV[2]: max requests per window
-- ARGV[3]: window length (milliseconds)

local window_key = KEYS[1]
local stats_key = KEYS[2]

local requests = tonumber(ARGV[1])
local max_requests = tonumber(ARGV[2])
local window_ms = tonumber(ARGV[3])

local current_count = tonumber(redis.call('GET', window_key) or "0")

redis.call('HINCRBY', stats_key, 'total_requests', requests)

if current_count + requests <= max_requests then
    local new_count = redis.call('INCRBY', window_key, requests)
    if new_count == requests then
        redis.call('PEXPIRE', window_key, window_ms + 1000)
    end
    redis.call('HINCRBY', stats_key, 'allowed_requests', requests)
    return 1
end

redis.call('HINCRBY', stats_key, 'denied_requests', requests)
return 0
`
