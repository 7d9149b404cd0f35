package distributed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/shardpool/internal/testutil"
	"github.com/vnykmshr/shardpool/pkg/ratelimit/bucket"
)

// redisClient returns a client for a local Redis or skips the test.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skip("Redis not available, skipping test")
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateConfig(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer func() { _ = rdb.Close() }()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{Redis: rdb, Key: "k", Limit: 10}, false},
		{"missing redis", Config{Key: "k", Limit: 10}, true},
		{"missing key", Config{Redis: rdb, Limit: 10}, true},
		{"zero limit", Config{Redis: rdb, Key: "k"}, true},
		{"negative window", Config{Redis: rdb, Key: "k", Limit: 1, Window: -time.Second}, true},
		{"tiny window", Config{Redis: rdb, Key: "k", Limit: 1, Window: time.Microsecond}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.config)
			if tt.wantErr {
				var cerr *ConfigError
				if !errors.As(err, &cerr) {
					t.Fatalf("expected *ConfigError, got %v", err)
				}
				return
			}
			testutil.AssertNoError(t, err)
		})
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	config := applyConfigDefaults(Config{Key: "k", Limit: 1})

	testutil.AssertEqual(t, config.Window, time.Second)
	testutil.AssertEqual(t, config.RedisTimeout, 500*time.Millisecond)
	testutil.AssertEqual(t, config.RetryInterval, 100*time.Millisecond)
	testutil.AssertEqual(t, config.KeyTTL, time.Hour)
	if _, err := uuid.Parse(config.InstanceID); err != nil {
		t.Errorf("instance id %q is not a uuid: %v", config.InstanceID, err)
	}
}

func TestFixedWindow_SharedLimit(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()
	key := "shardpool:test:" + uuid.NewString()

	newLimiter := func(instance string) *FixedWindow {
		fw, err := NewFixedWindow(ctx, Config{
			Redis:      rdb,
			Key:        key,
			Limit:      5,
			Window:     time.Hour,
			InstanceID: instance,
			Logger:     quietLogger(),
		})
		testutil.AssertNoError(t, err)
		t.Cleanup(func() { _ = fw.Close() })
		return fw
	}
	a, b := newLimiter("a"), newLimiter("b")

	allowed := 0
	for i := 0; i < 10; i++ {
		lim := a
		if i%2 == 1 {
			lim = b
		}
		if lim.Allow(ctx) {
			allowed++
		}
	}
	testutil.AssertEqual(t, allowed, 5)

	stats, err := a.Stats(ctx)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, stats.AllowedRequests, int64(5))
	testutil.AssertEqual(t, stats.DeniedRequests, int64(5))
	testutil.AssertEqual(t, stats.Remaining, int64(0))
	testutil.AssertEqual(t, len(stats.ActiveInstances), 2)

	testutil.AssertNoError(t, a.Reset(ctx))
	testutil.AssertEqual(t, a.Allow(ctx), true)
}

func TestFixedWindow_WaitForNextWindow(t *testing.T) {
	rdb := redisClient(t)
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	fw, err := NewFixedWindow(ctx, Config{
		Redis:         rdb,
		Key:           "shardpool:test:" + uuid.NewString(),
		Limit:         1,
		Window:        100 * time.Millisecond,
		RetryInterval: 10 * time.Millisecond,
		Logger:        quietLogger(),
	})
	testutil.AssertNoError(t, err)
	defer func() { _ = fw.Close() }()

	testutil.AssertEqual(t, fw.Allow(ctx), true)
	testutil.AssertNoError(t, fw.Wait(ctx))
}

func TestFixedWindow_FallbackToLocal(t *testing.T) {
	rdb := redisClient(t)
	ctx := context.Background()

	local, err := bucket.New(0, 2)
	testutil.AssertNoError(t, err)

	fw, err := NewFixedWindow(ctx, Config{
		Redis:           rdb,
		Key:             "shardpool:test:" + uuid.NewString(),
		Limit:           100,
		FallbackToLocal: true,
		LocalLimiter:    local,
		Logger:          quietLogger(),
	})
	testutil.AssertNoError(t, err)

	// A closed client fails every command, forcing the fallback path.
	_ = rdb.Close()

	testutil.AssertEqual(t, fw.Allow(ctx), true)
	testutil.AssertEqual(t, fw.Allow(ctx), true)
	testutil.AssertEqual(t, fw.Allow(ctx), false)
}
