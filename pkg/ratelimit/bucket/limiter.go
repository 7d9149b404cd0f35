// Package bucket provides a token bucket admission limiter for worker pools,
// backed by golang.org/x/time/rate.
package bucket

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/vnykmshr/shardpool/pkg/common/errors"
)

// Limit represents the maximum frequency of events per second.
// A zero Limit allows only the initial burst. Use Inf for unlimited rates.
type Limit = rate.Limit

// Inf is the infinite rate limit; it allows all events.
var Inf = rate.Inf

// Every converts a minimum time interval between events to a Limit.
func Every(interval time.Duration) Limit {
	return rate.Every(interval)
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Rate is the number of tokens added per second.
	Rate Limit

	// Burst is the maximum number of tokens that can be stored.
	Burst int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Rate < 0 || math.IsNaN(float64(c.Rate)) {
		return errors.NewValidationError("bucket", "rate", c.Rate, "rate cannot be negative").
			WithHint("use 0 for burst-only admission or a positive value")
	}
	if c.Burst <= 0 {
		return errors.NewValidationError("bucket", "burst", c.Burst, "burst must be positive").
			WithHint("burst determines how many submissions can be admitted instantly")
	}
	return nil
}

// Limiter admits events at a steady rate with bursts. It satisfies
// workerpool.Limiter.
type Limiter struct {
	lim *rate.Limiter
}

// New creates a limiter that refills r tokens per second up to burst.
func New(r Limit, burst int) (*Limiter, error) {
	return NewWithConfig(Config{Rate: r, Burst: burst})
}

// NewWithConfig creates a limiter from config. The bucket starts full.
func NewWithConfig(config Config) (*Limiter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{lim: rate.NewLimiter(config.Rate, config.Burst)}, nil
}

// Allow reports whether an event may happen now. It never blocks and denies
// when ctx is already done.
func (l *Limiter) Allow(ctx context.Context) bool {
	if ctx != nil && ctx.Err() != nil {
		return false
	}
	return l.lim.Allow()
}

// AllowN reports whether n events may happen at now.
func (l *Limiter) AllowN(now time.Time, n int) bool {
	return l.lim.AllowN(now, n)
}

// Wait blocks until an event can happen or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.lim.Wait(ctx); err != nil {
		return errors.NewOperationError("bucket", "wait", err)
	}
	return nil
}

// SetLimit changes the rate limit. It preserves the current burst size.
func (l *Limiter) SetLimit(limit Limit) {
	l.lim.SetLimit(limit)
}

// SetBurst changes the burst size. It preserves the current rate limit.
func (l *Limiter) SetBurst(burst int) {
	l.lim.SetBurst(burst)
}

// Limit returns the current rate limit.
func (l *Limiter) Limit() Limit {
	return l.lim.Limit()
}

// Burst returns the current burst size.
func (l *Limiter) Burst() int {
	return l.lim.Burst()
}

// Tokens returns the number of tokens currently available.
func (l *Limiter) Tokens() float64 {
	return l.lim.Tokens()
}
