package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GenericMode decides what happens after an error that is neither a rate
// limit nor a policy rejection
type GenericMode string

const (
	GenericBackoff GenericMode = "backoff"
	GenericAbort   GenericMode = "abort"
)

// ErrWaitTooLong is returned when a rate-limit reset lies beyond the ceiling
var ErrWaitTooLong = errors.New("rate limit wait exceeds ceiling")

// Policy is the single backoff contract used by the publisher
type Policy struct {
	MaxAttempts          int
	MaxRateLimitWait     time.Duration // 0 means no ceiling
	DefaultRateLimitWait time.Duration // used when the reset header is missing
	GenericErrors        GenericMode
	BaseDelay            time.Duration
	MaxDelay             time.Duration // 0 means uncapped
}

// DefaultPolicy returns five attempts, a 300s rate-limit ceiling and
// 1s, 2s, 4s... backoff on other errors.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:          5,
		MaxRateLimitWait:     300 * time.Second,
		DefaultRateLimitWait: 300 * time.Second,
		GenericErrors:        GenericBackoff,
		BaseDelay:            time.Second,
		MaxDelay:             5 * time.Minute,
	}
}

// Validate checks the policy fields
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.MaxRateLimitWait < 0 || p.DefaultRateLimitWait < 0 || p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("retry durations must not be negative")
	}
	switch p.GenericErrors {
	case GenericBackoff, GenericAbort:
	default:
		return fmt.Errorf("unknown generic error mode %q", p.GenericErrors)
	}
	return nil
}

// RateLimitWait computes max(reset-now, 0). A zero reset falls back to
// DefaultRateLimitWait. The wait is returned together with ErrWaitTooLong
// when it exceeds MaxRateLimitWait.
func (p Policy) RateLimitWait(reset, now time.Time) (time.Duration, error) {
	wait := p.DefaultRateLimitWait
	if !reset.IsZero() {
		wait = reset.Sub(now)
	}
	if wait < 0 {
		wait = 0
	}
	if p.MaxRateLimitWait > 0 && wait > p.MaxRateLimitWait {
		return wait, fmt.Errorf("%w: %s > %s", ErrWaitTooLong, wait, p.MaxRateLimitWait)
	}
	return wait, nil
}

// BackoffDelay returns BaseDelay * 2^attempt for a zero-based attempt
func (p Policy) BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// past 2^30 the shift overflows long before any sane cap
	if attempt > 30 {
		attempt = 30
	}
	d := p.BaseDelay * time.Duration(1<<uint(attempt))
	if p.MaxDelay > 0 && (d > p.MaxDelay || d < 0) {
		return p.MaxDelay
	}
	return d
}

// Sleeper blocks for a duration or until ctx is done
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
