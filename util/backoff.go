package util

import (
	"context"
	"time"
)

// Backoff describes a bounded exponential retry schedule. It holds no state; the
// attempt number is passed in explicitly.
type Backoff struct {
	Attempts int           // total number of tries, including the first one
	Initial  time.Duration // delay before the second try
	Max      time.Duration // ceiling for any single delay
}

// DefaultBackoff is used for reads, probes and bulk batches unless overridden
var DefaultBackoff = Backoff{Attempts: 3, Initial: 200 * time.Millisecond, Max: 2 * time.Second}

// Delay returns how long to wait after the given failed attempt (1-based)
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 || b.Initial <= 0 {
		return 0
	}
	d := b.Initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry calls fn until it succeeds, returns an error for which retryable is false,
// or the attempts are used up. The last error is returned. fn receives the 1-based
// attempt number.
func Retry(ctx context.Context, b Backoff, sleep SleepFunc, retryable func(error) bool, fn func(attempt int) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	if sleep == nil {
		sleep = Sleep
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}
		if serr := sleep(ctx, b.Delay(attempt)); serr != nil {
			return err
		}
	}
	return err
}
