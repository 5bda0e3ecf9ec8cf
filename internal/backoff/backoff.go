// Package backoff computes retry delays. It has no clock and no transport
// dependencies so reconnect and publish retry schedules can be unit tested.
package backoff

import (
	"context"
	"time"
)

// Delay returns the wait before retry number attempt (0-based): base doubled
// attempt times and capped at max. A non-positive base yields zero.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if max > 0 && base >= max {
		return max
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		// overflow or cap reached
		if d <= 0 || (max > 0 && d >= max) {
			if max > 0 {
				return max
			}
			return time.Duration(1<<63 - 1)
		}
	}
	return d
}

// Policy bundles the parameters of an exponential backoff schedule.
type Policy struct {
	Base time.Duration `mapstructure:"base"`
	Max  time.Duration `mapstructure:"max"`
	// MaxAttempts bounds the number of consecutive attempts; 0 means unlimited.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// Delay returns the wait before retry number attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return Delay(attempt, p.Base, p.Max)
}

// Exhausted reports whether attempts consecutive failures used up the policy.
func (p Policy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// Sleep waits for d or until ctx is cancelled. Returns false if cancelled.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
