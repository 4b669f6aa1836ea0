package provider

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffSchedule computes the startup fixed-window delay, the
// post-window exponential-with-jitter delay, and per-replica cooldowns.
// The zero value is not usable — construct with NewBackoffSchedule.
type BackoffSchedule struct {
	// StartupGrace is how long after process start the fixed-window
	// staircase applies. After it elapses, StartupDelay always returns the
	// post-window exponential schedule.
	StartupGrace time.Duration
	// StartupSteps is the fixed-delay staircase used during StartupGrace,
	// indexed by attempt number (clamped to the last entry).
	StartupSteps []time.Duration
	// Min and Max bound the post-window exponential-with-jitter delay.
	Min, Max time.Duration
	// JitterMin and JitterMax bound the uniform multiplicative jitter
	// applied to the exponential delay.
	JitterMin, JitterMax float64

	// randFloat returns a uniform float64 in [0,1). Injected so tests are
	// deterministic (DESIGN NOTES §9: no global/static randomness).
	randFloat func() float64
	// now returns the current time. Injected for deterministic tests.
	now func() time.Time
}

// defaultStartupSteps mirrors a typical staircase: quick retries for the
// first few seconds of process life, then settling into longer waits
// before the post-window exponential schedule takes over.
func defaultStartupSteps() []time.Duration {
	return []time.Duration{
		1 * time.Second,
		2 * time.Second,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
	}
}

// NewBackoffSchedule builds a BackoffSchedule with the standard
// defaults: 30s startup grace window, min=30s, max=10min post-window
// exponential with [0.8,1.0] jitter.
func NewBackoffSchedule() *BackoffSchedule {
	return &BackoffSchedule{
		StartupGrace: 30 * time.Second,
		StartupSteps: defaultStartupSteps(),
		Min:          30 * time.Second,
		Max:          10 * time.Minute,
		JitterMin:    0.8,
		JitterMax:    1.0,
		randFloat:    rand.Float64,
		now:          time.Now,
	}
}

// StartupDelay returns the delay to wait before the next initialLoad
// attempt, given how long the process has been trying (elapsed) and the
// 0-based attempt count. When elapsed has left StartupGrace, it returns
// the post-window exponential delay instead.
func (b *BackoffSchedule) StartupDelay(elapsed time.Duration, attempt int) time.Duration {
	if elapsed >= b.StartupGrace {
		return b.ExponentialDelay(attempt)
	}

	if attempt >= len(b.StartupSteps) {
		attempt = len(b.StartupSteps) - 1
	}

	if attempt < 0 {
		attempt = 0
	}

	return b.StartupSteps[attempt]
}

// ExponentialDelay computes delay(attempt) = clamp(min*2^(attempt-1), min,
// max) multiplied by uniform jitter in [JitterMin, JitterMax]. attempt is
// 1-based; attempt <= 1 uses the base min delay.
func (b *BackoffSchedule) ExponentialDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	raw := float64(b.Min) * math.Pow(2, float64(attempt-1))
	if raw < float64(b.Min) {
		raw = float64(b.Min)
	}

	if raw > float64(b.Max) {
		raw = float64(b.Max)
	}

	jitter := b.JitterMin + b.randFloat()*(b.JitterMax-b.JitterMin)

	return time.Duration(raw * jitter)
}

// ReplicaCooldown computes the backoff duration to apply to a replica that
// has just accumulated consecutiveFailures failures. Same exponential
// jitter shape as ExponentialDelay, keyed on failures instead of a
// standalone attempt counter.
func (b *BackoffSchedule) ReplicaCooldown(consecutiveFailures int) time.Duration {
	return b.ExponentialDelay(consecutiveFailures)
}

// Sleep waits for d or until ctx is canceled, returning ctx.Err() in the
// latter case. The default cancellation-aware sleep used throughout the
// engine.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
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

// UniformBetween returns a uniform random duration in [0, max). Used by
// PushIntake to spread the thundering herd of accelerated refreshes.
func (b *BackoffSchedule) UniformBetween(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	return time.Duration(b.randFloat() * float64(max))
}

// Now returns the schedule's notion of the current time.
func (b *BackoffSchedule) Now() time.Time {
	return b.now()
}
