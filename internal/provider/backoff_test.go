package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSchedule_StartupDelay_WithinGrace(t *testing.T) {
	b, _ := newTestBackoff(time.Now())

	d := b.StartupDelay(5*time.Second, 0)
	require.Equal(t, b.StartupSteps[0], d)

	d = b.StartupDelay(5*time.Second, 2)
	require.Equal(t, b.StartupSteps[2], d)

	// Attempt beyond the table clamps to the last step.
	d = b.StartupDelay(5*time.Second, 1000)
	require.Equal(t, b.StartupSteps[len(b.StartupSteps)-1], d)
}

func TestBackoffSchedule_StartupDelay_AfterGrace(t *testing.T) {
	b, _ := newTestBackoff(time.Now())

	d := b.StartupDelay(b.StartupGrace+time.Second, 1)
	require.Equal(t, b.ExponentialDelay(1), d)
}

func TestBackoffSchedule_ExponentialDelay_ClampsAndJitters(t *testing.T) {
	b, _ := newTestBackoff(time.Now())
	b.randFloat = func() float64 { return 1.0 } // max jitter

	d1 := b.ExponentialDelay(1)
	assert.Equal(t, b.Min, d1) // 2^0 * min * 1.0 jitter == min

	dMax := b.ExponentialDelay(20)
	assert.Equal(t, b.Max, dMax) // clamped

	b.randFloat = func() float64 { return 0.0 } // min jitter
	dMaxMinJitter := b.ExponentialDelay(20)
	assert.Equal(t, time.Duration(float64(b.Max)*b.JitterMin), dMaxMinJitter)
}

func TestBackoffSchedule_ReplicaCooldown_GrowsWithFailures(t *testing.T) {
	b, _ := newTestBackoff(time.Now())

	d1 := b.ReplicaCooldown(1)
	d2 := b.ReplicaCooldown(2)
	assert.LessOrEqual(t, d1, d2)
}

func TestBackoffSchedule_UniformBetween_Bounds(t *testing.T) {
	b, _ := newTestBackoff(time.Now())

	for _, rf := range []float64{0, 0.25, 0.75, 0.999} {
		b.randFloat = func() float64 { return rf }
		d := b.UniformBetween(30 * time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 30*time.Second)
	}

	assert.Equal(t, time.Duration(0), b.UniformBetween(0))
}

func TestSleep_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Hour)
	require.Error(t, err)
}

func TestSleep_ZeroDurationNoBlock(t *testing.T) {
	err := Sleep(context.Background(), 0)
	require.NoError(t, err)
}
