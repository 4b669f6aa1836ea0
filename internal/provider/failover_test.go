package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_SucceedsOnFirstReplica(t *testing.T) {
	b, _ := newTestBackoff(time.Now())
	reg := NewReplicaRegistry([]string{"https://a", "https://b"}, b, nil)
	fe := NewFailoverExecutor(reg, nil)

	calls := 0
	result, err := Execute(context.Background(), fe, reg.AllReplicas(), func(_ context.Context, rep *Replica) (string, error) {
		calls++

		return rep.Endpoint, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "https://a", result)
	assert.Equal(t, 1, calls)
}

func TestExecute_FailsOverOnTransientError(t *testing.T) {
	b, _ := newTestBackoff(time.Now())
	reg := NewReplicaRegistry([]string{"https://a", "https://b"}, b, nil)
	fe := NewFailoverExecutor(reg, nil)

	replicas := reg.AllReplicas()

	result, err := Execute(context.Background(), fe, replicas, func(_ context.Context, rep *Replica) (string, error) {
		if rep.Endpoint == "https://a" {
			return "", transientErr()
		}

		return rep.Endpoint, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "https://b", result)
	assert.Equal(t, 1, replicas[0].ConsecutiveFailures)
	assert.Equal(t, 0, replicas[1].ConsecutiveFailures)
}

func TestExecute_StopsOnNonFailoverableError(t *testing.T) {
	b, _ := newTestBackoff(time.Now())
	reg := NewReplicaRegistry([]string{"https://a", "https://b"}, b, nil)
	fe := NewFailoverExecutor(reg, nil)

	calls := 0
	_, err := Execute(context.Background(), fe, reg.AllReplicas(), func(_ context.Context, rep *Replica) (string, error) {
		calls++

		return "", authErr()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_ExhaustionMarksAllCooldownAndReturnsLastErr(t *testing.T) {
	b, clock := newTestBackoff(time.Now())
	reg := NewReplicaRegistry([]string{"https://a", "https://b"}, b, nil)
	fe := NewFailoverExecutor(reg, nil)

	replicas := reg.AllReplicas()

	_, err := Execute(context.Background(), fe, replicas, func(_ context.Context, _ *Replica) (string, error) {
		return "", transientErr()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)

	for _, rep := range replicas {
		assert.Equal(t, 1, rep.ConsecutiveFailures)
		assert.True(t, rep.BackoffUntil.After(clock.now()))
	}
}

func TestExecute_RespectsCancellationBetweenAttempts(t *testing.T) {
	b, _ := newTestBackoff(time.Now())
	reg := NewReplicaRegistry([]string{"https://a", "https://b"}, b, nil)
	fe := NewFailoverExecutor(reg, nil)

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Execute(ctx, fe, reg.AllReplicas(), func(_ context.Context, _ *Replica) (string, error) {
		calls++
		cancel()

		return "", transientErr()
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
