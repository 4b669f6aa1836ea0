package provider

import (
	"context"
	"errors"
	"log/slog"
)

// FailoverExecutor runs one logical operation against an ordered replica
// list, advancing on fail-overable errors until success or exhaustion.
type FailoverExecutor struct {
	registry *ReplicaRegistry
	logger   *slog.Logger
}

// NewFailoverExecutor constructs a FailoverExecutor bound to registry.
func NewFailoverExecutor(registry *ReplicaRegistry, logger *slog.Logger) *FailoverExecutor {
	if logger == nil {
		logger = slog.Default()
	}

	return &FailoverExecutor{registry: registry, logger: logger}
}

// Execute iterates replicas in the given order, invoking op against each
// until op succeeds, a non-fail-overable error occurs, replicas are
// exhausted, or ctx is canceled between attempts. On success, the winning
// replica is marked healthy. Every replica that fails — whether failed
// over from or the final exhausted attempt — is marked failed at the
// point of failure, entering cooldown.
func Execute[T any](ctx context.Context, fe *FailoverExecutor, replicas []*Replica, op func(context.Context, *Replica) (T, error)) (T, error) {
	var (
		zero      T
		lastErr   error
		prevEndpt string
	)

	for i, rep := range replicas {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		if i > 0 && rep.Endpoint != prevEndpt {
			fe.logger.Info("failover: switching replica",
				slog.String("from", prevEndpt),
				slog.String("to", rep.Endpoint),
			)
		}

		prevEndpt = rep.Endpoint

		result, err := op(ctx, rep)
		if err == nil {
			fe.registry.MarkResult(rep, true, fe.registry.backoff.Now())

			return result, nil
		}

		lastErr = err

		fe.registry.MarkResult(rep, false, fe.registry.backoff.Now())

		if !IsFailoverable(err) {
			return zero, err
		}

		fe.logger.Warn("failover: replica attempt failed, advancing",
			slog.String("endpoint", rep.Endpoint),
			slog.String("error", err.Error()),
		)
	}

	if lastErr == nil {
		lastErr = errors.New("provider: no replicas available")
	}

	return zero, lastErr
}
