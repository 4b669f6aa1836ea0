package provider

import (
	"fmt"
	"log/slog"
)

// PushIntake validates incoming push notifications, updates the
// originating replica's sync token, and marks every watcher dirty with a
// bounded random delay.
type PushIntake struct {
	registry *ReplicaRegistry
	watchers *WatcherSet
	backoff  *BackoffSchedule
	logger   *slog.Logger
}

// NewPushIntake constructs a PushIntake wired to the given registry,
// watcher set, and backoff schedule (used only for its jitter source).
func NewPushIntake(registry *ReplicaRegistry, watchers *WatcherSet, backoff *BackoffSchedule, logger *slog.Logger) *PushIntake {
	if logger == nil {
		logger = slog.Default()
	}

	return &PushIntake{registry: registry, watchers: watchers, backoff: backoff, logger: logger}
}

// Process validates n and, if it names a known replica, accelerates the
// next refresh by a uniform random delay in [0, maxDelay).
// Returns ErrInvalidConfig for a malformed notification. An unknown endpoint is logged and otherwise ignored — it
// does not mutate any replica or watcher state.
func (p *PushIntake) Process(n PushNotification) error {
	if n.SyncToken == "" || n.EventType == "" || n.ResourceURI == "" {
		return fmt.Errorf("%w: push notification missing required field", ErrInvalidConfig)
	}

	if !p.registry.UpdateSyncToken(n.ResourceURI, n.SyncToken) {
		p.logger.Warn("push notification from unknown endpoint, ignoring",
			slog.String("resource_uri", n.ResourceURI),
		)

		return nil
	}

	maxDelay := defaultMaxPushDelay
	if n.MaxDelay != nil {
		maxDelay = *n.MaxDelay
	}

	delay := p.backoff.UniformBetween(maxDelay)
	now := p.backoff.Now()

	p.watchers.MarkAllDue(now.Add(delay))

	p.logger.Info("push notification accelerated next refresh",
		slog.String("resource_uri", n.ResourceURI),
		slog.String("event_type", n.EventType),
		slog.Duration("delay", delay),
	)

	return nil
}
