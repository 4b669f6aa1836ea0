package provider

import (
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// ReplicaRegistry tracks replica endpoints, their health, backoff-until
// timestamps, and sync tokens, and orders them for dispatch. Not safe for concurrent use beyond the refresh single-flight
// discipline the engine already enforces.
type ReplicaRegistry struct {
	replicas []*Replica
	backoff  *BackoffSchedule
	logger   *slog.Logger
}

// NewReplicaRegistry constructs a registry over endpoints in the given
// preference order (configured order, typically primary first).
func NewReplicaRegistry(endpoints []string, backoff *BackoffSchedule, logger *slog.Logger) *ReplicaRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	replicas := make([]*Replica, 0, len(endpoints))
	for _, ep := range endpoints {
		replicas = append(replicas, &Replica{Endpoint: ep})
	}

	return &ReplicaRegistry{replicas: replicas, backoff: backoff, logger: logger}
}

// AllReplicas returns every registered replica in preference order,
// regardless of health.
func (r *ReplicaRegistry) AllReplicas() []*Replica {
	out := make([]*Replica, len(r.replicas))
	copy(out, r.replicas)

	return out
}

// AvailableReplicas returns replicas with BackoffUntil <= now, in the
// registry's stable preference order.
func (r *ReplicaRegistry) AvailableReplicas(now time.Time) []*Replica {
	out := make([]*Replica, 0, len(r.replicas))

	for _, rep := range r.replicas {
		if !rep.BackoffUntil.After(now) {
			out = append(out, rep)
		}
	}

	return out
}

// MarkResult records the outcome of an operation against a replica. A
// success resets ConsecutiveFailures and releases any backoff immediately.
// A failure increments ConsecutiveFailures and sets BackoffUntil using the
// BackoffSchedule's replica cooldown.
func (r *ReplicaRegistry) MarkResult(rep *Replica, success bool, now time.Time) {
	if rep == nil {
		return
	}

	if success {
		rep.ConsecutiveFailures = 0
		rep.BackoffUntil = now

		return
	}

	rep.ConsecutiveFailures++
	cooldown := r.backoff.ReplicaCooldown(rep.ConsecutiveFailures)
	rep.BackoffUntil = now.Add(cooldown)

	r.logger.Warn("replica entering cooldown",
		slog.String("endpoint", rep.Endpoint),
		slog.Int("consecutive_failures", rep.ConsecutiveFailures),
		slog.Duration("cooldown", cooldown),
	)
}

// UpdateSyncToken records a fresher sync token for the replica whose
// endpoint matches resourceURI's host. Returns false without mutating any
// state if resourceURI does not identify a known replica.
func (r *ReplicaRegistry) UpdateSyncToken(resourceURI, token string) bool {
	rep := r.findByHost(resourceURI)
	if rep == nil {
		return false
	}

	rep.SyncToken = token

	return true
}

// findByHost resolves resourceURI to a known replica by comparing hosts.
// Falls back to a raw string match if resourceURI does not parse as a URL
// (e.g. it is already a bare host), so configuration using either form
// works uniformly.
func (r *ReplicaRegistry) findByHost(resourceURI string) *Replica {
	host := hostOf(resourceURI)

	for _, rep := range r.replicas {
		if hostOf(rep.Endpoint) == host {
			return rep
		}
	}

	return nil
}

func hostOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return strings.ToLower(u.Host)
	}

	return strings.ToLower(raw)
}
