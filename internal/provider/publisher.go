package provider

import (
	"log/slog"
	"sync/atomic"
)

// OutputPublisher atomically swaps the published key->value mapping and
// notifies observers that configuration has changed.
// Readers see either the old or the new mapping via a single reference
// swap, never a torn read.
type OutputPublisher struct {
	current   atomic.Pointer[map[string]string]
	observers []func(map[string]string)
	logger    *slog.Logger
}

// NewOutputPublisher returns a publisher with an empty initial mapping.
func NewOutputPublisher(logger *slog.Logger) *OutputPublisher {
	if logger == nil {
		logger = slog.Default()
	}

	p := &OutputPublisher{logger: logger}
	empty := map[string]string{}
	p.current.Store(&empty)

	return p
}

// Data returns the currently published mapping. Safe to call
// concurrently with Publish.
func (p *OutputPublisher) Data() map[string]string {
	return *p.current.Load()
}

// OnReload registers an observer called after every successful Publish.
// Not safe to call concurrently with Publish; call during setup only.
func (p *OutputPublisher) OnReload(fn func(map[string]string)) {
	p.observers = append(p.observers, fn)
}

// Publish atomically replaces the exposed mapping and notifies every
// registered observer. mapping is never mutated in place by the caller
// after this call.
func (p *OutputPublisher) Publish(mapping map[string]string) {
	p.current.Store(&mapping)

	p.logger.Debug("published configuration update", slog.Int("keys", len(mapping)))

	for _, fn := range p.observers {
		fn(mapping)
	}
}

// Seed replaces the exposed mapping without notifying observers. Used to
// warm-start the published view from a durable cache before any replica
// has ever been reached, so observers that mirror Publish back out (e.g.
// a disk cache) don't needlessly rewrite data they were just read from.
func (p *OutputPublisher) Seed(mapping map[string]string) {
	p.current.Store(&mapping)

	p.logger.Debug("seeded configuration from warm-start source", slog.Int("keys", len(mapping)))
}
