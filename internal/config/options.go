package config

import (
	"fmt"
	"time"

	"github.com/kptl-dev/remoteconfig-go/internal/provider"
)

// ToOptions builds a provider.Options from a resolved configuration. The
// caller supplies the collaborators that aren't plain data: the
// ClientFactory binding to a concrete transport and the Adapters chain.
// The returned Options.Logger is nil; callers set it themselves. Poll intervals are parsed here so a malformed TOML duration
// fails fast at startup rather than inside the refresh engine.
func (rc *ResolvedConfig) ToOptions(factory provider.ClientFactory, adapters []provider.Adapter) (provider.Options, error) {
	selectors := make([]provider.Selector, len(rc.Selectors))
	for i, s := range rc.Selectors {
		selectors[i] = provider.Selector{KeyFilter: s.KeyFilter, LabelFilter: s.LabelFilter, SnapshotName: s.SnapshotName}
	}

	watchers := make([]provider.Watcher, len(rc.Watchers))

	for i, w := range rc.Watchers {
		interval, err := time.ParseDuration(w.PollInterval)
		if err != nil {
			return provider.Options{}, fmt.Errorf("watch[%d].poll_interval: %w", i, err)
		}

		watchers[i] = provider.Watcher{Key: w.Key, Label: w.Label, PollInterval: interval, RefreshAll: w.RefreshAll}
	}

	prefixWatchers := make([]provider.PrefixWatcher, len(rc.PrefixWatchers))

	for i, w := range rc.PrefixWatchers {
		interval, err := time.ParseDuration(w.PollInterval)
		if err != nil {
			return provider.Options{}, fmt.Errorf("watch_prefix[%d].poll_interval: %w", i, err)
		}

		prefixWatchers[i] = provider.PrefixWatcher{KeyPattern: w.KeyPattern, Label: w.Label, PollInterval: interval}
	}

	return provider.Options{
		Endpoints:             rc.Endpoints,
		ClientFactory:         factory,
		Selectors:             selectors,
		ChangeWatchers:        watchers,
		PrefixWatchers:        prefixWatchers,
		KeyPrefixes:           rc.KeyPrefixes,
		Adapters:              adapters,
		StartupTimeout:        rc.StartupTimeout,
		RequestTracingEnabled: rc.RequestTracingEnabled,
	}, nil
}
