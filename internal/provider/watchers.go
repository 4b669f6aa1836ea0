package provider

import "time"

// WatcherSet holds the per-key and per-prefix watchers, their poll
// intervals, and their next-due times. Watchers are
// processed in registration order; prefix watchers are processed after
// single-key watchers.
type WatcherSet struct {
	Keys     []*Watcher
	Prefixes []*PrefixWatcher
}

// NewWatcherSet builds a WatcherSet from configured watchers, seeding
// NextDueAt to now for any entry that doesn't already carry one so the
// first refresh always scans it. A caller-supplied non-zero NextDueAt
// is preserved.
func NewWatcherSet(keys []Watcher, prefixes []PrefixWatcher, now time.Time) *WatcherSet {
	ws := &WatcherSet{}

	for i := range keys {
		w := keys[i]
		if w.NextDueAt.IsZero() {
			w.NextDueAt = now
		}
		ws.Keys = append(ws.Keys, &w)
	}

	for i := range prefixes {
		p := prefixes[i]
		if p.NextDueAt.IsZero() {
			p.NextDueAt = now
		}
		ws.Prefixes = append(ws.Prefixes, &p)
	}

	return ws
}

// ExpiredKeys returns single-key watchers with NextDueAt <= now, in
// registration order.
func (ws *WatcherSet) ExpiredKeys(now time.Time) []*Watcher {
	var out []*Watcher

	for _, w := range ws.Keys {
		if !w.NextDueAt.After(now) {
			out = append(out, w)
		}
	}

	return out
}

// ExpiredPrefixes returns prefix watchers with NextDueAt <= now, in
// registration order.
func (ws *WatcherSet) ExpiredPrefixes(now time.Time) []*PrefixWatcher {
	var out []*PrefixWatcher

	for _, p := range ws.Prefixes {
		if !p.NextDueAt.After(now) {
			out = append(out, p)
		}
	}

	return out
}

// MarkKeyDue sets w's NextDueAt. Callers must never move NextDueAt
// backwards; this helper does not itself enforce
// monotonicity so it can also be used to seed initial state.
func MarkKeyDue(w *Watcher, at time.Time) {
	w.NextDueAt = at
}

// MarkPrefixDue sets p's NextDueAt.
func MarkPrefixDue(p *PrefixWatcher, at time.Time) {
	p.NextDueAt = at
}

// BumpExpired advances NextDueAt for every watcher whose NextDueAt <= now
// to now+PollInterval. Called after a successful non-refreshAll apply
// phase for exactly the watchers that were due.
func (ws *WatcherSet) BumpExpired(now time.Time) {
	for _, w := range ws.Keys {
		if !w.NextDueAt.After(now) {
			w.NextDueAt = now.Add(w.PollInterval)
		}
	}

	for _, p := range ws.Prefixes {
		if !p.NextDueAt.After(now) {
			p.NextDueAt = now.Add(p.PollInterval)
		}
	}
}

// BumpAll sets NextDueAt := now + PollInterval for every watcher,
// regardless of whether it was due. Called after a successful refreshAll
// reload. Single-key and prefix watchers are bumped alike, since a
// refreshAll already re-fetched everything they would have polled for.
func (ws *WatcherSet) BumpAll(now time.Time) {
	for _, w := range ws.Keys {
		w.NextDueAt = now.Add(w.PollInterval)
	}

	for _, p := range ws.Prefixes {
		p.NextDueAt = now.Add(p.PollInterval)
	}
}

// MarkAllDue sets NextDueAt := at for every watcher, single-key and
// prefix alike. Used by PushIntake to accelerate the next refresh.
func (ws *WatcherSet) MarkAllDue(at time.Time) {
	for _, w := range ws.Keys {
		if at.Before(w.NextDueAt) {
			w.NextDueAt = at
		}
	}

	for _, p := range ws.Prefixes {
		if at.Before(p.NextDueAt) {
			p.NextDueAt = at
		}
	}
}

// MinPollInterval returns the minimum PollInterval across every
// registered watcher, or defaultMinPollInterval (30s) if there are none.
func (ws *WatcherSet) MinPollInterval() time.Duration {
	min := time.Duration(0)
	seen := false

	consider := func(d time.Duration) {
		if !seen || d < min {
			min = d
			seen = true
		}
	}

	for _, w := range ws.Keys {
		consider(w.PollInterval)
	}

	for _, p := range ws.Prefixes {
		consider(p.PollInterval)
	}

	if !seen {
		return defaultMinPollInterval
	}

	return min
}
