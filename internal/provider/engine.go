package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// initialLoadDampingFloor is the minimum elapsed time initialLoad enforces
// before propagating a fatal error, to dampen orchestrator crash-loop
// restart storms.
const initialLoadDampingFloor = 5 * time.Second

// EngineConfig holds everything RefreshEngine needs to orchestrate loads
// and refreshes: a struct because the field count is too large for
// positional parameters.
type EngineConfig struct {
	Selectors     []Selector
	ClientFactory ClientFactory
	Registry      *ReplicaRegistry
	Executor      *FailoverExecutor
	Watchers      *WatcherSet
	Store         *SettingStore
	Adapters      *AdapterChain
	Publisher     *OutputPublisher
	Backoff       *BackoffSchedule
	Mappers       []Mapper
	KeyPrefixes   []string
	Logger        *slog.Logger
}

// RefreshEngine orchestrates initial load, incremental refresh, change
// application, adapter invalidation, and result publication.
type RefreshEngine struct {
	selectors     []Selector
	clientFactory ClientFactory
	registry      *ReplicaRegistry
	executor      *FailoverExecutor
	watchers      *WatcherSet
	store         *SettingStore
	adapters      *AdapterChain
	publisher     *OutputPublisher
	backoff       *BackoffSchedule
	mappers       []Mapper
	keyPrefixes   []string
	logger        *slog.Logger

	// inFlight is the single-flight gate: compare-and-set
	// from false->true on entry, reset to false on every exit path.
	inFlight atomic.Bool

	// initCacheExpires gates how often refresh() retries a failed
	// initial load.
	initCacheExpires time.Time
}

// NewRefreshEngine constructs a RefreshEngine from cfg.
func NewRefreshEngine(cfg EngineConfig) *RefreshEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RefreshEngine{
		selectors:     cfg.Selectors,
		clientFactory: cfg.ClientFactory,
		registry:      cfg.Registry,
		executor:      cfg.Executor,
		watchers:      cfg.Watchers,
		store:         cfg.Store,
		adapters:      cfg.Adapters,
		publisher:     cfg.Publisher,
		backoff:       cfg.Backoff,
		mappers:       cfg.Mappers,
		keyPrefixes:   cfg.KeyPrefixes,
		logger:        logger,
	}
}

// fullLoadResult is the outcome of one complete-selector-set load attempt
// against a single replica, returned as the FailoverExecutor op result.
type fullLoadResult struct {
	listed         []Setting
	watchedUpdates map[KeyLabelID]Setting
}

// changeDetectionResult is the outcome of one change-detection pass
// against a single replica.
type changeDetectionResult struct {
	refreshAll bool
	changes    []ChangeRecord
	full       fullLoadResult
}

// doFullLoad lists every configured selector and resolves every
// registered single-key watcher's current value, either from the listed
// results or via a direct Get.
func (e *RefreshEngine) doFullLoad(ctx context.Context, client RemoteClient) (fullLoadResult, error) {
	var all []Setting

	for _, sel := range e.selectors {
		items, err := e.listSelector(ctx, client, sel)
		if err != nil {
			return fullLoadResult{}, err
		}

		all = append(all, items...)
	}

	listedIndex := make(map[KeyLabelID]Setting, len(all))
	for _, s := range all {
		listedIndex[KeyLabelID{Key: s.Key, Label: s.Label}] = s
	}

	watchedUpdates := make(map[KeyLabelID]Setting)

	for _, w := range e.watchers.Keys {
		id := KeyLabelID{Key: w.Key, Label: w.Label}

		if s, ok := listedIndex[id]; ok {
			watchedUpdates[id] = s

			continue
		}

		s, err := client.Get(ctx, w.Key, w.Label)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}

			return fullLoadResult{}, err
		}

		watchedUpdates[id] = s
	}

	return fullLoadResult{listed: all, watchedUpdates: watchedUpdates}, nil
}

// listSelector resolves one Selector, rejecting a non-key-partitioned
// snapshot with ErrInvalidConfig.
func (e *RefreshEngine) listSelector(ctx context.Context, client RemoteClient, sel Selector) ([]Setting, error) {
	if sel.SnapshotName == "" {
		return client.List(ctx, sel)
	}

	snap, err := client.GetSnapshot(ctx, sel.SnapshotName)
	if err != nil {
		return nil, err
	}

	if snap.Composition != CompositionKeyPartitioned {
		return nil, fmt.Errorf("%w: snapshot %q has composition %q, want %q",
			ErrInvalidConfig, sel.SnapshotName, snap.Composition, CompositionKeyPartitioned)
	}

	return client.ListSnapshot(ctx, sel.SnapshotName)
}

// applyFullLoad installs the result of a successful full load (initial
// load, or refresh()'s retry-the-initial-load path) into the store and
// republishes.
func (e *RefreshEngine) applyFullLoad(result fullLoadResult) {
	now := e.backoff.Now()

	mapped := make([]Setting, 0, len(result.listed))

	for _, s := range result.listed {
		if m := applyMappers(e.mappers, s); m != nil {
			mapped = append(mapped, *m)
		}
	}

	e.store.ReplaceMapped(mapped)
	e.store.ReplaceWatched(result.watchedUpdates)
	e.store.MarkLoaded()
	e.adapters.Invalidate(nil)
	e.watchers.BumpAll(now)
	e.republish()
}

// republish recomputes the published mapping from mapped via the adapter
// chain and installs it through the OutputPublisher.
func (e *RefreshEngine) republish() {
	published := make(map[string]string)

	for _, s := range e.store.AllMapped() {
		kvs, err := e.adapters.Process(s)
		if err != nil {
			e.logger.Warn("adapter processing failed, skipping setting",
				slog.String("key", s.Key),
				slog.String("error", err.Error()),
			)

			continue
		}

		for _, kv := range kvs {
			published[stripPrefixes(kv.Key, e.keyPrefixes)] = kv.Value
		}
	}

	e.publisher.Publish(published)
}

// stripPrefixes removes the first matching configured key prefix
// (case-insensitive) from key, or returns key unchanged if none match.
func stripPrefixes(key string, prefixes []string) string {
	lower := strings.ToLower(key)

	for _, p := range prefixes {
		if p == "" {
			continue
		}

		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return key[len(p):]
		}
	}

	return key
}

// InitialLoad performs the blocking initial load: repeated full-load
// attempts across allReplicas(), gated by
// BackoffSchedule.StartupDelay, until success, a non-fail-overable error,
// or the overall timeout elapses. When optional is true, a terminal
// failure (other than an argument/shape error) is swallowed and the store
// is left empty so a later refresh() can retry the initial load path.
func (e *RefreshEngine) InitialLoad(ctx context.Context, optional bool, timeout time.Duration) error {
	start := e.backoff.Now()

	var deadline time.Time

	hasDeadline := timeout > 0
	if hasDeadline {
		deadline = start.Add(timeout)
	}

	var attempts []error

	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return e.finishInitialLoad(start, optional, &TimeoutFailure{Attempts: append(attempts, err)})
		}

		now := e.backoff.Now()
		if hasDeadline && !now.Before(deadline) {
			return e.finishInitialLoad(start, optional, &TimeoutFailure{Attempts: attempts})
		}

		attempt++

		replicas := e.registry.AllReplicas()

		result, err := Execute(ctx, e.executor, replicas, func(ctx context.Context, rep *Replica) (fullLoadResult, error) {
			return e.doFullLoad(ctx, e.clientFactory(rep.Endpoint))
		})
		if err == nil {
			e.applyFullLoad(result)

			return nil
		}

		if !IsFailoverable(err) {
			return e.finishInitialLoad(start, optional, err)
		}

		attempts = append(attempts, err)

		elapsed := e.backoff.Now().Sub(start)
		delay := e.backoff.StartupDelay(elapsed, attempt)

		if hasDeadline {
			remaining := deadline.Sub(e.backoff.Now())
			if remaining <= 0 {
				return e.finishInitialLoad(start, optional, &TimeoutFailure{Attempts: attempts})
			}

			if delay > remaining {
				delay = remaining
			}
		}

		if sleepErr := Sleep(ctx, delay); sleepErr != nil {
			attempts = append(attempts, sleepErr)

			return e.finishInitialLoad(start, optional, &TimeoutFailure{Attempts: attempts})
		}
	}
}

// finishInitialLoad applies the crash-loop dampening floor
// before deciding whether to swallow err (optional=true) or propagate it.
// Argument/shape errors (ErrInvalidConfig) always propagate, even when
// optional, since they indicate a misconfiguration rather than an
// unreachable replica.
func (e *RefreshEngine) finishInitialLoad(start time.Time, optional bool, err error) error {
	elapsed := e.backoff.Now().Sub(start)
	if elapsed < initialLoadDampingFloor {
		_ = Sleep(context.Background(), initialLoadDampingFloor-elapsed)
	}

	if optional && !errors.Is(err, ErrInvalidConfig) {
		e.logger.Warn("initial load failed, continuing with empty configuration",
			slog.String("error", err.Error()))

		return nil
	}

	return err
}

// Refresh performs the non-blocking, single-flight incremental refresh.
// If another refresh is already in progress, it returns immediately with
// a nil error (no-op success). Cancellation is reported as a warning and
// never returned as an error;
// non-fail-overable errors (auth, invalid config) propagate.
func (e *RefreshEngine) Refresh(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil
	}

	defer e.inFlight.Store(false)

	now := e.backoff.Now()
	expiredKeys := e.watchers.ExpiredKeys(now)
	expiredPrefixes := e.watchers.ExpiredPrefixes(now)

	if e.store.Loaded() && len(expiredKeys) == 0 && len(expiredPrefixes) == 0 && !e.adapters.NeedsRefresh() {
		return nil
	}

	replicas := e.registry.AvailableReplicas(now)
	if len(replicas) == 0 {
		e.logger.Warn("refresh: no available replicas")

		return nil
	}

	if !e.store.Loaded() {
		return e.refreshRetryInitialize(ctx, replicas, now)
	}

	result, err := Execute(ctx, e.executor, replicas, func(ctx context.Context, rep *Replica) (changeDetectionResult, error) {
		return e.detectChanges(ctx, e.clientFactory(rep.Endpoint), expiredKeys, expiredPrefixes)
	})
	if err != nil {
		return e.handleRefreshError(err, "refresh: change detection failed across all replicas")
	}

	applied := e.applyChanges(now, result)

	if applied || e.adapters.NeedsRefresh() {
		e.republish()
	}

	return nil
}

// refreshRetryInitialize handles the case where mapped has
// never been loaded (the earlier initial load failed): retry it here,
// gated by InitializationCacheExpires so repeated refresh() calls don't
// hammer every replica on every tick.
func (e *RefreshEngine) refreshRetryInitialize(ctx context.Context, replicas []*Replica, now time.Time) error {
	if e.initCacheExpires.After(now) {
		return nil
	}

	e.initCacheExpires = now.Add(e.watchers.MinPollInterval())

	result, err := Execute(ctx, e.executor, replicas, func(ctx context.Context, rep *Replica) (fullLoadResult, error) {
		return e.doFullLoad(ctx, e.clientFactory(rep.Endpoint))
	})
	if err != nil {
		return e.handleRefreshError(err, "refresh: retrying initial load failed")
	}

	e.applyFullLoad(result)

	return nil
}

// handleRefreshError implements the refresh()-specific error handling:
// cancellation is a warning (nil returned), fail-overable
// exhaustion is a warning (nil returned, retried on the next refresh), and
// anything else (auth, invalid config) propagates.
func (e *RefreshEngine) handleRefreshError(err error, warnMsg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrCancelled) {
		e.logger.Warn("refresh: cancelled", slog.String("error", err.Error()))

		return nil
	}

	if !IsFailoverable(err) {
		return err
	}

	e.logger.Warn(warnMsg, slog.String("error", err.Error()))

	return nil
}

// detectChanges runs the change-collection algorithm against a single
// replica's client: single-key watchers first (in
// registration order), short-circuiting into a full reload the moment a
// refreshAll watcher's change is detected; then, only if no refreshAll
// short-circuit happened, prefix watchers.
func (e *RefreshEngine) detectChanges(
	ctx context.Context, client RemoteClient, expiredKeys []*Watcher, expiredPrefixes []*PrefixWatcher,
) (changeDetectionResult, error) {
	var changes []ChangeRecord

	for _, w := range expiredKeys {
		cr, err := e.detectKeyChange(ctx, client, w)
		if err != nil {
			return changeDetectionResult{}, err
		}

		if cr.Kind == ChangeNone {
			continue
		}

		changes = append(changes, cr)

		if w.RefreshAll {
			full, ferr := e.doFullLoad(ctx, client)
			if ferr != nil {
				return changeDetectionResult{}, ferr
			}

			return changeDetectionResult{refreshAll: true, full: full}, nil
		}
	}

	for _, p := range expiredPrefixes {
		prefixChanges, err := e.detectPrefixChanges(ctx, client, p)
		if err != nil {
			return changeDetectionResult{}, err
		}

		changes = append(changes, prefixChanges...)
	}

	return changeDetectionResult{changes: changes}, nil
}

// detectKeyChange resolves a single watcher's change: a conditional
// GetChange against the known etag, or a plain Get (NotFound treated as
// benign absence) when the watcher has no known value yet.
func (e *RefreshEngine) detectKeyChange(ctx context.Context, client RemoteClient, w *Watcher) (ChangeRecord, error) {
	id := KeyLabelID{Key: w.Key, Label: w.Label}

	known, ok := e.store.Watched(id)
	if !ok {
		s, err := client.Get(ctx, w.Key, w.Label)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ChangeRecord{Kind: ChangeNone, Key: w.Key, Label: w.Label}, nil
			}

			return ChangeRecord{}, err
		}

		return ChangeRecord{Kind: ChangeModified, Key: w.Key, Label: w.Label, Current: &s}, nil
	}

	cr, err := client.GetChange(ctx, known)
	if err != nil {
		return ChangeRecord{}, err
	}

	cr.Key = w.Key
	cr.Label = w.Label

	return cr, nil
}

// detectPrefixChanges implements the change-collection algorithm for one
// prefix watcher: list the server's current view for (keyPattern, label)
// and diff it against the currently held subset.
func (e *RefreshEngine) detectPrefixChanges(ctx context.Context, client RemoteClient, p *PrefixWatcher) ([]ChangeRecord, error) {
	old := e.store.WatchedSubset(p.KeyPattern, p.Label)

	serverItems, err := client.List(ctx, Selector{KeyFilter: p.KeyPattern, LabelFilter: p.Label})
	if err != nil {
		return nil, err
	}

	var changes []ChangeRecord

	seen := make(map[string]bool, len(serverItems))

	for i := range serverItems {
		s := serverItems[i]
		seen[s.Key] = true

		if oldS, ok := old[s.Key]; !ok || oldS.ETag != s.ETag {
			changes = append(changes, ChangeRecord{Kind: ChangeModified, Key: s.Key, Label: p.Label, Current: &s})
		}
	}

	for key := range old {
		if !seen[key] {
			changes = append(changes, ChangeRecord{Kind: ChangeDeleted, Key: key, Label: p.Label})
		}
	}

	return changes, nil
}

// applyChanges runs the apply phase against the winning replica
// attempt's result, and reports whether any mutation
// occurred (used to decide whether to republish).
func (e *RefreshEngine) applyChanges(now time.Time, result changeDetectionResult) bool {
	if result.refreshAll {
		e.watchers.BumpAll(now)

		mapped := make([]Setting, 0, len(result.full.listed))

		for _, s := range result.full.listed {
			if m := applyMappers(e.mappers, s); m != nil {
				mapped = append(mapped, *m)
			}
		}

		e.store.ReplaceMapped(mapped)
		e.store.ReplaceWatched(result.full.watchedUpdates)
		e.adapters.Invalidate(nil)

		return true
	}

	e.watchers.BumpExpired(now)

	applied := false

	for _, ch := range result.changes {
		id := KeyLabelID{Key: ch.Key, Label: ch.Label}

		switch ch.Kind {
		case ChangeModified:
			fresh := *ch.Current
			e.store.SetWatched(id, fresh)

			if m := applyMappers(e.mappers, fresh); m != nil {
				e.store.SetMapped(*m)
			} else {
				e.store.DeleteMapped(fresh.Key)
			}

			applied = true
		case ChangeDeleted:
			e.store.DeleteWatched(id)
			e.store.DeleteMapped(ch.Key)

			applied = true
		case ChangeNone:
			// unreachable: detectChanges never appends ChangeNone records.
		}

		e.adapters.Invalidate(ch.Current)
	}

	return applied
}

// TryRefresh calls Refresh and translates its outcome into a bool.
// Cancellation and fail-overable exhaustion are already folded into a nil
// error by Refresh/handleRefreshError, so they report true. Any other
// error (an auth failure, for example) is logged as a warning and reported
// as (false, nil). Argument/shape errors (ErrInvalidConfig) still propagate.
func (e *RefreshEngine) TryRefresh(ctx context.Context) (bool, error) {
	err := e.Refresh(ctx)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, ErrInvalidConfig) {
		return false, err
	}

	e.logger.Warn("tryRefresh: refresh failed", slog.String("error", err.Error()))

	return false, nil
}
