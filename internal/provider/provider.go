package provider

import (
	"context"
	"log/slog"
	"time"
)

// Options configures a Provider.
// Connection-string parsing and the underlying RemoteClient transport are
// external collaborators; callers supply ClientFactory to
// bind the core to a concrete transport.
type Options struct {
	// Endpoints lists replica endpoints in preference order (typically
	// primary first).
	Endpoints []string
	// ClientFactory produces a RemoteClient bound to one replica
	// endpoint. Required.
	ClientFactory ClientFactory
	// Selectors describes which settings belong in the materialized
	// mapping.
	Selectors []Selector
	// ChangeWatchers are the single-key watchers to poll.
	ChangeWatchers []Watcher
	// PrefixWatchers are the multi-key watchers to poll.
	PrefixWatchers []PrefixWatcher
	// Mappers is an ordered list of Setting->Setting transforms; a nil
	// return drops the setting.
	Mappers []Mapper
	// KeyPrefixes are stripped from published keys, first match wins,
	// case-insensitive.
	KeyPrefixes []string
	// Adapters is the ordered AdapterChain member list.
	Adapters []Adapter
	// StartupTimeout bounds the blocking initial load.
	StartupTimeout time.Duration
	// RequestTracingEnabled attaches a correlation ID to every outbound
	// RemoteClient call; consumed by the concrete
	// RemoteClient implementation, not by the core itself.
	RequestTracingEnabled bool
	// Logger receives structured logs from every component. Defaults to
	// slog.Default() when nil.
	Logger *slog.Logger
}

// Provider is the public surface of the remote configuration provider:
// load, refresh, push notification intake, and the read-only published
// mapping.
type Provider struct {
	engine     *RefreshEngine
	pushIntake *PushIntake
	publisher  *OutputPublisher
	logger     *slog.Logger
}

// New constructs a Provider from opts. It does not perform the initial
// load — call Load to do that.
func New(opts Options) *Provider {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	backoff := NewBackoffSchedule()
	registry := NewReplicaRegistry(opts.Endpoints, backoff, logger)
	executor := NewFailoverExecutor(registry, logger)
	watchers := NewWatcherSet(opts.ChangeWatchers, opts.PrefixWatchers, backoff.Now())
	store := NewSettingStore()
	adapters := NewAdapterChain(opts.Adapters...)
	publisher := NewOutputPublisher(logger)

	engine := NewRefreshEngine(EngineConfig{
		Selectors:     opts.Selectors,
		ClientFactory: opts.ClientFactory,
		Registry:      registry,
		Executor:      executor,
		Watchers:      watchers,
		Store:         store,
		Adapters:      adapters,
		Publisher:     publisher,
		Backoff:       backoff,
		Mappers:       opts.Mappers,
		KeyPrefixes:   opts.KeyPrefixes,
		Logger:        logger,
	})

	pushIntake := NewPushIntake(registry, watchers, backoff, logger)

	return &Provider{
		engine:     engine,
		pushIntake: pushIntake,
		publisher:  publisher,
		logger:     logger,
	}
}

// Load performs the blocking initial load. When optional is true, a
// terminal failure is swallowed and the provider starts with an empty
// published mapping; a later Refresh call can still populate it.
func (p *Provider) Load(ctx context.Context, optional bool, timeout time.Duration) error {
	return p.engine.InitialLoad(ctx, optional, timeout)
}

// Refresh performs a non-blocking, single-flight incremental refresh.
// Cancellable via ctx.
func (p *Provider) Refresh(ctx context.Context) error {
	return p.engine.Refresh(ctx)
}

// TryRefresh calls Refresh and reports success as a bool: ErrInvalidConfig
// propagates, any other refresh error (such as an auth failure) is logged
// and reported as false, and cancellation or fail-overable exhaustion,
// which Refresh already swallows, report true.
func (p *Provider) TryRefresh(ctx context.Context) (bool, error) {
	return p.engine.TryRefresh(ctx)
}

// ProcessPushNotification validates and applies an inbound push signal.
func (p *Provider) ProcessPushNotification(n PushNotification) error {
	return p.pushIntake.Process(n)
}

// Data returns the currently published key->value mapping. Safe for concurrent use.
func (p *Provider) Data() map[string]string {
	return p.publisher.Data()
}

// Seed publishes mapping as the current view without running it through
// Publish's observer notifications. Intended for a caller to warm-start
// the published mapping from a durable cache when Load(optional=true)
// leaves Data() empty; a later Refresh or push notification still drives
// normal publication.
func (p *Provider) Seed(mapping map[string]string) {
	p.publisher.Seed(mapping)
}

// OnReload registers an observer invoked after every successful publish.
// Must be called before Load/Refresh are ever
// invoked concurrently with it, since OutputPublisher.OnReload is not
// itself safe for concurrent registration.
func (p *Provider) OnReload(fn func(map[string]string)) {
	p.publisher.OnReload(fn)
}
