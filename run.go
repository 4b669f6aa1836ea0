package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kptl-dev/remoteconfig-go/internal/adapters"
	"github.com/kptl-dev/remoteconfig-go/internal/config"
	"github.com/kptl-dev/remoteconfig-go/internal/diskcache"
	"github.com/kptl-dev/remoteconfig-go/internal/provider"
	"github.com/kptl-dev/remoteconfig-go/internal/pushlistener"
)

// refreshLoopInterval is the polling cadence for the periodic fallback
// refresh, independent of the per-watcher poll intervals configured for
// change detection.
const refreshLoopInterval = 30 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the configuration provider as a long-lived daemon",
		Long: `Loads the remote configuration, then keeps it fresh: a periodic
refresh loop drives watcher-triggered polling and replica failover, an
optional websocket push listener reacts to change notifications in near
real time, and SIGHUP triggers an immediate out-of-band refresh.`,
		RunE: runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	logger := buildLogger()

	pidPath := config.DefaultPIDPath()

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := shutdownContext(cmd.Context(), logger)

	p, diskCache, err := buildProvider(ctx, resolvedCfg, logger)
	if err != nil {
		return err
	}

	if diskCache != nil {
		defer diskCache.Close()
	}

	if err := p.Load(ctx, resolvedCfg.StartupOptional, resolvedCfg.StartupTimeout); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	warmStartFromDiskCache(ctx, p, diskCache, logger)

	logger.Info("initial load complete", slog.Int("keys", len(p.Data())))

	reloadCh := make(chan struct{}, 1)
	installReloadSignal(reloadCh, logger)

	group, groupCtx := errgroup.WithContext(ctx)

	if resolvedCfg.PushListenerURL != "" {
		listener := pushlistener.New(resolvedCfg.PushListenerURL, p, nil, logger)
		group.Go(func() error {
			listener.Run(groupCtx)

			return nil
		})
	}

	group.Go(func() error {
		runRefreshLoop(groupCtx, p, logger, reloadCh)

		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	logger.Info("shutdown complete")

	return nil
}

// buildProvider assembles a Provider from resolved config: transport
// factory, adapter chain, and (if enabled) the disk-cache warm-start
// mirror.
func buildProvider(ctx context.Context, rc *config.ResolvedConfig, logger *slog.Logger) (*provider.Provider, *diskcache.DiskCache, error) {
	factory, _, err := buildClientFactory(ctx, rc, logger)
	if err != nil {
		return nil, nil, err
	}

	chain := []provider.Adapter{
		adapters.NewSecretReferenceAdapter(adapters.EnvSecretResolver{}, logger),
	}

	if rc.FeatureFlagKeyPrefix != "" {
		chain = append(chain, adapters.NewFeatureFlagAdapter(rc.FeatureFlagKeyPrefix))
	}

	var dc *diskcache.DiskCache

	if rc.DiskCacheEnabled {
		dc, err = diskcache.Open(rc.DiskCachePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening disk cache: %w", err)
		}

		chain = append(chain, dc.Adapter())
	}

	opts, err := rc.ToOptions(factory, chain)
	if err != nil {
		return nil, dc, err
	}

	opts.Logger = logger

	p := provider.New(opts)

	if dc != nil {
		p.OnReload(dc.Mirror)
	}

	return p, dc, nil
}

// warmStartFromDiskCache seeds the provider's published view from the disk
// cache when the initial load left it empty (every replica was
// unreachable and StartupOptional swallowed the failure) and the cache
// holds a mapping from an earlier successful run. A no-op otherwise.
func warmStartFromDiskCache(ctx context.Context, p *provider.Provider, dc *diskcache.DiskCache, logger *slog.Logger) {
	if dc == nil || len(p.Data()) != 0 || !dc.Warmed() {
		return
	}

	warm, err := dc.Load(ctx)
	if err != nil {
		logger.Warn("disk cache warm-start failed", slog.String("error", err.Error()))

		return
	}

	p.Seed(warm)
	logger.Info("seeded published configuration from disk cache", slog.Int("keys", len(warm)))
}

// runRefreshLoop drives the provider's Refresh on a fixed cadence until
// ctx is canceled, also triggering an immediate refresh whenever
// reloadCh is signaled (SIGHUP).
func runRefreshLoop(ctx context.Context, p *provider.Provider, logger *slog.Logger, reloadCh <-chan struct{}) {
	ticker := time.NewTicker(refreshLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshOnce(ctx, p, logger, "scheduled")
		case <-reloadCh:
			refreshOnce(ctx, p, logger, "sighup")
		}
	}
}

func refreshOnce(ctx context.Context, p *provider.Provider, logger *slog.Logger, trigger string) {
	changed, err := p.TryRefresh(ctx)
	if err != nil {
		logger.Warn("refresh failed", slog.String("trigger", trigger), slog.String("error", err.Error()))

		return
	}

	logger.Debug("refresh complete", slog.String("trigger", trigger), slog.Bool("changed", changed))
}
