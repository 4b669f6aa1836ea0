package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kptl-dev/remoteconfig-go/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigValidateCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		RunE:  runConfigShow,
	}
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(resolvedCfg)
	}

	renderResolvedConfig(os.Stdout, resolvedCfg)

	return nil
}

func renderResolvedConfig(w io.Writer, rc *config.ResolvedConfig) {
	fmt.Fprintf(w, "endpoints:            %v\n", rc.Endpoints)
	fmt.Fprintf(w, "key_prefixes:         %v\n", rc.KeyPrefixes)
	fmt.Fprintf(w, "selectors:            %d\n", len(rc.Selectors))
	fmt.Fprintf(w, "watchers:             %d\n", len(rc.Watchers))
	fmt.Fprintf(w, "prefix_watchers:      %d\n", len(rc.PrefixWatchers))
	fmt.Fprintf(w, "startup_timeout:      %s\n", rc.StartupTimeout)
	fmt.Fprintf(w, "startup_optional:     %t\n", rc.StartupOptional)
	fmt.Fprintf(w, "request_tracing:      %t\n", rc.RequestTracingEnabled)
	fmt.Fprintf(w, "log_level:            %s\n", rc.LogLevel)
	fmt.Fprintf(w, "log_format:           %s\n", rc.LogFormat)
	fmt.Fprintf(w, "connect_timeout:      %s\n", rc.ConnectTimeout)
	fmt.Fprintf(w, "data_timeout:         %s\n", rc.DataTimeout)
	fmt.Fprintf(w, "user_agent:           %s\n", rc.UserAgent)
	fmt.Fprintf(w, "push_listener_url:    %s\n", rc.PushListenerURL)
	fmt.Fprintf(w, "disk_cache_enabled:   %t\n", rc.DiskCacheEnabled)
	fmt.Fprintf(w, "disk_cache_path:      %s\n", rc.DiskCachePath)
	fmt.Fprintf(w, "feature_flag_prefix:  %s\n", rc.FeatureFlagKeyPrefix)
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a config file without running",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigValidate,
	}
}

func runConfigValidate(_ *cobra.Command, args []string) error {
	path := flagConfigPath
	if len(args) > 0 {
		path = args[0]
	}

	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := config.Load(path); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s: valid\n", path)

	return nil
}
