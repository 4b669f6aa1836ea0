package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kptl-dev/remoteconfig-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in setupRootCmd().
var (
	flagConfigPath string
	flagEndpoints  []string
	flagTimeout    string
	flagOptional   bool
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// resolvedCfg holds the effective configuration loaded by PersistentPreRunE.
// It is available to all subcommands after the root pre-run phase completes.
var resolvedCfg *config.ResolvedConfig

// skipConfigCommands lists commands that load no configuration at all.
// Logout only needs the default token path and must work even without a
// valid config file (e.g. no endpoints configured yet).
var skipConfigCommands = map[string]bool{
	"configctl auth logout": true,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "configctl",
		Short:   "Remote configuration provider CLI",
		Long:    "configctl materializes a remote key/value configuration service into a local process, or prints its current resolved state.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfigCommands[cmd.CommandPath()] {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringSliceVar(&flagEndpoints, "endpoint", nil, "replica endpoint (repeatable, first is primary)")
	cmd.PersistentFlags().StringVar(&flagTimeout, "timeout", "", "startup load timeout (e.g. 30s)")
	cmd.PersistentFlags().BoolVar(&flagOptional, "optional", false, "don't fail startup if the initial load fails")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newAuthCmd())
	cmd.AddCommand(newReloadCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the four-layer
// override chain and stores the result in resolvedCfg for use by
// subcommands.
func loadConfig(cmd *cobra.Command) error {
	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	if cmd.Flags().Changed("endpoint") {
		cli.Endpoints = flagEndpoints
	}

	if cmd.Flags().Changed("timeout") {
		cli.Timeout = &flagTimeout
	}

	if cmd.Flags().Changed("optional") {
		cli.Optional = &flagOptional
	}

	if flagVerbose {
		cli.LogLevel = "debug"
	} else if flagQuiet {
		cli.LogLevel = "error"
	}

	env := config.ReadEnvOverrides()

	resolved, err := config.Resolve(env, cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = resolved

	return nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if resolvedCfg != nil {
		switch resolvedCfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	if resolveLogFormat() == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

// resolveLogFormat turns the configured log format into a concrete
// "text" or "json" choice. "auto" picks text when stderr is an
// interactive terminal and json otherwise, matching how a daemon
// launched under systemd/journald or piped into a log collector wants
// structured output without having to set log_format explicitly.
func resolveLogFormat() string {
	format := "text"
	if resolvedCfg != nil && resolvedCfg.LogFormat != "" {
		format = resolvedCfg.LogFormat
	}

	if format != "auto" {
		return format
	}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		return "text"
	}

	return "json"
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
