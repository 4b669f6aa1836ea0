package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kptl-dev/remoteconfig-go/internal/adapters"
	"github.com/kptl-dev/remoteconfig-go/internal/provider"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Load the remote configuration once and print the resulting mapping",
		Long: `Performs a single initial load against the configured replicas and
prints the resulting key->value mapping. Does not start a refresh loop or
listen for push notifications.`,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	logger := buildLogger()

	factory, _, err := buildClientFactory(cmd.Context(), resolvedCfg, logger)
	if err != nil {
		return err
	}

	chain := []provider.Adapter{
		adapters.NewSecretReferenceAdapter(adapters.EnvSecretResolver{}, logger),
	}

	opts, err := resolvedCfg.ToOptions(factory, chain)
	if err != nil {
		return err
	}

	opts.Logger = logger

	p := provider.New(opts)

	ctx := cmd.Context()
	if err := p.Load(ctx, resolvedCfg.StartupOptional, resolvedCfg.StartupTimeout); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	data := p.Data()

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(data)
	}

	printSettingsTable(os.Stdout, data)

	return nil
}

func printSettingsTable(w io.Writer, data map[string]string) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, data[k]}
	}

	printTable(w, []string{"KEY", "VALUE"}, rows)

	statusf("\n%d keys loaded\n", len(keys))
}
