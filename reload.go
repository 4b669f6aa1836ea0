package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kptl-dev/remoteconfig-go/internal/config"
)

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Signal a running 'configctl run' daemon to refresh immediately",
		RunE:  runReload,
	}
}

func runReload(_ *cobra.Command, _ []string) error {
	pidPath := config.DefaultPIDPath()

	if err := sendSIGHUP(pidPath); err != nil {
		return err
	}

	fmt.Println("reload signal sent")

	return nil
}
