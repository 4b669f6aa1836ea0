package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kptl-dev/remoteconfig-go/internal/auth"
	"github.com/kptl-dev/remoteconfig-go/internal/config"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage OAuth2 credentials for replica access",
	}

	cmd.AddCommand(newAuthBootstrapCmd())
	cmd.AddCommand(newAuthLogoutCmd())

	return cmd
}

func newAuthBootstrapCmd() *cobra.Command {
	var refreshToken string

	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Exchange an operator-issued refresh token for a persisted access token",
		Long: `bootstrap trades a refresh token issued out-of-band by the
replica's auth server for an access token, then persists it to disk so
'configctl run' and 'configctl status' can load it without interactive
input. Only needed when auth.mode is "oauth2".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuthBootstrap(cmd, refreshToken)
		},
	}

	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token issued by the auth server (required)")
	cmd.MarkFlagRequired("refresh-token")

	return cmd
}

func runAuthBootstrap(cmd *cobra.Command, refreshToken string) error {
	if resolvedCfg == nil {
		return fmt.Errorf("no configuration loaded")
	}

	if resolvedCfg.AuthMode != "oauth2" {
		return fmt.Errorf("auth.mode is %q, bootstrap only applies to oauth2", resolvedCfg.AuthMode)
	}

	logger := buildLogger()

	cfg := auth.Config{
		ClientID:     resolvedCfg.AuthClientID,
		ClientSecret: resolvedCfg.AuthClientSecret,
		TokenURL:     resolvedCfg.AuthTokenURL,
		Scopes:       resolvedCfg.AuthScopes,
	}

	if _, err := auth.Bootstrap(cmd.Context(), cfg, refreshToken, resolvedCfg.AuthTokenPath, logger); err != nil {
		return err
	}

	fmt.Printf("token persisted to %s\n", resolvedCfg.AuthTokenPath)

	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the persisted OAuth2 token",
		RunE:  runAuthLogout,
	}
}

func runAuthLogout(_ *cobra.Command, _ []string) error {
	return auth.Logout(config.DefaultTokenPath(), buildLogger())
}
