package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kptl-dev/remoteconfig-go/internal/config"
)

func tokenEndpointStub(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "bootstrapped-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
}

func testCmdWithContext() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	return cmd
}

func TestRunAuthBootstrap_NoConfigLoadedErrors(t *testing.T) {
	resolvedCfg = nil

	err := runAuthBootstrap(testCmdWithContext(), "refresh-token")
	assert.Error(t, err)
}

func TestRunAuthBootstrap_WrongModeErrors(t *testing.T) {
	resolvedCfg = &config.ResolvedConfig{AuthMode: "static"}
	defer func() { resolvedCfg = nil }()

	err := runAuthBootstrap(testCmdWithContext(), "refresh-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "static")
}

func TestRunAuthBootstrap_PersistsToken(t *testing.T) {
	srv := tokenEndpointStub(t)
	defer srv.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")

	resolvedCfg = &config.ResolvedConfig{
		AuthMode:      "oauth2",
		AuthClientID:  "configctl",
		AuthTokenURL:  srv.URL,
		AuthTokenPath: tokenPath,
	}
	defer func() { resolvedCfg = nil }()

	err := runAuthBootstrap(testCmdWithContext(), "refresh-token")
	require.NoError(t, err)
	assert.FileExists(t, tokenPath)
}

func TestRunAuthLogout_NoFileIsNotAnError(t *testing.T) {
	err := runAuthLogout(nil, nil)
	assert.NoError(t, err)
}
