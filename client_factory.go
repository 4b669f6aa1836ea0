package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/kptl-dev/remoteconfig-go/internal/auth"
	"github.com/kptl-dev/remoteconfig-go/internal/config"
	"github.com/kptl-dev/remoteconfig-go/internal/provider"
	"github.com/kptl-dev/remoteconfig-go/internal/remoteclient"
)

// buildClientFactory wires a provider.ClientFactory bound to the
// configured authentication mode. "oauth2" loads a previously
// bootstrapped token from disk and refreshes it as needed; "static"
// reads a pre-shared bearer token from an environment variable once at
// startup.
func buildClientFactory(ctx context.Context, rc *config.ResolvedConfig, logger *slog.Logger) (provider.ClientFactory, remoteclient.TokenSource, error) {
	token, err := buildTokenSource(ctx, rc, logger)
	if err != nil {
		return nil, nil, err
	}

	factory := remoteclient.Factory(token,
		remoteclient.WithLogger(logger),
		remoteclient.WithRequestTracing(rc.RequestTracingEnabled),
		remoteclient.WithHTTPClient(newHTTPClient(rc.ConnectTimeout, rc.DataTimeout)),
	)

	return factory, token, nil
}

func buildTokenSource(ctx context.Context, rc *config.ResolvedConfig, logger *slog.Logger) (remoteclient.TokenSource, error) {
	switch rc.AuthMode {
	case "oauth2":
		cfg := auth.Config{
			ClientID:     rc.AuthClientID,
			ClientSecret: rc.AuthClientSecret,
			TokenURL:     rc.AuthTokenURL,
			Scopes:       rc.AuthScopes,
		}

		src, err := auth.FromPath(ctx, cfg, rc.AuthTokenPath, logger)
		if err != nil {
			return nil, fmt.Errorf("loading saved token: %w", err)
		}

		return src, nil
	case "static":
		value := os.Getenv(rc.AuthStaticTokenEnv)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s is not set (auth.mode = static)", rc.AuthStaticTokenEnv)
		}

		return auth.StaticToken(value), nil
	default:
		return nil, fmt.Errorf("unsupported auth.mode %q", rc.AuthMode)
	}
}

// newHTTPClient builds an *http.Client whose dialer honors connect as the
// TCP connect deadline and whose overall per-request deadline is data.
func newHTTPClient(connect, data time.Duration) *http.Client {
	dialer := &net.Dialer{Timeout: connect}

	return &http.Client{
		Timeout: data,
		Transport: &http.Transport{
			DialContext: dialer.DialContext,
		},
	}
}
