// Package auth wraps golang.org/x/oauth2 into a remoteclient.TokenSource,
// persisting refreshed tokens to disk so a restarted configctl process
// does not have to re-authenticate against the token endpoint.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"

	"github.com/kptl-dev/remoteconfig-go/internal/tokenfile"
)

// ErrNotBootstrapped is returned by FromPath when no token file
// exists yet; callers should call Bootstrap first.
var ErrNotBootstrapped = errors.New("auth: no saved token, run bootstrap first")

// Config describes the OAuth2 client credentials used to obtain and
// refresh bearer tokens for the configuration service.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

func (c Config) oauthConfig(tokenPath string, logger *slog.Logger) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.Scopes,
		Endpoint:     oauth2.Endpoint{TokenURL: c.TokenURL},
		// Called by ReuseTokenSource after each silent refresh, outside its mutex.
		OnTokenChange: func(tok *oauth2.Token) {
			if err := tokenfile.Save(tokenPath, tok, nil); err != nil {
				logger.Warn("failed to persist refreshed token",
					slog.String("path", tokenPath),
					slog.String("error", err.Error()),
				)

				return
			}

			logger.Debug("persisted refreshed token to disk", slog.String("path", tokenPath))
		},
	}
}

// Bootstrap exchanges a pre-provisioned refresh token for an access token,
// persists it to tokenPath, and returns a TokenSource with auto-refresh and
// auto-persistence wired in. Run once to provision a new installation; the
// refresh token itself is supplied out of band (operator-issued, not
// obtained interactively).
func Bootstrap(ctx context.Context, cfg Config, refreshToken, tokenPath string, logger *slog.Logger) (*TokenSource, error) {
	oc := cfg.oauthConfig(tokenPath, logger)

	src := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("auth: bootstrapping token: %w", err)
	}

	if err := tokenfile.Save(tokenPath, tok, nil); err != nil {
		return nil, fmt.Errorf("auth: saving bootstrapped token: %w", err)
	}

	return &TokenSource{src: src, logger: logger}, nil
}

// FromPath loads a previously saved token from tokenPath and returns a
// TokenSource with auto-refresh and auto-persistence via OnTokenChange.
// Returns ErrNotBootstrapped if no token file exists.
func FromPath(ctx context.Context, cfg Config, tokenPath string, logger *slog.Logger) (*TokenSource, error) {
	tok, _, err := tokenfile.Load(tokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotBootstrapped
	}

	expired := !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())
	logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", expired),
	)

	oc := cfg.oauthConfig(tokenPath, logger)

	return &TokenSource{src: oc.TokenSource(ctx, tok), logger: logger}, nil
}

// Logout removes the saved token file at path. Returns nil if the file is
// already gone.
func Logout(path string, logger *slog.Logger) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no token file to remove", slog.String("path", path))

		return nil
	}

	if err != nil {
		return err
	}

	logger.Info("logout: removed token file", slog.String("path", path))

	return nil
}

// TokenSource adapts an oauth2.TokenSource to remoteclient.TokenSource,
// logging every acquisition so refresh activity is visible.
type TokenSource struct {
	src    oauth2.TokenSource
	logger *slog.Logger
}

// Token returns the current bearer access token, refreshing first if
// necessary.
func (t *TokenSource) Token() (string, error) {
	tok, err := t.src.Token()
	if err != nil {
		t.logger.Warn("token acquisition failed", slog.String("error", err.Error()))

		return "", fmt.Errorf("auth: obtaining token: %w", err)
	}

	t.logger.Debug("token acquired", slog.Time("expiry", tok.Expiry), slog.Bool("valid", tok.Valid()))

	return tok.AccessToken, nil
}

// StaticToken is a remoteclient.TokenSource over a fixed, pre-shared API
// key, for deployments that authenticate with a static credential rather
// than OAuth2 client credentials.
type StaticToken string

// Token returns the static key unchanged.
func (s StaticToken) Token() (string, error) {
	return string(s), nil
}
