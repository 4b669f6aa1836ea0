package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTokenJSON = `{
	"access_token": "test-access-token",
	"token_type": "Bearer",
	"refresh_token": "test-refresh-token",
	"expires_in": 3600
}`

func newMockTokenServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()

	if handler == nil {
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(testTokenJSON))
		}
	}

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return srv.URL
}

func testConfig(tokenURL string) Config {
	return Config{ClientID: "client-1", ClientSecret: "secret", TokenURL: tokenURL, Scopes: []string{"config.read"}}
}

func TestBootstrap_SavesTokenAndReturnsSource(t *testing.T) {
	tokenURL := newMockTokenServer(t, nil)
	tokenPath := filepath.Join(t.TempDir(), "token.json")

	ts, err := Bootstrap(context.Background(), testConfig(tokenURL), "seed-refresh-token", tokenPath, slog.Default())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", tok)

	saved, _, err := loadForTest(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", saved)
}

func TestBootstrap_TokenEndpointError(t *testing.T) {
	tokenURL := newMockTokenServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	tokenPath := filepath.Join(t.TempDir(), "token.json")

	_, err := Bootstrap(context.Background(), testConfig(tokenURL), "bad-refresh-token", tokenPath, slog.Default())
	require.Error(t, err)
}

func TestFromPath_NoSavedToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")

	_, err := FromPath(context.Background(), testConfig("http://unused"), tokenPath, slog.Default())
	require.ErrorIs(t, err, ErrNotBootstrapped)
}

func TestFromPath_ValidToken(t *testing.T) {
	tokenURL := newMockTokenServer(t, nil)
	tokenPath := filepath.Join(t.TempDir(), "token.json")

	_, err := Bootstrap(context.Background(), testConfig(tokenURL), "seed-refresh-token", tokenPath, slog.Default())
	require.NoError(t, err)

	ts, err := FromPath(context.Background(), testConfig(tokenURL), tokenPath, slog.Default())
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "test-access-token", tok)
}

func TestLogout_RemovesFile(t *testing.T) {
	tokenURL := newMockTokenServer(t, nil)
	tokenPath := filepath.Join(t.TempDir(), "token.json")

	_, err := Bootstrap(context.Background(), testConfig(tokenURL), "seed-refresh-token", tokenPath, slog.Default())
	require.NoError(t, err)

	require.NoError(t, Logout(tokenPath, slog.Default()))

	_, err = FromPath(context.Background(), testConfig(tokenURL), tokenPath, slog.Default())
	require.ErrorIs(t, err, ErrNotBootstrapped)
}

func TestLogout_NoFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	assert.NoError(t, Logout(tokenPath, slog.Default()))
}

// loadForTest reads the raw JSON back out, avoiding an import cycle with
// the tokenfile package's own test helpers.
func loadForTest(path string) (string, map[string]string, error) {
	var tf struct {
		Token struct {
			AccessToken string `json:"access_token"`
		} `json:"token"`
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}

	if err := json.Unmarshal(data, &tf); err != nil {
		return "", nil, err
	}

	return tf.Token.AccessToken, nil, nil
}
