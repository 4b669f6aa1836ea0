package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return DefaultConfig()
}

func TestValidate_ValidDefaults(t *testing.T) {
	err := Validate(validConfig())
	assert.NoError(t, err)
}

func TestValidate_EmptyEndpointRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Endpoints = []string{""}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints[0]")
}

func TestValidate_SelectorMissingKeyFilter(t *testing.T) {
	cfg := validConfig()
	cfg.Selectors = []SelectorConfig{{}}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_filter")
}

func TestValidate_WatcherMissingKey(t *testing.T) {
	cfg := validConfig()
	cfg.Watchers = []WatcherConfig{{PollInterval: "1m"}}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch[0]: key")
}

func TestValidate_WatcherPollIntervalBelowMinimum(t *testing.T) {
	cfg := validConfig()
	cfg.Watchers = []WatcherConfig{{Key: "app:title", PollInterval: "1ms"}}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestValidate_PrefixWatcherMissingPattern(t *testing.T) {
	cfg := validConfig()
	cfg.PrefixWatchers = []PrefixWatcherConfig{{PollInterval: "1m"}}
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_pattern")
}

func TestValidate_StartupTimeoutBelowMinimum(t *testing.T) {
	cfg := validConfig()
	cfg.Startup.Timeout = "1ms"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup.timeout")
}

func TestValidate_LogLevelInvalid(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogLevel = "verbose"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
}

func TestValidate_LogFormatInvalid(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogFormat = "yaml"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestValidate_NetworkTimeoutsBelowMinimum(t *testing.T) {
	cfg := validConfig()
	cfg.Network.ConnectTimeout = "0s"
	cfg.Network.DataTimeout = "1s"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect_timeout")
	assert.Contains(t, err.Error(), "data_timeout")
}

func TestValidate_DiskCacheEnabledWithoutPath(t *testing.T) {
	cfg := validConfig()
	cfg.DiskCache.Enabled = true
	cfg.DiskCache.Path = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk_cache.path")
}

func TestValidate_AccumulatesMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.LogLevel = "verbose"
	cfg.Logging.LogFormat = "yaml"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "log_format")
}

func TestValidateResolved_MissingEndpointsRejected(t *testing.T) {
	err := ValidateResolved(&ResolvedConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoints")
}

func TestValidateResolved_WithEndpointsPasses(t *testing.T) {
	err := ValidateResolved(&ResolvedConfig{Endpoints: []string{"https://a.example.com"}})
	assert.NoError(t, err)
}

func TestValidate_AuthModeInvalid(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "kerberos"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.mode")
}

func TestValidate_AuthOAuth2MissingTokenURLAndClientID(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "oauth2"
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.token_url")
	assert.Contains(t, err.Error(), "auth.client_id")
}

func TestValidate_AuthOAuth2Complete(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "oauth2"
	cfg.Auth.TokenURL = "https://issuer.example.com/token"
	cfg.Auth.ClientID = "configctl"
	err := Validate(cfg)
	assert.NoError(t, err)
}

func TestValidate_AuthStaticMissingEnvName(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.StaticTokenEnv = ""
	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.static_token_env")
}
