package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ResolvedConfig is the fully merged, validated configuration ready to
// build provider.Options. Durations are parsed; string fields from the
// raw Config have already passed the four-layer override chain.
type ResolvedConfig struct {
	Endpoints      []string
	Selectors      []SelectorConfig
	Watchers       []WatcherConfig
	PrefixWatchers []PrefixWatcherConfig
	KeyPrefixes    []string

	StartupTimeout        time.Duration
	StartupOptional       bool
	RequestTracingEnabled bool

	LogLevel  string
	LogFormat string

	ConnectTimeout time.Duration
	DataTimeout    time.Duration
	UserAgent      string

	PushListenerURL string

	DiskCacheEnabled bool
	DiskCachePath    string

	FeatureFlagKeyPrefix string

	AuthMode           string
	AuthClientID       string
	AuthClientSecret   string
	AuthTokenURL       string
	AuthScopes         []string
	AuthTokenPath      string
	AuthStaticTokenEnv string
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are treated as fatal errors with "did you
// mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags. CLI
// flags always win, matching user expectations for one-off overrides
// without editing the config file.
func Resolve(env EnvOverrides, cli CLIOverrides) (*ResolvedConfig, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	endpoints := cfg.Endpoints
	if len(env.Endpoints) > 0 {
		endpoints = env.Endpoints
	}

	if len(cli.Endpoints) > 0 {
		endpoints = cli.Endpoints
	}

	logLevel := cfg.Logging.LogLevel
	if env.LogLevel != "" {
		logLevel = env.LogLevel
	}

	if cli.LogLevel != "" {
		logLevel = cli.LogLevel
	}

	timeout := cfg.Startup.Timeout
	if cli.Timeout != nil {
		timeout = *cli.Timeout
	}

	optional := cfg.Startup.Optional
	if cli.Optional != nil {
		optional = *cli.Optional
	}

	startupTimeout, err := time.ParseDuration(timeout)
	if err != nil {
		return nil, fmt.Errorf("startup.timeout: invalid duration %q: %w", timeout, err)
	}

	connectTimeout, err := time.ParseDuration(cfg.Network.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("network.connect_timeout: invalid duration %q: %w", cfg.Network.ConnectTimeout, err)
	}

	dataTimeout, err := time.ParseDuration(cfg.Network.DataTimeout)
	if err != nil {
		return nil, fmt.Errorf("network.data_timeout: invalid duration %q: %w", cfg.Network.DataTimeout, err)
	}

	resolved := &ResolvedConfig{
		Endpoints:             endpoints,
		Selectors:             cfg.Selectors,
		Watchers:              cfg.Watchers,
		PrefixWatchers:        cfg.PrefixWatchers,
		KeyPrefixes:           cfg.KeyPrefixes,
		StartupTimeout:        startupTimeout,
		StartupOptional:       optional,
		RequestTracingEnabled: cfg.Startup.RequestTracingEnabled,
		LogLevel:              logLevel,
		LogFormat:             cfg.Logging.LogFormat,
		ConnectTimeout:        connectTimeout,
		DataTimeout:           dataTimeout,
		UserAgent:             cfg.Network.UserAgent,
		PushListenerURL:       cfg.PushListener.URL,
		DiskCacheEnabled:      cfg.DiskCache.Enabled,
		DiskCachePath:         cfg.DiskCache.Path,
		FeatureFlagKeyPrefix:  cfg.FeatureFlags.KeyPrefix,
		AuthMode:              cfg.Auth.Mode,
		AuthClientID:          cfg.Auth.ClientID,
		AuthClientSecret:      cfg.Auth.ClientSecret,
		AuthTokenURL:          cfg.Auth.TokenURL,
		AuthScopes:            cfg.Auth.Scopes,
		AuthTokenPath:         cfg.Auth.TokenPath,
		AuthStaticTokenEnv:    cfg.Auth.StaticTokenEnv,
	}

	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace from
// each element, dropping empty elements.
func splitAndTrim(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
