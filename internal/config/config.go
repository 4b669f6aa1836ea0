// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for configctl. It supports a
// four-layer override chain (defaults -> config file -> environment ->
// CLI flags) producing a ResolvedConfig ready to build provider.Options.
package config

// Config is the top-level configuration structure parsed from a TOML
// file.
type Config struct {
	Endpoints      []string              `toml:"endpoints"`
	Selectors      []SelectorConfig      `toml:"selector"`
	Watchers       []WatcherConfig       `toml:"watch"`
	PrefixWatchers []PrefixWatcherConfig `toml:"watch_prefix"`
	KeyPrefixes    []string              `toml:"key_prefixes"`
	Startup        StartupConfig         `toml:"startup"`
	Logging        LoggingConfig         `toml:"logging"`
	Network        NetworkConfig         `toml:"network"`
	PushListener   PushListenerConfig    `toml:"push_listener"`
	DiskCache      DiskCacheConfig       `toml:"disk_cache"`
	FeatureFlags   FeatureFlagsConfig    `toml:"feature_flags"`
	Auth           AuthConfig            `toml:"auth"`
}

// SelectorConfig selects which settings the initial full load fetches.
type SelectorConfig struct {
	KeyFilter    string `toml:"key_filter"`
	LabelFilter  string `toml:"label_filter"`
	SnapshotName string `toml:"snapshot_name"`
}

// WatcherConfig configures a single polled key.
type WatcherConfig struct {
	Key          string `toml:"key"`
	Label        string `toml:"label"`
	PollInterval string `toml:"poll_interval"`
	RefreshAll   bool   `toml:"refresh_all"`
}

// PrefixWatcherConfig configures a polled key prefix.
type PrefixWatcherConfig struct {
	KeyPattern   string `toml:"key_pattern"`
	Label        string `toml:"label"`
	PollInterval string `toml:"poll_interval"`
}

// StartupConfig controls the initial-load retry window.
type StartupConfig struct {
	Timeout               string `toml:"timeout"`
	Optional              bool   `toml:"optional"`
	RequestTracingEnabled bool   `toml:"request_tracing_enabled"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls HTTP client behavior against remote replicas.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// PushListenerConfig configures the optional websocket push transport.
// Disabled unless URL is set.
type PushListenerConfig struct {
	URL string `toml:"url"`
}

// DiskCacheConfig configures the optional warm-start SQLite mirror.
// Disabled by default.
type DiskCacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// FeatureFlagsConfig configures the feature-flag adapter's key prefix.
type FeatureFlagsConfig struct {
	KeyPrefix string `toml:"key_prefix"`
}

// AuthConfig selects and configures how configctl authenticates to the
// replica endpoints. Mode "oauth2" runs the refresh-token bootstrap flow
// against token_url, persisting the resulting token to token_path. Mode
// "static" reads a pre-shared bearer token from static_token_env at
// startup and never refreshes it.
type AuthConfig struct {
	Mode           string   `toml:"mode"`
	ClientID       string   `toml:"client_id"`
	ClientSecret   string   `toml:"client_secret"`
	TokenURL       string   `toml:"token_url"`
	Scopes         []string `toml:"scopes"`
	TokenPath      string   `toml:"token_path"`
	StaticTokenEnv string   `toml:"static_token_env"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath string   // --config flag (empty = use default)
	Endpoints  []string // --endpoint flags (empty = not specified)
	Timeout    *string  // --startup-timeout flag
	Optional   *bool    // --startup-optional flag
	LogLevel   string   // --log-level flag
}
