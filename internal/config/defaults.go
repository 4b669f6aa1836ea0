package config

import "path/filepath"

// Default values for configuration options — the "layer 0" of the
// four-layer override chain.
const (
	defaultStartupTimeout = "30s"
	defaultLogLevel       = "info"
	defaultLogFormat      = "auto"
	defaultConnectTimeout = "10s"
	defaultDataTimeout    = "60s"
	defaultUserAgent      = "configctl/1"
	defaultFeatureFlagKey   = ".appconfig.featureflag/"
	defaultDiskCachePath    = "cache.db"
	defaultAuthMode         = "static"
	defaultStaticTokenEnv   = "REMOTECONFIG_TOKEN"
	defaultTokenFileName    = "token.json"
)

// DefaultConfig returns a Config populated with all default values. Used
// both as the starting point for TOML decoding (so unset fields retain
// defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Startup: StartupConfig{
			Timeout:  defaultStartupTimeout,
			Optional: false,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
			DataTimeout:    defaultDataTimeout,
			UserAgent:      defaultUserAgent,
		},
		DiskCache: DiskCacheConfig{
			Path: defaultDiskCacheFullPath(),
		},
		FeatureFlags: FeatureFlagsConfig{
			KeyPrefix: defaultFeatureFlagKey,
		},
		Auth: AuthConfig{
			Mode:           defaultAuthMode,
			StaticTokenEnv: defaultStaticTokenEnv,
			TokenPath:      DefaultTokenPath(),
		},
	}
}

// defaultDiskCacheFullPath returns the default on-disk location for the
// warm-start SQLite mirror, inside the platform data directory.
func defaultDiskCacheFullPath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return defaultDiskCachePath
	}

	return filepath.Join(dir, defaultDiskCachePath)
}
