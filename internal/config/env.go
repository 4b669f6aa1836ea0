package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig    = "REMOTECONFIG_CONFIG"
	EnvEndpoints = "REMOTECONFIG_ENDPOINTS"
	EnvLogLevel  = "REMOTECONFIG_LOG_LEVEL"
)

// EnvOverrides holds values derived from environment variables. These are
// resolved by ReadEnvOverrides and made available to callers.
type EnvOverrides struct {
	ConfigPath string   // REMOTECONFIG_CONFIG: override config file path
	Endpoints  []string // REMOTECONFIG_ENDPOINTS: comma-separated replica endpoints
	LogLevel   string   // REMOTECONFIG_LOG_LEVEL: log level override
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; callers apply the relevant
// fields via Resolve.
func ReadEnvOverrides() EnvOverrides {
	var endpoints []string
	if raw := os.Getenv(EnvEndpoints); raw != "" {
		endpoints = splitAndTrim(raw)
	}

	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Endpoints:  endpoints,
		LogLevel:   os.Getenv(EnvLogLevel),
	}
}
