package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants.
const (
	minStartupTimeout = 1 * time.Second
	minConnectTimeout = 1 * time.Second
	minDataTimeout    = 5 * time.Second
	minPollInterval   = 5 * time.Second
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateEndpoints(cfg.Endpoints)...)
	errs = append(errs, validateSelectors(cfg.Selectors)...)
	errs = append(errs, validateWatchers(cfg.Watchers)...)
	errs = append(errs, validatePrefixWatchers(cfg.PrefixWatchers)...)
	errs = append(errs, validateStartup(&cfg.Startup)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateDiskCache(&cfg.DiskCache)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)

	return errors.Join(errs...)
}

// ValidateResolved checks cross-field constraints on a fully resolved
// config. Unlike Validate, which checks raw config file values, this runs
// after the four-layer override chain has been applied.
func ValidateResolved(rc *ResolvedConfig) error {
	var errs []error

	if len(rc.Endpoints) == 0 {
		errs = append(errs, errors.New("endpoints: at least one replica endpoint is required"))
	}

	return errors.Join(errs...)
}

func validateEndpoints(endpoints []string) []error {
	var errs []error

	for i, e := range endpoints {
		if e == "" {
			errs = append(errs, fmt.Errorf("endpoints[%d]: must not be empty", i))
		}
	}

	return errs
}

func validateSelectors(selectors []SelectorConfig) []error {
	var errs []error

	for i, s := range selectors {
		if s.KeyFilter == "" {
			errs = append(errs, fmt.Errorf("selector[%d]: key_filter must not be empty", i))
		}
	}

	return errs
}

func validateWatchers(watchers []WatcherConfig) []error {
	var errs []error

	for i, w := range watchers {
		if w.Key == "" {
			errs = append(errs, fmt.Errorf("watch[%d]: key must not be empty", i))
		}

		errs = append(errs, validateDurationMin(fmt.Sprintf("watch[%d].poll_interval", i), w.PollInterval, minPollInterval)...)
	}

	return errs
}

func validatePrefixWatchers(watchers []PrefixWatcherConfig) []error {
	var errs []error

	for i, w := range watchers {
		if w.KeyPattern == "" {
			errs = append(errs, fmt.Errorf("watch_prefix[%d]: key_pattern must not be empty", i))
		}

		errs = append(errs, validateDurationMin(fmt.Sprintf("watch_prefix[%d].poll_interval", i), w.PollInterval, minPollInterval)...)
	}

	return errs
}

func validateStartup(s *StartupConfig) []error {
	return validateDurationMin("startup.timeout", s.Timeout, minStartupTimeout)
}

// validateDuration checks that a duration string is valid and meets a
// minimum. An empty string is allowed — callers that require a value
// should check presence separately.
func validateDuration(field, value string, minimum time.Duration) error {
	if value == "" {
		return nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < minimum {
		return fmt.Errorf("%s: must be >= %s, got %s", field, minimum, d)
	}

	return nil
}

func validateDurationMin(field, value string, minimum time.Duration) []error {
	if err := validateDuration(field, value, minimum); err != nil {
		return []error{err}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	errs = append(errs, validateDurationMin("connect_timeout", n.ConnectTimeout, minConnectTimeout)...)
	errs = append(errs, validateDurationMin("data_timeout", n.DataTimeout, minDataTimeout)...)

	return errs
}

func validateDiskCache(d *DiskCacheConfig) []error {
	if d.Enabled && d.Path == "" {
		return []error{errors.New("disk_cache.path: must not be empty when disk_cache.enabled is true")}
	}

	return nil
}

var validAuthModes = map[string]bool{
	"static": true,
	"oauth2": true,
}

func validateAuth(a *AuthConfig) []error {
	var errs []error

	if !validAuthModes[a.Mode] {
		errs = append(errs, fmt.Errorf("auth.mode: must be one of static, oauth2; got %q", a.Mode))
	}

	if a.Mode == "oauth2" {
		if a.TokenURL == "" {
			errs = append(errs, errors.New("auth.token_url: required when auth.mode is oauth2"))
		}

		if a.ClientID == "" {
			errs = append(errs, errors.New("auth.client_id: required when auth.mode is oauth2"))
		}
	}

	if a.Mode == "static" && a.StaticTokenEnv == "" {
		errs = append(errs, errors.New("auth.static_token_env: must not be empty when auth.mode is static"))
	}

	return errs
}
