package adapters

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var envKeyScrubber = regexp.MustCompile(`[^A-Z0-9_]`)

// EnvSecretResolver resolves a vault reference against local environment
// variables rather than a cloud KMS/vault SDK. There is no vault client
// library in this module's dependency set, so this is the stdlib
// fallback: name is upper-cased and non-alphanumeric characters are
// replaced with underscores to form the variable name, ignoring vaultURI
// and version. Suitable for local development and for deployments where
// secrets are already injected into the process environment.
type EnvSecretResolver struct{}

// Resolve looks up name as an environment variable.
func (EnvSecretResolver) Resolve(_ context.Context, _ string, name, _ string) (string, error) {
	envName := envKeyScrubber.ReplaceAllString(strings.ToUpper(name), "_")

	value, ok := os.LookupEnv(envName)
	if !ok {
		return "", fmt.Errorf("envresolver: environment variable %s not set for secret %q", envName, name)
	}

	return value, nil
}
