// Package adapters provides concrete provider.Adapter implementations:
// secret-reference resolution, feature-flag unwrapping, and a warm-start
// disk cache (see internal/diskcache for the latter).
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/kptl-dev/remoteconfig-go/internal/provider"
)

// secretRefValue is the JSON payload a key-vault-style reference setting
// carries as its Value.
type secretRefValue struct {
	VaultURI string `json:"vaultUri"`
	Name     string `json:"name"`
	Version  string `json:"version,omitempty"`
}

// SecretResolver resolves a vault reference to its plaintext value.
// Implementations typically wrap a cloud KMS/vault SDK client.
type SecretResolver interface {
	Resolve(ctx context.Context, vaultURI, name, version string) (string, error)
}

// SecretReferenceAdapter claims settings whose Value parses as a JSON
// secret-reference envelope (a secretRefValue with a vault URI and a
// name), resolves the referenced secret, and surfaces any
// resolution failure as
// provider.SecretReferenceFailure so RefreshEngine can retry it on the
// next refresh via NeedsRefresh.
type SecretReferenceAdapter struct {
	resolver SecretResolver
	logger   *slog.Logger

	mu     sync.Mutex
	failed map[string]bool // keys whose last resolution attempt failed
}

// NewSecretReferenceAdapter constructs a SecretReferenceAdapter over
// resolver.
func NewSecretReferenceAdapter(resolver SecretResolver, logger *slog.Logger) *SecretReferenceAdapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &SecretReferenceAdapter{resolver: resolver, logger: logger, failed: make(map[string]bool)}
}

// CanProcess claims a setting when its Value successfully parses as a
// secretRefValue with a vault URI and a name,
// mirroring the real service's content-type-sniffing behavior without
// requiring a separate content-type field on provider.Setting.
func (a *SecretReferenceAdapter) CanProcess(setting provider.Setting) bool {
	return strings.HasPrefix(strings.TrimSpace(setting.Value), "{") && looksLikeSecretRef(setting.Value)
}

func looksLikeSecretRef(raw string) bool {
	var v secretRefValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return false
	}

	return v.VaultURI != "" && v.Name != ""
}

// Process resolves the referenced secret and publishes it under the
// setting's own key.
func (a *SecretReferenceAdapter) Process(setting provider.Setting) ([]provider.KV, error) {
	var ref secretRefValue
	if err := json.Unmarshal([]byte(setting.Value), &ref); err != nil {
		return nil, fmt.Errorf("%w: %s: malformed secret reference: %v", provider.ErrAdapterFailure, setting.Key, err)
	}

	value, err := a.resolver.Resolve(context.Background(), ref.VaultURI, ref.Name, ref.Version)
	if err != nil {
		a.mu.Lock()
		a.failed[setting.Key] = true
		a.mu.Unlock()

		sref := &provider.SecretReferenceFailure{Key: setting.Key, Err: err}

		return nil, fmt.Errorf("%w: %v", provider.ErrAdapterFailure, sref)
	}

	a.mu.Lock()
	delete(a.failed, setting.Key)
	a.mu.Unlock()

	return []provider.KV{{Key: setting.Key, Value: value}}, nil
}

// Invalidate clears the adapter's failed-resolution bookkeeping. entry
// non-nil clears just that key; nil clears everything.
func (a *SecretReferenceAdapter) Invalidate(entry *provider.Setting) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry == nil {
		a.failed = make(map[string]bool)

		return
	}

	delete(a.failed, entry.Key)
}

// NeedsRefresh reports true while any secret reference's last resolution
// attempt failed, so a subsequent refresh retries it even without a
// detected upstream change.
func (a *SecretReferenceAdapter) NeedsRefresh() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.failed) > 0
}
