package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kptl-dev/remoteconfig-go/internal/provider"
)

// featureFlagValue is the JSON payload a feature-flag setting carries,
// following the common "enabled + conditions" shape used by remote
// feature-management services.
type featureFlagValue struct {
	ID      string `json:"id"`
	Enabled bool   `json:"enabled"`
}

// FeatureFlagAdapter claims settings under a configured key prefix (the
// feature-management convention of prefixing flag keys, e.g.
// ".appconfig.featureflag/") and unwraps them into a plain "true"/"false"
// published value instead of the raw JSON envelope.
type FeatureFlagAdapter struct {
	prefix string
}

// NewFeatureFlagAdapter constructs a FeatureFlagAdapter claiming keys
// under prefix (case-insensitive).
func NewFeatureFlagAdapter(prefix string) *FeatureFlagAdapter {
	return &FeatureFlagAdapter{prefix: prefix}
}

func (a *FeatureFlagAdapter) CanProcess(setting provider.Setting) bool {
	return strings.HasPrefix(strings.ToLower(setting.Key), strings.ToLower(a.prefix))
}

// Process unwraps the feature flag envelope to a bare boolean string,
// published under the key with the prefix stripped (KeyPrefixes strips
// configured prefixes later too, but the flag prefix is specific to this
// adapter and stripped here so unrelated KeyPrefixes config stays simple).
func (a *FeatureFlagAdapter) Process(setting provider.Setting) ([]provider.KV, error) {
	var v featureFlagValue
	if err := json.Unmarshal([]byte(setting.Value), &v); err != nil {
		return nil, fmt.Errorf("%w: %s: malformed feature flag: %v", provider.ErrAdapterFailure, setting.Key, err)
	}

	key := setting.Key[len(a.prefix):]

	return []provider.KV{{Key: key, Value: fmt.Sprintf("%t", v.Enabled)}}, nil
}

// Invalidate is a no-op: FeatureFlagAdapter holds no cache.
func (a *FeatureFlagAdapter) Invalidate(*provider.Setting) {}

// NeedsRefresh always reports false: this adapter has no outstanding
// background work.
func (a *FeatureFlagAdapter) NeedsRefresh() bool { return false }
