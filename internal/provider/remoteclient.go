package provider

import "context"

// RemoteClient is the capability the core consumes to talk to one replica
// of the remote configuration service. A concrete
// implementation is bound to a single replica endpoint; RefreshEngine
// obtains one per attempted replica via ClientFactory.
type RemoteClient interface {
	// List returns every setting matching sel. When sel.SnapshotName is
	// set, implementations should instead delegate to ListSnapshot.
	List(ctx context.Context, sel Selector) ([]Setting, error)
	// ListSnapshot returns every setting in the named server-side
	// snapshot.
	ListSnapshot(ctx context.Context, name string) ([]Setting, error)
	// GetSnapshot returns a named snapshot's metadata, including its
	// composition. The engine rejects any composition other than
	// "key-partitioned" with ErrInvalidConfig (non-fail-overable).
	GetSnapshot(ctx context.Context, name string) (Snapshot, error)
	// Get fetches a single setting by key/label. Returns an error
	// wrapping ErrNotFound if it does not exist.
	Get(ctx context.Context, key, label string) (Setting, error)
	// GetChange performs a conditional fetch against known's etag.
	// Returns ChangeNone if unchanged, ChangeModified with a fresh
	// Setting if the etag differs, or ChangeDeleted if the server
	// reports the setting gone.
	GetChange(ctx context.Context, known Setting) (ChangeRecord, error)
}

// ClientFactory produces a RemoteClient bound to one replica endpoint.
// Implementations typically cache one client per endpoint rather than
// reconstructing it on every call.
type ClientFactory func(endpoint string) RemoteClient
