// Package diskcache mirrors a Provider's published configuration mapping
// onto a local SQLite database, so a process can warm-start from the last
// known-good mapping when every replica is unreachable at startup (see
// Options.StartupTimeout with optional=true in internal/provider).
package diskcache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/pressly/goose/v3"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/kptl-dev/remoteconfig-go/internal/provider"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	sqlSelectAll = `SELECT key, value FROM kv_cache`
	sqlUpsert    = `INSERT INTO kv_cache (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	sqlDeleteNotIn = `DELETE FROM kv_cache WHERE key NOT IN (%s)`
)

// DiskCache is the sole writer to its SQLite database. It holds no
// in-memory copy of the mapping; every Mirror call replaces the table
// contents in a single transaction.
type DiskCache struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time

	warmed atomic.Bool
}

// Open opens (creating if necessary) the SQLite database at dbPath and
// runs pending migrations. The database uses WAL mode with
// synchronous=FULL, matching the durability posture of the sync package's
// baseline store.
func Open(dbPath string, logger *slog.Logger) (*DiskCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"+
			"&_pragma=journal_size_limit(67108864)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("diskcache: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	populated, err := hasExistingRows(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &DiskCache{db: db, logger: logger, nowFunc: time.Now}
	c.warmed.Store(populated)

	logger.Info("disk cache initialized", slog.String("db_path", dbPath), slog.Bool("warmed", populated))

	return c, nil
}

// hasExistingRows reports whether the cache table already holds data from
// a prior process's Mirror calls, so a freshly opened cache on a warm
// database starts with Warmed() true instead of only becoming true after
// this process's own first Mirror.
func hasExistingRows(db *sql.DB) (bool, error) {
	var exists int

	err := db.QueryRow(`SELECT 1 FROM kv_cache LIMIT 1`).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("diskcache: checking for existing rows: %w", err)
	}

	return true, nil
}

func runMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("diskcache: creating migration sub-filesystem: %w", err)
	}

	goosePvd, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("diskcache: creating migration provider: %w", err)
	}

	results, err := goosePvd.Up(ctx)
	if err != nil {
		return fmt.Errorf("diskcache: running migrations: %w", err)
	}

	for _, r := range results {
		logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Int64("duration_ms", r.Duration.Milliseconds()),
		)
	}

	return nil
}

// Warmed reports whether the cache holds a mapping from a completed
// Mirror call that hasn't since been invalidated.
func (c *DiskCache) Warmed() bool {
	return c.warmed.Load()
}

// Load reads the full cached mapping, for use as a warm-start when
// InitialLoad exhausts every replica.
func (c *DiskCache) Load(ctx context.Context) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, sqlSelectAll)
	if err != nil {
		return nil, fmt.Errorf("diskcache: loading cache: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("diskcache: scanning row: %w", err)
		}

		out[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("diskcache: iterating rows: %w", err)
	}

	return out, nil
}

// Mirror replaces the cache table contents with mapping, in a single
// transaction: every key in mapping is upserted, and any key previously
// cached but absent from mapping is deleted. Intended to be wired via
// Provider.OnReload so the cache tracks every published snapshot.
func (c *DiskCache) Mirror(mapping map[string]string) {
	if err := c.mirror(mapping); err != nil {
		c.logger.Error("disk cache mirror failed", slog.String("error", err.Error()))
	}
}

func (c *DiskCache) mirror(mapping map[string]string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("diskcache: starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	now := c.nowFunc().Unix()

	upsert, err := tx.Prepare(sqlUpsert)
	if err != nil {
		return fmt.Errorf("diskcache: preparing upsert: %w", err)
	}
	defer upsert.Close()

	for key, value := range mapping {
		if _, err := upsert.Exec(key, value, now); err != nil {
			return fmt.Errorf("diskcache: upserting %s: %w", key, err)
		}
	}

	if err := deleteStale(tx, mapping); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("diskcache: committing: %w", err)
	}

	c.warmed.Store(true)

	return nil
}

// deleteStale removes every cached key absent from mapping. SQLite has no
// parameterized variadic IN clause, so the placeholder list is built to
// match len(mapping); an empty mapping clears the table entirely.
func deleteStale(tx *sql.Tx, mapping map[string]string) error {
	if len(mapping) == 0 {
		if _, err := tx.Exec(`DELETE FROM kv_cache`); err != nil {
			return fmt.Errorf("diskcache: clearing cache: %w", err)
		}

		return nil
	}

	placeholders := ""
	args := make([]any, 0, len(mapping))

	for key := range mapping {
		if placeholders != "" {
			placeholders += ", "
		}

		placeholders += "?"
		args = append(args, key)
	}

	query := fmt.Sprintf(sqlDeleteNotIn, placeholders)
	if _, err := tx.Exec(query, args...); err != nil {
		return fmt.Errorf("diskcache: deleting stale keys: %w", err)
	}

	return nil
}

// Close closes the underlying database handle.
func (c *DiskCache) Close() error {
	return c.db.Close()
}

// Adapter returns a provider.Adapter facade for the disk cache: it
// claims every setting (CanProcess always true) and passes it through
// unchanged, and its only other behavior is clearing the warm-start flag
// on Invalidate. Register it last in Options.Adapters so it never shadows
// a real claiming adapter — the AdapterChain only runs the first adapter
// that claims a setting, and an always-true CanProcess placed earlier
// would swallow everything after it.
func (c *DiskCache) Adapter() provider.Adapter {
	return &passthroughAdapter{cache: c}
}

type passthroughAdapter struct {
	cache *DiskCache
}

func (a *passthroughAdapter) CanProcess(provider.Setting) bool { return true }

func (a *passthroughAdapter) Process(setting provider.Setting) ([]provider.KV, error) {
	return []provider.KV{{Key: setting.Key, Value: setting.Value}}, nil
}

func (a *passthroughAdapter) Invalidate(*provider.Setting) {
	a.cache.warmed.Store(false)
}

func (a *passthroughAdapter) NeedsRefresh() bool { return false }
