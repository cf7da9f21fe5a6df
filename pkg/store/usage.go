package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	_ "modernc.org/sqlite"
)

const usageSchema = `
CREATE TABLE IF NOT EXISTS usage_log (
    id TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL,
    items TEXT NOT NULL,
    top_severity TEXT NOT NULL,
    latency_ms INTEGER NOT NULL,
    cache_hits INTEGER NOT NULL,
    cache_misses INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_created_at ON usage_log(created_at);
`

// UsageLog is the append-only usage store. It uses the pure-Go sqlite
// driver so the analytics database works on builds without cgo, and a
// dedicated file so its writes never lock the cache database.
type UsageLog struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewUsageLog opens or creates the usage database at path.
func NewUsageLog(path string) (*UsageLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, newCacheError("usage", "open", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, newCacheError("usage", "enable_wal", err)
	}
	if _, err := db.Exec(usageSchema); err != nil {
		db.Close()
		return nil, newCacheError("usage", "create_schema", err)
	}

	return &UsageLog{
		db:     db,
		logger: slog.Default().With("component", "store.usage"),
	}, nil
}

// Append writes one usage row. Failures here are logged by the caller
// and never surface to the requester.
func (u *UsageLog) Append(ctx context.Context, entry *UsageEntry) error {
	items, err := json.Marshal(entry.Items)
	if err != nil {
		return newCacheError("usage", "encode_items", err)
	}
	_, err = u.db.ExecContext(ctx, `
		INSERT INTO usage_log (id, created_at, items, top_severity, latency_ms, cache_hits, cache_misses)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CreatedAt.Unix(), string(items), entry.TopSeverity,
		entry.LatencyMS, entry.CacheHits, entry.CacheMisses)
	return newCacheError("usage", "append", err)
}

// Close closes the underlying database.
func (u *UsageLog) Close() error { return u.db.Close() }
