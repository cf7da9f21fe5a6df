package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vitacheck/engine/pkg/providers"
)

// SQLiteConfig configures the single-node SQLite cache backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5 seconds.
	BusyTimeout time.Duration
}

// SQLiteCache implements Cache on a single SQLite file with WAL enabled.
type SQLiteCache struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteCache opens the database, enables WAL, and applies the schema.
func NewSQLiteCache(cfg SQLiteConfig) (*SQLiteCache, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "store.sqlite")

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, newCacheError("sqlite", "open", err)
	}
	// SQLite permits one writer; a single connection sidesteps
	// SQLITE_BUSY under concurrent pair writes.
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{db: db, logger: logger}
	if err := c.initialize(cfg); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite cache initialized", "path", cfg.Path)
	return c, nil
}

func (c *SQLiteCache) initialize(cfg SQLiteConfig) error {
	if _, err := c.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return newCacheError("sqlite", "enable_wal", err)
	}
	if _, err := c.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		return newCacheError("sqlite", "set_busy_timeout", err)
	}
	if _, err := c.db.Exec(sqliteSchema); err != nil {
		return newCacheError("sqlite", "create_schema", err)
	}
	if _, err := c.db.Exec(sqliteInsertSchemaVersion, SchemaVersion); err != nil {
		return newCacheError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := c.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return newCacheError("sqlite", "get_schema_version", err)
	}
	if version > SchemaVersion {
		return newCacheError("sqlite", "schema_version",
			fmt.Errorf("database schema version %d is newer than supported %d", version, SchemaVersion))
	}
	return nil
}

func (c *SQLiteCache) GetItem(ctx context.Context, normalized string) (*ItemEntry, error) {
	var (
		rxcui, supplementID sql.NullString
		labelJSON           sql.NullString
		updatedAt           int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT rxcui, supplement_id, label, updated_at FROM items WHERE normalized = ?`,
		normalized).Scan(&rxcui, &supplementID, &labelJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newCacheError("sqlite", "get_item", err)
	}

	entry := &ItemEntry{
		Normalized: normalized,
		UpdatedAt:  time.Unix(updatedAt, 0).UTC(),
	}
	if rxcui.Valid {
		entry.RxCUI = &rxcui.String
	}
	if supplementID.Valid {
		entry.SupplementID = &supplementID.String
	}
	if labelJSON.Valid {
		var label providers.LabelResult
		if err := json.Unmarshal([]byte(labelJSON.String), &label); err != nil {
			return nil, newCacheError("sqlite", "decode_label", err)
		}
		entry.Label = &label
	}
	return entry, nil
}

func (c *SQLiteCache) PutItem(ctx context.Context, entry *ItemEntry) error {
	labelJSON, err := marshalLabel(entry.Label)
	if err != nil {
		return newCacheError("sqlite", "encode_label", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO items (normalized, rxcui, supplement_id, label, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(normalized) DO UPDATE SET
			rxcui = excluded.rxcui,
			supplement_id = excluded.supplement_id,
			label = excluded.label,
			updated_at = excluded.updated_at`,
		entry.Normalized, nullable(entry.RxCUI), nullable(entry.SupplementID),
		labelJSON, entry.UpdatedAt.Unix())
	return newCacheError("sqlite", "put_item", err)
}

func (c *SQLiteCache) PurgeStaleNegatives(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM items
		WHERE (rxcui IS NULL OR supplement_id IS NULL OR label IS NULL)
		  AND updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, newCacheError("sqlite", "purge_stale_negatives", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *SQLiteCache) GetPair(ctx context.Context, pairKey, calcVersion string) (*PairEntry, error) {
	entry := &PairEntry{PairKey: pairKey, CalcVersion: calcVersion}
	var (
		report    string
		updatedAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT sources_hash, report, updated_at FROM pairs WHERE pair_key = ? AND calc_version = ?`,
		pairKey, calcVersion).Scan(&entry.SourcesHash, &report, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newCacheError("sqlite", "get_pair", err)
	}
	entry.Report = json.RawMessage(report)
	entry.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return entry, nil
}

func (c *SQLiteCache) PutPair(ctx context.Context, entry *PairEntry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO pairs (pair_key, calc_version, sources_hash, report, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pair_key, calc_version) DO UPDATE SET
			sources_hash = excluded.sources_hash,
			report = excluded.report,
			updated_at = excluded.updated_at`,
		entry.PairKey, entry.CalcVersion, entry.SourcesHash,
		string(entry.Report), entry.UpdatedAt.Unix())
	return newCacheError("sqlite", "put_pair", err)
}

func (c *SQLiteCache) PurgeVersionsOtherThan(ctx context.Context, calcVersion string) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM pairs WHERE calc_version <> ?`, calcVersion)
	if err != nil {
		return 0, newCacheError("sqlite", "purge_versions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *SQLiteCache) GetExposure(ctx context.Context, normalized string) (*ExposureEntry, error) {
	entry := &ExposureEntry{Normalized: normalized}
	var updatedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT beneficiaries, year, source, updated_at FROM exposure WHERE normalized = ?`,
		normalized).Scan(&entry.Beneficiaries, &entry.Year, &entry.Source, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newCacheError("sqlite", "get_exposure", err)
	}
	entry.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return entry, nil
}

func (c *SQLiteCache) PutExposure(ctx context.Context, entry *ExposureEntry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO exposure (normalized, beneficiaries, year, source, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(normalized) DO UPDATE SET
			beneficiaries = excluded.beneficiaries,
			year = excluded.year,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		entry.Normalized, entry.Beneficiaries, entry.Year, entry.Source,
		entry.UpdatedAt.Unix())
	return newCacheError("sqlite", "put_exposure", err)
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error { return c.db.Close() }

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func marshalLabel(label *providers.LabelResult) (any, error) {
	if label == nil {
		return nil, nil
	}
	b, err := json.Marshal(label)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
