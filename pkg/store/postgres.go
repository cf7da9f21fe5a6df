package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"vitacheck/engine/pkg/providers"
)

// PostgresConfig configures the shared PostgreSQL cache backend.
type PostgresConfig struct {
	// URL is a lib/pq connection string or URL.
	URL string

	// MaxOpenConns caps the connection pool. Default: 10.
	MaxOpenConns int

	// MaxIdleConns caps idle connections. Default: 5.
	MaxIdleConns int
}

// PostgresCache implements Cache on PostgreSQL. Reports and labels are
// stored as jsonb so they stay queryable for offline analysis.
type PostgresCache struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresCache connects, verifies reachability, and applies the schema.
func NewPostgresCache(ctx context.Context, cfg PostgresConfig) (*PostgresCache, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}

	logger := slog.Default().With("component", "store.postgres")

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, newCacheError("postgres", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, newCacheError("postgres", "ping", err)
	}

	c := &PostgresCache{db: db, logger: logger}
	if err := c.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("postgres cache initialized",
		"max_open_conns", cfg.MaxOpenConns)
	return c, nil
}

func (c *PostgresCache) initialize(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, postgresSchema); err != nil {
		return newCacheError("postgres", "create_schema", err)
	}
	if _, err := c.db.ExecContext(ctx, postgresInsertSchemaVersion, SchemaVersion); err != nil {
		return newCacheError("postgres", "insert_schema_version", err)
	}

	var version int
	if err := c.db.QueryRowContext(ctx, getSchemaVersion).Scan(&version); err != nil {
		return newCacheError("postgres", "get_schema_version", err)
	}
	if version > SchemaVersion {
		return newCacheError("postgres", "schema_version",
			fmt.Errorf("database schema version %d is newer than supported %d", version, SchemaVersion))
	}
	return nil
}

func (c *PostgresCache) GetItem(ctx context.Context, normalized string) (*ItemEntry, error) {
	var (
		rxcui, supplementID sql.NullString
		labelJSON           []byte
		updatedAt           time.Time
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT rxcui, supplement_id, label, updated_at FROM items WHERE normalized = $1`,
		normalized).Scan(&rxcui, &supplementID, &labelJSON, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newCacheError("postgres", "get_item", err)
	}

	entry := &ItemEntry{Normalized: normalized, UpdatedAt: updatedAt.UTC()}
	if rxcui.Valid {
		entry.RxCUI = &rxcui.String
	}
	if supplementID.Valid {
		entry.SupplementID = &supplementID.String
	}
	if len(labelJSON) > 0 {
		var label providers.LabelResult
		if err := json.Unmarshal(labelJSON, &label); err != nil {
			return nil, newCacheError("postgres", "decode_label", err)
		}
		entry.Label = &label
	}
	return entry, nil
}

func (c *PostgresCache) PutItem(ctx context.Context, entry *ItemEntry) error {
	labelJSON, err := marshalLabel(entry.Label)
	if err != nil {
		return newCacheError("postgres", "encode_label", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO items (normalized, rxcui, supplement_id, label, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (normalized) DO UPDATE SET
			rxcui = EXCLUDED.rxcui,
			supplement_id = EXCLUDED.supplement_id,
			label = EXCLUDED.label,
			updated_at = EXCLUDED.updated_at`,
		entry.Normalized, nullable(entry.RxCUI), nullable(entry.SupplementID),
		labelJSON, entry.UpdatedAt)
	return newCacheError("postgres", "put_item", err)
}

func (c *PostgresCache) PurgeStaleNegatives(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM items
		WHERE (rxcui IS NULL OR supplement_id IS NULL OR label IS NULL)
		  AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, newCacheError("postgres", "purge_stale_negatives", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *PostgresCache) GetPair(ctx context.Context, pairKey, calcVersion string) (*PairEntry, error) {
	entry := &PairEntry{PairKey: pairKey, CalcVersion: calcVersion}
	var report []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT sources_hash, report, updated_at FROM pairs WHERE pair_key = $1 AND calc_version = $2`,
		pairKey, calcVersion).Scan(&entry.SourcesHash, &report, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newCacheError("postgres", "get_pair", err)
	}
	entry.Report = json.RawMessage(report)
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}

func (c *PostgresCache) PutPair(ctx context.Context, entry *PairEntry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO pairs (pair_key, calc_version, sources_hash, report, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pair_key, calc_version) DO UPDATE SET
			sources_hash = EXCLUDED.sources_hash,
			report = EXCLUDED.report,
			updated_at = EXCLUDED.updated_at`,
		entry.PairKey, entry.CalcVersion, entry.SourcesHash,
		[]byte(entry.Report), entry.UpdatedAt)
	return newCacheError("postgres", "put_pair", err)
}

func (c *PostgresCache) PurgeVersionsOtherThan(ctx context.Context, calcVersion string) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM pairs WHERE calc_version <> $1`, calcVersion)
	if err != nil {
		return 0, newCacheError("postgres", "purge_versions", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (c *PostgresCache) GetExposure(ctx context.Context, normalized string) (*ExposureEntry, error) {
	entry := &ExposureEntry{Normalized: normalized}
	err := c.db.QueryRowContext(ctx,
		`SELECT beneficiaries, year, source, updated_at FROM exposure WHERE normalized = $1`,
		normalized).Scan(&entry.Beneficiaries, &entry.Year, &entry.Source, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newCacheError("postgres", "get_exposure", err)
	}
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}

func (c *PostgresCache) PutExposure(ctx context.Context, entry *ExposureEntry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO exposure (normalized, beneficiaries, year, source, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (normalized) DO UPDATE SET
			beneficiaries = EXCLUDED.beneficiaries,
			year = EXCLUDED.year,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at`,
		entry.Normalized, entry.Beneficiaries, entry.Year, entry.Source,
		entry.UpdatedAt)
	return newCacheError("postgres", "put_exposure", err)
}

// Close closes the underlying database.
func (c *PostgresCache) Close() error { return c.db.Close() }
