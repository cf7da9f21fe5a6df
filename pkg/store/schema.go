package store

// SchemaVersion is the current cache schema version. Backends refuse to
// start against a newer schema than they understand.
const SchemaVersion = 1

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
    normalized TEXT PRIMARY KEY,
    rxcui TEXT,
    supplement_id TEXT,
    label TEXT,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pairs (
    pair_key TEXT NOT NULL,
    calc_version TEXT NOT NULL,
    sources_hash TEXT NOT NULL,
    report TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (pair_key, calc_version)
);

CREATE TABLE IF NOT EXISTS exposure (
    normalized TEXT PRIMARY KEY,
    beneficiaries INTEGER NOT NULL,
    year INTEGER NOT NULL,
    source TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pairs_calc_version ON pairs(calc_version);
CREATE INDEX IF NOT EXISTS idx_items_updated_at ON items(updated_at);
`

const sqliteInsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, strftime('%s','now'))
ON CONFLICT(version) DO NOTHING;
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS items (
    normalized TEXT PRIMARY KEY,
    rxcui TEXT,
    supplement_id TEXT,
    label JSONB,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pairs (
    pair_key TEXT NOT NULL,
    calc_version TEXT NOT NULL,
    sources_hash TEXT NOT NULL,
    report JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (pair_key, calc_version)
);

CREATE TABLE IF NOT EXISTS exposure (
    normalized TEXT PRIMARY KEY,
    beneficiaries BIGINT NOT NULL,
    year INT NOT NULL,
    source TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pairs_calc_version ON pairs(calc_version);
CREATE INDEX IF NOT EXISTS idx_items_updated_at ON items(updated_at);
`

const postgresInsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES ($1, now())
ON CONFLICT (version) DO NOTHING;
`

const getSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
