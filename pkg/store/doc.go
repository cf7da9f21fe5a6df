// Package store provides the version-scoped caches backing the analysis
// pipeline: per-item identifier and label entries, per-pair analysis
// reports keyed by calculation version, exposure counts, and an
// append-only usage log.
//
// Three backends implement the cache interfaces: PostgreSQL for shared
// deployments, SQLite for single-node ones, and an in-memory store for
// tests. The usage log always lives in its own SQLite database so that
// analytics writes never contend with cache reads.
package store
