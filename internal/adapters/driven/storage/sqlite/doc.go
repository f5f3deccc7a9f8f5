// Package sqlite provides SQLite-backed implementations of the storage
// ports: the vector store and the workflow run ledger.
//
// A single database file holds all tables. The store is opened in WAL
// mode with a busy timeout so concurrent runs can read and write without
// corrupting records; per-id last-writer-wins is the only cross-run
// guarantee, matching the vector store contract.
//
// Schema changes are applied through embedded SQL migrations, numbered
// NNN_name.up.sql and executed in order.
package sqlite
