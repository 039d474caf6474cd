// Package sqlitestore provides a SQLite-backed document store.
//
// Documents are kept per collection in a single table, each body stored as
// extended JSON text so object identifiers and timestamps survive the round
// trip. Filtering happens in Go after decoding; collections are expected to
// hold thousands of documents, not millions.
//
// # Tables
//
//   - documents: (seq, collection, body), seq gives the stable store order
//   - reconcile_runs: one summary row per engine run, written by the CLI
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package sqlitestore
