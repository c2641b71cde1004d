// Package store provides the SQLite-backed local queue of pending orders.
//
// The queue survives process restarts and is the single source of truth for
// "what has not been acknowledged by the remote system yet".
//
// # Guarantees
//
// Keyed by uid:
//   - PRIMARY KEY(uid); Put is an idempotent upsert
//   - A re-put keeps the original seq, so an order never loses its place in line
//
// FIFO ordering:
//   - seq INTEGER is assigned on first insert (MAX(seq)+1 inside the write)
//   - All queries MUST include: ORDER BY seq ASC, uid ASC COLLATE BINARY
//
// Transactional writes:
//   - Put, PutAll, Remove and Clear either fully apply or leave the table as it was
//   - Storage-level failures surface as *StorageError; nothing is dropped silently
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// # Schema Versioning
//
// PRAGMA user_version holds the schema version. Older files are migrated
// forward step by step. A file written by a newer binary is rejected with
// ErrUnknownSchemaVersion instead of being recreated.
package store
