// Package seen is the durable record of which assets have already been
// announced.
//
// The whole set is loaded into memory at startup and every new entry is
// written through to the backend before the caller is allowed to notify.
// Supported backends:
//   - file: a single human-readable JSON snapshot, replaced atomically on every write
//   - sqlite: one row per identity (modernc.org/sqlite, no cgo)
//   - postgres: one row per identity (pgx)
package seen
