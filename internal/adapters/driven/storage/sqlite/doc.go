// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - FragmentStore: Fragment persistence with usage telemetry
//   - RelationshipStore: Endpoint to schema links
//   - APIMetadataStore: Per-API bookkeeping
//   - SchedulerStore: Background task state and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each NNN_name.up.sql file is applied once, in order,
// inside a transaction.
//
// Timestamps are stored as Unix nanoseconds so that retention and ordering
// compare numerically.
//
// # Data Location
//
// By default, the database is stored at ~/.specfrag/data/fragments.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
