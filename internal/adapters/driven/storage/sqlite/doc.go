// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: Document, chunk and vector persistence with
//     filtered cosine similarity search
//   - JobStore: Durable embedding job queue with atomic claims
//   - CacheStore: Analysis cache with read-time expiry
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory as .up.sql files applied in order.
//
// # Data Location
//
// By default, the database is stored at ~/.fiscalia/data/fiscalia.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Job claims are single conditional UPDATE
// statements, so two concurrent workers can never both win the same job.
package sqlite
