// Package store provides the record stores the query engine reads from.
//
// A RecordStore returns every record of a table on each call; the engine
// never caches. Backends:
//
//   - MemoryStore: in-process tables, used by tests and imports
//   - GitStore: collections in a git repository (see package ps)
//   - RESTStore: a Supabase/PostgREST endpoint
//   - SQLStore: an embedded SQLite or DuckDB database
//   - PostgresStore: a PostgreSQL database, read-only
//   - SnapshotStore: a backup file on disk, HTTP or S3, read-only
//
// Open builds one from a Config:
//
//	s, err := store.Open(ctx, store.Config{Kind: store.KindREST, URL: url, APIKey: key})
//
// Backups are taken with Export and loaded into a writable store with
// Import.
package store
