// Package store persists accounts and job history in SQLite.
//
// Store implements ledger.Repository: Update runs the caller's mutation inside
// a single immediate transaction, retried when SQLite reports the database
// busy, so counter updates stay atomic across goroutines and processes. The
// jobs table is an append-mostly history used by the CLI and by the daemon to
// fail jobs interrupted by a restart.
//
// Schema changes bump schemaVersion in schema.go; an older database must be
// moved aside before the new schema is created.
package store
