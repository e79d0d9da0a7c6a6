// Package sqlite persists clip runs and surviving tracks in a SQLite
// database.
//
// The schema is embedded and applied with golang-migrate, so a fresh file
// is usable after a single call to OpenDB followed by MigrateUp.
//
// Dependency rule: storage/sqlite depends only on database/sql and the
// driver packages. Callers map pipeline results onto ClipRun and TrackRecord.
package sqlite
