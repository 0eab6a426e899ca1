// Package history records a summary of every download run in a SQLite
// database (modernc.org/sqlite, no cgo), for the `history` command and
// the dashboard.
package history
