// Package sqlite implements store.FlagStore on SQLite via database/sql and
// the mattn/go-sqlite3 driver. The database runs in WAL mode.
package sqlite
