// Package sqlite contains the SQLite persistence layer for segmentation
// runs: run records, per-frame metrics, ground-truth evaluations, model
// snapshots and parameter-sweep results.
//
// All database read/write operations belong here rather than in the domain
// packages, which keeps the model and pipeline code free of SQL noise and
// makes the stores easy to swap for in-memory fakes in tests.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the results database handle. It embeds *sql.DB so the stores and
// admin routes can use the standard query API directly.
type DB struct {
	*sql.DB
	path string
}

// pragmas applied to every fresh connection. WAL keeps readers (monitor,
// tailsql) from blocking the pipeline's writes.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// NewDB opens (or creates) the results database at path and applies the
// connection pragmas. The schema is managed separately through the migrate
// commands; see migrate.go.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string { return db.path }
