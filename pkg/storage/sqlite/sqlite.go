// Package sqlite provides the default SQLite-backed repository.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/loomworks/loom/pkg/storage/sqlcore"
)

// Repository implements storage.Repository over SQLite via the shared SQL
// core.
type Repository struct {
	*sqlcore.Core
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Pass ":memory:" for an in-memory database.
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite serializes writers at the database level; a single connection
	// avoids SQLITE_BUSY between concurrent transactions, and is required
	// for :memory: databases to see one store at all.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := sqlcore.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{Core: sqlcore.New(db, sqlcore.SQLite)}, nil
}
