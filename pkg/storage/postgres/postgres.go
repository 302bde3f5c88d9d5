// Package postgres provides a PostgreSQL-backed repository via pgx.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loomworks/loom/pkg/storage/sqlcore"
)

// Repository implements storage.Repository over PostgreSQL via the shared
// SQL core. Per-branch sequence assignment serializes with SELECT ... FOR
// UPDATE instead of SQLite's database-level write lock.
type Repository struct {
	*sqlcore.Core
}

// New connects with the given DSN and migrates the schema.
func New(dsn string) (*Repository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := sqlcore.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{Core: sqlcore.New(db, sqlcore.Postgres)}, nil
}
