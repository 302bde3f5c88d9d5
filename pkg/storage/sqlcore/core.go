// Package sqlcore implements the storage.Repository contract over
// database/sql. It is dialect-agnostic and embedded by the concrete sqlite
// and postgres backends, which only differ in how the connection is opened
// and the schema migrated.
package sqlcore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/loomworks/loom/pkg/storage"
)

// Dialect captures the few per-database differences the core needs to know
// about: placeholder style and row-locking syntax.
type Dialect int

const (
	// SQLite uses ? placeholders and serializes writers at the database
	// level, so no row-lock clause is needed.
	SQLite Dialect = iota

	// Postgres uses $n placeholders and SELECT ... FOR UPDATE to serialize
	// per-branch sequence assignment.
	Postgres
)

// Core is the shared repository implementation. Backends embed it and supply
// an opened, migrated *sql.DB.
type Core struct {
	DB      *sql.DB
	Dialect Dialect
}

// New returns a Core over the given connection.
func New(db *sql.DB, dialect Dialect) *Core {
	return &Core{DB: db, Dialect: dialect}
}

// WithTx runs fn inside a single transaction. fn returning nil commits;
// anything else rolls back, so partial writes are never observable.
func (c *Core) WithTx(ctx context.Context, fn storage.TxFunc) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return storage.WrapErr("begin transaction", err)
	}

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return storage.WrapErr("commit transaction", err)
	}

	return nil
}

// Close closes the database connection.
func (c *Core) Close() error {
	return c.DB.Close()
}

// q rebinds a ?-style query for the active dialect.
func (c *Core) q(query string) string {
	if c.Dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate returns the row-lock clause for the active dialect.
func (c *Core) forUpdate() string {
	if c.Dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// querier is satisfied by both *sql.DB and *sql.Tx so reads can run either
// standalone or inside a caller's transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var _ storage.Repository = (*Core)(nil)

// Schema returns the portable DDL for the four tables. Backends execute it
// statement by statement after applying dialect-specific tweaks.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			is_current BOOLEAN NOT NULL DEFAULT FALSE,
			version INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_branches (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			parent_branch_id TEXT REFERENCES conversation_branches(id),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			fork_point INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			last_activity TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS branch_messages (
			branch_id TEXT NOT NULL REFERENCES conversation_branches(id),
			message_id TEXT NOT NULL REFERENCES messages(id),
			sequence_no INTEGER NOT NULL,
			PRIMARY KEY (branch_id, sequence_no)
		)`,
		`CREATE TABLE IF NOT EXISTS branch_metadata (
			branch_id TEXT NOT NULL REFERENCES conversation_branches(id),
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (branch_id, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_branches_session ON conversation_branches(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_branches_parent ON conversation_branches(parent_branch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_branch_messages_message ON branch_messages(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id)`,
	}
}

// Migrate executes the schema against the given connection.
func Migrate(db *sql.DB) error {
	for _, stmt := range Schema() {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}
