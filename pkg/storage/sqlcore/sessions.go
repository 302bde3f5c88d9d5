package sqlcore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/storage"
)

const sessionColumns = "id, name, expires_at, is_current, version, created_at"

// GetSession retrieves a session by id.
func (c *Core) GetSession(ctx context.Context, id string) (*conversation.Session, error) {
	row := c.DB.QueryRowContext(ctx,
		c.q("SELECT "+sessionColumns+" FROM sessions WHERE id = ?"), id)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.ErrNotFound{Kind: "session", ID: id}
	}
	if err != nil {
		return nil, storage.WrapErr("get session "+id, err)
	}
	return s, nil
}

// ListSessions returns all sessions, most recently created first.
func (c *Core) ListSessions(ctx context.Context) ([]*conversation.Session, error) {
	rows, err := c.DB.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions ORDER BY created_at DESC")
	if err != nil {
		return nil, storage.WrapErr("list sessions", err)
	}
	defer rows.Close()

	var sessions []*conversation.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, storage.WrapErr("scan session", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.WrapErr("list sessions", err)
	}
	return sessions, nil
}

// CurrentSession returns the session carrying the is-current flag.
func (c *Core) CurrentSession(ctx context.Context) (*conversation.Session, error) {
	row := c.DB.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE is_current LIMIT 1")

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.ErrNotFound{Kind: "session"}
	}
	if err != nil {
		return nil, storage.WrapErr("get current session", err)
	}
	return s, nil
}

// CreateSessionTx inserts a session row.
func (c *Core) CreateSessionTx(ctx context.Context, tx *sql.Tx, s *conversation.Session) error {
	_, err := tx.ExecContext(ctx,
		c.q("INSERT INTO sessions ("+sessionColumns+") VALUES (?, ?, ?, ?, ?, ?)"),
		s.ID, s.Name, s.ExpiresAt, s.Current, s.Version, s.CreatedAt)
	if err != nil {
		return storage.WrapErr("create session "+s.ID, err)
	}
	return nil
}

// UpdateSessionTx writes session-level fields guarded by the optimistic
// version token. The update only lands when the stored version matches
// s.Version; on success s.Version is bumped to the persisted value.
func (c *Core) UpdateSessionTx(ctx context.Context, tx *sql.Tx, s *conversation.Session) error {
	res, err := tx.ExecContext(ctx,
		c.q(`UPDATE sessions
			SET name = ?, expires_at = ?, version = version + 1
			WHERE id = ? AND version = ?`),
		s.Name, s.ExpiresAt, s.ID, s.Version)
	if err != nil {
		return storage.WrapErr("update session "+s.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return storage.WrapErr("update session "+s.ID, err)
	}
	if affected == 0 {
		// Distinguish a stale version from a missing row.
		var exists int
		err := tx.QueryRowContext(ctx,
			c.q("SELECT 1 FROM sessions WHERE id = ?"), s.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return &storage.ErrNotFound{Kind: "session", ID: s.ID}
		}
		if err != nil {
			return storage.WrapErr("update session "+s.ID, err)
		}
		return &storage.ErrConcurrentModification{SessionID: s.ID, Version: s.Version}
	}

	s.Version++
	return nil
}

// SetCurrentSessionTx moves the is-current flag to the given session.
func (c *Core) SetCurrentSessionTx(ctx context.Context, tx *sql.Tx, id string) error {
	var exists int
	err := tx.QueryRowContext(ctx,
		c.q("SELECT 1 FROM sessions WHERE id = ?"), id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &storage.ErrNotFound{Kind: "session", ID: id}
	}
	if err != nil {
		return storage.WrapErr("set current session "+id, err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET is_current = FALSE WHERE is_current"); err != nil {
		return storage.WrapErr("clear current session", err)
	}
	if _, err := tx.ExecContext(ctx,
		c.q("UPDATE sessions SET is_current = TRUE WHERE id = ?"), id); err != nil {
		return storage.WrapErr("set current session "+id, err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*conversation.Session, error) {
	var s conversation.Session
	if err := row.Scan(&s.ID, &s.Name, &s.ExpiresAt, &s.Current, &s.Version, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
