package sqlcore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/storage"
)

// AppendMessageTx writes the message row and links it to the branch with the
// next sequence number. The branch row is locked first so that sequence
// assignment is single-writer per branch; two concurrent appends can never
// collide or be dropped.
func (c *Core) AppendMessageTx(ctx context.Context, tx *sql.Tx, branchID string, m *conversation.Message) (int, error) {
	status, err := c.branchStatusForUpdate(ctx, tx, branchID)
	if err != nil {
		return 0, err
	}
	if status != conversation.StatusActive {
		return 0, &storage.ErrBranchNotActive{BranchID: branchID, Status: status}
	}

	_, err = tx.ExecContext(ctx,
		c.q("INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)"),
		m.ID, m.SessionID, string(m.Role), m.Content, m.CreatedAt)
	if err != nil {
		return 0, storage.WrapErr("insert message "+m.ID, err)
	}

	return c.link(ctx, tx, branchID, m.ID)
}

// AttachMessageTx links an existing message to the branch with the next
// sequence number. The message row is shared by reference, not copied.
func (c *Core) AttachMessageTx(ctx context.Context, tx *sql.Tx, branchID, messageID string) (int, error) {
	status, err := c.branchStatusForUpdate(ctx, tx, branchID)
	if err != nil {
		return 0, err
	}
	if status != conversation.StatusActive {
		return 0, &storage.ErrBranchNotActive{BranchID: branchID, Status: status}
	}

	var exists int
	err = tx.QueryRowContext(ctx,
		c.q("SELECT 1 FROM messages WHERE id = ?"), messageID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &storage.ErrNotFound{Kind: "message", ID: messageID}
	}
	if err != nil {
		return 0, storage.WrapErr("attach message "+messageID, err)
	}

	return c.link(ctx, tx, branchID, messageID)
}

// link assigns the next contiguous sequence number and inserts the
// association row. Callers must hold the branch row lock.
func (c *Core) link(ctx context.Context, tx *sql.Tx, branchID, messageID string) (int, error) {
	var next int
	err := tx.QueryRowContext(ctx,
		c.q("SELECT COALESCE(MAX(sequence_no), 0) + 1 FROM branch_messages WHERE branch_id = ?"),
		branchID).Scan(&next)
	if err != nil {
		return 0, storage.WrapErr("next sequence for branch "+branchID, err)
	}

	_, err = tx.ExecContext(ctx,
		c.q("INSERT INTO branch_messages (branch_id, message_id, sequence_no) VALUES (?, ?, ?)"),
		branchID, messageID, next)
	if err != nil {
		return 0, storage.WrapErr("link message to branch "+branchID, err)
	}
	return next, nil
}

// ResolveHistory returns the branch's full ordered message sequence. The
// fork prefix was copied at creation time, so one scan of the branch's own
// association rows yields the resolved history.
func (c *Core) ResolveHistory(ctx context.Context, branchID string) ([]*conversation.Turn, error) {
	if _, err := c.getBranch(ctx, c.DB, branchID, false); err != nil {
		return nil, err
	}

	rows, err := c.DB.QueryContext(ctx,
		c.q(`SELECT bm.sequence_no, m.id, m.session_id, m.role, m.content, m.created_at
			FROM branch_messages bm
			JOIN messages m ON m.id = bm.message_id
			WHERE bm.branch_id = ?
			ORDER BY bm.sequence_no`),
		branchID)
	if err != nil {
		return nil, storage.WrapErr("resolve history of branch "+branchID, err)
	}
	defer rows.Close()

	var turns []*conversation.Turn
	for rows.Next() {
		var (
			t    conversation.Turn
			role string
		)
		if err := rows.Scan(&t.Sequence, &t.Message.ID, &t.Message.SessionID,
			&role, &t.Message.Content, &t.Message.CreatedAt); err != nil {
			return nil, storage.WrapErr("scan history row", err)
		}
		t.Message.Role = conversation.Role(role)
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.WrapErr("resolve history of branch "+branchID, err)
	}
	return turns, nil
}

// MessageCount returns the highest sequence number on the branch.
func (c *Core) MessageCount(ctx context.Context, branchID string) (int, error) {
	return c.messageCount(ctx, c.DB, branchID, false)
}

func (c *Core) messageCount(ctx context.Context, q querier, branchID string, lock bool) (int, error) {
	if _, err := c.getBranch(ctx, q, branchID, lock); err != nil {
		return 0, err
	}

	var count int
	err := q.QueryRowContext(ctx,
		c.q("SELECT COALESCE(MAX(sequence_no), 0) FROM branch_messages WHERE branch_id = ?"),
		branchID).Scan(&count)
	if err != nil {
		return 0, storage.WrapErr("count messages of branch "+branchID, err)
	}
	return count, nil
}

// SearchMessages matches message content by substring within a session, or
// across all sessions when sessionID is empty. Hits are reported per branch
// so the caller can jump straight to the right place in the tree.
func (c *Core) SearchMessages(ctx context.Context, sessionID, query string) ([]*storage.SearchHit, error) {
	sqlQuery := `SELECT bm.branch_id, b.name, bm.sequence_no, m.role, m.content, m.id
		FROM branch_messages bm
		JOIN conversation_branches b ON b.id = bm.branch_id
		JOIN messages m ON m.id = bm.message_id
		WHERE m.content LIKE ?`
	args := []any{"%" + query + "%"}

	if sessionID != "" {
		sqlQuery += " AND b.session_id = ?"
		args = append(args, sessionID)
	}
	sqlQuery += " ORDER BY b.created_at, bm.sequence_no"

	rows, err := c.DB.QueryContext(ctx, c.q(sqlQuery), args...)
	if err != nil {
		return nil, storage.WrapErr("search messages", err)
	}
	defer rows.Close()

	var hits []*storage.SearchHit
	for rows.Next() {
		var (
			h    storage.SearchHit
			role string
		)
		if err := rows.Scan(&h.BranchID, &h.BranchName, &h.Sequence, &role, &h.Snippet, &h.MessageID); err != nil {
			return nil, storage.WrapErr("scan search hit", err)
		}
		h.Role = conversation.Role(role)
		hits = append(hits, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.WrapErr("search messages", err)
	}
	return hits, nil
}
