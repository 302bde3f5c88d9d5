package sqlcore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/storage"
)

const branchColumns = "id, session_id, parent_branch_id, name, description, status, fork_point, created_at, last_activity"

// GetBranch retrieves a branch and its metadata by id.
func (c *Core) GetBranch(ctx context.Context, id string) (*conversation.Branch, error) {
	b, err := c.getBranch(ctx, c.DB, id, false)
	if err != nil {
		return nil, err
	}

	meta, err := c.loadMetadata(ctx, c.DB, []string{id})
	if err != nil {
		return nil, err
	}
	b.Metadata = meta[id]
	return b, nil
}

// ListBranches returns a session's branches, oldest first so parents precede
// their children, with metadata attached.
func (c *Core) ListBranches(ctx context.Context, sessionID string, filter storage.BranchFilter) ([]*conversation.Branch, error) {
	query := "SELECT " + branchColumns + " FROM conversation_branches WHERE session_id = ?"
	args := []any{sessionID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at, id"

	rows, err := c.DB.QueryContext(ctx, c.q(query), args...)
	if err != nil {
		return nil, storage.WrapErr("list branches for session "+sessionID, err)
	}
	defer rows.Close()

	var branches []*conversation.Branch
	var ids []string
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, storage.WrapErr("scan branch", err)
		}
		branches = append(branches, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.WrapErr("list branches for session "+sessionID, err)
	}

	meta, err := c.loadMetadata(ctx, c.DB, ids)
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		b.Metadata = meta[b.ID]
	}

	if filter.Bookmarked {
		bookmarked := branches[:0]
		for _, b := range branches {
			if b.Bookmarked() {
				bookmarked = append(bookmarked, b)
			}
		}
		branches = bookmarked
	}

	return branches, nil
}

// CreateBranchTx inserts the branch row and copies the parent's association
// rows up to the fork point so the new branch's prefix is identical to its
// parent's by construction.
func (c *Core) CreateBranchTx(ctx context.Context, tx *sql.Tx, b *conversation.Branch) error {
	if b.ParentID != nil {
		parentCount, err := c.messageCount(ctx, tx, *b.ParentID, true)
		if err != nil {
			return err
		}
		if b.ForkPoint > parentCount {
			return &storage.ErrInvalidForkPoint{
				ParentID:  *b.ParentID,
				ForkPoint: b.ForkPoint,
				Messages:  parentCount,
			}
		}
	}

	_, err := tx.ExecContext(ctx,
		c.q("INSERT INTO conversation_branches ("+branchColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		b.ID, b.SessionID, b.ParentID, b.Name, b.Description, string(b.Status),
		b.ForkPoint, b.CreatedAt, b.LastActivity)
	if err != nil {
		return storage.WrapErr("create branch "+b.ID, err)
	}

	if b.ParentID != nil && b.ForkPoint > 0 {
		_, err = tx.ExecContext(ctx,
			c.q(`INSERT INTO branch_messages (branch_id, message_id, sequence_no)
				SELECT ?, message_id, sequence_no
				FROM branch_messages
				WHERE branch_id = ? AND sequence_no <= ?`),
			b.ID, *b.ParentID, b.ForkPoint)
		if err != nil {
			return storage.WrapErr("copy fork prefix into branch "+b.ID, err)
		}
	}

	for k, v := range b.Metadata {
		if err := c.SetMetadataTx(ctx, tx, b.ID, k, v); err != nil {
			return err
		}
	}

	return nil
}

// UpdateBranchStatusTx enforces the lifecycle transition table: active may
// become archived or merged, archived may be reactivated, merged is terminal.
func (c *Core) UpdateBranchStatusTx(ctx context.Context, tx *sql.Tx, branchID string, status conversation.Status) error {
	current, err := c.branchStatusForUpdate(ctx, tx, branchID)
	if err != nil {
		return err
	}

	if !current.CanTransition(status) {
		return &storage.ErrInvalidTransition{BranchID: branchID, From: current, To: status}
	}

	if _, err := tx.ExecContext(ctx,
		c.q("UPDATE conversation_branches SET status = ? WHERE id = ?"),
		string(status), branchID); err != nil {
		return storage.WrapErr("update status of branch "+branchID, err)
	}
	return nil
}

// UpdateBranchTx persists name and description edits.
func (c *Core) UpdateBranchTx(ctx context.Context, tx *sql.Tx, branchID, name, description string) error {
	res, err := tx.ExecContext(ctx,
		c.q("UPDATE conversation_branches SET name = ?, description = ? WHERE id = ?"),
		name, description, branchID)
	if err != nil {
		return storage.WrapErr("update branch "+branchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.WrapErr("update branch "+branchID, err)
	}
	if affected == 0 {
		return &storage.ErrNotFound{Kind: "branch", ID: branchID}
	}
	return nil
}

// DeleteBranchTx removes a branch row with its association and metadata
// rows. Messages themselves stay: they are shared by reference and may be
// visible on other branches. Branches with children cannot be deleted.
func (c *Core) DeleteBranchTx(ctx context.Context, tx *sql.Tx, branchID string) error {
	var children int
	err := tx.QueryRowContext(ctx,
		c.q("SELECT COUNT(*) FROM conversation_branches WHERE parent_branch_id = ?"),
		branchID).Scan(&children)
	if err != nil {
		return storage.WrapErr("count children of branch "+branchID, err)
	}
	if children > 0 {
		return storage.WrapErr("delete branch "+branchID,
			fmt.Errorf("%d child branches still reference it", children))
	}

	if _, err := tx.ExecContext(ctx,
		c.q("DELETE FROM branch_messages WHERE branch_id = ?"), branchID); err != nil {
		return storage.WrapErr("delete associations of branch "+branchID, err)
	}
	if _, err := tx.ExecContext(ctx,
		c.q("DELETE FROM branch_metadata WHERE branch_id = ?"), branchID); err != nil {
		return storage.WrapErr("delete metadata of branch "+branchID, err)
	}

	res, err := tx.ExecContext(ctx,
		c.q("DELETE FROM conversation_branches WHERE id = ?"), branchID)
	if err != nil {
		return storage.WrapErr("delete branch "+branchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.WrapErr("delete branch "+branchID, err)
	}
	if affected == 0 {
		return &storage.ErrNotFound{Kind: "branch", ID: branchID}
	}
	return nil
}

// TouchBranchTx bumps the branch's last-activity timestamp.
func (c *Core) TouchBranchTx(ctx context.Context, tx *sql.Tx, branchID string) error {
	_, err := tx.ExecContext(ctx,
		c.q("UPDATE conversation_branches SET last_activity = ? WHERE id = ?"),
		time.Now().UTC(), branchID)
	if err != nil {
		return storage.WrapErr("touch branch "+branchID, err)
	}
	return nil
}

// SetMetadataTx upserts one metadata key.
func (c *Core) SetMetadataTx(ctx context.Context, tx *sql.Tx, branchID, key, value string) error {
	_, err := tx.ExecContext(ctx,
		c.q(`INSERT INTO branch_metadata (branch_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT (branch_id, key) DO UPDATE SET value = excluded.value`),
		branchID, key, value)
	if err != nil {
		return storage.WrapErr("set metadata "+key+" on branch "+branchID, err)
	}
	return nil
}

// DeleteMetadataTx removes one metadata key. Missing keys are a no-op.
func (c *Core) DeleteMetadataTx(ctx context.Context, tx *sql.Tx, branchID, key string) error {
	_, err := tx.ExecContext(ctx,
		c.q("DELETE FROM branch_metadata WHERE branch_id = ? AND key = ?"),
		branchID, key)
	if err != nil {
		return storage.WrapErr("delete metadata "+key+" on branch "+branchID, err)
	}
	return nil
}

// getBranch fetches a branch row from the given querier, optionally locking
// it for the duration of the transaction.
func (c *Core) getBranch(ctx context.Context, q querier, id string, lock bool) (*conversation.Branch, error) {
	query := "SELECT " + branchColumns + " FROM conversation_branches WHERE id = ?"
	if lock {
		query += c.forUpdate()
	}

	b, err := scanBranch(q.QueryRowContext(ctx, c.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &storage.ErrNotFound{Kind: "branch", ID: id}
	}
	if err != nil {
		return nil, storage.WrapErr("get branch "+id, err)
	}
	return b, nil
}

// branchStatusForUpdate reads a branch's status under a row lock so that
// concurrent transitions and appends serialize per branch.
func (c *Core) branchStatusForUpdate(ctx context.Context, tx *sql.Tx, id string) (conversation.Status, error) {
	var status string
	err := tx.QueryRowContext(ctx,
		c.q("SELECT status FROM conversation_branches WHERE id = ?"+c.forUpdate()), id).
		Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &storage.ErrNotFound{Kind: "branch", ID: id}
	}
	if err != nil {
		return "", storage.WrapErr("get status of branch "+id, err)
	}
	return conversation.Status(status), nil
}

// loadMetadata fetches metadata for the given branch ids in one query.
func (c *Core) loadMetadata(ctx context.Context, q querier, ids []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := "?"
	args := []any{any(ids[0])}
	for _, id := range ids[1:] {
		placeholders += ", ?"
		args = append(args, id)
	}

	rows, err := q.QueryContext(ctx,
		c.q("SELECT branch_id, key, value FROM branch_metadata WHERE branch_id IN ("+placeholders+")"),
		args...)
	if err != nil {
		return nil, storage.WrapErr("load branch metadata", err)
	}
	defer rows.Close()

	for rows.Next() {
		var branchID, key, value string
		if err := rows.Scan(&branchID, &key, &value); err != nil {
			return nil, storage.WrapErr("scan branch metadata", err)
		}
		if out[branchID] == nil {
			out[branchID] = map[string]string{}
		}
		out[branchID][key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, storage.WrapErr("load branch metadata", err)
	}
	return out, nil
}

func scanBranch(row scanner) (*conversation.Branch, error) {
	var (
		b      conversation.Branch
		parent sql.NullString
		status string
	)
	if err := row.Scan(&b.ID, &b.SessionID, &parent, &b.Name, &b.Description,
		&status, &b.ForkPoint, &b.CreatedAt, &b.LastActivity); err != nil {
		return nil, err
	}
	if parent.Valid {
		b.ParentID = &parent.String
	}
	b.Status = conversation.Status(status)
	b.Metadata = map[string]string{}
	return &b, nil
}
