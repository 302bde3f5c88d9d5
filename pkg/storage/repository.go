// Package storage defines the repository contract for the loom store.
// The Repository is the only component that physically mutates sessions,
// branches, messages, and their associations; every multi-row mutation runs
// inside a single transaction supplied by WithTx.
package storage

import (
	"context"
	"database/sql"

	"github.com/loomworks/loom/pkg/conversation"
)

// BranchFilter narrows ListBranches results.
type BranchFilter struct {
	// Status limits results to branches in the given state. Empty means all.
	Status conversation.Status

	// Bookmarked limits results to bookmarked branches when true.
	Bookmarked bool
}

// SearchHit is one message matched by a branch search.
type SearchHit struct {
	BranchID   string            `json:"branch_id"`
	BranchName string            `json:"branch_name"`
	Sequence   int               `json:"sequence"`
	Role       conversation.Role `json:"role"`
	Snippet    string            `json:"snippet"`
	MessageID  string            `json:"message_id"`
}

// TxFunc runs inside a repository transaction. Returning an error rolls the
// whole transaction back; partial writes are never observable to readers.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// Repository is the transactional CRUD and query layer over the session,
// branch, message, and association stores.
//
// Reads require no transaction. All Tx-suffixed operations must be called
// with a transaction obtained through WithTx; the branch service is the only
// caller permitted to compose multi-row mutations.
type Repository interface {
	// WithTx runs fn inside one transaction, committing on nil and rolling
	// back on error. Storage failures surface as *ErrStorage.
	WithTx(ctx context.Context, fn TxFunc) error

	// Session reads.
	GetSession(ctx context.Context, id string) (*conversation.Session, error)
	ListSessions(ctx context.Context) ([]*conversation.Session, error)
	CurrentSession(ctx context.Context) (*conversation.Session, error)

	// Session writes.
	CreateSessionTx(ctx context.Context, tx *sql.Tx, s *conversation.Session) error

	// UpdateSessionTx persists name/expiry/current changes guarded by the
	// optimistic version token: the row is only written when the stored
	// version matches s.Version, and the version is bumped on success.
	// A mismatch returns *ErrConcurrentModification.
	UpdateSessionTx(ctx context.Context, tx *sql.Tx, s *conversation.Session) error

	// SetCurrentSessionTx atomically moves the is-current flag to the given
	// session.
	SetCurrentSessionTx(ctx context.Context, tx *sql.Tx, id string) error

	// Branch reads.
	GetBranch(ctx context.Context, id string) (*conversation.Branch, error)
	ListBranches(ctx context.Context, sessionID string, filter BranchFilter) ([]*conversation.Branch, error)

	// ResolveHistory returns the branch's full ordered message sequence.
	// Fork copies the shared prefix at creation time, so this is a single
	// scan of the branch's own association rows.
	ResolveHistory(ctx context.Context, branchID string) ([]*conversation.Turn, error)

	// MessageCount returns the highest sequence number on the branch.
	MessageCount(ctx context.Context, branchID string) (int, error)

	// Branch writes.

	// CreateBranchTx inserts the branch and, when it has a parent, copies the
	// parent's association rows up to b.ForkPoint into the new branch so the
	// prefix is identical by construction. A fork point beyond the parent's
	// message count returns *ErrInvalidForkPoint.
	CreateBranchTx(ctx context.Context, tx *sql.Tx, b *conversation.Branch) error

	// AppendMessageTx writes the message row and links it to the branch with
	// the next sequence number. Sequence assignment is serialized per branch
	// by the transaction's row-level locking. Returns *ErrBranchNotActive
	// when the branch is not active.
	AppendMessageTx(ctx context.Context, tx *sql.Tx, branchID string, m *conversation.Message) (int, error)

	// AttachMessageTx links an existing message to the branch with the next
	// sequence number. Used by merge and cherry-pick, which share messages by
	// reference rather than copying rows.
	AttachMessageTx(ctx context.Context, tx *sql.Tx, branchID, messageID string) (int, error)

	// UpdateBranchStatusTx enforces the branch lifecycle transition table.
	UpdateBranchStatusTx(ctx context.Context, tx *sql.Tx, branchID string, status conversation.Status) error

	// UpdateBranchTx persists name/description edits.
	UpdateBranchTx(ctx context.Context, tx *sql.Tx, branchID, name, description string) error

	// TouchBranchTx bumps the branch's last-activity timestamp.
	TouchBranchTx(ctx context.Context, tx *sql.Tx, branchID string) error

	// DeleteBranchTx removes the branch with its association and metadata
	// rows. Messages stay, they may be shared with other branches. Fails when
	// child branches still reference it.
	DeleteBranchTx(ctx context.Context, tx *sql.Tx, branchID string) error

	// Metadata.
	SetMetadataTx(ctx context.Context, tx *sql.Tx, branchID, key, value string) error
	DeleteMetadataTx(ctx context.Context, tx *sql.Tx, branchID, key string) error

	// SearchMessages matches message content within a session. Matching is
	// whole-message substring search; query syntax beyond that is out of
	// scope. An empty sessionID searches every session.
	SearchMessages(ctx context.Context, sessionID, query string) ([]*SearchHit, error)

	// Close releases the underlying connection handle.
	Close() error
}
