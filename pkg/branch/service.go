// Package branch implements the business operations of the loom store:
// session and branch creation, forking, appends, merge and cherry-pick,
// archival, cleanup, and search. Every multi-row mutation runs through one
// repository transaction.
package branch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/eventstream"
	"github.com/loomworks/loom/pkg/eventstream/nop"
	"github.com/loomworks/loom/pkg/storage"
)

const (
	// DefaultSessionTTL is the default session expiry window.
	DefaultSessionTTL = 30 * 24 * time.Hour

	// RootBranchName is the name of every session's implicit root branch.
	RootBranchName = "main"

	// updateRetries bounds read-modify-write retries on optimistic-lock
	// conflicts for convenience operations that own both read and write.
	updateRetries = 3
)

// Service exposes the branch store's business operations. It is the only
// caller of the repository's transactional mutations.
type Service struct {
	repo   storage.Repository
	busy   *tracker
	events eventstream.Publisher
	log    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(p eventstream.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// NewService creates a Service over the given repository.
func NewService(repo storage.Repository, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		busy:   newTracker(),
		events: nop.NewPublisher(),
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a session with its implicit root branch and makes it
// current, all in one transaction.
func (s *Service) CreateSession(ctx context.Context, name string) (*conversation.Session, *conversation.Branch, error) {
	session := conversation.NewSession(name, DefaultSessionTTL)
	root := conversation.NewBranch(session.ID, nil, RootBranchName, "", 0)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.repo.CreateSessionTx(ctx, tx, session); err != nil {
			return err
		}
		if err := s.repo.SetCurrentSessionTx(ctx, tx, session.ID); err != nil {
			return err
		}
		session.Current = true
		return s.repo.CreateBranchTx(ctx, tx, root)
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Debug("session created", "session", session.ID, "name", name)
	s.publish(ctx, eventstream.NewBranchEvent(eventstream.EventTypeBranchCreated, root, 0))
	return session, root, nil
}

// RenameSession renames a session guarded by the caller's optimistic version
// token. A stale token surfaces as ConcurrentModification; the caller must
// reload and retry with a fresh version.
func (s *Service) RenameSession(ctx context.Context, id, name string, version int) (*conversation.Session, error) {
	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	session.Name = name
	session.Version = version

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.UpdateSessionTx(ctx, tx, session)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ExtendExpiry pushes the session's expiry out by ttl. It owns the whole
// read-modify-write cycle, so optimistic-lock conflicts are retried with a
// fresh read, bounded by a small attempt count.
func (s *Service) ExtendExpiry(ctx context.Context, id string, ttl time.Duration) (*conversation.Session, error) {
	var lastErr error
	for attempt := 0; attempt < updateRetries; attempt++ {
		session, err := s.repo.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}

		session.ExpiresAt = time.Now().UTC().Add(ttl)
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return s.repo.UpdateSessionTx(ctx, tx, session)
		})
		if err == nil {
			return session, nil
		}

		var concurrent *storage.ErrConcurrentModification
		if !errors.As(err, &concurrent) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// SwitchSession moves the is-current flag to the given session.
func (s *Service) SwitchSession(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.SetCurrentSessionTx(ctx, tx, id)
	})
}

// ForkRequest describes a fork operation.
type ForkRequest struct {
	SessionID string
	ParentID  string

	// ForkAt is the parent sequence number to diverge at. Nil forks at the
	// parent's current tip.
	ForkAt *int

	// Name is the branch name. Empty derives one from the conversation
	// topic near the fork point, falling back to a timestamp.
	Name        string
	Description string

	// Metadata seeds the branch's metadata (presets, tags).
	Metadata map[string]string
}

// Fork creates a new active branch whose history is identical to the
// parent's at the fork point. Forking is allowed from any parent status:
// archived and merged branches still reference valid messages.
func (s *Service) Fork(ctx context.Context, req ForkRequest) (*conversation.Branch, error) {
	parent, err := s.repo.GetBranch(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}
	if parent.SessionID != req.SessionID {
		return nil, &storage.ErrNotFound{Kind: "branch", ID: req.ParentID}
	}

	parentCount, err := s.repo.MessageCount(ctx, req.ParentID)
	if err != nil {
		return nil, err
	}

	forkAt := parentCount
	if req.ForkAt != nil {
		forkAt = *req.ForkAt
	}
	if forkAt < 0 || forkAt > parentCount {
		return nil, &storage.ErrInvalidForkPoint{
			ParentID:  req.ParentID,
			ForkPoint: forkAt,
			Messages:  parentCount,
		}
	}

	name := req.Name
	if name == "" {
		history, err := s.repo.ResolveHistory(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		name = autoName(history, forkAt)
	}

	b := conversation.NewBranch(req.SessionID, &parent.ID, name, req.Description, forkAt)
	for k, v := range req.Metadata {
		b.Metadata[k] = v
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.CreateBranchTx(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("branch forked", "branch", b.ID, "parent", parent.ID, "fork_at", forkAt)
	s.publish(ctx, eventstream.NewBranchEvent(eventstream.EventTypeBranchCreated, b, forkAt))
	return b, nil
}

// AddMessage appends one dialogue turn to a branch. This is the only path
// through which user and assistant turns enter the store. Busy branches
// reject the append; inactive branches surface BranchNotActive from the
// repository.
func (s *Service) AddMessage(ctx context.Context, branchID string, role conversation.Role, content string) (*conversation.Turn, error) {
	if s.busy.isBusy(branchID) {
		return nil, &ErrBranchBusy{BranchID: branchID}
	}
	return s.append(ctx, branchID, role, content)
}

// append performs the transactional append without consulting the busy
// flag. Reply tokens use it to land the model's response on the branch they
// hold busy.
func (s *Service) append(ctx context.Context, branchID string, role conversation.Role, content string) (*conversation.Turn, error) {
	b, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	m := conversation.NewMessage(b.SessionID, role, content)
	var seq int
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		seq, err = s.repo.AppendMessageTx(ctx, tx, branchID, m)
		if err != nil {
			return err
		}
		return s.repo.TouchBranchTx(ctx, tx, branchID)
	})
	if err != nil {
		return nil, err
	}

	return &conversation.Turn{Sequence: seq, Message: *m}, nil
}

// Reply holds a branch's busy flag for the duration of a model call. The
// network call happens outside any storage transaction; only the final
// Append is transactional. Dropping the reply without appending (user
// cancellation) leaves the store exactly as it was.
type Reply struct {
	svc      *Service
	branchID string
	done     bool
}

// BeginReply marks the branch busy so concurrent commands against it are
// rejected with BranchBusy until the reply completes or is cancelled.
func (s *Service) BeginReply(ctx context.Context, branchID string) (*Reply, error) {
	b, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if b.Status != conversation.StatusActive {
		return nil, &storage.ErrBranchNotActive{BranchID: branchID, Status: b.Status}
	}

	if !s.busy.acquire(branchID) {
		return nil, &ErrBranchBusy{BranchID: branchID}
	}
	return &Reply{svc: s, branchID: branchID}, nil
}

// Append lands the model's response on the busy branch.
func (r *Reply) Append(ctx context.Context, role conversation.Role, content string) (*conversation.Turn, error) {
	return r.svc.append(ctx, r.branchID, role, content)
}

// Close releases the busy flag. Safe to call more than once.
func (r *Reply) Close() {
	if r.done {
		return
	}
	r.done = true
	r.svc.busy.release(r.branchID)
}

// Busy reports whether a branch currently holds a reply in flight.
func (s *Service) Busy(branchID string) bool {
	return s.busy.isBusy(branchID)
}

// Archive transitions a branch to archived. Archiving an already-archived
// branch is a no-op: no error, and last-activity is left untouched.
func (s *Service) Archive(ctx context.Context, branchID string) (*conversation.Branch, error) {
	if s.busy.isBusy(branchID) {
		return nil, &ErrBranchBusy{BranchID: branchID}
	}

	b, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	if b.Status == conversation.StatusArchived {
		return b, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.repo.UpdateBranchStatusTx(ctx, tx, branchID, conversation.StatusArchived); err != nil {
			return err
		}
		return s.repo.TouchBranchTx(ctx, tx, branchID)
	})
	if err != nil {
		return nil, err
	}

	b.Status = conversation.StatusArchived
	s.publish(ctx, eventstream.NewBranchEvent(eventstream.EventTypeBranchArchived, b, 0))
	return b, nil
}

// Reactivate returns an archived branch to active. This is cleanup's undo:
// archive never destroys anything, so undo is a plain transition back.
func (s *Service) Reactivate(ctx context.Context, branchID string) (*conversation.Branch, error) {
	b, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.repo.UpdateBranchStatusTx(ctx, tx, branchID, conversation.StatusActive); err != nil {
			return err
		}
		return s.repo.TouchBranchTx(ctx, tx, branchID)
	})
	if err != nil {
		return nil, err
	}

	b.Status = conversation.StatusActive
	return b, nil
}

// Delete permanently removes an archived or merged branch. The default
// lifecycle is archive; deletion is the explicit second step for branches
// the user has already shelved (and, ideally, exported). Active branches,
// session roots, and branches with children are refused. Messages are left
// in place: they may be shared with other branches.
func (s *Service) Delete(ctx context.Context, branchID string) error {
	if s.busy.isBusy(branchID) {
		return &ErrBranchBusy{BranchID: branchID}
	}

	b, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return err
	}
	if b.Root() {
		return fmt.Errorf("refusing to delete the session root branch %s", branchID)
	}
	if b.Status == conversation.StatusActive {
		return fmt.Errorf("branch %s is active, archive it before deleting", branchID)
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.DeleteBranchTx(ctx, tx, branchID)
	})
}

// SetMetadata upserts one metadata key on a branch.
func (s *Service) SetMetadata(ctx context.Context, branchID, key, value string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.SetMetadataTx(ctx, tx, branchID, key, value)
	})
}

// DeleteMetadata removes one metadata key from a branch.
func (s *Service) DeleteMetadata(ctx context.Context, branchID, key string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.DeleteMetadataTx(ctx, tx, branchID, key)
	})
}

// Rename updates a branch's name and description.
func (s *Service) Rename(ctx context.Context, branchID, name, description string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.repo.UpdateBranchTx(ctx, tx, branchID, name, description)
	})
}

// History returns the branch's resolved message sequence.
func (s *Service) History(ctx context.Context, branchID string) ([]*conversation.Turn, error) {
	return s.repo.ResolveHistory(ctx, branchID)
}

// Branch returns one branch with its metadata.
func (s *Service) Branch(ctx context.Context, branchID string) (*conversation.Branch, error) {
	return s.repo.GetBranch(ctx, branchID)
}

// Branches lists a session's branches.
func (s *Service) Branches(ctx context.Context, sessionID string, filter storage.BranchFilter) ([]*conversation.Branch, error) {
	return s.repo.ListBranches(ctx, sessionID, filter)
}

// Session returns one session.
func (s *Service) Session(ctx context.Context, id string) (*conversation.Session, error) {
	return s.repo.GetSession(ctx, id)
}

// Sessions lists all sessions.
func (s *Service) Sessions(ctx context.Context) ([]*conversation.Session, error) {
	return s.repo.ListSessions(ctx)
}

// CurrentSession returns the session carrying the is-current flag.
func (s *Service) CurrentSession(ctx context.Context) (*conversation.Session, error) {
	return s.repo.CurrentSession(ctx)
}

// Search matches message content within a session, or everywhere when
// sessionID is empty.
func (s *Service) Search(ctx context.Context, sessionID, query string) ([]*storage.SearchHit, error) {
	return s.repo.SearchMessages(ctx, sessionID, query)
}

// publish emits a lifecycle event after a committed mutation. Publishing is
// best-effort: a failed emit is logged and never fails the operation.
func (s *Service) publish(ctx context.Context, event *eventstream.BranchEvent) {
	if err := s.events.PublishBranchEvent(ctx, event); err != nil {
		s.log.Warn("publishing branch event failed",
			"event_type", event.EventType, "branch", event.BranchID, "err", err)
	}
}
