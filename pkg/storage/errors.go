package storage

import (
	"errors"
	"fmt"

	"github.com/loomworks/loom/pkg/conversation"
)

// ErrNotFound is returned when a session, branch, or message id is unknown.
type ErrNotFound struct {
	// Kind is the entity kind: "session", "branch", or "message".
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ErrInvalidForkPoint is returned when a fork point exceeds the parent
// branch's message count.
type ErrInvalidForkPoint struct {
	ParentID  string
	ForkPoint int
	Messages  int
}

func (e *ErrInvalidForkPoint) Error() string {
	return fmt.Sprintf("invalid fork point %d: parent branch %s has %d messages",
		e.ForkPoint, e.ParentID, e.Messages)
}

// ErrBranchNotActive is returned when appending to, or transitioning, a
// branch whose status forbids it.
type ErrBranchNotActive struct {
	BranchID string
	Status   conversation.Status
}

func (e *ErrBranchNotActive) Error() string {
	return fmt.Sprintf("branch %s is not active (status %q)", e.BranchID, e.Status)
}

// ErrInvalidTransition is returned when a status change violates the branch
// lifecycle transition table.
type ErrInvalidTransition struct {
	BranchID string
	From     conversation.Status
	To       conversation.Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("branch %s cannot transition from %q to %q", e.BranchID, e.From, e.To)
}

// ErrInvalidSelection is returned by cherry-pick when a chosen message does
// not belong to the source branch.
type ErrInvalidSelection struct {
	BranchID   string
	MessageIDs []string
}

func (e *ErrInvalidSelection) Error() string {
	return fmt.Sprintf("messages %v do not belong to branch %s", e.MessageIDs, e.BranchID)
}

// ErrConcurrentModification is returned when an optimistic version check
// fails. The caller must reload and retry; this is an expected, recoverable
// condition, not a failure.
type ErrConcurrentModification struct {
	SessionID string
	Version   int
}

func (e *ErrConcurrentModification) Error() string {
	return fmt.Sprintf("session %s was modified concurrently (stale version %d)", e.SessionID, e.Version)
}

// ErrStorage wraps an underlying transactional I/O error with operation
// context. It is the only error class considered unexpected; it always
// occurs inside a transaction that has been rolled back.
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error {
	return e.Err
}

// WrapErr wraps err as an *ErrStorage unless it is already one of the typed
// repository errors, which pass through untouched. Backends use this so that
// expected conditions keep their type while raw driver errors gain operation
// context.
func WrapErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		notFound    *ErrNotFound
		forkPoint   *ErrInvalidForkPoint
		notActive   *ErrBranchNotActive
		transition  *ErrInvalidTransition
		selection   *ErrInvalidSelection
		concurrent  *ErrConcurrentModification
		alreadyWrap *ErrStorage
	)
	switch {
	case errors.As(err, &notFound),
		errors.As(err, &forkPoint),
		errors.As(err, &notActive),
		errors.As(err, &transition),
		errors.As(err, &selection),
		errors.As(err, &concurrent),
		errors.As(err, &alreadyWrap):
		return err
	}

	return &ErrStorage{Op: op, Err: err}
}
