// Package conversation defines the domain model for the loom store: sessions,
// branches, messages, and the branch/message association that gives every
// branch its ordered history.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a branch.
type Status string

const (
	// StatusActive marks a branch that accepts new messages.
	StatusActive Status = "active"

	// StatusArchived marks a branch that has been shelved. Archived branches
	// are read-only but can be reactivated (cleanup is always undoable).
	StatusArchived Status = "archived"

	// StatusMerged marks a branch whose unique content has been folded into
	// another branch. Terminal.
	StatusMerged Status = "merged"
)

// Valid reports whether s is a known branch status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusArchived, StatusMerged:
		return true
	}
	return false
}

// CanTransition reports whether a branch may move from s to next.
// Active branches may be archived or merged. Archived branches may be
// reactivated so that cleanup can be undone. Merged branches stay read-only
// forever but may be shelved into archived by cleanup.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusActive:
		return next == StatusArchived || next == StatusMerged
	case StatusArchived:
		return next == StatusActive
	case StatusMerged:
		return next == StatusArchived
	}
	return false
}

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is a known message role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Well-known branch metadata keys. Metadata is an open key/value bag so
// derived facts can be cached without schema churn.
const (
	MetaBookmark     = "bookmark"
	MetaQualityScore = "quality_score"
	MetaTags         = "tags"
	MetaPreset       = "preset"
	MetaFeedback     = "feedback"
)

// Session is a top-level conversation container. A session owns exactly one
// root branch ("main") and zero or more descendant branches.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// ExpiresAt is when the session becomes eligible for expiry handling.
	ExpiresAt time.Time `json:"expires_at"`

	// Current marks the session the CLI is pointed at.
	Current bool `json:"current"`

	// Version is the optimistic-lock token, incremented on every
	// session-level write. A stale version surfaces as a
	// ConcurrentModification error instead of silently overwriting.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
}

// Branch is a node in a per-session tree. Following ParentID from any branch
// terminates at the session root (ParentID == nil) with no cycles.
type Branch struct {
	ID        string  `json:"id"`
	SessionID string  `json:"session_id"`
	ParentID  *string `json:"parent_branch_id,omitempty"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`

	// ForkPoint is the parent sequence number this branch diverged at.
	// Zero for the session root.
	ForkPoint int `json:"fork_point"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`

	// Metadata holds free-form key/value properties (tags, bookmark flag,
	// cached quality score).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Root reports whether the branch is its session's root.
func (b *Branch) Root() bool {
	return b.ParentID == nil
}

// Bookmarked reports whether the branch carries the bookmark metadata flag.
func (b *Branch) Bookmarked() bool {
	return b.Metadata[MetaBookmark] == "true"
}

// Message is one dialogue turn. Immutable once written; shared by reference
// across branches, so forking never duplicates message rows.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is a message as it appears on a specific branch: the message plus its
// branch-local sequence number. Sequence numbers are contiguous from 1.
type Turn struct {
	Sequence int `json:"sequence"`
	Message
}

// NewID returns a fresh uuid string for any entity in the store.
func NewID() string {
	return uuid.NewString()
}

// NewSession constructs a session with a fresh id and version 1.
func NewSession(name string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        NewID(),
		Name:      name,
		ExpiresAt: now.Add(ttl),
		Version:   1,
		CreatedAt: now,
	}
}

// NewBranch constructs an active branch under the given parent. A nil parent
// id makes it a session root.
func NewBranch(sessionID string, parentID *string, name, description string, forkPoint int) *Branch {
	now := time.Now().UTC()
	return &Branch{
		ID:           NewID(),
		SessionID:    sessionID,
		ParentID:     parentID,
		Name:         name,
		Description:  description,
		Status:       StatusActive,
		ForkPoint:    forkPoint,
		CreatedAt:    now,
		LastActivity: now,
		Metadata:     map[string]string{},
	}
}

// NewMessage constructs a message owned by the given session.
func NewMessage(sessionID string, role Role, content string) *Message {
	return &Message{
		ID:        NewID(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
