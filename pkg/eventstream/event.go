// Package eventstream defines transport-neutral branch lifecycle events and
// the Publisher interface used to emit them after a committed mutation.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomworks/loom/pkg/conversation"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeBranchCreated is emitted after a branch is created or forked.
	EventTypeBranchCreated = "loom.branch.created"

	// EventTypeBranchMerged is emitted for each source branch folded into a
	// target by a committed merge.
	EventTypeBranchMerged = "loom.branch.merged"

	// EventTypeBranchArchived is emitted when a branch is archived, whether
	// manually or by cleanup.
	EventTypeBranchArchived = "loom.branch.archived"
)

// BranchEvent is a transport-neutral payload describing one branch lifecycle
// change. Events are emitted only after the underlying transaction commits,
// so consumers never observe a state the store rolled back.
type BranchEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	SessionID string  `json:"session_id"`
	BranchID  string  `json:"branch_id"`
	ParentID  *string `json:"parent_branch_id,omitempty"`

	Name   string              `json:"name"`
	Status conversation.Status `json:"status"`

	// MessageCount is the branch's message count at emission time.
	MessageCount int `json:"message_count"`

	// TargetBranchID is set on merge events: the branch the source was
	// folded into.
	TargetBranchID string `json:"target_branch_id,omitempty"`
}

// NewBranchEvent builds an event of the given type from a branch snapshot.
func NewBranchEvent(eventType string, b *conversation.Branch, messageCount int) *BranchEvent {
	return &BranchEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     b.SessionID,
		BranchID:      b.ID,
		ParentID:      b.ParentID,
		Name:          b.Name,
		Status:        b.Status,
		MessageCount:  messageCount,
	}
}
