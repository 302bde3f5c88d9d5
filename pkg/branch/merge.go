package branch

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/eventstream"
	"github.com/loomworks/loom/pkg/storage"
)

// Strategy selects how a merge resolves conflicting turns.
type Strategy string

const (
	// StrategyKeepTarget discards conflicting source content.
	StrategyKeepTarget Strategy = "keep-target"

	// StrategyKeepSource keeps the conflicting content from the later
	// source in the merge order.
	StrategyKeepSource Strategy = "keep-source"

	// StrategyManual aborts the whole merge when any conflict exists,
	// returning the conflicting pairs for the caller to resolve.
	StrategyManual Strategy = "manual"
)

// Valid reports whether s is a known merge strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyKeepTarget, StrategyKeepSource, StrategyManual:
		return true
	}
	return false
}

// ConflictSide is one half of a conflicting pair.
type ConflictSide struct {
	BranchID  string `json:"branch_id"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

// Conflict is a pair of messages from different sources that occupy the same
// logical turn position but diverge in content.
type Conflict struct {
	Position int          `json:"position"`
	Ours     ConflictSide `json:"ours"`
	Theirs   ConflictSide `json:"theirs"`
}

// MergeConflictError aborts a manual-strategy merge. It carries every
// conflicting pair so the caller can re-invoke with explicit choices.
type MergeConflictError struct {
	Conflicts []Conflict
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge aborted: %d conflicting turn position(s)", len(e.Conflicts))
}

// MergeResult summarizes a committed merge or cherry-pick.
type MergeResult struct {
	TargetID string `json:"target_id"`

	// Appended lists the message ids attached to the target, in order.
	Appended []string `json:"appended"`

	// Merged lists the source branches transitioned to merged. Empty for
	// cherry-picks, which leave the source untouched.
	Merged []string `json:"merged,omitempty"`

	// ConflictsResolved counts conflicts settled by the strategy.
	ConflictsResolved int `json:"conflicts_resolved"`
}

// candidate is one source turn competing for a logical position on target.
type candidate struct {
	sourceIdx int
	branchID  string
	turn      *conversation.Turn
}

// Merge folds each source's exclusive messages into target, resolving
// conflicts by strategy, and transitions every source to merged. The whole
// operation is one transaction: either every source transitions and all
// surviving messages are appended, or nothing happens.
func (s *Service) Merge(ctx context.Context, sources []string, target string, strategy Strategy) (*MergeResult, error) {
	if !strategy.Valid() {
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("merge requires at least one source branch")
	}

	if s.busy.isBusy(target) {
		return nil, &ErrBranchBusy{BranchID: target}
	}
	for _, src := range sources {
		if s.busy.isBusy(src) {
			return nil, &ErrBranchBusy{BranchID: src}
		}
	}

	tb, err := s.repo.GetBranch(ctx, target)
	if err != nil {
		return nil, err
	}
	if tb.Status != conversation.StatusActive {
		return nil, &storage.ErrBranchNotActive{BranchID: target, Status: tb.Status}
	}

	targetHistory, err := s.repo.ResolveHistory(ctx, target)
	if err != nil {
		return nil, err
	}
	onTarget := make(map[string]struct{}, len(targetHistory))
	for _, t := range targetHistory {
		onTarget[t.Message.ID] = struct{}{}
	}

	// Collect each source's exclusive turns, keyed by their source-local
	// position. Messages already on target by shared ancestry are not
	// exclusive and drop out here.
	srcBranches := make([]*conversation.Branch, 0, len(sources))
	byPosition := map[int][]candidate{}
	for i, srcID := range sources {
		sb, err := s.repo.GetBranch(ctx, srcID)
		if err != nil {
			return nil, err
		}
		if sb.SessionID != tb.SessionID {
			return nil, &storage.ErrNotFound{Kind: "branch", ID: srcID}
		}
		if sb.Status != conversation.StatusActive {
			return nil, &storage.ErrBranchNotActive{BranchID: srcID, Status: sb.Status}
		}
		srcBranches = append(srcBranches, sb)

		history, err := s.repo.ResolveHistory(ctx, srcID)
		if err != nil {
			return nil, err
		}
		for _, t := range history {
			if _, shared := onTarget[t.Message.ID]; shared {
				continue
			}
			byPosition[t.Sequence] = append(byPosition[t.Sequence], candidate{
				sourceIdx: i,
				branchID:  srcID,
				turn:      t,
			})
		}
	}

	winners, conflicts := resolve(byPosition, strategy)
	if strategy == StrategyManual && len(conflicts) > 0 {
		// Nothing has been written: no transaction ran, so no messages were
		// appended and no status changed.
		return nil, &MergeConflictError{Conflicts: conflicts}
	}

	// Append in source-then-sequence order, deduplicating messages shared
	// between sources.
	result := &MergeResult{TargetID: target, ConflictsResolved: len(conflicts)}
	attached := map[string]struct{}{}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, w := range winners {
			id := w.turn.Message.ID
			if _, dup := attached[id]; dup {
				continue
			}
			if _, err := s.repo.AttachMessageTx(ctx, tx, target, id); err != nil {
				return err
			}
			attached[id] = struct{}{}
			result.Appended = append(result.Appended, id)
		}
		if err := s.repo.TouchBranchTx(ctx, tx, target); err != nil {
			return err
		}

		for _, sb := range srcBranches {
			if err := s.repo.UpdateBranchStatusTx(ctx, tx, sb.ID, conversation.StatusMerged); err != nil {
				return err
			}
			if err := s.repo.TouchBranchTx(ctx, tx, sb.ID); err != nil {
				return err
			}
			result.Merged = append(result.Merged, sb.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("merge committed",
		"target", target, "sources", len(sources),
		"appended", len(result.Appended), "conflicts", result.ConflictsResolved)

	for _, sb := range srcBranches {
		sb.Status = conversation.StatusMerged
		event := eventstream.NewBranchEvent(eventstream.EventTypeBranchMerged, sb, 0)
		event.TargetBranchID = target
		s.publish(ctx, event)
	}
	return result, nil
}

// resolve settles the per-position candidates under the given strategy.
// Returned winners are ordered source-then-sequence. Conflicts are reported
// as pairs: the first candidate at a position against every later candidate
// that diverges in content.
func resolve(byPosition map[int][]candidate, strategy Strategy) ([]candidate, []Conflict) {
	var conflicts []Conflict
	conflicted := map[int]bool{}

	for pos, cands := range byPosition {
		for _, c := range cands[1:] {
			if c.turn.Message.Content == cands[0].turn.Message.Content {
				continue
			}
			conflicted[pos] = true
			conflicts = append(conflicts, Conflict{
				Position: pos,
				Ours:     side(cands[0]),
				Theirs:   side(c),
			})
		}
	}

	var winners []candidate
	for pos, cands := range byPosition {
		switch {
		case !conflicted[pos]:
			// Identical content from several sources collapses to the
			// first occurrence.
			winners = append(winners, cands[0])
		case strategy == StrategyKeepSource:
			winners = append(winners, cands[len(cands)-1])
		case strategy == StrategyKeepTarget:
			// Conflicting source content is discarded entirely.
		}
	}

	sortCandidates(winners)
	sortConflicts(conflicts)
	return winners, conflicts
}

func side(c candidate) ConflictSide {
	return ConflictSide{
		BranchID:  c.branchID,
		MessageID: c.turn.Message.ID,
		Content:   c.turn.Message.Content,
	}
}

func sortCandidates(cands []candidate) {
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].sourceIdx != cands[j].sourceIdx {
			return cands[i].sourceIdx < cands[j].sourceIdx
		}
		return cands[i].turn.Sequence < cands[j].turn.Sequence
	})
}

func sortConflicts(conflicts []Conflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Position < conflicts[j].Position
	})
}

// SelectiveMerge cherry-picks the chosen messages from source onto the end
// of target's sequence, in source order, regardless of their position in
// source. The source branch's status is left untouched. Any id that does
// not belong to source fails the whole operation with InvalidSelection.
func (s *Service) SelectiveMerge(ctx context.Context, source, target string, messageIDs []string) (*MergeResult, error) {
	if len(messageIDs) == 0 {
		return nil, fmt.Errorf("cherry-pick requires at least one message id")
	}
	if s.busy.isBusy(target) {
		return nil, &ErrBranchBusy{BranchID: target}
	}

	if _, err := s.repo.GetBranch(ctx, source); err != nil {
		return nil, err
	}

	history, err := s.repo.ResolveHistory(ctx, source)
	if err != nil {
		return nil, err
	}
	onSource := make(map[string]*conversation.Turn, len(history))
	for _, t := range history {
		onSource[t.Message.ID] = t
	}

	var missing []string
	chosen := make([]*conversation.Turn, 0, len(messageIDs))
	for _, id := range messageIDs {
		t, ok := onSource[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		chosen = append(chosen, t)
	}
	if len(missing) > 0 {
		return nil, &storage.ErrInvalidSelection{BranchID: source, MessageIDs: missing}
	}

	sort.Slice(chosen, func(i, j int) bool { return chosen[i].Sequence < chosen[j].Sequence })

	result := &MergeResult{TargetID: target}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, t := range chosen {
			if _, err := s.repo.AttachMessageTx(ctx, tx, target, t.Message.ID); err != nil {
				return err
			}
			result.Appended = append(result.Appended, t.Message.ID)
		}
		return s.repo.TouchBranchTx(ctx, tx, target)
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("cherry-pick committed", "source", source, "target", target, "picked", len(result.Appended))
	return result, nil
}
