// Package manager layers convenience operations over the branch service:
// preset branches for common workflows, bookmarking, and context-aware
// navigation suggestions.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/tree"
)

// Preset identifies a branch creation preset.
type Preset string

const (
	// PresetExplore marks a branch for trying an alternative approach.
	PresetExplore Preset = "explore"

	// PresetDebug marks a branch for isolating a problem.
	PresetDebug Preset = "debug"
)

// Manager wraps the branch service with higher-level conveniences.
type Manager struct {
	svc     *branch.Service
	weights tree.ScoreWeights
}

// New creates a Manager. Zero weights fall back to the defaults.
func New(svc *branch.Service, weights tree.ScoreWeights) *Manager {
	if weights == (tree.ScoreWeights{}) {
		weights = tree.DefaultScoreWeights()
	}
	return &Manager{svc: svc, weights: weights}
}

// Service exposes the underlying branch service.
func (m *Manager) Service() *branch.Service {
	return m.svc
}

// ForkPreset forks a branch with preset naming and metadata. The name is
// prefixed with the preset so exploration and debug branches group together
// in listings.
func (m *Manager) ForkPreset(ctx context.Context, req branch.ForkRequest, preset Preset) (*conversation.Branch, error) {
	switch preset {
	case PresetExplore, PresetDebug:
	default:
		return nil, fmt.Errorf("unknown branch preset %q", preset)
	}

	if req.Name != "" {
		req.Name = string(preset) + "/" + req.Name
	} else {
		req.Name = string(preset) + "/" + time.Now().UTC().Format("0102-1504")
	}

	if req.Metadata == nil {
		req.Metadata = map[string]string{}
	}
	req.Metadata[conversation.MetaPreset] = string(preset)

	return m.svc.Fork(ctx, req)
}

// Bookmark flags a branch so cleanup passes skip it.
func (m *Manager) Bookmark(ctx context.Context, branchID string) error {
	return m.svc.SetMetadata(ctx, branchID, conversation.MetaBookmark, "true")
}

// Unbookmark clears the bookmark flag.
func (m *Manager) Unbookmark(ctx context.Context, branchID string) error {
	return m.svc.DeleteMetadata(ctx, branchID, conversation.MetaBookmark)
}

// Bookmarked lists a session's bookmarked branches.
func (m *Manager) Bookmarked(ctx context.Context, sessionID string) ([]*conversation.Branch, error) {
	return m.svc.Branches(ctx, sessionID, storage.BranchFilter{Bookmarked: true})
}

// RecordFeedback stores explicit user feedback in [0, 1] on a branch, which
// feeds the quality score.
func (m *Manager) RecordFeedback(ctx context.Context, branchID string, score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("feedback score %v outside [0, 1]", score)
	}
	return m.svc.SetMetadata(ctx, branchID, conversation.MetaFeedback,
		fmt.Sprintf("%.2f", score))
}

// SessionTree builds the in-memory tree for a session.
func (m *Manager) SessionTree(ctx context.Context, sessionID string) (*tree.Tree, error) {
	branches, err := m.svc.Branches(ctx, sessionID, storage.BranchFilter{})
	if err != nil {
		return nil, err
	}
	return tree.Build(branches)
}

// Suggest ranks the current branch's neighbors by quality score.
func (m *Manager) Suggest(ctx context.Context, sessionID, currentID string) ([]tree.Suggestion, error) {
	t, err := m.SessionTree(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	node := t.Get(currentID)
	if node == nil {
		return nil, &storage.ErrNotFound{Kind: "branch", ID: currentID}
	}

	// Message counts for the scored neighborhood only.
	counts := map[string]int{}
	neighborhood := append([]*tree.Node{}, node.Children...)
	neighborhood = append(neighborhood, t.Siblings(currentID)...)
	if node.Parent != nil {
		neighborhood = append(neighborhood, node.Parent)
	}
	for _, n := range neighborhood {
		count, err := m.svc.History(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		counts[n.ID] = len(count)
	}

	return tree.Suggest(t, currentID, counts, time.Now().UTC(), m.weights), nil
}

// Compare resolves the given branches' histories and aligns them by turn
// index.
func (m *Manager) Compare(ctx context.Context, branchIDs []string) (*tree.Comparison, error) {
	if len(branchIDs) < 2 {
		return nil, fmt.Errorf("compare requires at least two branches")
	}

	histories := make([]tree.BranchHistory, 0, len(branchIDs))
	for _, id := range branchIDs {
		b, err := m.svc.Branch(ctx, id)
		if err != nil {
			return nil, err
		}
		turns, err := m.svc.History(ctx, id)
		if err != nil {
			return nil, err
		}
		histories = append(histories, tree.BranchHistory{Branch: b, Turns: turns})
	}

	return tree.Compare(histories), nil
}

// ScoreBranch computes and caches a branch's quality score in its metadata.
func (m *Manager) ScoreBranch(ctx context.Context, branchID string) (float64, error) {
	b, err := m.svc.Branch(ctx, branchID)
	if err != nil {
		return 0, err
	}
	turns, err := m.svc.History(ctx, branchID)
	if err != nil {
		return 0, err
	}

	score := tree.Score(b, len(turns), time.Now().UTC(), m.weights)
	err = m.svc.SetMetadata(ctx, branchID, conversation.MetaQualityScore,
		fmt.Sprintf("%.2f", score))
	if err != nil {
		return 0, err
	}
	return score, nil
}
