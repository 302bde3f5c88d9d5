package branch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/eventstream"
	"github.com/loomworks/loom/pkg/storage"
)

// CleanupStrategy selects which branches a cleanup pass archives. Cleanup
// never deletes: archive is non-destructive and reversible via Reactivate.
type CleanupStrategy string

const (
	// CleanupMaxAge archives active, unbookmarked branches with no activity
	// inside the age window.
	CleanupMaxAge CleanupStrategy = "max-age"

	// CleanupMerged archives merged, unbookmarked branches.
	CleanupMerged CleanupStrategy = "merged"

	// CleanupOrphans archives branches that were forked but never extended
	// (no messages beyond the fork point), have no children, and have seen
	// no activity inside the age window.
	CleanupOrphans CleanupStrategy = "orphans"
)

// Valid reports whether s is a known cleanup strategy.
func (s CleanupStrategy) Valid() bool {
	switch s {
	case CleanupMaxAge, CleanupMerged, CleanupOrphans:
		return true
	}
	return false
}

// CleanupOptions configures a cleanup pass.
type CleanupOptions struct {
	Strategy CleanupStrategy

	// MaxAge is the inactivity window for the age-based strategies.
	MaxAge time.Duration

	// DryRun reports the candidates without archiving anything.
	DryRun bool
}

// CleanupResult lists the branches a cleanup pass archived (or would
// archive, for a dry run), for audit and undo.
type CleanupResult struct {
	Strategy CleanupStrategy `json:"strategy"`
	Archived []string        `json:"archived"`
	DryRun   bool            `json:"dry_run,omitempty"`
}

// Cleanup bulk-archives the session's branches matching the strategy's
// predicate, in one transaction. Bookmarked branches and the session root
// are never touched.
func (s *Service) Cleanup(ctx context.Context, sessionID string, opts CleanupOptions) (*CleanupResult, error) {
	if !opts.Strategy.Valid() {
		return nil, fmt.Errorf("unknown cleanup strategy %q", opts.Strategy)
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 30 * 24 * time.Hour
	}

	branches, err := s.repo.ListBranches(ctx, sessionID, storage.BranchFilter{})
	if err != nil {
		return nil, err
	}

	children := map[string]int{}
	for _, b := range branches {
		if b.ParentID != nil {
			children[*b.ParentID]++
		}
	}

	cutoff := time.Now().UTC().Add(-opts.MaxAge)
	var candidates []*conversation.Branch
	for _, b := range branches {
		if b.Root() || b.Bookmarked() || s.busy.isBusy(b.ID) {
			continue
		}

		switch opts.Strategy {
		case CleanupMaxAge:
			if b.Status == conversation.StatusActive && b.LastActivity.Before(cutoff) {
				candidates = append(candidates, b)
			}

		case CleanupMerged:
			if b.Status == conversation.StatusMerged {
				candidates = append(candidates, b)
			}

		case CleanupOrphans:
			if b.Status != conversation.StatusActive || children[b.ID] > 0 || !b.LastActivity.Before(cutoff) {
				continue
			}
			count, err := s.repo.MessageCount(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			if count == b.ForkPoint {
				candidates = append(candidates, b)
			}
		}
	}

	result := &CleanupResult{Strategy: opts.Strategy, DryRun: opts.DryRun}
	for _, b := range candidates {
		result.Archived = append(result.Archived, b.ID)
	}
	if opts.DryRun || len(candidates) == 0 {
		return result, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, b := range candidates {
			if err := s.repo.UpdateBranchStatusTx(ctx, tx, b.ID, conversation.StatusArchived); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("cleanup archived branches",
		"session", sessionID, "strategy", string(opts.Strategy), "count", len(candidates))

	for _, b := range candidates {
		b.Status = conversation.StatusArchived
		s.publish(ctx, eventstream.NewBranchEvent(eventstream.EventTypeBranchArchived, b, 0))
	}
	return result, nil
}
