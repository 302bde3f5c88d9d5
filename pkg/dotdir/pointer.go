package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	pointerFile = "pointer.json"
)

// Pointer represents the persisted working position: the session and branch
// subsequent commands act on when no explicit flag is given.
type Pointer struct {
	// SessionID is the id of the session the CLI is working inside.
	SessionID string `json:"session_id"`

	// BranchID is the id of the branch new messages land on.
	BranchID string `json:"branch_id"`

	// BranchName is kept alongside the id for display without a lookup.
	BranchName string `json:"branch_name,omitempty"`
}

// LoadPointer loads the pointer state from a target .loom/pointer.json.
// Returns nil, nil if no pointer exists (fresh workspace).
// If overrideDir is non-empty, it is used instead of the default ~/.loom/ location.
func (m *Manager) LoadPointer(overrideDir string) (*Pointer, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, pointerFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading pointer state: %w", err)
	}

	p := &Pointer{}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing pointer state: %w", err)
	}

	return p, nil
}

// SavePointer persists the pointer state to a target .loom/pointer.json.
func (m *Manager) SavePointer(p *Pointer, overrideDir string) error {
	if p == nil {
		return errors.New("cannot save nil pointer state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling pointer state: %w", err)
	}

	path := filepath.Join(dir, pointerFile)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // pointer state is not sensitive
		return fmt.Errorf("writing pointer state: %w", err)
	}

	return nil
}

// ClearPointer removes the pointer state file.
// The next command starts without a working branch until one is selected.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearPointer(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, pointerFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing pointer state: %w", err)
	}

	return nil
}
