package branch

import (
	"fmt"
	"sync"
)

// ErrBranchBusy signals that a branch is waiting on a model response and
// cannot accept a concurrent command. This is an expected, recoverable
// condition; callers surface it to the user rather than logging a failure.
type ErrBranchBusy struct {
	BranchID string
}

func (e *ErrBranchBusy) Error() string {
	return fmt.Sprintf("branch %s is busy responding", e.BranchID)
}

// tracker records which branches are currently waiting on a network call.
// The flag is ordinary shared state guarded by a mutex, deliberately not a
// database lock: the network call must never hold a transaction open, so
// the busy window is tracked outside the store entirely. Tracking is
// per-branch; operations against other branches proceed unaffected.
type tracker struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func newTracker() *tracker {
	return &tracker{busy: make(map[string]struct{})}
}

// acquire marks the branch busy. Returns false if it already was.
func (t *tracker) acquire(branchID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.busy[branchID]; ok {
		return false
	}
	t.busy[branchID] = struct{}{}
	return true
}

// release clears the branch's busy flag.
func (t *tracker) release(branchID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.busy, branchID)
}

// isBusy reports whether the branch is currently busy.
func (t *tracker) isBusy(branchID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.busy[branchID]
	return ok
}
