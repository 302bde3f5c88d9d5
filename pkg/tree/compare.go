package tree

import (
	"github.com/loomworks/loom/pkg/conversation"
)

// BranchHistory pairs a branch with its resolved message sequence for
// comparison.
type BranchHistory struct {
	Branch *conversation.Branch
	Turns  []*conversation.Turn
}

// Variant is one branch's message at a compared turn index. A nil Turn
// means the branch's history ended before that index.
type Variant struct {
	BranchID   string             `json:"branch_id"`
	BranchName string             `json:"branch_name"`
	Turn       *conversation.Turn `json:"turn,omitempty"`
}

// Divergence is one turn index at which the compared branches differ, with
// every branch's variant surfaced side by side. Diffing is whole-message;
// token-level diffing is out of scope.
type Divergence struct {
	Index    int       `json:"index"`
	Variants []Variant `json:"variants"`
}

// Comparison is the result of aligning N branch histories by turn index.
type Comparison struct {
	BranchIDs []string `json:"branch_ids"`

	// SharedPrefix is the number of leading turns identical across every
	// compared branch.
	SharedPrefix int `json:"shared_prefix"`

	Divergences []Divergence `json:"divergences"`
}

// Compare aligns the given histories by turn index. For indices where the
// branches diverge (different message ids with different content, or one
// history exhausted), every variant is surfaced.
func Compare(histories []BranchHistory) *Comparison {
	c := &Comparison{}
	maxLen := 0
	for _, h := range histories {
		c.BranchIDs = append(c.BranchIDs, h.Branch.ID)
		if len(h.Turns) > maxLen {
			maxLen = len(h.Turns)
		}
	}

	prefixDone := false
	for i := 0; i < maxLen; i++ {
		if same, all := aligned(histories, i); same {
			if !prefixDone {
				c.SharedPrefix++
			}
			continue
		} else {
			prefixDone = true
			c.Divergences = append(c.Divergences, Divergence{Index: i + 1, Variants: all})
		}
	}

	return c
}

// aligned reports whether every history carries the same content at turn
// index i, and returns each branch's variant for divergence reporting.
func aligned(histories []BranchHistory, i int) (bool, []Variant) {
	variants := make([]Variant, 0, len(histories))
	var first *conversation.Turn
	same := true

	for idx, h := range histories {
		v := Variant{BranchID: h.Branch.ID, BranchName: h.Branch.Name}
		if i < len(h.Turns) {
			v.Turn = h.Turns[i]
		}
		variants = append(variants, v)

		switch {
		case idx == 0:
			first = v.Turn
		case (first == nil) != (v.Turn == nil):
			same = false
		case first != nil && v.Turn != nil && first.Message.Content != v.Turn.Message.Content:
			same = false
		}
	}

	return same, variants
}
