package tree

import (
	"sort"
	"time"
)

// Suggestion is one ranked navigation candidate relative to the current
// branch.
type Suggestion struct {
	BranchID   string  `json:"branch_id"`
	BranchName string  `json:"branch_name"`
	Relation   string  `json:"relation"`
	Score      float64 `json:"score"`
}

// Relations a suggestion can have to the current branch.
const (
	RelationChild   = "child"
	RelationSibling = "sibling"
	RelationParent  = "parent"
)

// Suggest ranks the current branch's neighbors (children first by relation
// preference, then siblings, then the parent) by quality score to help the
// user choose where to continue. counts maps branch id to message count.
func Suggest(t *Tree, currentID string, counts map[string]int, now time.Time, w ScoreWeights) []Suggestion {
	node := t.Get(currentID)
	if node == nil {
		return nil
	}

	var suggestions []Suggestion
	add := func(n *Node, relation string) {
		suggestions = append(suggestions, Suggestion{
			BranchID:   n.ID,
			BranchName: n.Name,
			Relation:   relation,
			Score:      Score(n.Branch, counts[n.ID], now, w),
		})
	}

	for _, c := range node.Children {
		add(c, RelationChild)
	}
	for _, s := range t.Siblings(currentID) {
		add(s, RelationSibling)
	}
	if node.Parent != nil {
		add(node.Parent, RelationParent)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Score > suggestions[j].Score
	})
	return suggestions
}
