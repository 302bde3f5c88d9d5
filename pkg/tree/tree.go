// Package tree holds the read-side algorithms over a session's branches:
// tree reconstruction, traversal and rendering, pairwise comparison, quality
// scoring, and navigation suggestions. Nothing in this package mutates the
// store.
package tree

import (
	"errors"
	"fmt"
	"sort"

	"github.com/loomworks/loom/pkg/conversation"
)

// Node wraps a branch with structural relationships for traversal.
type Node struct {
	*conversation.Branch

	Parent   *Node
	Children []*Node
}

// Tree is the in-memory view of one session's branch tree, assembled from a
// single scan of its branch rows.
type Tree struct {
	Root *Node

	// index provides O(1) lookup by branch id.
	index map[string]*Node
}

// Build assembles the tree from a session's branches. Linking is iterative,
// not recursive, so pathological inputs cannot exhaust the stack. Exactly
// one root is required; a branch referencing an unknown parent is an error.
func Build(branches []*conversation.Branch) (*Tree, error) {
	if len(branches) == 0 {
		return nil, errors.New("no branches to build tree from")
	}

	t := &Tree{index: make(map[string]*Node, len(branches))}
	for _, b := range branches {
		t.index[b.ID] = &Node{Branch: b}
	}

	for _, b := range branches {
		node := t.index[b.ID]
		if b.ParentID == nil {
			if t.Root != nil {
				return nil, fmt.Errorf("session has multiple root branches: %s and %s", t.Root.ID, b.ID)
			}
			t.Root = node
			continue
		}

		parent, ok := t.index[*b.ParentID]
		if !ok {
			return nil, fmt.Errorf("branch %s references unknown parent %s", b.ID, *b.ParentID)
		}
		node.Parent = parent
		parent.Children = append(parent.Children, node)
	}

	if t.Root == nil {
		return nil, errors.New("session has no root branch")
	}

	for _, node := range t.index {
		sort.Slice(node.Children, func(i, j int) bool {
			return node.Children[i].CreatedAt.Before(node.Children[j].CreatedAt)
		})
	}

	return t, nil
}

// Get returns the node for a branch id, or nil.
func (t *Tree) Get(id string) *Node {
	return t.index[id]
}

// Size returns the number of branches in the tree.
func (t *Tree) Size() int {
	return len(t.index)
}

// Walk traverses the tree depth-first, calling fn with each node and its
// depth. Returning false stops the traversal. The walk uses an explicit
// stack rather than recursion.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	type frame struct {
		node  *Node
		depth int
	}

	stack := []frame{{t.Root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !fn(f.node, f.depth) {
			return
		}

		// Push children in reverse so traversal visits them in order.
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], f.depth + 1})
		}
	}
}

// Depth returns the distance from the node to the root. Every well-formed
// tree terminates in at most Size steps; the bound guards against cyclic
// rows that should be impossible but would otherwise spin forever.
func (t *Tree) Depth(id string) (int, error) {
	node := t.index[id]
	if node == nil {
		return 0, fmt.Errorf("branch %s not in tree", id)
	}

	depth := 0
	for node.Parent != nil {
		node = node.Parent
		depth++
		if depth > len(t.index) {
			return 0, fmt.Errorf("branch %s does not terminate at the root", id)
		}
	}
	return depth, nil
}

// Siblings returns the node's siblings, excluding itself.
func (t *Tree) Siblings(id string) []*Node {
	node := t.index[id]
	if node == nil || node.Parent == nil {
		return nil
	}

	siblings := make([]*Node, 0, len(node.Parent.Children)-1)
	for _, c := range node.Parent.Children {
		if c.ID != id {
			siblings = append(siblings, c)
		}
	}
	return siblings
}

// BranchPoints returns every node with more than one child.
func (t *Tree) BranchPoints() []*Node {
	var points []*Node
	t.Walk(func(n *Node, _ int) bool {
		if len(n.Children) > 1 {
			points = append(points, n)
		}
		return true
	})
	return points
}
