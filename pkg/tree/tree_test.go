package tree_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/tree"
)

// mkBranch builds a test branch with a deterministic creation time so child
// ordering is stable.
func mkBranch(id string, parent *string, name string, createdOffset time.Duration) *conversation.Branch {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &conversation.Branch{
		ID:           id,
		SessionID:    "sess",
		ParentID:     parent,
		Name:         name,
		Status:       conversation.StatusActive,
		CreatedAt:    base.Add(createdOffset),
		LastActivity: base.Add(createdOffset),
		Metadata:     map[string]string{},
	}
}

func ptr(s string) *string { return &s }

var _ = Describe("Build", func() {
	It("assembles parent and child links from flat rows", func() {
		branches := []*conversation.Branch{
			mkBranch("root", nil, "main", 0),
			mkBranch("a", ptr("root"), "a", time.Minute),
			mkBranch("b", ptr("root"), "b", 2*time.Minute),
			mkBranch("a1", ptr("a"), "a1", 3*time.Minute),
		}

		t, err := tree.Build(branches)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Size()).To(Equal(4))
		Expect(t.Root.ID).To(Equal("root"))
		Expect(t.Root.Children).To(HaveLen(2))
		Expect(t.Root.Children[0].ID).To(Equal("a"))
		Expect(t.Root.Children[1].ID).To(Equal("b"))
		Expect(t.Get("a1").Parent.ID).To(Equal("a"))
	})

	It("rejects an empty branch set", func() {
		_, err := tree.Build(nil)
		Expect(err).To(HaveOccurred())
	})

	It("rejects multiple roots", func() {
		_, err := tree.Build([]*conversation.Branch{
			mkBranch("r1", nil, "one", 0),
			mkBranch("r2", nil, "two", time.Minute),
		})
		Expect(err).To(MatchError(ContainSubstring("multiple root branches")))
	})

	It("rejects a branch with an unknown parent", func() {
		_, err := tree.Build([]*conversation.Branch{
			mkBranch("root", nil, "main", 0),
			mkBranch("lost", ptr("missing"), "lost", time.Minute),
		})
		Expect(err).To(MatchError(ContainSubstring("unknown parent")))
	})
})

var _ = Describe("Walk", func() {
	var t *tree.Tree

	BeforeEach(func() {
		var err error
		t, err = tree.Build([]*conversation.Branch{
			mkBranch("root", nil, "main", 0),
			mkBranch("a", ptr("root"), "a", time.Minute),
			mkBranch("a1", ptr("a"), "a1", 2*time.Minute),
			mkBranch("b", ptr("root"), "b", 3*time.Minute),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("visits depth-first in child creation order", func() {
		var order []string
		t.Walk(func(n *tree.Node, _ int) bool {
			order = append(order, n.ID)
			return true
		})
		Expect(order).To(Equal([]string{"root", "a", "a1", "b"}))
	})

	It("reports depths", func() {
		depths := map[string]int{}
		t.Walk(func(n *tree.Node, depth int) bool {
			depths[n.ID] = depth
			return true
		})
		Expect(depths).To(Equal(map[string]int{"root": 0, "a": 1, "a1": 2, "b": 1}))
	})

	It("stops when the callback returns false", func() {
		var visited int
		t.Walk(func(_ *tree.Node, _ int) bool {
			visited++
			return visited < 2
		})
		Expect(visited).To(Equal(2))
	})

	It("computes Depth and Siblings", func() {
		depth, err := t.Depth("a1")
		Expect(err).NotTo(HaveOccurred())
		Expect(depth).To(Equal(2))

		siblings := t.Siblings("a")
		Expect(siblings).To(HaveLen(1))
		Expect(siblings[0].ID).To(Equal("b"))

		Expect(t.Siblings("root")).To(BeEmpty())
	})

	It("finds branch points", func() {
		points := t.BranchPoints()
		Expect(points).To(HaveLen(1))
		Expect(points[0].ID).To(Equal("root"))
	})
})

var _ = Describe("Score", func() {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	weights := tree.DefaultScoreWeights()

	It("scores an untouched stale fork near zero", func() {
		b := mkBranch("cold", ptr("root"), "cold", 0)
		b.ForkPoint = 3
		b.LastActivity = now.Add(-30 * 24 * time.Hour)

		score := tree.Score(b, 3, now, weights)
		Expect(score).To(BeNumerically("<", 0.05))
	})

	It("ranks an active extended branch above a stale one", func() {
		hot := mkBranch("hot", ptr("root"), "hot", 0)
		hot.ForkPoint = 3
		hot.LastActivity = now.Add(-time.Hour)

		cold := mkBranch("cold", ptr("root"), "cold", 0)
		cold.ForkPoint = 3
		cold.LastActivity = now.Add(-10 * 24 * time.Hour)

		hotScore := tree.Score(hot, 9, now, weights)
		coldScore := tree.Score(cold, 4, now, weights)
		Expect(hotScore).To(BeNumerically(">", coldScore))
	})

	It("folds explicit feedback into the score", func() {
		plain := mkBranch("plain", ptr("root"), "plain", 0)
		plain.LastActivity = now

		praised := mkBranch("praised", ptr("root"), "praised", 0)
		praised.LastActivity = now
		praised.Metadata[conversation.MetaFeedback] = "1.0"

		Expect(tree.Score(praised, 0, now, weights)).To(
			BeNumerically(">", tree.Score(plain, 0, now, weights)))
	})

	It("clamps out-of-range feedback", func() {
		b := mkBranch("loud", ptr("root"), "loud", 0)
		b.LastActivity = now
		b.Metadata[conversation.MetaFeedback] = "17"

		score := tree.Score(b, 0, now, weights)
		Expect(score).To(BeNumerically("<=", 1))
	})

	It("stays within [0, 1]", func() {
		b := mkBranch("max", ptr("root"), "max", 0)
		b.LastActivity = now
		b.Metadata[conversation.MetaFeedback] = "1.0"

		score := tree.Score(b, 1000, now, weights)
		Expect(score).To(BeNumerically(">=", 0))
		Expect(score).To(BeNumerically("<=", 1))
	})
})

var _ = Describe("Suggest", func() {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	It("offers children, siblings, and parent ranked by score", func() {
		branches := []*conversation.Branch{
			mkBranch("root", nil, "main", 0),
			mkBranch("cur", ptr("root"), "current", time.Minute),
			mkBranch("sib", ptr("root"), "sibling", 2*time.Minute),
			mkBranch("kid", ptr("cur"), "child", 3*time.Minute),
		}
		for _, b := range branches {
			b.LastActivity = now.Add(-time.Hour)
		}

		t, err := tree.Build(branches)
		Expect(err).NotTo(HaveOccurred())

		counts := map[string]int{"root": 2, "cur": 4, "sib": 3, "kid": 9}
		suggestions := tree.Suggest(t, "cur", counts, now, tree.DefaultScoreWeights())
		Expect(suggestions).To(HaveLen(3))

		byID := map[string]string{}
		for _, s := range suggestions {
			byID[s.BranchID] = s.Relation
		}
		Expect(byID).To(Equal(map[string]string{
			"kid":  tree.RelationChild,
			"sib":  tree.RelationSibling,
			"root": tree.RelationParent,
		}))

		for i := 1; i < len(suggestions); i++ {
			Expect(suggestions[i-1].Score).To(BeNumerically(">=", suggestions[i].Score))
		}
	})

	It("returns nothing for an unknown branch", func() {
		t, err := tree.Build([]*conversation.Branch{mkBranch("root", nil, "main", 0)})
		Expect(err).NotTo(HaveOccurred())
		Expect(tree.Suggest(t, "ghost", nil, now, tree.DefaultScoreWeights())).To(BeEmpty())
	})
})

var _ = Describe("Render", func() {
	It("marks the current branch and shows statuses", func() {
		branches := []*conversation.Branch{
			mkBranch("root", nil, "main", 0),
			mkBranch("a", ptr("root"), "alt", time.Minute),
		}
		branches[1].Status = conversation.StatusArchived

		t, err := tree.Build(branches)
		Expect(err).NotTo(HaveOccurred())

		out := tree.Render(t, "a")
		Expect(out).To(ContainSubstring("main"))
		Expect(out).To(ContainSubstring("alt ←"))
		Expect(out).To(ContainSubstring("(archived)"))
	})
})
