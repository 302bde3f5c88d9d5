package branch_test

import (
	"context"
	"database/sql"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/storage/sqlite"
)

var _ = Describe("Cleanup", func() {
	var (
		ctx     context.Context
		repo    *sqlite.Repository
		svc     *branch.Service
		session *conversation.Session
		main    *conversation.Branch
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		repo, err = sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())

		svc = branch.NewService(repo)

		session, main, err = svc.CreateSession(ctx, "tidy")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		repo.Close()
	})

	// agedBranch inserts a branch whose last activity predates the cleanup
	// window, bypassing the service so the timestamp can be controlled.
	agedBranch := func(name string, forkPoint int, age time.Duration) *conversation.Branch {
		b := conversation.NewBranch(session.ID, &main.ID, name, "", forkPoint)
		b.LastActivity = time.Now().UTC().Add(-age)

		err := repo.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
			return repo.CreateBranchTx(ctx, tx, b)
		})
		Expect(err).NotTo(HaveOccurred())
		return b
	}

	Describe("max-age", func() {
		It("archives idle branches past the window", func() {
			stale := agedBranch("stale", 0, 60*24*time.Hour)
			fresh, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: main.ID, Name: "fresh",
			})
			Expect(err).NotTo(HaveOccurred())

			result, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{
				Strategy: branch.CleanupMaxAge,
				MaxAge:   30 * 24 * time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Archived).To(ConsistOf(stale.ID))

			archived, err := svc.Branch(ctx, stale.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(archived.Status).To(Equal(conversation.StatusArchived))

			untouched, err := svc.Branch(ctx, fresh.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(untouched.Status).To(Equal(conversation.StatusActive))
		})

		It("never touches the session root", func() {
			result, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{
				Strategy: branch.CleanupMaxAge,
				MaxAge:   time.Nanosecond,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Archived).To(BeEmpty())
		})

		It("spares bookmarked branches", func() {
			protected := agedBranch("protected", 0, 60*24*time.Hour)
			Expect(svc.SetMetadata(ctx, protected.ID, conversation.MetaBookmark, "true")).To(Succeed())

			result, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{
				Strategy: branch.CleanupMaxAge,
				MaxAge:   30 * 24 * time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Archived).To(BeEmpty())
		})

		It("reports candidates without archiving on a dry run", func() {
			stale := agedBranch("stale", 0, 60*24*time.Hour)

			result, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{
				Strategy: branch.CleanupMaxAge,
				MaxAge:   30 * 24 * time.Hour,
				DryRun:   true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.DryRun).To(BeTrue())
			Expect(result.Archived).To(ConsistOf(stale.ID))

			b, err := svc.Branch(ctx, stale.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Status).To(Equal(conversation.StatusActive))
		})
	})

	Describe("merged", func() {
		It("archives branches already folded into a target", func() {
			alt, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: main.ID, Name: "alt",
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddMessage(ctx, alt.ID, conversation.RoleUser, "an idea")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Merge(ctx, []string{alt.ID}, main.ID, branch.StrategyKeepTarget)
			Expect(err).NotTo(HaveOccurred())

			result, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{
				Strategy: branch.CleanupMerged,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Archived).To(ConsistOf(alt.ID))

			b, err := svc.Branch(ctx, alt.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Status).To(Equal(conversation.StatusArchived))
		})
	})

	Describe("orphans", func() {
		It("archives idle forks that were never extended", func() {
			_, err := svc.AddMessage(ctx, main.ID, conversation.RoleUser, "seed")
			Expect(err).NotTo(HaveOccurred())

			orphan := agedBranch("orphan", 0, 60*24*time.Hour)

			extended := agedBranch("extended", 0, 60*24*time.Hour)
			_, err = svc.AddMessage(ctx, extended.ID, conversation.RoleUser, "still useful")
			Expect(err).NotTo(HaveOccurred())

			result, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{
				Strategy: branch.CleanupOrphans,
				MaxAge:   30 * 24 * time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Archived).To(ConsistOf(orphan.ID))
		})

		It("spares orphans that still have children", func() {
			parent := agedBranch("parent", 0, 60*24*time.Hour)

			_, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: parent.ID, Name: "child",
			})
			Expect(err).NotTo(HaveOccurred())

			result, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{
				Strategy: branch.CleanupOrphans,
				MaxAge:   30 * 24 * time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Archived).To(BeEmpty())
		})

		It("is undone by restoring the archived branch", func() {
			orphan := agedBranch("orphan", 0, 60*24*time.Hour)

			_, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{
				Strategy: branch.CleanupOrphans,
				MaxAge:   30 * 24 * time.Hour,
			})
			Expect(err).NotTo(HaveOccurred())

			restored, err := svc.Reactivate(ctx, orphan.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.Status).To(Equal(conversation.StatusActive))
		})
	})

	It("rejects an unknown strategy", func() {
		_, err := svc.Cleanup(ctx, session.ID, branch.CleanupOptions{Strategy: "everything"})
		Expect(err).To(HaveOccurred())
	})
})
