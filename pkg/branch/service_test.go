package branch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/storage/sqlite"
)

var _ = Describe("Service", func() {
	var (
		ctx  context.Context
		repo *sqlite.Repository
		svc  *branch.Service
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		repo, err = sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())

		svc = branch.NewService(repo)
	})

	AfterEach(func() {
		repo.Close()
	})

	Describe("CreateSession", func() {
		It("creates the session with a root branch and makes it current", func() {
			session, root, err := svc.CreateSession(ctx, "first")
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Current).To(BeTrue())
			Expect(session.Version).To(Equal(1))

			Expect(root.Name).To(Equal(branch.RootBranchName))
			Expect(root.Root()).To(BeTrue())
			Expect(root.Status).To(Equal(conversation.StatusActive))
			Expect(root.ForkPoint).To(Equal(0))
		})

		It("moves the current flag to each newly created session", func() {
			first, _, err := svc.CreateSession(ctx, "first")
			Expect(err).NotTo(HaveOccurred())

			second, _, err := svc.CreateSession(ctx, "second")
			Expect(err).NotTo(HaveOccurred())

			current, err := svc.CurrentSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.ID).To(Equal(second.ID))

			reloaded, err := svc.Session(ctx, first.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Current).To(BeFalse())
		})
	})

	Describe("RenameSession", func() {
		It("renames with a fresh version token", func() {
			session, _, err := svc.CreateSession(ctx, "before")
			Expect(err).NotTo(HaveOccurred())

			renamed, err := svc.RenameSession(ctx, session.ID, "after", session.Version)
			Expect(err).NotTo(HaveOccurred())
			Expect(renamed.Name).To(Equal("after"))
			Expect(renamed.Version).To(Equal(session.Version + 1))
		})

		It("rejects a stale version token", func() {
			session, _, err := svc.CreateSession(ctx, "before")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.RenameSession(ctx, session.ID, "first writer", session.Version)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.RenameSession(ctx, session.ID, "second writer", session.Version)
			Expect(err).To(HaveOccurred())

			var conflict *storage.ErrConcurrentModification
			Expect(errors.As(err, &conflict)).To(BeTrue())

			// The stale write changed nothing.
			reloaded, err := svc.Session(ctx, session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reloaded.Name).To(Equal("first writer"))
		})
	})

	Describe("ExtendExpiry", func() {
		It("pushes the expiry out from now", func() {
			session, _, err := svc.CreateSession(ctx, "expiring")
			Expect(err).NotTo(HaveOccurred())

			extended, err := svc.ExtendExpiry(ctx, session.ID, 90*24*time.Hour)
			Expect(err).NotTo(HaveOccurred())
			Expect(extended.ExpiresAt).To(BeTemporally(">", session.ExpiresAt))
		})
	})

	Describe("SwitchSession", func() {
		It("moves the current flag", func() {
			first, _, err := svc.CreateSession(ctx, "first")
			Expect(err).NotTo(HaveOccurred())
			_, _, err = svc.CreateSession(ctx, "second")
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.SwitchSession(ctx, first.ID)).To(Succeed())

			current, err := svc.CurrentSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.ID).To(Equal(first.ID))
		})

		It("fails for an unknown session", func() {
			err := svc.SwitchSession(ctx, "no-such-session")
			var notFound *storage.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})
	})

	Describe("AddMessage", func() {
		var root *conversation.Branch

		BeforeEach(func() {
			var err error
			_, root, err = svc.CreateSession(ctx, "chatty")
			Expect(err).NotTo(HaveOccurred())
		})

		It("assigns contiguous sequence numbers from 1", func() {
			first, err := svc.AddMessage(ctx, root.ID, conversation.RoleUser, "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Sequence).To(Equal(1))

			second, err := svc.AddMessage(ctx, root.ID, conversation.RoleAssistant, "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Sequence).To(Equal(2))
		})

		It("rejects appends to an archived branch", func() {
			fork, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: root.SessionID, ParentID: root.ID, Name: "doomed",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Archive(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.AddMessage(ctx, fork.ID, conversation.RoleUser, "too late")
			var notActive *storage.ErrBranchNotActive
			Expect(errors.As(err, &notActive)).To(BeTrue())
		})
	})

	Describe("Fork", func() {
		var (
			session *conversation.Session
			root    *conversation.Branch
		)

		BeforeEach(func() {
			var err error
			session, root, err = svc.CreateSession(ctx, "forking")
			Expect(err).NotTo(HaveOccurred())

			for _, msg := range []struct {
				role    conversation.Role
				content string
			}{
				{conversation.RoleUser, "explain the parser design"},
				{conversation.RoleAssistant, "it is a recursive descent parser"},
				{conversation.RoleUser, "rewrite the tokenizer stage"},
				{conversation.RoleAssistant, "done"},
			} {
				_, err := svc.AddMessage(ctx, root.ID, msg.role, msg.content)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("forks at the tip by default and shares the full prefix", func() {
			fork, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, Name: "alt",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(fork.ForkPoint).To(Equal(4))

			history, err := svc.History(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(4))

			parentHistory, err := svc.History(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			for i := range history {
				// Shared by reference, not copied.
				Expect(history[i].Message.ID).To(Equal(parentHistory[i].Message.ID))
			}
		})

		It("forks at an earlier point with a truncated history", func() {
			at := 2
			fork, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, ForkAt: &at, Name: "early",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(fork.ForkPoint).To(Equal(2))

			history, err := svc.History(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
		})

		It("diverges independently after the fork point", func() {
			at := 2
			fork, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, ForkAt: &at, Name: "divergent",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.AddMessage(ctx, fork.ID, conversation.RoleUser, "try iteration instead")
			Expect(err).NotTo(HaveOccurred())

			forkHistory, err := svc.History(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(forkHistory).To(HaveLen(3))
			Expect(forkHistory[2].Content).To(Equal("try iteration instead"))

			// The parent is untouched.
			parentHistory, err := svc.History(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(parentHistory).To(HaveLen(4))
			Expect(parentHistory[2].Content).To(Equal("rewrite the tokenizer stage"))
		})

		It("rejects an out-of-range fork point", func() {
			at := 17
			_, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, ForkAt: &at,
			})

			var invalid *storage.ErrInvalidForkPoint
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Messages).To(Equal(4))
		})

		It("derives a name from the conversation when none is given", func() {
			at := 3
			fork, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, ForkAt: &at,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(fork.Name).To(Equal("rewrite-tokenizer-stage"))
		})

		It("allows forking from an archived parent", func() {
			fork, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, Name: "child",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Archive(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())

			grandchild, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: fork.ID, Name: "grandchild",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(grandchild.Status).To(Equal(conversation.StatusActive))
		})
	})

	Describe("Reply", func() {
		var root *conversation.Branch

		BeforeEach(func() {
			var err error
			_, root, err = svc.CreateSession(ctx, "replying")
			Expect(err).NotTo(HaveOccurred())
		})

		It("holds the branch busy until closed", func() {
			reply, err := svc.BeginReply(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Busy(root.ID)).To(BeTrue())

			_, err = svc.AddMessage(ctx, root.ID, conversation.RoleUser, "interleaved")
			var busy *branch.ErrBranchBusy
			Expect(errors.As(err, &busy)).To(BeTrue())

			reply.Close()
			Expect(svc.Busy(root.ID)).To(BeFalse())

			_, err = svc.AddMessage(ctx, root.ID, conversation.RoleUser, "fine now")
			Expect(err).NotTo(HaveOccurred())
		})

		It("appends through the token while busy", func() {
			reply, err := svc.BeginReply(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			defer reply.Close()

			turn, err := reply.Append(ctx, conversation.RoleAssistant, "the model says hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(turn.Sequence).To(Equal(1))
		})

		It("rejects a second reply on the same branch", func() {
			reply, err := svc.BeginReply(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			defer reply.Close()

			_, err = svc.BeginReply(ctx, root.ID)
			var busy *branch.ErrBranchBusy
			Expect(errors.As(err, &busy)).To(BeTrue())
		})

		It("leaves the store untouched when abandoned without appending", func() {
			reply, err := svc.BeginReply(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			reply.Close()

			history, err := svc.History(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(BeEmpty())
		})

		It("refuses to begin on an archived branch", func() {
			fork, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: root.SessionID, ParentID: root.ID, Name: "shelved",
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Archive(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.BeginReply(ctx, fork.ID)
			var notActive *storage.ErrBranchNotActive
			Expect(errors.As(err, &notActive)).To(BeTrue())
		})
	})

	Describe("Archive and Reactivate", func() {
		var (
			root *conversation.Branch
			fork *conversation.Branch
		)

		BeforeEach(func() {
			var err error
			_, root, err = svc.CreateSession(ctx, "lifecycle")
			Expect(err).NotTo(HaveOccurred())

			fork, err = svc.Fork(ctx, branch.ForkRequest{
				SessionID: root.SessionID, ParentID: root.ID, Name: "shelvable",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("archives and restores a branch", func() {
			archived, err := svc.Archive(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(archived.Status).To(Equal(conversation.StatusArchived))

			restored, err := svc.Reactivate(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(restored.Status).To(Equal(conversation.StatusActive))

			_, err = svc.AddMessage(ctx, fork.ID, conversation.RoleUser, "back in business")
			Expect(err).NotTo(HaveOccurred())
		})

		It("treats a double archive as a no-op", func() {
			before, err := svc.Archive(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())

			reloaded, err := svc.Branch(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())

			again, err := svc.Archive(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(again.Status).To(Equal(before.Status))

			// Last-activity is untouched by the repeat.
			after, err := svc.Branch(ctx, fork.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(after.LastActivity).To(BeTemporally("==", reloaded.LastActivity))
		})
	})

	Describe("Metadata", func() {
		It("round-trips set and delete", func() {
			_, root, err := svc.CreateSession(ctx, "tagged")
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.SetMetadata(ctx, root.ID, conversation.MetaTags, "parser,rewrite")).To(Succeed())

			b, err := svc.Branch(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Metadata).To(HaveKeyWithValue(conversation.MetaTags, "parser,rewrite"))

			Expect(svc.DeleteMetadata(ctx, root.ID, conversation.MetaTags)).To(Succeed())

			b, err = svc.Branch(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Metadata).NotTo(HaveKey(conversation.MetaTags))
		})
	})

	Describe("Search", func() {
		It("matches case-insensitively within a session", func() {
			session, root, err := svc.CreateSession(ctx, "searchable")
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.AddMessage(ctx, root.ID, conversation.RoleUser, "the Rate Limiter drops requests")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddMessage(ctx, root.ID, conversation.RoleAssistant, "unrelated answer")
			Expect(err).NotTo(HaveOccurred())

			hits, err := svc.Search(ctx, session.ID, "rate limiter")
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].BranchID).To(Equal(root.ID))
			Expect(hits[0].Sequence).To(Equal(1))
		})

		It("searches every session when the scope is empty", func() {
			_, first, err := svc.CreateSession(ctx, "one")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddMessage(ctx, first.ID, conversation.RoleUser, "needle in one")
			Expect(err).NotTo(HaveOccurred())

			_, second, err := svc.CreateSession(ctx, "two")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddMessage(ctx, second.ID, conversation.RoleUser, "needle in two")
			Expect(err).NotTo(HaveOccurred())

			hits, err := svc.Search(ctx, "", "needle")
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(2))
		})
	})

	Describe("Delete", func() {
		var (
			session *conversation.Session
			root    *conversation.Branch
		)

		BeforeEach(func() {
			var err error
			session, root, err = svc.CreateSession(ctx, "prunable")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddMessage(ctx, root.ID, conversation.RoleUser, "first")
			Expect(err).NotTo(HaveOccurred())
		})

		It("removes an archived leaf branch for good", func() {
			forked, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, Name: "doomed",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Archive(ctx, forked.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Delete(ctx, forked.ID)).To(Succeed())

			_, err = svc.Branch(ctx, forked.ID)
			var notFound *storage.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
		})

		It("refuses active branches", func() {
			forked, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, Name: "still-going",
			})
			Expect(err).NotTo(HaveOccurred())

			err = svc.Delete(ctx, forked.ID)
			Expect(err).To(MatchError(ContainSubstring("archive it before deleting")))
		})

		It("refuses the session root", func() {
			err := svc.Delete(ctx, root.ID)
			Expect(err).To(MatchError(ContainSubstring("session root")))
		})

		It("refuses branches that still have children", func() {
			parent, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, Name: "mid",
			})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: parent.ID, Name: "leaf",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Archive(ctx, parent.ID)
			Expect(err).NotTo(HaveOccurred())

			err = svc.Delete(ctx, parent.ID)
			Expect(err).To(MatchError(ContainSubstring("child branches")))

			_, err = svc.Branch(ctx, parent.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("leaves shared messages visible on the parent", func() {
			forked, err := svc.Fork(ctx, branch.ForkRequest{
				SessionID: session.ID, ParentID: root.ID, Name: "doomed",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Archive(ctx, forked.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Delete(ctx, forked.ID)).To(Succeed())

			turns, err := svc.History(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Content).To(Equal("first"))
		})
	})

	Describe("concurrent appends", func() {
		It("assigns each turn a distinct contiguous sequence", func() {
			_, root, err := svc.CreateSession(ctx, "contended")
			Expect(err).NotTo(HaveOccurred())

			const writers = 8
			var wg sync.WaitGroup
			errs := make([]error, writers)
			for i := range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, errs[i] = svc.AddMessage(ctx, root.ID, conversation.RoleUser,
						fmt.Sprintf("message %d", i))
				}()
			}
			wg.Wait()

			for _, err := range errs {
				Expect(err).NotTo(HaveOccurred())
			}

			turns, err := svc.History(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(writers))
			for i, turn := range turns {
				Expect(turn.Sequence).To(Equal(i + 1))
			}
		})
	})
})
