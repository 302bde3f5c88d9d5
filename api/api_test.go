package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/manager"
	"github.com/loomworks/loom/pkg/storage/sqlite"
	"github.com/loomworks/loom/pkg/tree"
)

var _ = Describe("Server", func() {
	var (
		server *Server
		repo   *sqlite.Repository
		svc    *branch.Service
		ctx    context.Context

		sess *conversation.Session
		root *conversation.Branch
	)

	BeforeEach(func() {
		var err error
		repo, err = sqlite.New(":memory:")
		Expect(err).NotTo(HaveOccurred())

		svc = branch.NewService(repo)
		mgr := manager.New(svc, tree.ScoreWeights{})
		server = NewServer(Config{ListenAddr: ":0"}, mgr, logger.Nop())
		ctx = context.Background()

		sess, root, err = svc.CreateSession(ctx, "test session")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		repo.Close()
	})

	do := func(method, path string, body any) (*http.Response, map[string]any) {
		var reader io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(data)
		}

		req := httptest.NewRequest(method, path, reader)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())

		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		var parsed map[string]any
		if len(raw) > 0 && raw[0] == '{' {
			Expect(json.Unmarshal(raw, &parsed)).To(Succeed())
		}
		return resp, parsed
	}

	Describe("GET /ping", func() {
		It("returns pong", func() {
			resp, _ := do(http.MethodGet, "/ping", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("sessions", func() {
		It("creates a session with a root branch", func() {
			resp, body := do(http.MethodPost, "/sessions", CreateSessionRequest{Name: "fresh"})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			session := body["session"].(map[string]any)
			Expect(session["name"]).To(Equal("fresh"))

			rootBranch := body["root"].(map[string]any)
			Expect(rootBranch["name"]).To(Equal("main"))
			Expect(rootBranch["status"]).To(Equal("active"))
		})

		It("rejects a session without a name", func() {
			resp, _ := do(http.MethodPost, "/sessions", CreateSessionRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("lists sessions", func() {
			resp, body := do(http.MethodGet, "/sessions", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["count"]).To(BeNumerically(">=", 1))
		})

		It("returns the current session", func() {
			resp, body := do(http.MethodGet, "/sessions/current", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			session := body["session"].(map[string]any)
			Expect(session["id"]).To(Equal(sess.ID))
		})

		It("renames a session with a fresh version token", func() {
			resp, body := do(http.MethodPatch, "/sessions/"+sess.ID,
				RenameSessionRequest{Name: "renamed", Version: sess.Version})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			session := body["session"].(map[string]any)
			Expect(session["name"]).To(Equal("renamed"))
		})

		It("returns 409 for a stale version token", func() {
			resp, _ := do(http.MethodPatch, "/sessions/"+sess.ID,
				RenameSessionRequest{Name: "renamed", Version: sess.Version + 7})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("returns 404 for an unknown session", func() {
			resp, _ := do(http.MethodPatch, "/sessions/nope",
				RenameSessionRequest{Name: "renamed", Version: 1})
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("branches", func() {
		BeforeEach(func() {
			for _, content := range []string{"u1", "a1", "u2", "a2"} {
				role := conversation.RoleUser
				if content[0] == 'a' {
					role = conversation.RoleAssistant
				}
				_, err := svc.AddMessage(ctx, root.ID, role, content)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("forks a branch at the tip by default", func() {
			resp, body := do(http.MethodPost, "/branches", ForkBranchRequest{
				SessionID: sess.ID,
				ParentID:  root.ID,
				Name:      "alt",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(body["name"]).To(Equal("alt"))
			Expect(body["fork_point"]).To(BeNumerically("==", 4))
		})

		It("forks with a preset name prefix", func() {
			resp, body := do(http.MethodPost, "/branches", ForkBranchRequest{
				SessionID: sess.ID,
				ParentID:  root.ID,
				Name:      "try-recursion",
				Preset:    "explore",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(body["name"]).To(Equal("explore/try-recursion"))
		})

		It("rejects an out-of-range fork point", func() {
			at := 99
			resp, _ := do(http.MethodPost, "/branches", ForkBranchRequest{
				SessionID: sess.ID,
				ParentID:  root.ID,
				ForkAt:    &at,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})

		It("returns branch history", func() {
			resp, body := do(http.MethodGet, "/branches/"+root.ID+"/history", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["depth"]).To(BeNumerically("==", 4))
		})

		It("appends a message", func() {
			resp, body := do(http.MethodPost, "/branches/"+root.ID+"/messages",
				AddMessageRequest{Role: "user", Content: "next question"})
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(body["sequence"]).To(BeNumerically("==", 5))
		})

		It("rejects an unknown role", func() {
			resp, _ := do(http.MethodPost, "/branches/"+root.ID+"/messages",
				AddMessageRequest{Role: "narrator", Content: "hm"})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})

		It("returns 409 when appending to a busy branch", func() {
			reply, err := svc.BeginReply(ctx, root.ID)
			Expect(err).NotTo(HaveOccurred())
			defer reply.Close()

			resp, _ := do(http.MethodPost, "/branches/"+root.ID+"/messages",
				AddMessageRequest{Role: "user", Content: "blocked"})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})

		It("archives and reactivates a branch", func() {
			resp, body := do(http.MethodPost, "/branches/"+root.ID+"/archive", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("archived"))

			resp, _ = do(http.MethodPost, "/branches/"+root.ID+"/messages",
				AddMessageRequest{Role: "user", Content: "refused"})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))

			resp, body = do(http.MethodPost, "/branches/"+root.ID+"/reactivate", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("active"))
		})

		It("bookmarks and unbookmarks", func() {
			resp, _ := do(http.MethodPost, "/branches/"+root.ID+"/bookmark", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, body := do(http.MethodGet, "/sessions/"+sess.ID+"/branches?bookmarked=true", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["count"]).To(BeNumerically("==", 1))

			resp, _ = do(http.MethodDelete, "/branches/"+root.ID+"/bookmark", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})

		It("records feedback and scores the branch", func() {
			resp, _ := do(http.MethodPost, "/branches/"+root.ID+"/feedback",
				FeedbackRequest{Score: 0.9})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))

			resp, body := do(http.MethodGet, "/branches/"+root.ID+"/score", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["score"]).To(BeNumerically(">", 0))
		})

		It("rejects feedback outside [0, 1]", func() {
			resp, _ := do(http.MethodPost, "/branches/"+root.ID+"/feedback",
				FeedbackRequest{Score: 1.5})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})

		It("exports a branch as markdown", func() {
			req := httptest.NewRequest(http.MethodGet, "/branches/"+root.ID+"/export?format=markdown", nil)
			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring("## main"))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("markdown"))
		})

		It("rejects an unknown export format", func() {
			resp, _ := do(http.MethodGet, "/branches/"+root.ID+"/export?format=pdf", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})

		It("returns 404 for an unknown branch", func() {
			resp, _ := do(http.MethodGet, "/branches/missing", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("tree and navigation", func() {
		var child *conversation.Branch

		BeforeEach(func() {
			_, err := svc.AddMessage(ctx, root.ID, conversation.RoleUser, "how do I sort a slice")
			Expect(err).NotTo(HaveOccurred())

			child, err = svc.Fork(ctx, branch.ForkRequest{
				SessionID: sess.ID,
				ParentID:  root.ID,
				Name:      "alt",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the session tree", func() {
			resp, body := do(http.MethodGet, "/sessions/"+sess.ID+"/tree", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["size"]).To(BeNumerically("==", 2))

			rootNode := body["root"].(map[string]any)
			children := rootNode["children"].([]any)
			Expect(children).To(HaveLen(1))
		})

		It("suggests neighbors of the current branch", func() {
			resp, body := do(http.MethodGet,
				fmt.Sprintf("/suggest?session_id=%s&current=%s", sess.ID, root.ID), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["count"]).To(BeNumerically("==", 1))
		})

		It("compares two branches", func() {
			_, err := svc.AddMessage(ctx, child.ID, conversation.RoleUser, "divergent turn")
			Expect(err).NotTo(HaveOccurred())

			resp, body := do(http.MethodGet,
				fmt.Sprintf("/compare?branches=%s,%s", root.ID, child.ID), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["shared_prefix"]).To(BeNumerically("==", 1))
		})

		It("requires at least two branches to compare", func() {
			resp, _ := do(http.MethodGet, "/compare?branches="+root.ID, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("merge", func() {
		var alt *conversation.Branch

		BeforeEach(func() {
			var err error
			_, err = svc.AddMessage(ctx, root.ID, conversation.RoleUser, "shared")
			Expect(err).NotTo(HaveOccurred())

			alt, err = svc.Fork(ctx, branch.ForkRequest{
				SessionID: sess.ID,
				ParentID:  root.ID,
				Name:      "alt",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.AddMessage(ctx, alt.ID, conversation.RoleAssistant, "unique answer")
			Expect(err).NotTo(HaveOccurred())
		})

		It("merges a source into the target", func() {
			resp, body := do(http.MethodPost, "/merge", MergeRequest{
				Sources:  []string{alt.ID},
				Target:   root.ID,
				Strategy: string(branch.StrategyKeepSource),
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["appended"]).To(HaveLen(1))
			Expect(body["merged"]).To(ContainElement(alt.ID))
		})

		It("rejects an unknown strategy", func() {
			resp, _ := do(http.MethodPost, "/merge", MergeRequest{
				Sources:  []string{alt.ID},
				Target:   root.ID,
				Strategy: "theirs",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})

		It("cherry-picks selected messages", func() {
			history, err := svc.History(ctx, alt.ID)
			Expect(err).NotTo(HaveOccurred())
			last := history[len(history)-1]

			resp, body := do(http.MethodPost, "/cherry-pick", CherryPickRequest{
				Source:     alt.ID,
				Target:     root.ID,
				MessageIDs: []string{last.ID},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["appended"]).To(HaveLen(1))
		})

		It("returns 422 for unknown message ids in a cherry-pick", func() {
			resp, _ := do(http.MethodPost, "/cherry-pick", CherryPickRequest{
				Source:     alt.ID,
				Target:     root.ID,
				MessageIDs: []string{"not-a-message"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("cleanup", func() {
		It("dry-runs without archiving", func() {
			resp, body := do(http.MethodPost, "/sessions/"+sess.ID+"/cleanup", CleanupRequest{
				Strategy: string(branch.CleanupMaxAge),
				DryRun:   true,
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["dry_run"]).To(BeTrue())
		})

		It("rejects an unknown strategy", func() {
			resp, _ := do(http.MethodPost, "/sessions/"+sess.ID+"/cleanup", CleanupRequest{
				Strategy: "everything",
			})
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
		})
	})

	Describe("search", func() {
		BeforeEach(func() {
			_, err := svc.AddMessage(ctx, root.ID, conversation.RoleUser, "tell me about goroutines")
			Expect(err).NotTo(HaveOccurred())
		})

		It("finds matching messages", func() {
			resp, body := do(http.MethodGet, "/search?query=goroutines", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["count"]).To(BeNumerically("==", 1))
		})

		It("requires a query", func() {
			resp, _ := do(http.MethodGet, "/search", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})
