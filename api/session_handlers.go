package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/tree"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// CreateSessionRequest is the body for POST /sessions.
type CreateSessionRequest struct {
	Name string `json:"name"`
}

// SessionResponse pairs a session with its root branch.
type SessionResponse struct {
	Session *conversation.Session `json:"session"`
	Root    *conversation.Branch  `json:"root,omitempty"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	sess, root, err := s.svc.CreateSession(c.Context(), req.Name)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{Session: sess, Root: root})
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions, err := s.svc.Sessions(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleCurrentSession(c *fiber.Ctx) error {
	sess, err := s.svc.CurrentSession(c.Context())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(SessionResponse{Session: sess})
}

// RenameSessionRequest is the body for PATCH /sessions/:id. Version is the
// optimistic-lock token from a prior read; a stale token gets a 409.
type RenameSessionRequest struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
}

func (s *Server) handleRenameSession(c *fiber.Ctx) error {
	var req RenameSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	sess, err := s.svc.RenameSession(c.Context(), c.Params("id"), req.Name, req.Version)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(SessionResponse{Session: sess})
}

func (s *Server) handleSwitchSession(c *fiber.Ctx) error {
	if err := s.svc.SwitchSession(c.Context(), c.Params("id")); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListBranches(c *fiber.Ctx) error {
	filter := storage.BranchFilter{
		Bookmarked: c.QueryBool("bookmarked"),
	}
	if status := c.Query("status"); status != "" {
		st := conversation.Status(status)
		if !st.Valid() {
			return unprocessable(c, "unknown branch status: "+status)
		}
		filter.Status = st
	}

	branches, err := s.svc.Branches(c.Context(), c.Params("id"), filter)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(map[string]any{
		"count":    len(branches),
		"branches": branches,
	})
}

// TreeNode is the JSON shape of one branch in the session tree.
type TreeNode struct {
	Branch   *conversation.Branch `json:"branch"`
	Children []TreeNode           `json:"children,omitempty"`
}

func (s *Server) handleSessionTree(c *fiber.Ctx) error {
	t, err := s.mgr.SessionTree(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(map[string]any{
		"size": t.Size(),
		"root": toTreeNode(t.Root),
	})
}

func toTreeNode(n *tree.Node) TreeNode {
	out := TreeNode{Branch: n.Branch}
	for _, child := range n.Children {
		out.Children = append(out.Children, toTreeNode(child))
	}
	return out
}

// CleanupRequest is the body for POST /sessions/:id/cleanup.
type CleanupRequest struct {
	Strategy   string `json:"strategy"`
	MaxAgeDays uint   `json:"max_age_days,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

func (s *Server) handleCleanup(c *fiber.Ctx) error {
	var req CleanupRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	strategy := branch.CleanupStrategy(req.Strategy)
	if !strategy.Valid() {
		return unprocessable(c, "unknown cleanup strategy: "+req.Strategy)
	}

	result, err := s.svc.Cleanup(c.Context(), c.Params("id"), branch.CleanupOptions{
		Strategy: strategy,
		MaxAge:   time.Duration(req.MaxAgeDays) * 24 * time.Hour,
		DryRun:   req.DryRun,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}
