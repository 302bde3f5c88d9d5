package api

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/export"
	"github.com/loomworks/loom/pkg/manager"
)

// ForkBranchRequest is the body for POST /branches.
type ForkBranchRequest struct {
	SessionID   string `json:"session_id"`
	ParentID    string `json:"parent_id"`
	ForkAt      *int   `json:"fork_at,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	// Preset optionally applies a creation preset ("explore" or "debug").
	Preset string `json:"preset,omitempty"`
}

func (s *Server) handleFork(c *fiber.Ctx) error {
	var req ForkBranchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.SessionID == "" || req.ParentID == "" {
		return badRequest(c, "session_id and parent_id are required")
	}

	fork := branch.ForkRequest{
		SessionID:   req.SessionID,
		ParentID:    req.ParentID,
		ForkAt:      req.ForkAt,
		Name:        req.Name,
		Description: req.Description,
	}

	var (
		b   *conversation.Branch
		err error
	)
	if req.Preset != "" {
		b, err = s.mgr.ForkPreset(c.Context(), fork, manager.Preset(req.Preset))
	} else {
		b, err = s.svc.Fork(c.Context(), fork)
	}
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(b)
}

func (s *Server) handleGetBranch(c *fiber.Ctx) error {
	b, err := s.svc.Branch(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(b)
}

// RenameBranchRequest is the body for PATCH /branches/:id.
type RenameBranchRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleRenameBranch(c *fiber.Ctx) error {
	var req RenameBranchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	if err := s.svc.Rename(c.Context(), c.Params("id"), req.Name, req.Description); err != nil {
		return s.respondError(c, err)
	}

	b, err := s.svc.Branch(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(b)
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	id := c.Params("id")

	turns, err := s.svc.History(c.Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(map[string]any{
		"branch_id": id,
		"depth":     len(turns),
		"messages":  turns,
	})
}

// AddMessageRequest is the body for POST /branches/:id/messages.
type AddMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleAddMessage(c *fiber.Ctx) error {
	var req AddMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	role := conversation.Role(req.Role)
	if !role.Valid() {
		return unprocessable(c, "unknown message role: "+req.Role)
	}
	if req.Content == "" {
		return badRequest(c, "content is required")
	}

	turn, err := s.svc.AddMessage(c.Context(), c.Params("id"), role, req.Content)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(turn)
}

func (s *Server) handleArchive(c *fiber.Ctx) error {
	b, err := s.svc.Archive(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(b)
}

func (s *Server) handleReactivate(c *fiber.Ctx) error {
	b, err := s.svc.Reactivate(c.Context(), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(b)
}

func (s *Server) handleDeleteBranch(c *fiber.Ctx) error {
	if err := s.svc.Delete(c.Context(), c.Params("id")); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleBookmark(c *fiber.Ctx) error {
	if err := s.mgr.Bookmark(c.Context(), c.Params("id")); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleUnbookmark(c *fiber.Ctx) error {
	if err := s.mgr.Unbookmark(c.Context(), c.Params("id")); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// FeedbackRequest is the body for POST /branches/:id/feedback.
type FeedbackRequest struct {
	Score float64 `json:"score"`
}

func (s *Server) handleFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := s.mgr.RecordFeedback(c.Context(), c.Params("id"), req.Score); err != nil {
		if req.Score < 0 || req.Score > 1 {
			return unprocessable(c, err.Error())
		}
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleScore(c *fiber.Ctx) error {
	id := c.Params("id")

	score, err := s.mgr.ScoreBranch(c.Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(map[string]any{
		"branch_id": id,
		"score":     score,
	})
}

func (s *Server) handleExport(c *fiber.Ctx) error {
	id := c.Params("id")

	format, err := export.ParseFormat(c.Query("format", string(export.FormatJSON)))
	if err != nil {
		return unprocessable(c, err.Error())
	}

	b, err := s.svc.Branch(c.Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	turns, err := s.svc.History(c.Context(), id)
	if err != nil {
		return s.respondError(c, err)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, []export.BranchExport{{Branch: b, Turns: turns}}, format); err != nil {
		return s.respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, contentTypeFor(format))
	return c.Send(buf.Bytes())
}

func contentTypeFor(format export.Format) string {
	switch format {
	case export.FormatJSON:
		return fiber.MIMEApplicationJSONCharsetUTF8
	case export.FormatCSV:
		return "text/csv; charset=utf-8"
	case export.FormatMarkdown:
		return "text/markdown; charset=utf-8"
	}
	return fiber.MIMETextPlainCharsetUTF8
}
