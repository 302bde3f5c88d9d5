package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/loomworks/loom/pkg/branch"
)

// MergeRequest is the body for POST /merge.
type MergeRequest struct {
	Sources  []string `json:"sources"`
	Target   string   `json:"target"`
	Strategy string   `json:"strategy"`
}

func (s *Server) handleMerge(c *fiber.Ctx) error {
	var req MergeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.Sources) == 0 || req.Target == "" {
		return badRequest(c, "sources and target are required")
	}

	strategy := branch.Strategy(req.Strategy)
	if !strategy.Valid() {
		return unprocessable(c, "unknown merge strategy: "+req.Strategy)
	}

	result, err := s.svc.Merge(c.Context(), req.Sources, req.Target, strategy)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// CherryPickRequest is the body for POST /cherry-pick.
type CherryPickRequest struct {
	Source     string   `json:"source"`
	Target     string   `json:"target"`
	MessageIDs []string `json:"message_ids"`
}

func (s *Server) handleCherryPick(c *fiber.Ctx) error {
	var req CherryPickRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Source == "" || req.Target == "" {
		return badRequest(c, "source and target are required")
	}
	if len(req.MessageIDs) == 0 {
		return badRequest(c, "message_ids is required")
	}

	result, err := s.svc.SelectiveMerge(c.Context(), req.Source, req.Target, req.MessageIDs)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// handleCompare aligns branch histories side by side.
// Query parameters:
//   - branches (required): comma-separated branch ids, at least two
func (s *Server) handleCompare(c *fiber.Ctx) error {
	raw := c.Query("branches")
	if raw == "" {
		return badRequest(c, "branches parameter is required")
	}

	ids := strings.Split(raw, ",")
	if len(ids) < 2 {
		return badRequest(c, "at least two branch ids are required")
	}

	comparison, err := s.mgr.Compare(c.Context(), ids)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(comparison)
}

// handleSuggest ranks navigation candidates around the current branch.
// Query parameters:
//   - session_id (required)
//   - current (required): the branch to suggest neighbors of
func (s *Server) handleSuggest(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	current := c.Query("current")
	if sessionID == "" || current == "" {
		return badRequest(c, "session_id and current parameters are required")
	}

	suggestions, err := s.mgr.Suggest(c.Context(), sessionID, current)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(map[string]any{
		"count":       len(suggestions),
		"suggestions": suggestions,
	})
}

// handleSearch runs a keyword search over message content.
// Query parameters:
//   - query (required): the search text
//   - session_id (optional): restrict to one session
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return badRequest(c, "query parameter is required")
	}

	hits, err := s.svc.Search(c.Context(), c.Query("session_id"), query)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(map[string]any{
		"count": len(hits),
		"hits":  hits,
	})
}
