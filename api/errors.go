package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/storage"
)

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`

	// Conflicts is populated when a manual merge aborts, so the caller can
	// re-invoke with an explicit strategy.
	Conflicts []branch.Conflict `json:"conflicts,omitempty"`
}

// respondError maps domain errors to HTTP statuses: missing entities to 404,
// state conflicts to 409, rejected inputs to 422, everything else to 500.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	var (
		notFound   *storage.ErrNotFound
		forkPoint  *storage.ErrInvalidForkPoint
		notActive  *storage.ErrBranchNotActive
		transition *storage.ErrInvalidTransition
		selection  *storage.ErrInvalidSelection
		concurrent *storage.ErrConcurrentModification
		busy       *branch.ErrBranchBusy
		conflicts  *branch.MergeConflictError
	)

	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})

	case errors.As(err, &conflicts):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:     err.Error(),
			Conflicts: conflicts.Conflicts,
		})

	case errors.As(err, &busy),
		errors.As(err, &concurrent),
		errors.As(err, &transition),
		errors.As(err, &notActive):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: err.Error()})

	case errors.As(err, &forkPoint),
		errors.As(err, &selection):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: err.Error()})
	}

	s.logger.Error("request failed", "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

func unprocessable(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Error: msg})
}
