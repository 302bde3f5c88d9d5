package api

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/manager"
)

// Server is the API server for managing and querying the loom store.
type Server struct {
	config Config
	svc    *branch.Service
	mgr    *manager.Manager
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The manager (and its underlying branch service) is injected to allow
// sharing with other components.
func NewServer(config Config, mgr *manager.Manager, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		svc:    mgr.Service(),
		mgr:    mgr,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	app.Post("/sessions", s.handleCreateSession)
	app.Get("/sessions", s.handleListSessions)
	app.Get("/sessions/current", s.handleCurrentSession)
	app.Patch("/sessions/:id", s.handleRenameSession)
	app.Post("/sessions/:id/switch", s.handleSwitchSession)
	app.Get("/sessions/:id/branches", s.handleListBranches)
	app.Get("/sessions/:id/tree", s.handleSessionTree)
	app.Post("/sessions/:id/cleanup", s.handleCleanup)

	app.Post("/branches", s.handleFork)
	app.Get("/branches/:id", s.handleGetBranch)
	app.Patch("/branches/:id", s.handleRenameBranch)
	app.Get("/branches/:id/history", s.handleHistory)
	app.Post("/branches/:id/messages", s.handleAddMessage)
	app.Delete("/branches/:id", s.handleDeleteBranch)
	app.Post("/branches/:id/archive", s.handleArchive)
	app.Post("/branches/:id/reactivate", s.handleReactivate)
	app.Post("/branches/:id/bookmark", s.handleBookmark)
	app.Delete("/branches/:id/bookmark", s.handleUnbookmark)
	app.Post("/branches/:id/feedback", s.handleFeedback)
	app.Get("/branches/:id/score", s.handleScore)
	app.Get("/branches/:id/export", s.handleExport)

	app.Post("/merge", s.handleMerge)
	app.Post("/cherry-pick", s.handleCherryPick)
	app.Get("/compare", s.handleCompare)
	app.Get("/suggest", s.handleSuggest)
	app.Get("/search", s.handleSearch)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
