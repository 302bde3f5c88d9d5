// Package workspace assembles a working loom stack from configuration: the
// storage repository, the event publisher, the branch service, and the
// manager. CLI commands and the API server open one workspace and share it.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/loomworks/loom/pkg/branch"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/conversation"
	"github.com/loomworks/loom/pkg/dotdir"
	"github.com/loomworks/loom/pkg/eventstream"
	"github.com/loomworks/loom/pkg/eventstream/kafka"
	"github.com/loomworks/loom/pkg/eventstream/nop"
	"github.com/loomworks/loom/pkg/manager"
	"github.com/loomworks/loom/pkg/storage"
	"github.com/loomworks/loom/pkg/storage/postgres"
	"github.com/loomworks/loom/pkg/storage/sqlite"
	"github.com/loomworks/loom/pkg/tree"
)

const dbFileName = "loom.db"

// Workspace is a fully wired loom stack.
type Workspace struct {
	Config  *config.Config
	Dir     string
	Repo    storage.Repository
	Events  eventstream.Publisher
	Service *branch.Service
	Manager *manager.Manager
	Dotdir  *dotdir.Manager
}

// Open resolves the .loom/ directory, loads configuration, and wires the
// stack. If configDir is non-empty it overrides dotdir resolution.
func Open(configDir string, log *slog.Logger) (*Workspace, error) {
	ddm := dotdir.NewManager()
	dir, err := ddm.Target(configDir)
	if err != nil {
		return nil, err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, err
	}
	cfg, err := cfger.LoadConfig()
	if err != nil {
		return nil, err
	}

	return openWith(cfg, dir, ddm, log)
}

// OpenWithConfig wires the stack from an already-loaded config, resolving
// only the .loom/ directory. Used by commands that layer viper/flag
// precedence on top of the file config.
func OpenWithConfig(cfg *config.Config, configDir string, log *slog.Logger) (*Workspace, error) {
	ddm := dotdir.NewManager()
	dir, err := ddm.Target(configDir)
	if err != nil {
		return nil, err
	}
	return openWith(cfg, dir, ddm, log)
}

func openWith(cfg *config.Config, dir string, ddm *dotdir.Manager, log *slog.Logger) (*Workspace, error) {
	repo, err := openRepository(cfg, dir)
	if err != nil {
		return nil, err
	}

	events, err := openPublisher(cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}

	svc := branch.NewService(repo,
		branch.WithLogger(log),
		branch.WithPublisher(events),
	)

	mgr := manager.New(svc, tree.ScoreWeights{
		Momentum: cfg.Score.Momentum,
		Recency:  cfg.Score.Recency,
		Feedback: cfg.Score.Feedback,
	})

	return &Workspace{
		Config:  cfg,
		Dir:     dir,
		Repo:    repo,
		Events:  events,
		Service: svc,
		Manager: mgr,
		Dotdir:  ddm,
	}, nil
}

func openRepository(cfg *config.Config, dir string) (storage.Repository, error) {
	switch cfg.Storage.Backend {
	case "", "sqlite":
		path := cfg.Storage.SQLitePath
		if path == "" {
			path = filepath.Join(dir, dbFileName)
		}
		return sqlite.New(path)

	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage backend is postgres but storage.postgres_dsn is empty")
		}
		return postgres.New(cfg.Storage.PostgresDSN)
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

func openPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	switch cfg.Events.Backend {
	case "", "none":
		return nop.NewPublisher(), nil

	case "kafka":
		brokers := splitBrokers(cfg.Events.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, fmt.Errorf("events backend is kafka but events.kafka_brokers is empty")
		}
		return kafka.NewPublisher(brokers, cfg.Events.KafkaTopic), nil
	}

	return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Pointer loads the persisted working position, or nil when none is set.
func (w *Workspace) Pointer() (*dotdir.Pointer, error) {
	return w.Dotdir.LoadPointer(w.Dir)
}

// SavePointer persists the working position.
func (w *Workspace) SavePointer(p *dotdir.Pointer) error {
	return w.Dotdir.SavePointer(p, w.Dir)
}

// Position resolves the working session and branch for a command: the
// persisted pointer when one exists, otherwise the current session's root
// branch.
func (w *Workspace) Position(ctx context.Context) (*dotdir.Pointer, error) {
	p, err := w.Pointer()
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	sess, err := w.Service.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}

	branches, err := w.Service.Branches(ctx, sess.ID, storage.BranchFilter{})
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		if b.Root() {
			return &dotdir.Pointer{
				SessionID:  sess.ID,
				BranchID:   b.ID,
				BranchName: b.Name,
			}, nil
		}
	}
	return nil, fmt.Errorf("session %s has no root branch", sess.ID)
}

// ResolveBranch resolves a branch reference within a session: first as an
// id, then as a unique branch name.
func (w *Workspace) ResolveBranch(ctx context.Context, sessionID, ref string) (*conversation.Branch, error) {
	b, err := w.Service.Branch(ctx, ref)
	if err == nil && b.SessionID == sessionID {
		return b, nil
	}

	branches, err := w.Service.Branches(ctx, sessionID, storage.BranchFilter{})
	if err != nil {
		return nil, err
	}

	var match *conversation.Branch
	for _, cand := range branches {
		if cand.Name == ref {
			if match != nil {
				return nil, fmt.Errorf("branch name %q is ambiguous, use the id", ref)
			}
			match = cand
		}
	}
	if match == nil {
		return nil, &storage.ErrNotFound{Kind: "branch", ID: ref}
	}
	return match, nil
}

// Close releases the publisher and the repository.
func (w *Workspace) Close() error {
	var firstErr error
	if err := w.Events.Close(); err != nil {
		firstErr = err
	}
	if err := w.Repo.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
