// Package servecmder provides the serve command for running the loom API
// server.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/api"
	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/logger"
	"github.com/loomworks/loom/pkg/workspace"
)

type serveCommander struct {
	listen         string
	storageBackend string
	sqlitePath     string
	postgresDSN    string
	eventsBackend  string
	kafkaBrokers   string
	kafkaTopic     string
	debug          bool

	logger *slog.Logger
	config *config.Config
}

const serveLongDesc string = `Run the loom API server.

Serves the HTTP API for inspecting and managing the conversation store:
sessions, branches, merges, cherry-picks, comparisons, search, and export.

Settings follow the usual precedence: flags, then LOOM_* environment
variables, then config.toml, then defaults. With the kafka events backend,
branch lifecycle events are published as they happen.

Examples:
  loom serve
  loom serve --listen :9090 --sqlite /tmp/loom.db
  loom serve --storage-backend postgres --postgres-dsn postgres://...
  loom serve --events-backend kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the loom API server"

// serveFlagKeys lists the registry flags the serve command exposes.
var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageBackend,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagEventsBackend,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	flags := config.DefaultFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("initializing config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, flags, serveFlagKeys)
			cmder.config = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	config.AddStringFlag(cmd, flags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, flags, config.FlagStorageBackend, &cmder.storageBackend)
	config.AddStringFlag(cmd, flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, flags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, flags, config.FlagEventsBackend, &cmder.eventsBackend)
	config.AddStringFlag(cmd, flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, flags, config.FlagKafkaTopic, &cmder.kafkaTopic)

	return cmd
}

func (c *serveCommander) run(configDir string) error {
	c.logger = logger.New(logger.WithDebug(c.debug))

	ws, err := workspace.OpenWithConfig(c.config, configDir, c.logger)
	if err != nil {
		return err
	}
	defer ws.Close()

	apiConfig := api.Config{
		ListenAddr: c.config.API.Listen,
	}
	server := api.NewServer(apiConfig, ws.Manager, c.logger)

	c.logger.Info("starting API server",
		"listen", c.config.API.Listen,
		"storage", c.config.Storage.Backend,
		"events", c.config.Events.Backend,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
