// Package admin implements the server-side maintenance commands: account
// management and movement history imports.
package admin

import (
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/painel-dev/painel/internal/catalog"
	"github.com/painel-dev/painel/internal/config"
	"github.com/painel-dev/painel/internal/database"
	"github.com/painel-dev/painel/internal/importer"
	"github.com/painel-dev/painel/internal/logger"
)

var version = "dev" // Will be set during build

// enqueuer is the part of *asynq.Client used to hand imports to the worker
type enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// env is what every command runs against
type env struct {
	cfg         *config.Config
	db          *gorm.DB
	log         zerolog.Logger
	out         io.Writer
	newEnqueuer func() enqueuer
}

func (e *env) catalog() *catalog.Service {
	return catalog.NewService(e.db, e.cfg.KPI.SalesTarget, e.log)
}

func (e *env) importer() *importer.Importer {
	return importer.New(e.db, e.log)
}

// NewRootCmd creates the painel-admin command tree
func NewRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:   "painel-admin",
		Short: "painel-admin - manage painel accounts and data imports",
		Long: `painel-admin runs next to the painel server and uses the same
configuration (environment variables and .env).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// stdout carries command output, logs go to stderr
			log := logger.New(os.Stderr, cfg.Logging.Level, "console")

			db, err := database.Open(cfg.Database.URL, log)
			if err != nil {
				return err
			}

			e.cfg = cfg
			e.db = db
			e.log = log
			e.out = cmd.OutOrStdout()
			e.newEnqueuer = func() enqueuer {
				return asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Address})
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.db == nil {
				return nil
			}
			return database.Close(e.db)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "painel-admin version %s\n", version)
		},
	})

	root.AddCommand(newCreateUserCmd(e))
	root.AddCommand(newDeactivateUserCmd(e))
	root.AddCommand(newImportCmd(e))
	root.AddCommand(newImportPostgresCmd(e))
	root.AddCommand(newListImportsCmd(e))

	return root
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
