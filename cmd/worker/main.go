package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/painel-dev/painel/internal/config"
	"github.com/painel-dev/painel/internal/database"
	"github.com/painel-dev/painel/internal/logger"
	"github.com/painel-dev/painel/internal/tasks"
	"github.com/painel-dev/painel/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Import worker failed")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Str("version", version).Str("redis", cfg.Redis.Address).Msg("Starting painel import worker")

	db, err := database.Open(cfg.Database.URL, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	redis := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	// The scheduler enqueues through its own client
	client := asynq.NewClient(redis)
	defer client.Close()

	// An import replaces the whole dataset, so a single worker keeps runs
	// from overlapping
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: 1,
		Logger:      &asynqLogger{log: log},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task_type", task.Type()).Msg("Import task failed")
		}),
	})

	if err := srv.Start(newMux(db, log)); err != nil {
		return fmt.Errorf("failed to start asynq server: %w", err)
	}

	go workers.StartImportScheduler(client, db, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("Received shutdown signal, waiting for the running import to finish...")
	srv.Shutdown()

	log.Info().Msg("Worker shutdown complete")
	return nil
}

func newMux(db *gorm.DB, log zerolog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()

	mux.HandleFunc(tasks.TypeImportCSV, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleImportCSV(ctx, t, db, log)
	})
	mux.HandleFunc(tasks.TypeImportPostgres, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleImportPostgres(ctx, t, db, log)
	})

	return mux
}

// asynqLogger adapts zerolog to asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) { l.log.Debug().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...interface{})  { l.log.Info().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...interface{})  { l.log.Warn().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...interface{}) { l.log.Error().Msg(fmt.Sprint(args...)) }
func (l *asynqLogger) Fatal(args ...interface{}) { l.log.Fatal().Msg(fmt.Sprint(args...)) }
