package workers

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/painel-dev/painel/internal/importer"
	"github.com/painel-dev/painel/internal/pgclient"
	"github.com/painel-dev/painel/internal/tasks"
)

// HandleImportCSV loads the CSV file named in the task into its import run
func HandleImportCSV(ctx context.Context, t *asynq.Task, db *gorm.DB, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	logger.Info().
		Str("import_run_id", payload.ImportRunID).
		Str("path", payload.Path).
		Msg("Processing CSV import task")

	return runImport(ctx, db, logger, payload.ImportRunID, importer.CSVFile{Path: payload.Path})
}

// HandleImportPostgres loads the legacy PostgreSQL database named in the task
// into its import run
func HandleImportPostgres(ctx context.Context, t *asynq.Task, db *gorm.DB, logger zerolog.Logger) error {
	payload, err := tasks.ParseTaskPayload(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	logger.Info().
		Str("import_run_id", payload.ImportRunID).
		Msg("Processing PostgreSQL import task")

	client, err := pgclient.NewClient(payload.ConnectionString)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		// the server may come back, let asynq retry
		return err
	}

	return runImport(ctx, db, logger, payload.ImportRunID, client)
}

// runImport executes the run. A failed run is recorded as failed and never
// retried, as the run is no longer pending.
func runImport(ctx context.Context, db *gorm.DB, logger zerolog.Logger, runID string, src importer.Source) error {
	if err := importer.New(db, logger).Run(ctx, runID, src); err != nil {
		return fmt.Errorf("import run %s failed: %v: %w", runID, err, asynq.SkipRetry)
	}
	return nil
}
