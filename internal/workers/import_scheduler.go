package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/painel-dev/painel/internal/config"
	"github.com/painel-dev/painel/internal/importer"
	"github.com/painel-dev/painel/internal/models"
	"github.com/painel-dev/painel/internal/tasks"
)

// taskEnqueuer is the part of *asynq.Client the scheduler uses
type taskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type importScheduler struct {
	client   taskEnqueuer
	db       *gorm.DB
	importer *importer.Importer
	file     string
	schedule cron.Schedule
	nextRun  time.Time
	logger   zerolog.Logger
}

// StartImportScheduler runs a periodic check (every minute) that enqueues a
// CSV import of cfg.Import.File whenever cfg.Import.Schedule is due. It
// returns immediately when no schedule is configured.
func StartImportScheduler(client *asynq.Client, db *gorm.DB, cfg *config.Config, logger zerolog.Logger) {
	if cfg.Import.Schedule == "" || cfg.Import.File == "" {
		logger.Info().Msg("No import schedule configured")
		return
	}

	s, err := newImportScheduler(client, db, cfg.Import.File, cfg.Import.Schedule, time.Now(), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Import scheduler disabled")
		return
	}

	logger.Info().
		Str("schedule", cfg.Import.Schedule).
		Str("file", cfg.Import.File).
		Time("next_run", s.nextRun).
		Msg("Import scheduler started")

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for now := range ticker.C {
		s.check(now)
	}
}

func newImportScheduler(client taskEnqueuer, db *gorm.DB, file, expr string, from time.Time, logger zerolog.Logger) (*importScheduler, error) {
	schedule, err := parseSchedule(expr)
	if err != nil {
		return nil, err
	}

	return &importScheduler{
		client:   client,
		db:       db,
		importer: importer.New(db, logger),
		file:     file,
		schedule: schedule,
		nextRun:  schedule.Next(from),
		logger:   logger.With().Str("component", "import_scheduler").Logger(),
	}, nil
}

// parseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week)
func parseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid import schedule '%s': %w", expr, err)
	}
	return schedule, nil
}

// check enqueues an import when the next run is due. It reports whether a
// task was enqueued.
func (s *importScheduler) check(now time.Time) bool {
	if now.Before(s.nextRun) {
		s.logger.Debug().Time("next_run", s.nextRun).Msg("Import not due yet")
		return false
	}

	// Advance first so a failure below waits for the next slot instead of
	// retrying every minute
	s.nextRun = s.schedule.Next(now)

	var active int64
	if err := s.db.Model(&models.ImportRun{}).
		Where("status IN ?", []models.ImportRunStatus{models.ImportRunPending, models.ImportRunRunning}).
		Count(&active).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count active import runs")
		return false
	}
	if active > 0 {
		s.logger.Warn().Int64("active_runs", active).Msg("Import still in progress, skipping scheduled import")
		return false
	}

	run, err := s.importer.CreateRun(context.Background(), importer.CSVFile{Path: s.file}.Name())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create scheduled import run")
		return false
	}

	task, err := tasks.NewImportCSVTask(run.ID, s.file)
	if err != nil {
		s.logger.Error().Err(err).Str("import_run_id", run.ID).Msg("Failed to create import task")
		return false
	}

	if _, err := s.client.Enqueue(task, asynq.Timeout(2*time.Hour), asynq.MaxRetry(0)); err != nil {
		s.logger.Error().Err(err).Str("import_run_id", run.ID).Msg("Failed to enqueue import task")
		if err := s.importer.MarkFailed(context.Background(), run.ID, err); err != nil {
			s.logger.Error().Err(err).Str("import_run_id", run.ID).Msg("Failed to mark import run as failed")
		}
		return false
	}

	s.logger.Info().
		Str("import_run_id", run.ID).
		Time("next_run", s.nextRun).
		Msg("Scheduled import enqueued")
	return true
}
