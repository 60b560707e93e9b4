// Package importer replaces the product catalog and its movement history
// with a fresh dataset.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/painel-dev/painel/internal/models"
)

const (
	// ChunkSize is how many history rows are loaded per step
	ChunkSize = 10000

	// insertBatchSize keeps each INSERT under SQLite's bound variable limit
	insertBatchSize = 1000
)

// Row is one product movement as found in the source data
type Row struct {
	ProductCode     string
	ProductName     string
	Date            time.Time
	OpeningStock    int
	InboundQuantity int
	SoldQuantity    int
	ClosingStock    int
}

// Source yields the rows of one import
type Source interface {
	// Name identifies the source in import runs, e.g. "csv:data.csv"
	Name() string
	Rows(ctx context.Context) ([]Row, error)
}

// Result summarizes a completed import
type Result struct {
	Products int
	Records  int
}

// Importer loads sources into the database and records every run
type Importer struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New creates an importer
func New(db *gorm.DB, logger zerolog.Logger) *Importer {
	return &Importer{
		db:     db,
		logger: logger.With().Str("component", "importer").Logger(),
	}
}

// CreateRun records a pending import, to be executed later by Run
func (i *Importer) CreateRun(ctx context.Context, sourceName string) (*models.ImportRun, error) {
	run := &models.ImportRun{
		Source: sourceName,
		Status: models.ImportRunPending,
	}
	if err := i.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to create import run: %w", err)
	}
	return run, nil
}

// Import creates a run for src, executes it and returns the finished run
func (i *Importer) Import(ctx context.Context, src Source) (*models.ImportRun, error) {
	run, err := i.CreateRun(ctx, src.Name())
	if err != nil {
		return nil, err
	}

	runErr := i.Run(ctx, run.ID, src)
	if err := models.FindByID(i.db, run.ID, run); err != nil && runErr == nil {
		return run, fmt.Errorf("failed to reload import run: %w", err)
	}
	return run, runErr
}

// MarkFailed ends a run that could not be started, e.g. because its task
// was never enqueued
func (i *Importer) MarkFailed(ctx context.Context, runID string, cause error) error {
	return i.db.WithContext(ctx).Model(&models.ImportRun{}).
		Where("id = ?", runID).
		Updates(map[string]interface{}{
			"status":       models.ImportRunFailed,
			"error":        cause.Error(),
			"completed_at": time.Now(),
		}).Error
}

// Run executes the pending import run runID with rows from src. The run ends
// completed or failed; the previous dataset survives a failure.
func (i *Importer) Run(ctx context.Context, runID string, src Source) error {
	log := i.logger.With().Str("import_run_id", runID).Str("source", src.Name()).Logger()

	var run models.ImportRun
	if err := models.FindByID(i.db.WithContext(ctx), runID, &run); err != nil {
		return fmt.Errorf("failed to load import run: %w", err)
	}
	if run.Status != models.ImportRunPending {
		log.Warn().Str("status", string(run.Status)).Msg("Import run is not pending, skipping")
		return nil
	}

	started := time.Now()
	if err := i.db.WithContext(ctx).Model(&run).Updates(map[string]interface{}{
		"status":     models.ImportRunRunning,
		"started_at": started,
	}).Error; err != nil {
		return fmt.Errorf("failed to mark import run as running: %w", err)
	}

	log.Info().Msg("Import started")

	result, err := i.load(ctx, src, log)
	completed := time.Now()
	if err != nil {
		log.Error().Err(err).Msg("Import failed")
		i.db.Model(&run).Updates(map[string]interface{}{
			"status":       models.ImportRunFailed,
			"error":        err.Error(),
			"completed_at": completed,
		})
		return err
	}

	if err := i.db.WithContext(ctx).Model(&run).Updates(map[string]interface{}{
		"status":       models.ImportRunCompleted,
		"products":     result.Products,
		"records":      result.Records,
		"completed_at": completed,
	}).Error; err != nil {
		return fmt.Errorf("failed to mark import run as completed: %w", err)
	}

	log.Info().
		Int("products", result.Products).
		Int("records", result.Records).
		Dur("duration", completed.Sub(started)).
		Msg("Import completed")

	return nil
}

func (i *Importer) load(ctx context.Context, src Source, log zerolog.Logger) (Result, error) {
	rows, err := src.Rows(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read source: %w", err)
	}
	if len(rows) == 0 {
		return Result{}, errors.New("source has no rows")
	}

	products, history := split(rows)

	var result Result
	err = i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		log.Info().Msg("Clearing previous dataset")
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.ProductHistory{}).Error; err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Product{}).Error; err != nil {
			return fmt.Errorf("failed to clear products: %w", err)
		}

		if err := tx.CreateInBatches(products, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert products: %w", err)
		}
		result.Products = len(products)
		log.Info().Int("products", len(products)).Msg("Products inserted")

		ids := make(map[string]string, len(products))
		for _, p := range products {
			ids[p.ProductCode] = p.ID
		}

		for start := 0; start < len(history); start += ChunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}

			end := min(start+ChunkSize, len(history))
			chunk := make([]models.ProductHistory, 0, end-start)
			for _, r := range history[start:end] {
				chunk = append(chunk, models.ProductHistory{
					ProductID:       ids[r.ProductCode],
					Date:            day(r.Date),
					OpeningStock:    r.OpeningStock,
					InboundQuantity: r.InboundQuantity,
					SoldQuantity:    r.SoldQuantity,
					ClosingStock:    r.ClosingStock,
				})
			}

			if err := tx.CreateInBatches(chunk, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert history rows %d-%d: %w", start, end, err)
			}
			result.Records += len(chunk)
			log.Info().Int("loaded", result.Records).Int("total", len(history)).Msg("History chunk inserted")
		}

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return result, nil
}

// split returns the unique products, first name winning per code, and the
// history rows whose product code is set
func split(rows []Row) ([]*models.Product, []Row) {
	var products []*models.Product
	seen := make(map[string]bool)
	history := make([]Row, 0, len(rows))

	for _, r := range rows {
		if r.ProductCode == "" {
			continue
		}
		if !seen[r.ProductCode] {
			seen[r.ProductCode] = true
			products = append(products, &models.Product{
				ProductCode: r.ProductCode,
				ProductName: r.ProductName,
			})
		}
		history = append(history, r)
	}

	return products, history
}

// day normalizes t to UTC midnight, the form history dates are stored in
func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
