package admin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/painel-dev/painel/internal/importer"
	"github.com/painel-dev/painel/internal/models"
	"github.com/painel-dev/painel/internal/pgclient"
	"github.com/painel-dev/painel/internal/tasks"
)

const importTimeout = 2 * time.Hour

func newImportCmd(e *env) *cobra.Command {
	var async bool

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replace the movement history with a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportCSV(cmd.Context(), e, args[0], async)
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Enqueue the import for the worker instead of running it here")

	return cmd
}

func newImportPostgresCmd(e *env) *cobra.Command {
	var async, withUsers bool

	cmd := &cobra.Command{
		Use:   "import-postgres <connection-string>",
		Short: "Replace the movement history with the data of a legacy PostgreSQL deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := pgclient.NewClient(args[0])
			if err != nil {
				return err
			}
			defer client.Close()

			return runImportPostgres(cmd.Context(), e, client, args[0], async, withUsers)
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Enqueue the import for the worker instead of running it here")
	cmd.Flags().BoolVar(&withUsers, "with-users", false, "Also copy the legacy accounts, keeping their password hashes")

	return cmd
}

func newListImportsCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list-imports",
		Short: "Show the most recent import runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListImports(cmd.Context(), e, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")

	return cmd
}

func runImportCSV(ctx context.Context, e *env, path string, async bool) error {
	// the worker may run from another directory
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	src := importer.CSVFile{Path: abs}
	if async {
		return enqueueImport(ctx, e, src.Name(), func(runID string) (*asynq.Task, error) {
			return tasks.NewImportCSVTask(runID, abs)
		})
	}

	run, err := e.importer().Import(ctx, src)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	printRun(e, run)
	return nil
}

// legacySource is what the PostgreSQL import needs from pgclient.Client
type legacySource interface {
	importer.Source
	Ping(ctx context.Context) error
	GetVersion(ctx context.Context) (string, error)
	Users(ctx context.Context) ([]pgclient.LegacyUser, error)
}

func runImportPostgres(ctx context.Context, e *env, src legacySource, connectionString string, async, withUsers bool) error {
	if err := src.Ping(ctx); err != nil {
		return err
	}

	if version, err := src.GetVersion(ctx); err == nil {
		fmt.Fprintf(e.out, "Connected to PostgreSQL %s\n", version)
	}

	if withUsers {
		users, err := src.Users(ctx)
		if err != nil {
			return err
		}

		created := 0
		for _, u := range users {
			ok, err := e.catalog().ImportUser(ctx, u.Username, u.PasswordHash, u.IsActive)
			if err != nil {
				return fmt.Errorf("failed to import user '%s': %w", u.Username, err)
			}
			if ok {
				created++
			}
		}
		fmt.Fprintf(e.out, "✓ Imported %d of %d users (existing usernames kept)\n", created, len(users))
	}

	if async {
		return enqueueImport(ctx, e, src.Name(), func(runID string) (*asynq.Task, error) {
			return tasks.NewImportPostgresTask(runID, connectionString)
		})
	}

	run, err := e.importer().Import(ctx, src)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	printRun(e, run)
	return nil
}

// enqueueImport records a pending run and hands it to the worker
func enqueueImport(ctx context.Context, e *env, sourceName string, newTask func(runID string) (*asynq.Task, error)) error {
	imp := e.importer()

	run, err := imp.CreateRun(ctx, sourceName)
	if err != nil {
		return err
	}

	task, err := newTask(run.ID)
	if err == nil {
		client := e.newEnqueuer()
		defer client.Close()
		_, err = client.Enqueue(task, asynq.Timeout(importTimeout), asynq.MaxRetry(0))
	}
	if err != nil {
		if markErr := imp.MarkFailed(ctx, run.ID, err); markErr != nil {
			e.log.Error().Err(markErr).Str("import_run_id", run.ID).Msg("Failed to mark import run as failed")
		}
		return fmt.Errorf("failed to enqueue import: %w", err)
	}

	fmt.Fprintf(e.out, "✓ Import run %s enqueued\n", run.ID)
	fmt.Fprintln(e.out, "Follow it with: painel-admin list-imports")
	return nil
}

func printRun(e *env, run *models.ImportRun) {
	fmt.Fprintf(e.out, "✓ Imported %d products and %d history records (run %s)\n", run.Products, run.Records, run.ID)
}

func runListImports(ctx context.Context, e *env, limit int) error {
	runs, err := e.catalog().ListImportRuns(ctx, limit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(e.out, "No imports yet")
		return nil
	}

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tPRODUCTS\tRECORDS\tCREATED")
	for _, r := range runs {
		status := string(r.Status)
		if r.Error != "" {
			status += ": " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Source, status, r.Products, r.Records, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
