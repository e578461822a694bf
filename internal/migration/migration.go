package migration

import (
	"context"

	"delayrisk/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner creates the experiment tracking tables
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order. Every statement
// is idempotent, so Run may be called on each start.
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createTrainingRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create training_runs table")
	}

	if err := r.createRunMetricsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create run_metrics table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createTrainingRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS training_runs (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			data_source TEXT NOT NULL,
			bundle_path TEXT NOT NULL,
			model_path TEXT NOT NULL,
			schema_fingerprint VARCHAR(64) NOT NULL,
			fingerprint VARCHAR(64) NOT NULL,
			split_seed BIGINT NOT NULL,
			code_version TEXT NOT NULL DEFAULT '',
			summary JSONB NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createRunMetricsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS run_metrics (
			run_id TEXT NOT NULL REFERENCES training_runs(id) ON DELETE CASCADE,
			partition VARCHAR(32) NOT NULL,
			metric VARCHAR(32) NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, partition, metric)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON training_runs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_runs_schema ON training_runs(schema_fingerprint)",
		"CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON training_runs(fingerprint)",
		"CREATE INDEX IF NOT EXISTS idx_metrics_metric ON run_metrics(partition, metric)",
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
