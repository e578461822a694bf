package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"delayrisk/domain/core"
	"delayrisk/domain/dataset"
	"delayrisk/domain/run"
	apperrors "delayrisk/internal/errors"
	"delayrisk/ports"

	"github.com/jmoiron/sqlx"
)

// RunRow is one training_runs row
type RunRow struct {
	ID                string         `db:"id"`
	CreatedAt         time.Time      `db:"created_at"`
	DataSource        string         `db:"data_source"`
	BundlePath        string         `db:"bundle_path"`
	ModelPath         string         `db:"model_path"`
	SchemaFingerprint string         `db:"schema_fingerprint"`
	Fingerprint       string         `db:"fingerprint"`
	SplitSeed         int64          `db:"split_seed"`
	CodeVersion       string         `db:"code_version"`
}

// MetricRow is one run_metrics row
type MetricRow struct {
	RunID     string  `db:"run_id"`
	Partition string  `db:"partition"`
	Metric    string  `db:"metric"`
	Value     float64 `db:"value"`
}

// RunRepository implements ports.ExperimentTracker on Postgres
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

var _ ports.ExperimentTracker = (*RunRepository)(nil)

// RecordRun inserts the run and its metrics in one transaction
func (r *RunRepository) RecordRun(ctx context.Context, summary *run.Summary, bundlePath string) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO training_runs (
		id, created_at, data_source, bundle_path, model_path,
		schema_fingerprint, fingerprint, split_seed, code_version, summary
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = tx.ExecContext(ctx, query,
		summary.RunID.String(), summary.CreatedAt.Time(), summary.DataSource, bundlePath, summary.ModelPath,
		string(summary.SchemaFingerprint), summary.Fingerprint.Value.String(), summary.Split.Seed,
		summary.Fingerprint.CodeVersion, summaryJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", summary.RunID, err)
	}

	for _, m := range metricRows(summary) {
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO run_metrics (run_id, partition, metric, value) VALUES (:run_id, :partition, :metric, :value)`, m)
		if err != nil {
			return fmt.Errorf("failed to insert metric %s/%s: %w", m.Partition, m.Metric, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", summary.RunID, err)
	}
	return nil
}

// GetRun retrieves a run summary by its ID
func (r *RunRepository) GetRun(ctx context.Context, runID core.RunID) (*run.Summary, error) {
	var summaryJSON []byte
	err := r.db.GetContext(ctx, &summaryJSON, `SELECT summary FROM training_runs WHERE id = $1`, runID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound(fmt.Sprintf("run %s", runID))
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var summary run.Summary
	if err := json.Unmarshal(summaryJSON, &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run summary: %w", err)
	}
	return &summary, nil
}

// ListRuns returns the most recent runs, newest first
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]RunRow, error) {
	query := `SELECT id, created_at, data_source, bundle_path, model_path, schema_fingerprint,
		fingerprint, split_seed, code_version
	FROM training_runs
	ORDER BY created_at DESC
	LIMIT $1`

	var rows []RunRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return rows, nil
}

// GetMetrics returns the recorded metrics of a run
func (r *RunRepository) GetMetrics(ctx context.Context, runID core.RunID) ([]MetricRow, error) {
	var rows []MetricRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT run_id, partition, metric, value FROM run_metrics WHERE run_id = $1 ORDER BY partition, metric`,
		runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	return rows, nil
}

func metricRows(summary *run.Summary) []MetricRow {
	var rows []MetricRow
	add := func(partition string, report run.MetricsReport) {
		names := make([]string, 0, len(report))
		for name := range report {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			rows = append(rows, MetricRow{
				RunID:     summary.RunID.String(),
				Partition: partition,
				Metric:    name,
				Value:     report[name],
			})
		}
	}
	add(dataset.PartitionValidation, summary.Validation)
	add(dataset.PartitionTest, summary.Test)
	return rows
}
