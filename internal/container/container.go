package container

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"delayrisk/adapters/excel"
	"delayrisk/adapters/filestore"
	"delayrisk/adapters/forest"
	"delayrisk/adapters/postgres"
	"delayrisk/app"
	"delayrisk/domain/run"
	"delayrisk/domain/schema"
	"delayrisk/internal"
	"delayrisk/internal/config"
	apperrors "delayrisk/internal/errors"
	"delayrisk/internal/migration"
	"delayrisk/internal/tracking"
	"delayrisk/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger
	Schema *schema.Schema

	// Infrastructure
	DB *sqlx.DB

	// Adapters
	Reader  *excel.DataReader
	Trainer *forest.Trainer
	Codec   forest.Codec
	Store   *filestore.BundleStore
	Tracker ports.ExperimentTracker

	// Services
	Training *app.TrainingService
}

// New creates a new dependency injection container. The tracking database is
// only connected when DATABASE_URL is set.
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	sch, err := config.LoadSchema(cfg.Data.SchemaFile)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Schema:  sch,
		Reader:  excel.NewDataReader(excel.DefaultExcelConfig(), logger),
		Trainer: forest.NewTrainer(logger),
	}

	c.Store, err = filestore.NewBundleStore(cfg.Training.ArtifactDir, logger)
	if err != nil {
		return nil, err
	}
	if _, err := c.Store.CleanupStaging(ctx, time.Hour); err != nil {
		logger.Warn("staging cleanup failed: %v", err)
	}

	if err := c.initTracker(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, err
	}

	c.Training = app.NewTrainingService(c.Reader, c.Trainer, c.Codec, c.Store, c.Tracker, logger)
	return c, nil
}

// initTracker wires the Postgres tracker when configured, the log sink otherwise
func (c *Container) initTracker(ctx context.Context) error {
	if !c.Config.Database.Enabled() {
		c.Tracker = tracking.NewLogTracker(c.Logger)
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("failed to connect to tracking database: %w", err))
	}
	c.DB = db

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return apperrors.WithCode(apperrors.CodeDatabaseError, fmt.Errorf("failed to migrate tracking database: %w", err))
	}

	c.Tracker = tracking.NewRetryTracker(postgres.NewRunRepository(db), c.Logger)
	c.Logger.Info("experiment tracking in postgres enabled")
	return nil
}

// TrainRequest builds a training request from configuration
func (c *Container) TrainRequest(dataPath string) (app.TrainRequest, error) {
	if dataPath == "" {
		dataPath = c.Config.Data.Path
	}
	params, err := config.LoadHyperparameters(c.Config.Training.ConfigFile)
	if err != nil {
		return app.TrainRequest{}, err
	}
	return app.TrainRequest{
		DataPath:        dataPath,
		Schema:          c.Schema,
		Hyperparameters: params,
		SplitSeed:       c.Config.Training.SplitSeed,
		FitTimeout:      c.Config.Training.FitTimeout,
		CodeVersion:     c.Config.Training.CodeVersion,
	}, nil
}

// ResolveModelPath returns modelPath, the configured MODEL_PATH, or the model
// of the newest bundle, in that order.
func (c *Container) ResolveModelPath(ctx context.Context, modelPath string) (string, error) {
	if modelPath == "" {
		modelPath = c.Config.Inference.ModelPath
	}
	if modelPath != "" {
		return modelPath, nil
	}
	bundle, err := c.Store.LatestBundle(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(bundle, run.ModelFile), nil
}

// InferenceService loads the model to serve
func (c *Container) InferenceService(ctx context.Context, modelPath string) (*app.InferenceService, error) {
	path, err := c.ResolveModelPath(ctx, modelPath)
	if err != nil {
		return nil, err
	}
	return app.LoadInferenceService(ctx, c.Store, c.Codec, path, c.Schema, c.Logger)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	_ = c.Logger.Sync()

	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
