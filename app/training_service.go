package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"delayrisk/domain/core"
	"delayrisk/domain/dataset"
	"delayrisk/domain/run"
	"delayrisk/domain/schema"
	"delayrisk/internal"
	"delayrisk/internal/analysis"
	"delayrisk/internal/features"
	"delayrisk/internal/profiling"
	"delayrisk/internal/report"
	"delayrisk/ports"
)

// TrainingService runs the offline training pipeline end to end
type TrainingService struct {
	reader   ports.TableReader
	trainer  ports.Trainer
	codec    ports.ModelCodec
	store    ports.ArtifactStore
	tracker  ports.ExperimentTracker
	profiler *profiling.DataProfiler
	logger   *internal.Logger
}

// TrainRequest defines the inputs of one training run
type TrainRequest struct {
	DataPath        string
	Schema          *schema.Schema // nil means the reference schema
	Hyperparameters run.Hyperparameters
	SplitSeed       int64
	FitTimeout      time.Duration // zero means no deadline beyond ctx
	CodeVersion     string
	RunID           core.RunID // optional, generated if empty
}

// NewTrainingService creates a training service. tracker may be nil.
func NewTrainingService(reader ports.TableReader, trainer ports.Trainer, codec ports.ModelCodec,
	store ports.ArtifactStore, tracker ports.ExperimentTracker, logger *internal.Logger) *TrainingService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &TrainingService{
		reader:   reader,
		trainer:  trainer,
		codec:    codec,
		store:    store,
		tracker:  tracker,
		profiler: profiling.NewDataProfiler(),
		logger:   logger.Named("training"),
	}
}

// Run trains, evaluates and persists one model. Nothing is written unless
// every step before the bundle write succeeds.
func (s *TrainingService) Run(ctx context.Context, req TrainRequest) (*run.Summary, error) {
	startTime := time.Now()

	sch := req.Schema
	if sch == nil {
		sch = schema.Default()
	}
	if err := req.Hyperparameters.Validate(); err != nil {
		return nil, err
	}
	runID := req.RunID
	if runID == "" {
		runID = core.NewRunID()
	}
	logger := s.logger.With("run_id", runID.String())

	table, err := s.reader.ReadTable(ctx, req.DataPath)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	X, y, err := features.NewLoader(sch, logger).Load(table)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	partitioner := analysis.NewDataPartitionerWithSeed(req.SplitSeed)
	split, err := partitioner.Split(X, y)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	if err := analysis.ValidatePartitions(split, X.Len()); err != nil {
		return nil, err
	}
	logger.Info("split %d rows: train=%d validation=%d test=%d",
		X.Len(), split.Train.Size(), split.Validation.Size(), split.Test.Size())

	model, err := s.fit(ctx, split.Train, req)
	if err != nil {
		return nil, err
	}

	valMetrics, err := analysis.Evaluate(ctx, model, split.Validation.Features, split.Validation.Labels)
	if err != nil {
		return nil, fmt.Errorf("evaluate validation partition: %w", err)
	}
	testMetrics, err := analysis.Evaluate(ctx, model, split.Test.Features, split.Test.Labels)
	if err != nil {
		return nil, fmt.Errorf("evaluate test partition: %w", err)
	}

	profile, err := s.profiler.ProfileMatrix(split.Train.Features)
	if err != nil {
		return nil, fmt.Errorf("profile training features: %w", err)
	}

	bundlePath := s.store.BundlePath(runID)
	summary := &run.Summary{
		RunID:             runID,
		CreatedAt:         core.Now(),
		DataSource:        table.Source,
		ModelPath:         filepath.Join(bundlePath, run.ModelFile),
		SchemaFingerprint: sch.Fingerprint(),
		FeatureColumns:    sch.FeatureColumns(),
		LabelColumn:       sch.LabelColumn(),
		DroppedColumns:    sch.DropColumns(),
		Hyperparameters:   req.Hyperparameters,
		Split:             splitInfo(split.Stats),
		Validation:        valMetrics,
		Test:              testMetrics,
		FeatureProfile:    profile,
		Fingerprint: run.NewFingerprint(sch.Fingerprint(), table.Fingerprint(), req.SplitSeed,
			req.Hyperparameters, req.CodeVersion),
	}
	if err := summary.Validate(); err != nil {
		return nil, err
	}

	files, err := s.bundleFiles(model, summary)
	if err != nil {
		return nil, err
	}
	written, err := s.store.WriteBundle(ctx, runID, files)
	if err != nil {
		return nil, fmt.Errorf("persist bundle: %w", err)
	}

	logger.Info("run complete in %s: validation %s, test %s -> %s",
		time.Since(startTime).Round(time.Millisecond), formatMetrics(valMetrics), formatMetrics(testMetrics), written)

	// The bundle is already committed; a tracker outage must not fail the run.
	if s.tracker != nil {
		if err := s.tracker.RecordRun(ctx, summary, written); err != nil {
			logger.Warn("experiment tracker failed to record run: %v", err)
		}
	}
	return summary, nil
}

func (s *TrainingService) fit(ctx context.Context, train dataset.Partition, req TrainRequest) (ports.Classifier, error) {
	if req.FitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.FitTimeout)
		defer cancel()
	}
	model, err := s.trainer.Fit(ctx, train.Features, train.Labels, req.Hyperparameters)
	if err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}
	return model, nil
}

func (s *TrainingService) bundleFiles(model ports.Classifier, summary *run.Summary) (map[string][]byte, error) {
	modelBytes, err := s.codec.Encode(model)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	summaryBytes, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode run summary: %v", core.ErrArtifactIO, err)
	}
	md := report.Markdown(summary)
	return map[string][]byte{
		run.ModelFile:   modelBytes,
		run.SummaryFile: summaryBytes,
		run.ReportFile:  md,
		run.ReportHTML:  report.HTML(md, "Training run "+summary.RunID.String()),
	}, nil
}

func splitInfo(stats dataset.SplitStatistics) run.SplitInfo {
	info := run.SplitInfo{
		Method:     stats.Method,
		Seed:       stats.Seed,
		Partitions: make(map[string]run.PartitionStats, len(stats.Sizes)),
	}
	for name, size := range stats.Sizes {
		info.Partitions[name] = run.PartitionStats{Size: size, PositiveRate: stats.PositiveRates[name]}
	}
	return info
}

func formatMetrics(m run.MetricsReport) string {
	return fmt.Sprintf("acc=%.3f f1=%.3f auc=%.3f", m[run.MetricAccuracy], m[run.MetricF1], m[run.MetricROCAUC])
}
