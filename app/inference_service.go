package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"path/filepath"
	"slices"

	"delayrisk/domain/core"
	"delayrisk/domain/run"
	"delayrisk/domain/schema"
	"delayrisk/internal"
	"delayrisk/internal/features"
	"delayrisk/ports"
)

// InferenceService scores feature records with one loaded model. It is safe
// for concurrent use.
type InferenceService struct {
	schema *schema.Schema
	model  ports.Classifier
	runID  core.RunID
	logger *internal.Logger
}

// RecordError reports which record of a batch failed
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string { return fmt.Sprintf("record %d: %v", e.Index, e.Err) }

func (e *RecordError) Unwrap() error { return e.Err }

// NewInferenceService binds a fitted model to a schema. The model must have
// been trained on exactly the schema's feature columns, in order.
func NewInferenceService(s *schema.Schema, model ports.Classifier, logger *internal.Logger) (*InferenceService, error) {
	if s == nil {
		s = schema.Default()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if model == nil {
		return nil, core.ErrModelNotFitted
	}
	if got, want := model.FeatureColumns(), s.FeatureColumns(); !slices.Equal(got, want) {
		return nil, fmt.Errorf("%w: model feature columns %v do not match schema %v", core.ErrDataContract, got, want)
	}
	return &InferenceService{schema: s, model: model, logger: logger.Named("inference")}, nil
}

// LoadInferenceService decodes the model at modelPath. When the bundle's
// run summary sits next to it, its schema fingerprint must match s.
func LoadInferenceService(ctx context.Context, store ports.ArtifactStore, codec ports.ModelCodec,
	modelPath string, s *schema.Schema, logger *internal.Logger) (*InferenceService, error) {
	if s == nil {
		s = schema.Default()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	data, err := store.ReadFile(ctx, modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	model, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", modelPath, err)
	}

	svc, err := NewInferenceService(s, model, logger)
	if err != nil {
		return nil, err
	}

	summaryPath := filepath.Join(filepath.Dir(modelPath), run.SummaryFile)
	raw, err := store.ReadFile(ctx, summaryPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		svc.logger.Warn("no %s next to %s, schema fingerprint not checked", run.SummaryFile, modelPath)
	case err != nil:
		return nil, fmt.Errorf("load run summary: %w", err)
	default:
		var summary run.Summary
		if err := json.Unmarshal(raw, &summary); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", core.ErrArtifactIO, summaryPath, err)
		}
		if summary.SchemaFingerprint != s.Fingerprint() {
			return nil, fmt.Errorf("%w: model trained with schema %s, serving schema is %s",
				core.ErrDataContract, summary.SchemaFingerprint.String(), s.Fingerprint().String())
		}
		svc.runID = summary.RunID
	}

	svc.logger.Info("loaded model %s (run %s)", modelPath, svc.runID)
	return svc, nil
}

// Schema returns the serving schema
func (s *InferenceService) Schema() *schema.Schema { return s.schema }

// RunID returns the training run of the loaded model, if known
func (s *InferenceService) RunID() core.RunID { return s.runID }

// Predict returns the positive-class probability for one record. Contract
// violations come back as *features.ValidationError.
func (s *InferenceService) Predict(ctx context.Context, record features.Record) (float64, error) {
	row, err := s.prepare(record)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	proba, err := s.score([][]float64{row})
	if err != nil {
		return 0, err
	}
	return proba[0], nil
}

// PredictBatch scores every record, or fails on the first invalid one with a
// *RecordError carrying its index.
func (s *InferenceService) PredictBatch(ctx context.Context, records []features.Record) ([]float64, error) {
	rows := make([][]float64, len(records))
	for i, record := range records {
		row, err := s.prepare(record)
		if err != nil {
			return nil, &RecordError{Index: i, Err: err}
		}
		rows[i] = row
	}
	if len(rows) == 0 {
		return []float64{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.score(rows)
}

func (s *InferenceService) prepare(record features.Record) ([]float64, error) {
	valid, err := features.Validate(record, s.schema.FeatureColumns())
	if err != nil {
		return nil, err
	}
	normalized, err := features.Normalize(s.schema, valid)
	if err != nil {
		return nil, err
	}
	return features.BuildRow(s.schema, normalized)
}

func (s *InferenceService) score(rows [][]float64) ([]float64, error) {
	proba, err := s.model.PredictProba(rows)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(proba) != len(rows) {
		return nil, fmt.Errorf("model returned %d probabilities for %d rows", len(proba), len(rows))
	}
	for i, p := range proba {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, fmt.Errorf("model returned probability %v for row %d, outside [0,1]", p, i)
		}
	}
	return proba, nil
}

// FormatProbability renders a probability with three decimals
func FormatProbability(p float64) string {
	return fmt.Sprintf("%.3f", p)
}
