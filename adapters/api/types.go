package api

import (
	"context"

	"delayrisk/domain/core"
	"delayrisk/domain/schema"
	"delayrisk/internal/features"
)

// Predictor scores feature records; *app.InferenceService implements it.
type Predictor interface {
	Predict(ctx context.Context, record features.Record) (float64, error)
	PredictBatch(ctx context.Context, records []features.Record) ([]float64, error)
	Schema() *schema.Schema
	RunID() core.RunID
}

// PredictResponse is the body of a successful single prediction
type PredictResponse struct {
	Probability float64 `json:"probability"`
	Display     string  `json:"display"`
}

// BatchRequest is the body of POST /v1/predict/batch
type BatchRequest struct {
	Records []map[string]any `json:"records"`
}

// BatchResponse carries one probability per input record, in order
type BatchResponse struct {
	Predictions []PredictResponse `json:"predictions"`
}

// ErrorResponse is returned for failed requests
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ContractErrorResponse lists every violation of a rejected record. Index is
// set for batch requests.
type ContractErrorResponse struct {
	Error   string                  `json:"error"`
	Code    string                  `json:"code"`
	Index   *int                    `json:"index,omitempty"`
	Extra   []string                `json:"extra"`
	Missing []string                `json:"missing"`
	Invalid []features.InvalidValue `json:"invalid"`
}

// SchemaResponse describes the serving contract
type SchemaResponse struct {
	FeatureColumns []string          `json:"feature_columns"`
	LabelColumn    string            `json:"label_column"`
	DropColumns    []string          `json:"drop_columns"`
	ClipRules      []schema.ClipRule `json:"clip_rules"`
	Fingerprint    string            `json:"fingerprint"`
	RunID          string            `json:"run_id,omitempty"`
}
