package ports

import (
	"context"

	"delayrisk/domain/dataset"
	"delayrisk/domain/run"
)

// Classifier is a fitted binary model. Implementations are read-only after
// fitting and safe for concurrent use.
type Classifier interface {
	// Predict returns hard 0/1 labels.
	Predict(X [][]float64) ([]int, error)
	// PredictProba returns the positive-class probability for each row.
	PredictProba(X [][]float64) ([]float64, error)
	// FeatureColumns is the column order the model was fitted on.
	FeatureColumns() []string
}

// Trainer fits a classifier on the training partition only.
type Trainer interface {
	Fit(ctx context.Context, X *dataset.FeatureMatrix, y dataset.LabelVector, params run.Hyperparameters) (Classifier, error)
}

// ModelCodec serializes fitted classifiers for the artifact bundle.
type ModelCodec interface {
	Encode(model Classifier) ([]byte, error)
	Decode(data []byte) (Classifier, error)
}
