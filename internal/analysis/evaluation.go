package analysis

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"delayrisk/domain/core"
	"delayrisk/domain/dataset"
	"delayrisk/domain/run"
	"delayrisk/ports"
)

// Evaluate scores a fitted classifier on one partition. The model is only
// read.
func Evaluate(ctx context.Context, model ports.Classifier, X *dataset.FeatureMatrix, y dataset.LabelVector) (run.MetricsReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if X == nil || X.Len() == 0 {
		return nil, core.NewInsufficientDataError("cannot evaluate an empty partition")
	}
	if X.Len() != len(y) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", core.ErrDataContract, X.Len(), len(y))
	}
	if neg, pos := y.Counts(); neg == 0 || pos == 0 {
		return nil, fmt.Errorf("%w: roc_auc needs both classes, got %d negative and %d positive", core.ErrUndefinedMetric, neg, pos)
	}

	pred, err := model.Predict(X.Rows)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	proba, err := model.PredictProba(X.Rows)
	if err != nil {
		return nil, fmt.Errorf("predict proba: %w", err)
	}

	auc, err := ROCAUC(proba, y)
	if err != nil {
		return nil, err
	}
	_, _, f1 := PrecisionRecallF1(y, pred)
	return run.NewMetricsReport(Accuracy(y, pred), f1, auc), nil
}

// Accuracy is the fraction of predictions equal to the label.
func Accuracy(yTrue dataset.LabelVector, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// PrecisionRecallF1 computes positive-class metrics; a zero denominator yields 0.
func PrecisionRecallF1(yTrue dataset.LabelVector, yPred []int) (precision, recall, f1 float64) {
	var tp, fp, fn float64
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] == 0:
			fp++
		case yPred[i] == 0 && yTrue[i] == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// ROCAUC is the area under the ROC curve of scores against binary labels.
// Tied scores contribute half credit. Labels must contain both classes.
func ROCAUC(scores []float64, y dataset.LabelVector) (float64, error) {
	if len(scores) != len(y) {
		return 0, fmt.Errorf("%w: %d scores but %d labels", core.ErrDataContract, len(scores), len(y))
	}
	if neg, pos := y.Counts(); neg == 0 || pos == 0 {
		return 0, fmt.Errorf("%w: roc_auc needs both classes, got %d negative and %d positive", core.ErrUndefinedMetric, neg, pos)
	}

	for i, s := range scores {
		if math.IsNaN(s) {
			return 0, fmt.Errorf("%w: score %d is NaN", core.ErrUndefinedMetric, i)
		}
	}

	sorted := append([]float64(nil), scores...)
	classes := make([]bool, len(y))
	for i, v := range y {
		classes[i] = v == 1
	}
	stat.SortWeightedLabeled(sorted, classes, nil)

	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}
