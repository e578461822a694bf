package forest

import (
	"fmt"

	"delayrisk/domain/core"
	"delayrisk/domain/run"
)

// Forest is a fitted random forest. It is never modified after Fit returns,
// so concurrent predictions are safe.
type Forest struct {
	columns []string
	params  run.Hyperparameters
	trees   []Tree
}

// FeatureColumns returns the column order the forest was fitted on.
func (f *Forest) FeatureColumns() []string { return append([]string(nil), f.columns...) }

// Hyperparameters returns the configuration the forest was fitted with.
func (f *Forest) Hyperparameters() run.Hyperparameters { return f.params }

// NumTrees returns the ensemble size.
func (f *Forest) NumTrees() int { return len(f.trees) }

// MaxDepth returns the depth of the deepest tree.
func (f *Forest) MaxDepth() int {
	d := 0
	for i := range f.trees {
		d = max(d, f.trees[i].Depth())
	}
	return d
}

// PredictProba averages the leaf probabilities of every tree.
func (f *Forest) PredictProba(X [][]float64) ([]float64, error) {
	if len(f.trees) == 0 {
		return nil, core.ErrModelNotFitted
	}
	out := make([]float64, len(X))
	for i, row := range X {
		if len(row) != len(f.columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, model expects %d", core.ErrDataContract, i, len(row), len(f.columns))
		}
		sum := 0.0
		for t := range f.trees {
			sum += f.trees[t].proba(row)
		}
		p := sum / float64(len(f.trees))
		out[i] = min(1, max(0, p))
	}
	return out, nil
}

// Predict labels a row positive when its probability exceeds 0.5.
func (f *Forest) Predict(X [][]float64) ([]int, error) {
	proba, err := f.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(proba))
	for i, p := range proba {
		if p > 0.5 {
			out[i] = 1
		}
	}
	return out, nil
}
