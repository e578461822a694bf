package forest

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"delayrisk/domain/core"
	"delayrisk/domain/dataset"
	"delayrisk/domain/run"
	"delayrisk/internal"
	"delayrisk/ports"
)

// Trainer fits random forests. Trees are grown in parallel, each with its own
// RNG seeded random_state + tree index, so the result does not depend on
// scheduling.
type Trainer struct {
	logger  *internal.Logger
	workers int
}

// NewTrainer creates a trainer using GOMAXPROCS workers
func NewTrainer(logger *internal.Logger) *Trainer {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Trainer{logger: logger.Named("forest"), workers: runtime.GOMAXPROCS(0)}
}

// WithWorkers bounds the number of trees grown concurrently
func (t *Trainer) WithWorkers(n int) *Trainer {
	cp := *t
	cp.workers = max(1, n)
	return &cp
}

var _ ports.Trainer = (*Trainer)(nil)

// Fit grows params.NEstimators trees on the training partition.
func (t *Trainer) Fit(ctx context.Context, X *dataset.FeatureMatrix, y dataset.LabelVector, params run.Hyperparameters) (ports.Classifier, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if X == nil {
		return nil, core.NewInsufficientDataError("no feature matrix")
	}
	mtry, err := params.FeaturesPerSplit(len(X.Columns))
	if err != nil {
		return nil, err
	}
	if X.Len() == 0 {
		return nil, core.NewInsufficientDataError("cannot fit on zero rows")
	}
	if X.Len() != len(y) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", core.ErrDataContract, X.Len(), len(y))
	}
	if err := X.Validate(); err != nil {
		return nil, err
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("%w: label %d at row %d is not binary", core.ErrDataContract, v, i)
		}
	}
	if neg, pos := y.Counts(); neg == 0 || pos == 0 {
		t.logger.Warn("training partition holds a single class (%d negative, %d positive)", neg, pos)
	}

	start := time.Now()
	trees := make([]Tree, params.NEstimators)
	n := X.Len()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.workers)
	for i := 0; i < params.NEstimators; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(params.RandomState + int64(i)))
			sample := make([]int, n)
			for j := range sample {
				if params.Bootstrap {
					sample[j] = rng.Intn(n)
				} else {
					sample[j] = j
				}
			}
			trees[i] = newTreeBuilder(X.Rows, y, params, mtry, rng).build(sample)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	model := &Forest{columns: append([]string(nil), X.Columns...), params: params, trees: trees}
	t.logger.Info("fitted %d trees on %d rows, %d features per split, max depth %d in %s",
		model.NumTrees(), n, mtry, model.MaxDepth(), time.Since(start).Round(time.Millisecond))
	return model, nil
}
