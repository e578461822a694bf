package testkit

import (
	"context"
	"fmt"
	"sync"

	"delayrisk/domain/core"
	"delayrisk/domain/run"
)

// InMemoryTracker is an ExperimentTracker that keeps runs in a map.
// Set Err to make every RecordRun call fail.
type InMemoryTracker struct {
	mu      sync.Mutex
	runs    map[core.RunID]*run.Summary
	bundles map[core.RunID]string
	Err     error
}

// NewInMemoryTracker creates an empty tracker
func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{
		runs:    make(map[core.RunID]*run.Summary),
		bundles: make(map[core.RunID]string),
	}
}

func (t *InMemoryTracker) RecordRun(ctx context.Context, summary *run.Summary, bundlePath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	copied := *summary
	t.runs[summary.RunID] = &copied
	t.bundles[summary.RunID] = bundlePath
	return nil
}

func (t *InMemoryTracker) GetRun(ctx context.Context, runID core.RunID) (*run.Summary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	return s, nil
}

// Count returns the number of recorded runs
func (t *InMemoryTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.runs)
}

// BundlePath returns where the run's bundle was persisted
func (t *InMemoryTracker) BundlePath(runID core.RunID) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bundles[runID]
}

// StubClassifier scores rows with a caller-supplied function. It records the
// last rows it was asked to score.
type StubClassifier struct {
	Columns []string
	Score   func(row []float64) float64

	mu   sync.Mutex
	last [][]float64
}

func (s *StubClassifier) PredictProba(X [][]float64) ([]float64, error) {
	s.mu.Lock()
	s.last = X
	s.mu.Unlock()
	out := make([]float64, len(X))
	for i, row := range X {
		out[i] = s.Score(row)
	}
	return out, nil
}

func (s *StubClassifier) Predict(X [][]float64) ([]int, error) {
	proba, err := s.PredictProba(X)
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

func (s *StubClassifier) FeatureColumns() []string { return append([]string(nil), s.Columns...) }

// LastRows returns the rows passed to the most recent call
func (s *StubClassifier) LastRows() [][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
