package run

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"delayrisk/domain/core"
)

// Split criteria
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// MaxFeatures modes; any positive integer string is also accepted.
const (
	MaxFeaturesAll  = "all"
	MaxFeaturesSqrt = "sqrt"
	MaxFeaturesLog2 = "log2"
)

// Hyperparameters enumerates every knob of the forest. Nothing is hidden in
// library defaults: a run summary carries this struct verbatim.
type Hyperparameters struct {
	NEstimators     int    `json:"n_estimators" yaml:"n_estimators"`
	MaxDepth        int    `json:"max_depth" yaml:"max_depth"` // 0 = unlimited
	MinSamplesLeaf  int    `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MinSamplesSplit int    `json:"min_samples_split" yaml:"min_samples_split"`
	MaxFeatures     string `json:"max_features" yaml:"max_features"`
	Bootstrap       bool   `json:"bootstrap" yaml:"bootstrap"`
	Criterion       string `json:"criterion" yaml:"criterion"`
	RandomState     int64  `json:"random_state" yaml:"random_state"`
}

// DefaultHyperparameters returns the reference configuration.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		NEstimators:     300,
		MaxDepth:        5,
		MinSamplesLeaf:  5,
		MinSamplesSplit: 2,
		MaxFeatures:     MaxFeaturesAll,
		Bootstrap:       true,
		Criterion:       CriterionGini,
		RandomState:     42,
	}
}

// Validate reports every invalid field at once.
func (h Hyperparameters) Validate() error {
	var problems []string
	if h.NEstimators < 1 {
		problems = append(problems, fmt.Sprintf("n_estimators must be >= 1, got %d", h.NEstimators))
	}
	if h.MaxDepth < 0 {
		problems = append(problems, fmt.Sprintf("max_depth must be >= 0, got %d", h.MaxDepth))
	}
	if h.MinSamplesLeaf < 1 {
		problems = append(problems, fmt.Sprintf("min_samples_leaf must be >= 1, got %d", h.MinSamplesLeaf))
	}
	if h.MinSamplesSplit < 2 {
		problems = append(problems, fmt.Sprintf("min_samples_split must be >= 2, got %d", h.MinSamplesSplit))
	}
	switch h.Criterion {
	case CriterionGini, CriterionEntropy:
	default:
		problems = append(problems, fmt.Sprintf("criterion must be gini or entropy, got %q", h.Criterion))
	}
	if _, err := parseMaxFeatures(h.MaxFeatures); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", core.ErrInvalidHyperparameters, strings.Join(problems, "; "))
	}
	return nil
}

// FeaturesPerSplit resolves MaxFeatures against the number of columns p.
func (h Hyperparameters) FeaturesPerSplit(p int) (int, error) {
	if p < 1 {
		return 0, fmt.Errorf("%w: no feature columns", core.ErrInvalidHyperparameters)
	}
	n, err := parseMaxFeatures(h.MaxFeatures)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrInvalidHyperparameters, err)
	}
	switch strings.ToLower(strings.TrimSpace(h.MaxFeatures)) {
	case MaxFeaturesAll:
		return p, nil
	case MaxFeaturesSqrt:
		return max(1, int(math.Sqrt(float64(p)))), nil
	case MaxFeaturesLog2:
		return max(1, int(math.Log2(float64(p)))), nil
	}
	if n > p {
		return 0, fmt.Errorf("%w: max_features %d exceeds %d feature columns", core.ErrInvalidHyperparameters, n, p)
	}
	return n, nil
}

func parseMaxFeatures(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case MaxFeaturesAll, MaxFeaturesSqrt, MaxFeaturesLog2:
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("max_features must be all, sqrt, log2 or a positive integer, got %q", s)
	}
	return n, nil
}
