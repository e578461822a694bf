package run

import (
	"errors"
	"strings"
	"testing"

	"delayrisk/domain/core"
)

func TestFingerprint_Deterministic(t *testing.T) {
	params := DefaultHyperparameters()
	fp1 := NewFingerprint("schema", "dataset", 42, params, "1.0.0")
	fp2 := NewFingerprint("schema", "dataset", 42, params, "1.0.0")

	if fp1.Value != fp2.Value {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Value, fp2.Value)
	}
	if fp1.SplitSeed != 42 {
		t.Errorf("SplitSeed mismatch: %d", fp1.SplitSeed)
	}
	if fp1.ParamsHash.IsEmpty() {
		t.Errorf("ParamsHash not computed")
	}
}

func TestFingerprint_Unique(t *testing.T) {
	params := DefaultHyperparameters()
	base := NewFingerprint("schema", "dataset", 42, params, "1.0.0")

	deeper := params
	deeper.MaxDepth = 8

	testCases := []struct {
		name string
		fp   Fingerprint
	}{
		{"different schema", NewFingerprint("other", "dataset", 42, params, "1.0.0")},
		{"different dataset", NewFingerprint("schema", "other", 42, params, "1.0.0")},
		{"different seed", NewFingerprint("schema", "dataset", 43, params, "1.0.0")},
		{"different params", NewFingerprint("schema", "dataset", 42, deeper, "1.0.0")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Value == base.Value {
				t.Errorf("Fingerprint should be different for %s", tc.name)
			}
		})
	}
}

func TestSummary_Validate(t *testing.T) {
	s := &Summary{
		RunID:             core.RunID("run-1"),
		SchemaFingerprint: "abc",
		FeatureColumns:    []string{"density"},
		Validation:        NewMetricsReport(1, 1, 1),
		Test:              NewMetricsReport(1, 1, 1),
		Fingerprint:       NewFingerprint("abc", "def", 42, DefaultHyperparameters(), "dev"),
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Summary validation failed: %v", err)
	}

	s.Test = nil
	if err := s.Validate(); !errors.Is(err, core.ErrArtifactIO) {
		t.Errorf("expected artifact error, got %v", err)
	}
}

func TestHyperparameters_DefaultsValid(t *testing.T) {
	if err := DefaultHyperparameters().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestHyperparameters_ValidateReportsEveryField(t *testing.T) {
	h := Hyperparameters{NEstimators: 0, MaxDepth: -1, MinSamplesLeaf: 0, MinSamplesSplit: 1, MaxFeatures: "half", Criterion: "mse"}
	err := h.Validate()
	if !errors.Is(err, core.ErrInvalidHyperparameters) {
		t.Fatalf("expected ErrInvalidHyperparameters, got %v", err)
	}
	if !core.IsConfigurationError(err) {
		t.Errorf("hyperparameter errors must classify as configuration errors")
	}
	for _, field := range []string{"n_estimators", "max_depth", "min_samples_leaf", "min_samples_split", "max_features", "criterion"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error does not mention %s: %v", field, err)
		}
	}
}

func TestHyperparameters_FeaturesPerSplit(t *testing.T) {
	cases := []struct {
		mode string
		p    int
		want int
	}{
		{"all", 10, 10},
		{"sqrt", 10, 3},
		{"log2", 10, 3},
		{"sqrt", 1, 1},
		{"4", 10, 4},
	}
	for _, c := range cases {
		h := DefaultHyperparameters()
		h.MaxFeatures = c.mode
		got, err := h.FeaturesPerSplit(c.p)
		if err != nil {
			t.Fatalf("%s/%d: %v", c.mode, c.p, err)
		}
		if got != c.want {
			t.Errorf("%s/%d: got %d want %d", c.mode, c.p, got, c.want)
		}
	}

	h := DefaultHyperparameters()
	h.MaxFeatures = "11"
	if _, err := h.FeaturesPerSplit(10); !errors.Is(err, core.ErrInvalidHyperparameters) {
		t.Errorf("expected out-of-range max_features to fail, got %v", err)
	}
}
