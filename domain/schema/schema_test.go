package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delayrisk/domain/core"
)

func TestDefault_ReferenceContract(t *testing.T) {
	s := Default()

	assert.Equal(t, []string{
		"n_edges", "density", "critical_path_len", "pct_critical_tasks", "T_baseline",
		"mean_m", "mean_range_po", "instability_m", "spi_early", "cpi_early",
	}, s.FeatureColumns())
	assert.Equal(t, 10, s.NumFeatures())
	assert.Equal(t, "label_delay", s.LabelColumn())
	assert.ElementsMatch(t, []string{"p_late_diag", "buffer_factor", "n_tasks"}, s.DropColumns())
	assert.Len(t, s.ClipRules(), 2)
	assert.True(t, s.IsDropped("p_late_diag"))
	assert.False(t, s.IsFeature("label_delay"))

	idx, ok := s.FeatureIndex("spi_early")
	require.True(t, ok)
	assert.Equal(t, 8, idx)
}

func TestSchema_AccessorsReturnCopies(t *testing.T) {
	s := Default()
	cols := s.FeatureColumns()
	cols[0] = "tampered"
	rules := s.ClipRules()
	rules[0].Max = 100

	assert.Equal(t, "n_edges", s.FeatureColumns()[0])
	assert.Equal(t, 2.0, s.ClipRules()[0].Max)
}

func TestNew_ReportsEveryProblem(t *testing.T) {
	_, err := New(Definition{
		FeatureColumns: []string{"a", "b", "a", "y"},
		LabelColumn:    "y",
		DropColumns:    []string{"b", "y", "z", "z"},
		ClipRules: []ClipRule{
			{Column: "missing", Min: 0, Max: 1},
			{Column: "b", Min: 3, Max: 1},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSchemaInvalid))
	assert.True(t, core.IsConfigurationError(err))

	msg := err.Error()
	for _, want := range []string{
		`duplicate feature column "a"`,
		`label column "y" is also a feature column`,
		`drop column "b" is also a feature column`,
		`drop column "y" is the label column`,
		`duplicate drop column "z"`,
		`clip rule column "missing" is not a feature column`,
		`clip rule for "b" has min 3 > max 1`,
	} {
		assert.Contains(t, msg, want)
	}
}

func TestNew_EmptyDefinition(t *testing.T) {
	_, err := New(Definition{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature_columns is empty")
	assert.Contains(t, err.Error(), "label_column is empty")
}

func TestFingerprint_StableAndSensitive(t *testing.T) {
	def := Default().Definition()
	again := MustNew(def)
	assert.Equal(t, Default().Fingerprint(), again.Fingerprint())

	reordered := def
	reordered.FeatureColumns = append([]string(nil), def.FeatureColumns...)
	reordered.FeatureColumns[0], reordered.FeatureColumns[1] = reordered.FeatureColumns[1], reordered.FeatureColumns[0]
	assert.NotEqual(t, Default().Fingerprint(), MustNew(reordered).Fingerprint(),
		"feature order is part of the contract")

	widened := Default().Definition()
	widened.ClipRules[0].Max = 3
	assert.NotEqual(t, Default().Fingerprint(), MustNew(widened).Fingerprint())
}

func TestParse_YAML(t *testing.T) {
	doc := []byte(`
feature_columns: [x1, x2, spi_early]
label_column: late
drop_columns: [leak]
clip_rules:
  - {column: spi_early, min: 0, max: 2}
`)
	s, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2", "spi_early"}, s.FeatureColumns())
	assert.Equal(t, "late", s.LabelColumn())
	assert.Equal(t, []ClipRule{{Column: "spi_early", Min: 0, Max: 2}}, s.ClipRules())
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("feature_columns: [a]\nlabel_column: y\nextra: true\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSchemaInvalid))
}

func TestMustNew_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { MustNew(Definition{}) })
}
