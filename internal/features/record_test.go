package features

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delayrisk/domain/core"
	"delayrisk/domain/schema"
	"delayrisk/internal/testkit"
)

func referenceRecord() Record { return Record(testkit.ReferenceRecord()) }

func TestValidate_AcceptsReferenceRecord(t *testing.T) {
	r := referenceRecord()
	out, err := Validate(r, schema.Default().FeatureColumns())
	require.NoError(t, err)
	assert.Equal(t, r, out)
}

func TestValidate_NumericKinds(t *testing.T) {
	cols := []string{"a", "b", "c", "d", "e"}
	r := Record{"a": int8(1), "b": uint32(2), "c": float32(0.5), "d": json.Number("1e-3"), "e": int64(-4)}
	_, err := Validate(r, cols)
	assert.NoError(t, err)
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	cols := schema.Default().FeatureColumns()
	r := referenceRecord()
	delete(r, "density")
	delete(r, "mean_m")
	r["zeta"] = 1
	r["alpha"] = 2
	r["spi_early"] = "0.9"
	r["n_edges"] = true
	r["cpi_early"] = math.NaN()

	_, err := Validate(r, cols)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDataContract)
	require.True(t, IsValidationError(err))

	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "zeta"}, ve.Extra, "extras are sorted")
	assert.Equal(t, []string{"density", "mean_m"}, ve.Missing, "missing keys follow schema order")

	var keys []string
	for _, iv := range ve.Invalid {
		keys = append(keys, iv.Key)
	}
	assert.Equal(t, []string{"n_edges", "spi_early", "cpi_early"}, keys)
	assert.Equal(t, "bool", ve.Invalid[0].Kind)
	assert.Equal(t, "string", ve.Invalid[1].Kind)
	assert.Equal(t, "nan", ve.Invalid[2].Kind)
}

func TestValidate_RejectsNonNumericKinds(t *testing.T) {
	for name, v := range map[string]any{
		"null":    nil,
		"bool":    false,
		"array":   []any{1.0},
		"object":  map[string]any{"v": 1.0},
		"inf":     math.Inf(1),
		"badjson": json.Number("abc"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(Record{"x": v}, []string{"x"})
			ve, ok := AsValidationError(err)
			require.True(t, ok)
			require.Len(t, ve.Invalid, 1)
		})
	}
}

func TestValidate_ExtraKeyOnlyFails(t *testing.T) {
	r := referenceRecord()
	r["p_late_diag"] = 0.9

	_, err := Validate(r, schema.Default().FeatureColumns())
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"p_late_diag"}, ve.Extra)
	assert.Empty(t, ve.Missing)
	assert.Empty(t, ve.Invalid)
	assert.Contains(t, err.Error(), "p_late_diag")
}

func TestNormalize_ClipsWithoutMutating(t *testing.T) {
	r := referenceRecord()
	r["spi_early"] = -0.3
	r["cpi_early"] = 2.7

	out, err := Normalize(schema.Default(), r)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["spi_early"])
	assert.Equal(t, 2.0, out["cpi_early"])
	assert.Equal(t, -0.3, r["spi_early"], "input must not be mutated")
	assert.Equal(t, r["density"], out["density"])
}

func TestNormalize_BoundaryValuesUnchanged(t *testing.T) {
	r := referenceRecord()
	r["spi_early"] = 0.0
	r["cpi_early"] = 2

	out, err := Normalize(schema.Default(), r)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out["spi_early"])
	assert.Equal(t, 2.0, out["cpi_early"])
}

func TestBuildRow_SchemaOrder(t *testing.T) {
	s := schema.Default()
	r := referenceRecord()

	row, err := BuildRow(s, r)
	require.NoError(t, err)
	require.Len(t, row, s.NumFeatures())
	for i, c := range s.FeatureColumns() {
		f, err := toFloat(r[c])
		require.NoError(t, err)
		assert.Equal(t, f, row[i], c)
	}
}

func TestBuildRow_MissingFeature(t *testing.T) {
	r := referenceRecord()
	delete(r, "T_baseline")
	_, err := BuildRow(schema.Default(), r)
	ve, ok := AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"T_baseline"}, ve.Missing)
}
