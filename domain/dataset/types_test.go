package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delayrisk/domain/core"
)

func TestFeatureMatrix_SelectCopiesRows(t *testing.T) {
	m := &FeatureMatrix{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}, {3, 4}, {5, 6}}}
	sub := m.Select([]int{2, 0})

	require.Equal(t, [][]float64{{5, 6}, {1, 2}}, sub.Rows)
	sub.Rows[0][0] = 99
	assert.Equal(t, 5.0, m.Rows[2][0], "selection must not alias the source")
	assert.Equal(t, []float64{2, 4, 6}, m.Column(1))
}

func TestFeatureMatrix_Validate(t *testing.T) {
	m := &FeatureMatrix{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}, {3}}}
	err := m.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrDataContract))
}

func TestLabelVector_Counts(t *testing.T) {
	y := LabelVector{0, 1, 1, 0, 1}
	neg, pos := y.Counts()
	assert.Equal(t, 2, neg)
	assert.Equal(t, 3, pos)
	assert.InDelta(t, 0.6, y.PositiveRate(), 1e-12)
	assert.Equal(t, LabelVector{1, 0}, y.Select([]int{1, 0}))
	assert.Zero(t, LabelVector{}.PositiveRate())
}

func TestTable_ColumnIndex(t *testing.T) {
	tbl := &Table{Headers: []string{"x", "label_delay"}}
	i, ok := tbl.ColumnIndex("label_delay")
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	_, ok = tbl.ColumnIndex("nope")
	assert.False(t, ok)
}
