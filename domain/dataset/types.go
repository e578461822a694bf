package dataset

import (
	"fmt"

	"delayrisk/domain/core"
)

// Table is a raw tabular source as read from disk: a header row plus string
// cells. Loaders read it and never write to it.
type Table struct {
	Source  string     `json:"source"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"-"`
}

// ColumnIndex returns the position of name in Headers.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, h := range t.Headers {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// Fingerprint hashes headers and cells in order.
func (t *Table) Fingerprint() core.DatasetHash {
	return core.ComputeDatasetHash(t.Headers, t.Rows)
}

// FeatureMatrix holds numeric rows whose columns follow Columns exactly.
type FeatureMatrix struct {
	Columns []string
	Rows    [][]float64
}

// NewFeatureMatrix allocates a matrix with n zeroed rows.
func NewFeatureMatrix(columns []string, n int) *FeatureMatrix {
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, len(columns))
	}
	return &FeatureMatrix{Columns: append([]string(nil), columns...), Rows: rows}
}

// Len is the number of rows.
func (m *FeatureMatrix) Len() int { return len(m.Rows) }

// Column returns a copy of the values of column j.
func (m *FeatureMatrix) Column(j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[j]
	}
	return out
}

// Select returns a new matrix holding copies of the given rows, in order.
func (m *FeatureMatrix) Select(indices []int) *FeatureMatrix {
	out := &FeatureMatrix{Columns: append([]string(nil), m.Columns...), Rows: make([][]float64, len(indices))}
	for i, idx := range indices {
		out.Rows[i] = append([]float64(nil), m.Rows[idx]...)
	}
	return out
}

// Validate checks that every row has len(Columns) values.
func (m *FeatureMatrix) Validate() error {
	for i, row := range m.Rows {
		if len(row) != len(m.Columns) {
			return fmt.Errorf("%w: row %d has %d values, want %d", core.ErrDataContract, i, len(row), len(m.Columns))
		}
	}
	return nil
}

// LabelVector holds one binary label per matrix row.
type LabelVector []int

// Select returns the labels at indices, in order.
func (l LabelVector) Select(indices []int) LabelVector {
	out := make(LabelVector, len(indices))
	for i, idx := range indices {
		out[i] = l[idx]
	}
	return out
}

// Counts returns the number of negative and positive labels.
func (l LabelVector) Counts() (neg, pos int) {
	for _, v := range l {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}

// PositiveRate is the fraction of labels equal to 1.
func (l LabelVector) PositiveRate() float64 {
	if len(l) == 0 {
		return 0
	}
	_, pos := l.Counts()
	return float64(pos) / float64(len(l))
}

// Floats converts the labels to float64 for numeric libraries.
func (l LabelVector) Floats() []float64 {
	out := make([]float64, len(l))
	for i, v := range l {
		out[i] = float64(v)
	}
	return out
}
