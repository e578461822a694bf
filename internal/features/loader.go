package features

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"delayrisk/domain/core"
	"delayrisk/domain/dataset"
	"delayrisk/domain/schema"
	"delayrisk/internal"
)

// CellError locates one cell that could not be used.
type CellError struct {
	Row    int // 1-based data row, header excluded
	Column string
	Value  string
}

func (c CellError) String() string {
	return fmt.Sprintf("row %d column %s value %q", c.Row, c.Column, c.Value)
}

// Loader turns a raw table into a feature matrix and label vector.
type Loader struct {
	schema *schema.Schema
	logger *internal.Logger
}

// NewLoader creates a loader for the given schema
func NewLoader(s *schema.Schema, logger *internal.Logger) *Loader {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Loader{schema: s, logger: logger.Named("loader")}
}

// Load drops leakage columns, parses and clips the feature columns, and
// extracts labels. The table is never modified.
func (l *Loader) Load(table *dataset.Table) (*dataset.FeatureMatrix, dataset.LabelVector, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, nil, core.NewInsufficientDataError("table has no data rows")
	}

	index, err := headerIndex(table.Headers)
	if err != nil {
		return nil, nil, err
	}

	for _, d := range l.schema.DropColumns() {
		if _, ok := index[d]; ok {
			l.logger.Debug("dropping column %s from %s", d, table.Source)
		}
	}

	features := l.schema.FeatureColumns()
	label := l.schema.LabelColumn()

	var missing []string
	if _, ok := index[label]; !ok {
		missing = append(missing, label)
	}
	for _, c := range features {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, core.NewMissingColumnsError("required", missing)
	}

	rules := make(map[int]schema.ClipRule)
	for _, r := range l.schema.ClipRules() {
		j, _ := l.schema.FeatureIndex(r.Column)
		rules[j] = r
	}

	X := dataset.NewFeatureMatrix(features, len(table.Rows))
	y := make(dataset.LabelVector, len(table.Rows))
	var badCells, badLabels []CellError
	clipped := 0

	for i, row := range table.Rows {
		for j, c := range features {
			raw := cell(row, index[c])
			v, err := parseNumber(raw)
			if err != nil {
				badCells = append(badCells, CellError{Row: i + 1, Column: c, Value: raw})
				continue
			}
			if rule, ok := rules[j]; ok {
				if cv := rule.Apply(v); cv != v {
					clipped++
					v = cv
				}
			}
			X.Rows[i][j] = v
		}

		raw := cell(row, index[label])
		lbl, err := parseLabel(raw)
		if err != nil {
			badLabels = append(badLabels, CellError{Row: i + 1, Column: label, Value: raw})
			continue
		}
		y[i] = lbl
	}

	if len(badCells) > 0 || len(badLabels) > 0 {
		return nil, nil, cellsError(badCells, badLabels)
	}

	l.logger.Info("loaded %d rows x %d features from %s (%d values clipped)", X.Len(), len(features), table.Source, clipped)
	return X, y, nil
}

func headerIndex(headers []string) (map[string]int, error) {
	index := make(map[string]int, len(headers))
	var dups []string
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if _, ok := index[h]; ok {
			dups = append(dups, h)
			continue
		}
		index[h] = i
	}
	if len(dups) > 0 {
		return nil, fmt.Errorf("%w: duplicate columns %v", core.ErrDataContract, dups)
	}
	return index, nil
}

func cell(row []string, j int) string {
	if j >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[j])
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotNumeric
	}
	return v, nil
}

// parseLabel accepts 0/1, 0.0/1.0 and true/false.
func parseLabel(s string) (int, error) {
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	switch v {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	}
	return 0, fmt.Errorf("label %q is not binary", s)
}

func cellsError(cells, labels []CellError) error {
	var parts []string
	if len(cells) > 0 {
		parts = append(parts, fmt.Sprintf("%d non-numeric feature cells: %s", len(cells), joinCells(cells)))
	}
	if len(labels) > 0 {
		parts = append(parts, fmt.Sprintf("%d non-binary labels: %s", len(labels), joinCells(labels)))
	}
	return fmt.Errorf("%w: %s", core.ErrDataContract, strings.Join(parts, "; "))
}

func joinCells(cells []CellError) string {
	s := make([]string, len(cells))
	for i, c := range cells {
		s[i] = c.String()
	}
	return strings.Join(s, ", ")
}
