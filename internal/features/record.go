// Package features owns the train/serve feature contract: the dataset loader
// used at training time and the record validator, normalizer and row builder
// used at inference time. Both sides clip through schema.ClipRule.Apply.
package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"delayrisk/domain/core"
	"delayrisk/domain/schema"
)

// Record is one untrusted inference payload keyed by feature name.
type Record map[string]any

// InvalidValue describes a key whose value is not a finite number.
type InvalidValue struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
	Kind  string `json:"kind"`
}

// ValidationError lists every contract violation found in a record.
type ValidationError struct {
	Extra   []string       `json:"extra"`
	Missing []string       `json:"missing"`
	Invalid []InvalidValue `json:"invalid"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected keys %v", e.Extra))
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing keys %v", e.Missing))
	}
	for _, iv := range e.Invalid {
		parts = append(parts, fmt.Sprintf("non-numeric value for %s: %v (%s)", iv.Key, iv.Value, iv.Kind))
	}
	return "invalid feature record: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return core.ErrDataContract }

func (e *ValidationError) empty() bool {
	return len(e.Extra) == 0 && len(e.Missing) == 0 && len(e.Invalid) == 0
}

// IsValidationError reports whether err carries a record ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidationError extracts the ValidationError from err, if any.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// Validate checks the key set and value types of record against featureColumns.
// All violations are collected before failing. On success the record is
// returned unchanged.
func Validate(record Record, featureColumns []string) (Record, error) {
	verr := &ValidationError{}

	expected := make(map[string]struct{}, len(featureColumns))
	for _, c := range featureColumns {
		expected[c] = struct{}{}
	}
	for k := range record {
		if _, ok := expected[k]; !ok {
			verr.Extra = append(verr.Extra, k)
		}
	}
	sort.Strings(verr.Extra)

	for _, c := range featureColumns {
		v, ok := record[c]
		if !ok {
			verr.Missing = append(verr.Missing, c)
			continue
		}
		if _, err := toFloat(v); err != nil {
			verr.Invalid = append(verr.Invalid, InvalidValue{Key: c, Value: v, Kind: kindOf(v)})
		}
	}

	if !verr.empty() {
		return nil, verr
	}
	return record, nil
}

// Normalize returns a copy of record with every clip rule of s applied.
// Clipped values become float64; all other values are copied as-is.
func Normalize(s *schema.Schema, record Record) (Record, error) {
	out := make(Record, len(record))
	for k, v := range record {
		out[k] = v
	}
	verr := &ValidationError{}
	for _, rule := range s.ClipRules() {
		v, ok := record[rule.Column]
		if !ok {
			verr.Missing = append(verr.Missing, rule.Column)
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			verr.Invalid = append(verr.Invalid, InvalidValue{Key: rule.Column, Value: v, Kind: kindOf(v)})
			continue
		}
		out[rule.Column] = rule.Apply(f)
	}
	if !verr.empty() {
		return nil, verr
	}
	return out, nil
}

// BuildRow projects record onto the schema's feature order.
func BuildRow(s *schema.Schema, record Record) ([]float64, error) {
	columns := s.FeatureColumns()
	row := make([]float64, len(columns))
	verr := &ValidationError{}
	for i, c := range columns {
		v, ok := record[c]
		if !ok {
			verr.Missing = append(verr.Missing, c)
			continue
		}
		f, err := toFloat(v)
		if err != nil {
			verr.Invalid = append(verr.Invalid, InvalidValue{Key: c, Value: v, Kind: kindOf(v)})
			continue
		}
		row[i] = f
	}
	if !verr.empty() {
		return nil, verr
	}
	return row, nil
}

var errNotNumeric = errors.New("not a finite number")

// toFloat accepts Go integer and float kinds and json.Number. Booleans are
// never coerced.
func toFloat(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case nil, bool:
		return 0, errNotNumeric
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, errNotNumeric
		}
		f = parsed
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(rv.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(rv.Uint())
		case reflect.Float32, reflect.Float64:
			f = rv.Float()
		default:
			return 0, errNotNumeric
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	return f, nil
}

func kindOf(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case float64:
		if math.IsNaN(x) {
			return "nan"
		}
		if math.IsInf(x, 0) {
			return "inf"
		}
		return "float64"
	default:
		return reflect.TypeOf(v).String()
	}
}
