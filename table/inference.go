package table

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
)

// Bounds of float64 values that convert to int64 without overflow.
const (
	minIntegralFloat = -(1 << 63)
	maxIntegralFloat = 1 << 63
)

// InferColumn attempts to coerce every value in the column to a number. If every value is an
// integer numeral, or a float equal to its own truncation, the column is narrowed to int64. Integer
// numerals are parsed as integers directly, so values beyond float64 precision are kept exact. If
// any value fails to coerce, or is NaN or infinite, the original values are returned unchanged as
// text.
//
// The returned slice is always a new slice; the given values are never modified.
func InferColumn(values []any) (DataType, []any) {
	ints := make([]int64, len(values))
	floats := make([]float64, len(values))
	allInts := true

	for i, value := range values {
		if integer, ok := toInt(value); ok {
			ints[i] = integer
			floats[i] = float64(integer)
			continue
		}

		float, ok := toFloat(value)
		if !ok {
			return DataTypeText, slices.Clone(values)
		}
		floats[i] = float

		if allInts && isIntegral(float) {
			ints[i] = int64(float)
		} else {
			allInts = false
		}
	}

	converted := make([]any, len(values))

	if allInts {
		for i, integer := range ints {
			converted[i] = integer
		}
		return DataTypeInt, converted
	}

	for i, float := range floats {
		converted[i] = float
	}
	return DataTypeFloat, converted
}

// InferScalar applies the same narrowing as InferColumn to a single value: int64 if it is an
// integer or an integral float, float if it coerces, otherwise the value as given.
func InferScalar(value any) any {
	if integer, ok := toInt(value); ok {
		return integer
	}

	float, ok := toFloat(value)
	if !ok {
		return value
	}

	if isIntegral(float) {
		return int64(float)
	}
	return float
}

func allIntegral(floats []float64) bool {
	for _, float := range floats {
		if !isIntegral(float) {
			return false
		}
	}
	return true
}

func isIntegral(float float64) bool {
	if math.IsNaN(float) || math.IsInf(float, 0) {
		return false
	}
	if float < minIntegralFloat || float >= maxIntegralFloat {
		return false
	}
	return float == math.Trunc(float)
}

func toInt(value any) (int64, bool) {
	switch value := value.(type) {
	case string:
		integer, err := strconv.ParseInt(value, 10, 64)
		return integer, err == nil
	case json.Number:
		integer, err := value.Int64()
		return integer, err == nil
	case int64:
		return value, true
	case int:
		return int64(value), true
	case int32:
		return int64(value), true
	default:
		return 0, false
	}
}

// Rejects NaN and infinities, which have no JSON encoding.
func toFloat(value any) (float64, bool) {
	float, ok := parseFloat(value)
	if !ok || math.IsNaN(float) || math.IsInf(float, 0) {
		return 0, false
	}
	return float, true
}

func parseFloat(value any) (float64, bool) {
	switch value := value.(type) {
	case string:
		float, err := strconv.ParseFloat(value, 64)
		return float, err == nil
	case json.Number:
		float, err := value.Float64()
		return float, err == nil
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case int32:
		return float64(value), true
	default:
		return 0, false
	}
}

func dataTypeOfValue(value any) DataType {
	switch value.(type) {
	case int64, int, int32:
		return DataTypeInt
	case float64, float32:
		return DataTypeFloat
	default:
		return DataTypeText
	}
}

// ColumnFromScalars builds a column from values that have already been through InferScalar.
// Missing values (nil) do not affect the column's data type.
func ColumnFromScalars(name string, values []any) Column {
	dataType := DataType(0)
	for _, value := range values {
		if value == nil {
			continue
		}

		valueType := dataTypeOfValue(value)
		switch {
		case !dataType.IsValid():
			dataType = valueType
		case dataType == valueType:
		case dataType != DataTypeText && valueType != DataTypeText:
			dataType = DataTypeFloat
		default:
			dataType = DataTypeText
		}
	}
	if !dataType.IsValid() {
		dataType = DataTypeText
	}

	converted := slices.Clone(values)
	if dataType == DataTypeFloat {
		for i, value := range converted {
			if float, ok := toFloat(value); ok {
				converted[i] = float
			}
		}
	}

	return Column{Label: Label{Name: name}, DataType: dataType, Values: converted}
}
