// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"fmt"
	"strconv"
)

// DataType declares how a column's Dual cells are to be read.
type DataType int32

const (
	// DataString columns carry text; the numeric component is ignored on read.
	DataString DataType = 0
	// DataNumeric columns carry numbers; the text component is ignored on read.
	DataNumeric DataType = 1
	// DataDual columns carry both components.
	DataDual DataType = 2
)

// String returns the schema name of the data type.
func (t DataType) String() string {
	switch t {
	case DataString:
		return "STRING"
	case DataNumeric:
		return "NUMERIC"
	case DataDual:
		return "DUAL"
	default:
		return fmt.Sprintf("DataType(%d)", int32(t))
	}
}

// FunctionType declares a function's row cardinality contract.
type FunctionType int32

const (
	// FuncScalar produces one output row per input row.
	FuncScalar FunctionType = 0
	// FuncAggregation produces exactly one output row for the whole input.
	FuncAggregation FunctionType = 1
	// FuncTensor may consume and produce any number of rows.
	FuncTensor FunctionType = 2
)

// String returns the schema name of the function type.
func (t FunctionType) String() string {
	switch t {
	case FuncScalar:
		return "SCALAR"
	case FuncAggregation:
		return "AGGREGATION"
	case FuncTensor:
		return "TENSOR"
	default:
		return fmt.Sprintf("FunctionType(%d)", int32(t))
	}
}

// DualKind tags which components of a Dual are populated.
type DualKind uint8

const (
	// DualNull is a cell with neither component; it encodes SQL-style null.
	DualNull DualKind = iota
	// DualNumeric is a cell with only the numeric component.
	DualNumeric
	// DualString is a cell with only the text component.
	DualString
	// DualBoth is a cell with both components populated.
	DualBoth
)

// Dual is one cell of a row: an optional numeric value, an optional text
// value, or both, interpreted against the column's declared [DataType].
// A Dual is immutable once constructed. The zero Dual is null.
type Dual struct {
	kind DualKind
	num  float64
	str  string
}

// NullDual is the null cell: neither component populated. Distinct from
// a numeric zero and from an empty string.
var NullDual = Dual{}

// NumericDual constructs a cell holding only a numeric value.
func NumericDual(v float64) Dual {
	return Dual{kind: DualNumeric, num: v}
}

// StringDual constructs a cell holding only a text value.
func StringDual(s string) Dual {
	return Dual{kind: DualString, str: s}
}

// BothDual constructs a cell holding a numeric and a text value.
func BothDual(v float64, s string) Dual {
	return Dual{kind: DualBoth, num: v, str: s}
}

// Kind returns which components are populated.
func (d Dual) Kind() DualKind { return d.kind }

// IsNull reports whether the cell has no populated component.
func (d Dual) IsNull() bool { return d.kind == DualNull }

// Numeric returns the numeric component and whether it is populated.
func (d Dual) Numeric() (float64, bool) {
	return d.num, d.kind == DualNumeric || d.kind == DualBoth
}

// Text returns the text component and whether it is populated.
func (d Dual) Text() (string, bool) {
	return d.str, d.kind == DualString || d.kind == DualBoth
}

// Value reads the cell as the declared type dictates. STRING columns
// yield a string, NUMERIC columns a float64, DUAL columns the Dual
// itself. A null cell yields nil for STRING and NUMERIC.
func (d Dual) Value(t DataType) any {
	switch t {
	case DataString:
		if d.kind == DualString || d.kind == DualBoth {
			return d.str
		}
		return nil
	case DataNumeric:
		if d.kind == DualNumeric || d.kind == DualBoth {
			return d.num
		}
		return nil
	default:
		return d
	}
}

// String formats the cell for logs and test failures.
func (d Dual) String() string {
	switch d.kind {
	case DualNull:
		return "null"
	case DualNumeric:
		return strconv.FormatFloat(d.num, 'g', -1, 64)
	case DualString:
		return strconv.Quote(d.str)
	default:
		return fmt.Sprintf("(%s, %s)",
			strconv.FormatFloat(d.num, 'g', -1, 64), strconv.Quote(d.str))
	}
}

// DualFromValue converts a native value into a Dual for a column of the
// given declared type. It is total for in-contract inputs: nil (null),
// float64/int/int64, string, and Dual itself all convert without error.
func DualFromValue(t DataType, v any) (Dual, error) {
	if v == nil {
		return NullDual, nil
	}
	switch val := v.(type) {
	case Dual:
		return val, nil
	case float64:
		return NumericDual(val), nil
	case float32:
		return NumericDual(float64(val)), nil
	case int:
		return NumericDual(float64(val)), nil
	case int64:
		return NumericDual(float64(val)), nil
	case string:
		if t == DataNumeric {
			return Dual{}, fmt.Errorf("ssext: string value %q for NUMERIC column", val)
		}
		return StringDual(val), nil
	case bool:
		if val {
			return NumericDual(1), nil
		}
		return NumericDual(0), nil
	default:
		return Dual{}, fmt.Errorf("ssext: unsupported value type %T for %s column", v, t)
	}
}

// Row is an ordered sequence of cells, one per declared column.
// Rows are immutable once handed to a writer; the bundler owns them in
// transit.
type Row []Dual

// NumericRow builds a one-cell-per-value numeric row. Convenience for
// single-column result streams.
func NumericRow(vals ...float64) Row {
	r := make(Row, len(vals))
	for i, v := range vals {
		r[i] = NumericDual(v)
	}
	return r
}

// StringRow builds a one-cell-per-value text row.
func StringRow(vals ...string) Row {
	r := make(Row, len(vals))
	for i, v := range vals {
		r[i] = StringDual(v)
	}
	return r
}

// RowFromValues converts native values into a Row against a parameter
// list. Lossless and total for in-contract values, including nil.
func RowFromValues(params []Parameter, vals []any) (Row, error) {
	if len(vals) != len(params) {
		return nil, fmt.Errorf("ssext: %d values for %d parameters", len(vals), len(params))
	}
	row := make(Row, len(vals))
	for i, v := range vals {
		d, err := DualFromValue(params[i].Type, v)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", params[i].Name, err)
		}
		row[i] = d
	}
	return row, nil
}

// RowValues reads a Row back into native values per the parameter list.
// The inverse of [RowFromValues] for STRING and NUMERIC columns; DUAL
// columns come back as Dual values.
func RowValues(params []Parameter, row Row) ([]any, error) {
	if len(row) != len(params) {
		return nil, fmt.Errorf("ssext: %d cells for %d parameters", len(row), len(params))
	}
	vals := make([]any, len(row))
	for i, d := range row {
		vals[i] = d.Value(params[i].Type)
	}
	return vals, nil
}
