// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

// Package arrowrows converts between engine row bundles and Arrow
// record batches, so handlers can hand row data to Arrow-based compute
// or IPC tooling without reshaping it by hand.
//
// The mapping is column-per-parameter: STRING maps to utf8, NUMERIC to
// float64, and DUAL to a struct of both, all nullable so a null dual
// in any column round-trips losslessly.
package arrowrows

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/fieldray/ssext/ssext"
)

// dualType is the Arrow shape of a DUAL column: independent nullable
// number and text children, both set when the dual carries both.
var dualType = arrow.StructOf(
	arrow.Field{Name: "number", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	arrow.Field{Name: "text", Type: arrow.BinaryTypes.String, Nullable: true},
)

// Schema builds the Arrow schema for a declared parameter list.
func Schema(params []ssext.Parameter) *arrow.Schema {
	fields := make([]arrow.Field, len(params))
	for i, p := range params {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("col%d", i)
		}
		var dt arrow.DataType
		switch p.Type {
		case ssext.DataString:
			dt = arrow.BinaryTypes.String
		case ssext.DataNumeric:
			dt = arrow.PrimitiveTypes.Float64
		default:
			dt = dualType
		}
		fields[i] = arrow.Field{Name: name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// ToRecord builds an Arrow record batch from rows under the given
// parameter list. Every row must match the declared arity. The caller
// releases the returned batch.
func ToRecord(params []ssext.Parameter, rows []ssext.Row) (arrow.RecordBatch, error) {
	schema := Schema(params)
	mem := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	for ri, row := range rows {
		if len(row) != len(params) {
			return nil, fmt.Errorf("row %d has %d cells, schema has %d columns", ri, len(row), len(params))
		}
		for ci, cell := range row {
			appendCell(builder.Field(ci), params[ci].Type, cell)
		}
	}
	return builder.NewRecordBatch(), nil
}

func appendCell(b array.Builder, t ssext.DataType, d ssext.Dual) {
	switch t {
	case ssext.DataString:
		sb := b.(*array.StringBuilder)
		if s, ok := d.Text(); ok {
			sb.Append(s)
		} else {
			sb.AppendNull()
		}
	case ssext.DataNumeric:
		fb := b.(*array.Float64Builder)
		if v, ok := d.Numeric(); ok {
			fb.Append(v)
		} else {
			fb.AppendNull()
		}
	default:
		sb := b.(*array.StructBuilder)
		if d.IsNull() {
			sb.AppendNull()
			return
		}
		sb.Append(true)
		num := sb.FieldBuilder(0).(*array.Float64Builder)
		txt := sb.FieldBuilder(1).(*array.StringBuilder)
		if v, ok := d.Numeric(); ok {
			num.Append(v)
		} else {
			num.AppendNull()
		}
		if s, ok := d.Text(); ok {
			txt.Append(s)
		} else {
			txt.AppendNull()
		}
	}
}

// FromRecord converts an Arrow record batch produced by ToRecord (or
// shaped the same way) back into rows.
func FromRecord(params []ssext.Parameter, rec arrow.RecordBatch) ([]ssext.Row, error) {
	if int(rec.NumCols()) != len(params) {
		return nil, fmt.Errorf("record has %d columns, parameter list has %d", rec.NumCols(), len(params))
	}
	n := int(rec.NumRows())
	rows := make([]ssext.Row, n)
	for i := range rows {
		rows[i] = make(ssext.Row, len(params))
	}
	for ci, p := range params {
		col := rec.Column(ci)
		for ri := 0; ri < n; ri++ {
			cell, err := readCell(col, p.Type, ri)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", ri, ci, err)
			}
			rows[ri][ci] = cell
		}
	}
	return rows, nil
}

func readCell(col arrow.Array, t ssext.DataType, i int) (ssext.Dual, error) {
	if col.IsNull(i) {
		return ssext.NullDual, nil
	}
	switch t {
	case ssext.DataString:
		s, ok := col.(*array.String)
		if !ok {
			return ssext.NullDual, fmt.Errorf("expected utf8 column, got %s", col.DataType())
		}
		return ssext.StringDual(s.Value(i)), nil
	case ssext.DataNumeric:
		f, ok := col.(*array.Float64)
		if !ok {
			return ssext.NullDual, fmt.Errorf("expected float64 column, got %s", col.DataType())
		}
		return ssext.NumericDual(f.Value(i)), nil
	default:
		st, ok := col.(*array.Struct)
		if !ok {
			return ssext.NullDual, fmt.Errorf("expected struct column, got %s", col.DataType())
		}
		num := st.Field(0).(*array.Float64)
		txt := st.Field(1).(*array.String)
		hasNum := !num.IsNull(i)
		hasTxt := !txt.IsNull(i)
		switch {
		case hasNum && hasTxt:
			return ssext.BothDual(num.Value(i), txt.Value(i)), nil
		case hasNum:
			return ssext.NumericDual(num.Value(i)), nil
		case hasTxt:
			return ssext.StringDual(txt.Value(i)), nil
		default:
			return ssext.NullDual, nil
		}
	}
}
