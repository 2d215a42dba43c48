// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"io"
	"strings"

	"github.com/fieldray/ssext/ssext"
)

// Function IDs used by the conformance suite. Stable so recorded
// engine traffic replays against any build.
const (
	DoubleID  int32 = 7
	SumID     int32 = 8
	ConcatID  int32 = 9
	StretchID int32 = 10
)

// RegisterFunctions registers the conformance fixture functions.
func RegisterFunctions(reg *ssext.Registry) {
	reg.MustRegister(ssext.FunctionDefinition{
		Name:       "double",
		Type:       ssext.FuncScalar,
		ReturnType: ssext.DataNumeric,
		Params:     []ssext.Parameter{{Type: ssext.DataNumeric, Name: "x"}},
		FunctionID: DoubleID,
	}, ssext.RowHandlerFunc(double))

	reg.MustRegister(ssext.FunctionDefinition{
		Name:       "sum",
		Type:       ssext.FuncAggregation,
		ReturnType: ssext.DataNumeric,
		Params:     []ssext.Parameter{{Type: ssext.DataNumeric, Name: "x"}},
		FunctionID: SumID,
	}, ssext.RowHandlerFunc(sum))

	reg.MustRegister(ssext.FunctionDefinition{
		Name:       "concat",
		Type:       ssext.FuncAggregation,
		ReturnType: ssext.DataString,
		Params: []ssext.Parameter{
			{Type: ssext.DataString, Name: "s"},
			{Type: ssext.DataString, Name: "sep"},
		},
		FunctionID: ConcatID,
	}, ssext.RowHandlerFunc(concat))

	reg.MustRegister(ssext.FunctionDefinition{
		Name:       "stretch",
		Type:       ssext.FuncTensor,
		ReturnType: ssext.DataNumeric,
		Params:     []ssext.Parameter{{Type: ssext.DataNumeric, Name: "x"}},
		FunctionID: StretchID,
	}, ssext.RowHandlerFunc(stretch))
}

// double emits 2*x per input row. Null stays null.
func double(ctx context.Context, call *ssext.CallContext, in *ssext.RowReader, out *ssext.RowWriter) error {
	for {
		row, err := in.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if v, ok := row[0].Numeric(); ok {
			if err := out.Write(ssext.NumericRow(2 * v)); err != nil {
				return err
			}
			continue
		}
		if err := out.Write(ssext.Row{ssext.NullDual}); err != nil {
			return err
		}
	}
}

// sum folds the numeric column into one row. Nulls are skipped, so an
// all-null (or empty) input sums to zero rather than null.
func sum(ctx context.Context, call *ssext.CallContext, in *ssext.RowReader, out *ssext.RowWriter) error {
	var total float64
	for {
		row, err := in.Next()
		if err == io.EOF {
			return out.Write(ssext.NumericRow(total))
		}
		if err != nil {
			return err
		}
		if v, ok := row[0].Numeric(); ok {
			total += v
		}
	}
}

// concat joins the first column using the separator from the second
// column of the first row.
func concat(ctx context.Context, call *ssext.CallContext, in *ssext.RowReader, out *ssext.RowWriter) error {
	var parts []string
	sep := ","
	for {
		row, err := in.Next()
		if err == io.EOF {
			return out.Write(ssext.StringRow(strings.Join(parts, sep)))
		}
		if err != nil {
			return err
		}
		if in.Count() == 1 {
			if s, ok := row[1].Text(); ok {
				sep = s
			}
		}
		if s, ok := row[0].Text(); ok {
			parts = append(parts, s)
		}
	}
}

// stretch emits each input value twice: N rows in, 2N rows out.
// Exercises the tensor contract, which bounds neither direction.
func stretch(ctx context.Context, call *ssext.CallContext, in *ssext.RowReader, out *ssext.RowWriter) error {
	for {
		row, err := in.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := out.Write(row, row); err != nil {
			return err
		}
	}
}
