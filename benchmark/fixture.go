// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

// Package benchmark holds fixtures shared by the engine benchmarks:
// deterministic row generators at several shapes and sizes, and a
// ready-made registry exercising each function type.
package benchmark

import (
	"context"
	"fmt"
	"io"

	"github.com/fieldray/ssext/ssext"
)

// NumericRows generates n single-column numeric rows.
func NumericRows(n int) []ssext.Row {
	rows := make([]ssext.Row, n)
	for i := range rows {
		rows[i] = ssext.NumericRow(float64(i))
	}
	return rows
}

// MixedRows generates n three-column rows covering every cell shape,
// with a null sprinkled in every fourth row.
func MixedRows(n int) []ssext.Row {
	rows := make([]ssext.Row, n)
	for i := range rows {
		d := ssext.BothDual(float64(i), fmt.Sprintf("row-%d", i))
		if i%4 == 0 {
			d = ssext.NullDual
		}
		rows[i] = ssext.Row{
			ssext.StringDual(fmt.Sprintf("value-%d", i)),
			ssext.NumericDual(float64(i) * 1.5),
			d,
		}
	}
	return rows
}

// MixedParams is the parameter list matching [MixedRows].
var MixedParams = []ssext.Parameter{
	{Type: ssext.DataString, Name: "s"},
	{Type: ssext.DataNumeric, Name: "n"},
	{Type: ssext.DataDual, Name: "d"},
}

// NewRegistry builds a registry with one function per function type,
// each doing minimal work so benchmarks measure the engine, not the
// handler.
func NewRegistry() *ssext.Registry {
	reg := ssext.NewRegistry("benchmark", "1.0")

	reg.MustRegister(ssext.FunctionDefinition{
		Name:       "identity",
		Type:       ssext.FuncScalar,
		ReturnType: ssext.DataNumeric,
		Params:     []ssext.Parameter{{Type: ssext.DataNumeric, Name: "x"}},
		FunctionID: 1,
	}, ssext.RowHandlerFunc(identity))

	reg.MustRegister(ssext.FunctionDefinition{
		Name:       "count",
		Type:       ssext.FuncAggregation,
		ReturnType: ssext.DataNumeric,
		Params:     []ssext.Parameter{{Type: ssext.DataNumeric, Name: "x"}},
		FunctionID: 2,
	}, ssext.RowHandlerFunc(count))

	return reg
}

func identity(ctx context.Context, call *ssext.CallContext, in *ssext.RowReader, out *ssext.RowWriter) error {
	for {
		row, err := in.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := out.Write(row); err != nil {
			return err
		}
	}
}

func count(ctx context.Context, call *ssext.CallContext, in *ssext.RowReader, out *ssext.RowWriter) error {
	for {
		_, err := in.Next()
		if err == io.EOF {
			return out.Write(ssext.NumericRow(float64(in.Count())))
		}
		if err != nil {
			return err
		}
	}
}
