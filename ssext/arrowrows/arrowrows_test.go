// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package arrowrows

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldray/ssext/ssext"
)

var testParams = []ssext.Parameter{
	{Type: ssext.DataString, Name: "s"},
	{Type: ssext.DataNumeric, Name: "n"},
	{Type: ssext.DataDual, Name: "d"},
}

func TestSchema(t *testing.T) {
	schema := Schema(testParams)
	require.Equal(t, 3, schema.NumFields())

	assert.Equal(t, "s", schema.Field(0).Name)
	assert.Equal(t, arrow.STRING, schema.Field(0).Type.ID())
	assert.Equal(t, arrow.FLOAT64, schema.Field(1).Type.ID())
	assert.Equal(t, arrow.STRUCT, schema.Field(2).Type.ID())
	for i := 0; i < schema.NumFields(); i++ {
		assert.True(t, schema.Field(i).Nullable)
	}
}

func TestSchemaUnnamedColumns(t *testing.T) {
	schema := Schema([]ssext.Parameter{{Type: ssext.DataNumeric}})
	assert.Equal(t, "col0", schema.Field(0).Name)
}

func TestRecordRoundTrip(t *testing.T) {
	rows := []ssext.Row{
		{ssext.StringDual("a"), ssext.NumericDual(1), ssext.BothDual(1, "one")},
		{ssext.NullDual, ssext.NullDual, ssext.NullDual},
		{ssext.StringDual(""), ssext.NumericDual(0), ssext.NumericDual(2)},
		{ssext.StringDual("z"), ssext.NumericDual(-3.5), ssext.StringDual("text")},
	}

	rec, err := ToRecord(testParams, rows)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(4), rec.NumRows())

	got, err := FromRecord(testParams, rec)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestToRecordArityChecked(t *testing.T) {
	_, err := ToRecord(testParams, []ssext.Row{{ssext.NumericDual(1)}})
	assert.Error(t, err)
}

func TestFromRecordColumnCountChecked(t *testing.T) {
	rec, err := ToRecord(testParams, nil)
	require.NoError(t, err)
	defer rec.Release()

	_, err = FromRecord(testParams[:1], rec)
	assert.Error(t, err)
}
