// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRunner() ScriptRunner {
	return ScriptRunnerFunc(func(ctx context.Context, req *ScriptRequestHeader) (RowHandler, error) {
		return RowHandlerFunc(func(ctx context.Context, call *CallContext, in *RowReader, out *RowWriter) error {
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
		}), nil
	})
}

func scriptCtx() context.Context {
	return callCtx(
		&CommonRequestHeader{AppID: "app", Cardinality: 2},
		nil,
		&ScriptRequestHeader{
			Script:     "emit(x)",
			Type:       FuncScalar,
			ReturnType: DataNumeric,
			Params:     []Parameter{{Type: DataNumeric, Name: "x"}},
		},
	)
}

func scriptRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry("p", "1.0")
	require.NoError(t, reg.EnableScript())
	return reg
}

func TestEvaluateScriptEchoes(t *testing.T) {
	e := NewEvaluator(scriptRegistry(t), WithScriptRunner(echoRunner()))
	stream := &fakeStream{ctx: scriptCtx(), in: []*BundledRows{numericBundle(1, 2)}}

	require.NoError(t, e.EvaluateScript(stream))
	rows := stream.sentRows()
	require.Len(t, rows, 2)
	v, _ := rows[1][0].Numeric()
	assert.Equal(t, 2.0, v)
}

func TestEvaluateScriptDisabled(t *testing.T) {
	// Capability off: fails regardless of the wired runner.
	reg := NewRegistry("p", "1.0")
	e := NewEvaluator(reg, WithScriptRunner(echoRunner()))
	stream := &fakeStream{ctx: scriptCtx(), in: []*BundledRows{numericBundle(1)}}

	err := e.EvaluateScript(stream)
	assert.True(t, IsKind(err, KindScriptingDisabled))
	assert.Empty(t, stream.sent)
	assert.Zero(t, stream.pos, "no bundle is read before the capability check")
}

func TestEvaluateScriptNoRunner(t *testing.T) {
	// Capability on but no collaborator wired: same failure.
	e := NewEvaluator(scriptRegistry(t))
	err := e.EvaluateScript(&fakeStream{ctx: scriptCtx()})
	assert.True(t, IsKind(err, KindScriptingDisabled))
}

func TestEvaluateScriptMissingHeader(t *testing.T) {
	e := NewEvaluator(scriptRegistry(t), WithScriptRunner(echoRunner()))
	ctx := callCtx(&CommonRequestHeader{AppID: "a"}, nil, nil)

	err := e.EvaluateScript(&fakeStream{ctx: ctx})
	assert.True(t, IsKind(err, KindMalformedHeader))
}

func TestEvaluateScriptOpenError(t *testing.T) {
	sentinel := errors.New("interpreter not installed")
	runner := ScriptRunnerFunc(func(ctx context.Context, req *ScriptRequestHeader) (RowHandler, error) {
		return nil, sentinel
	})

	e := NewEvaluator(scriptRegistry(t), WithScriptRunner(runner))
	err := e.EvaluateScript(&fakeStream{ctx: scriptCtx(), in: []*BundledRows{numericBundle(1)}})
	assert.ErrorIs(t, err, sentinel)
}

func TestEvaluateScriptContract(t *testing.T) {
	// The script's declared SCALAR contract is enforced like a
	// registered function's.
	runner := ScriptRunnerFunc(func(ctx context.Context, req *ScriptRequestHeader) (RowHandler, error) {
		return RowHandlerFunc(func(ctx context.Context, call *CallContext, in *RowReader, out *RowWriter) error {
			_, err := in.Collect()
			return err
		}), nil
	})

	e := NewEvaluator(scriptRegistry(t), WithScriptRunner(runner))
	err := e.EvaluateScript(&fakeStream{ctx: scriptCtx(), in: []*BundledRows{numericBundle(1, 2)}})
	assert.True(t, IsKind(err, KindArityMismatch))
}

func TestScriptHeaderReachesRunner(t *testing.T) {
	var got *ScriptRequestHeader
	runner := ScriptRunnerFunc(func(ctx context.Context, req *ScriptRequestHeader) (RowHandler, error) {
		got = req
		return RowHandlerFunc(func(ctx context.Context, call *CallContext, in *RowReader, out *RowWriter) error {
			_, err := in.Collect()
			return err
		}), nil
	})

	e := NewEvaluator(scriptRegistry(t), WithScriptRunner(runner))
	require.NoError(t, e.EvaluateScript(&fakeStream{ctx: scriptCtx()}))
	require.NotNil(t, got)
	assert.Equal(t, "emit(x)", got.Script)
	assert.Equal(t, FuncScalar, got.Type)
	require.Len(t, got.Params, 1)
}
