// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func TestHeadersFromContext(t *testing.T) {
	common := &CommonRequestHeader{AppID: "app", UserID: "u", Cardinality: 5}
	fn := &FunctionRequestHeader{FunctionID: 7, Version: "v1"}
	md := metadata.Pairs(
		MetaCommonHeader, string(EncodeCommonHeader(common)),
		MetaFunctionHeader, string(EncodeFunctionHeader(fn)),
		"unrelated-key", "ignored",
	)
	ctx := metadata.NewIncomingContext(context.Background(), md)

	gotCommon, err := CommonHeaderFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, common, gotCommon)

	gotFn, err := FunctionHeaderFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, fn, gotFn)
}

func TestScriptHeaderFromContext(t *testing.T) {
	script := &ScriptRequestHeader{
		Script:     "emit(x)",
		Type:       FuncTensor,
		ReturnType: DataDual,
		Params:     []Parameter{{Type: DataDual, Name: "x"}},
	}
	md := metadata.Pairs(MetaScriptHeader, string(EncodeScriptHeader(script)))
	ctx := metadata.NewIncomingContext(context.Background(), md)

	got, err := ScriptHeaderFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, script, got)
}

func TestMissingHeaderIsMalformed(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})

	_, err := CommonHeaderFromContext(ctx)
	assert.True(t, IsKind(err, KindMalformedHeader))

	_, err = FunctionHeaderFromContext(ctx)
	assert.True(t, IsKind(err, KindMalformedHeader))

	_, err = ScriptHeaderFromContext(ctx)
	assert.True(t, IsKind(err, KindMalformedHeader))
}

func TestUndecodableHeaderIsMalformed(t *testing.T) {
	md := metadata.Pairs(MetaCommonHeader, string([]byte{0xff, 0xff, 0xff}))
	ctx := metadata.NewIncomingContext(context.Background(), md)

	_, err := CommonHeaderFromContext(ctx)
	assert.True(t, IsKind(err, KindMalformedHeader))
}
