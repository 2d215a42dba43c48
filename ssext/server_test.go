// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestServerGetCapabilities(t *testing.T) {
	reg := NewRegistry("plug", "3.2")
	require.NoError(t, reg.Register(defWithID(7), RowHandlerFunc(noopHandler)))
	srv := NewServer(reg)

	caps, err := srv.GetCapabilities(context.Background(), &Empty{})
	require.NoError(t, err)
	assert.Equal(t, "plug", caps.PluginID)
	assert.Equal(t, "3.2", caps.PluginVersion)
	assert.False(t, caps.AllowScript)
	require.Len(t, caps.Functions, 1)
	assert.Equal(t, int32(7), caps.Functions[0].FunctionID)
}

func TestServerRoutesCalls(t *testing.T) {
	reg := doubleRegistry(t)
	require.NoError(t, reg.EnableScript())
	srv := NewServer(reg, WithScriptRunner(echoRunner()))

	stream := &fakeStream{ctx: execCtx(7), in: []*BundledRows{numericBundle(3)}}
	require.NoError(t, srv.ExecuteFunction(stream))
	rows := stream.sentRows()
	require.Len(t, rows, 1)
	v, _ := rows[0][0].Numeric()
	assert.Equal(t, 6.0, v)

	sstream := &fakeStream{ctx: scriptCtx(), in: []*BundledRows{numericBundle(4)}}
	require.NoError(t, srv.EvaluateScript(sstream))
	require.Len(t, sstream.sentRows(), 1)
}

func TestServiceDescriptorShape(t *testing.T) {
	assert.Equal(t, "ssext.Connector", serviceDesc.ServiceName)
	require.Len(t, serviceDesc.Methods, 1)
	assert.Equal(t, "GetCapabilities", serviceDesc.Methods[0].MethodName)
	require.Len(t, serviceDesc.Streams, 2)
	for _, s := range serviceDesc.Streams {
		assert.True(t, s.ClientStreams)
		assert.True(t, s.ServerStreams)
	}
}

func TestErrorStatusCodes(t *testing.T) {
	cases := map[ErrorKind]codes.Code{
		KindMalformedHeader:     codes.InvalidArgument,
		KindArityMismatch:       codes.InvalidArgument,
		KindMalformedStream:     codes.DataLoss,
		KindUnknownFunction:     codes.NotFound,
		KindScriptingDisabled:   codes.PermissionDenied,
		KindDuplicateFunctionID: codes.FailedPrecondition,
		KindRegistryFrozen:      codes.FailedPrecondition,
		KindUnknown:             codes.Unknown,
	}
	for kind, want := range cases {
		err := Errorf(kind, "x")
		assert.Equal(t, want, status.Code(err), "kind %s", kind)
	}
}

// recordingHook captures dispatch callpoints.
type recordingHook struct {
	mu     sync.Mutex
	starts []DispatchInfo
	ends   []DispatchInfo
	errs   []error
}

func (h *recordingHook) OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts = append(h.starts, info)
	return ctx, len(h.starts)
}

func (h *recordingHook) OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, info)
	h.errs = append(h.errs, err)
}

func TestDispatchHookObservesCalls(t *testing.T) {
	hook := &recordingHook{}
	srv := NewServer(doubleRegistry(t), WithDispatchHook(hook))

	_, err := srv.GetCapabilities(context.Background(), &Empty{})
	require.NoError(t, err)

	stream := &fakeStream{ctx: execCtx(7), in: []*BundledRows{numericBundle(1)}}
	require.NoError(t, srv.ExecuteFunction(stream))

	require.Len(t, hook.starts, 2)
	assert.Equal(t, DispatchCapabilities, hook.starts[0].CallKind)
	assert.Equal(t, DispatchFunction, hook.starts[1].CallKind)
	assert.Equal(t, "f", hook.starts[1].FunctionName)
	require.Len(t, hook.ends, 2)
	assert.NoError(t, hook.errs[1])
}

type panickyHook struct{}

func (panickyHook) OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken) {
	panic("hook start")
}

func (panickyHook) OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	panic("hook end")
}

func TestPanickyHookNeverFailsCall(t *testing.T) {
	d := NewDispatcher(doubleRegistry(t), WithDispatchHook(panickyHook{}))
	stream := &fakeStream{ctx: execCtx(7), in: []*BundledRows{numericBundle(2)}}

	require.NoError(t, d.ExecuteFunction(stream))
	require.Len(t, stream.sentRows(), 1)
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "INIT", StateInit.String())
	assert.Equal(t, "DONE", StateDone.String())
	assert.Equal(t, "FAILED", StateFailed.String())
}
