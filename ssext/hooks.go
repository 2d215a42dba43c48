// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import "context"

// Call kind strings for DispatchInfo.CallKind.
const (
	DispatchCapabilities = "capabilities"
	DispatchFunction     = "function"
	DispatchScript       = "script"
)

// DispatchHook provides observability callpoints around call dispatch.
// Implementations must be safe for concurrent use; sessions run in
// parallel.
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by OnDispatchStart and passed
// back to OnDispatchEnd. Only meaningful to the hook that created it.
type HookToken interface{}

// DispatchInfo carries call metadata passed to hooks.
type DispatchInfo struct {
	CallKind     string // DispatchCapabilities, DispatchFunction, or DispatchScript
	SessionID    string // engine-visible correlation ID for this call
	PluginID     string // plugin identifier from the registry
	AppID        string // from the common header
	UserID       string // from the common header
	Cardinality  int64  // caller's row-count hint
	FunctionID   int32  // function calls only
	FunctionName string // function calls only
}

// CallStatistics holds per-call I/O counters.
type CallStatistics struct {
	InputBundles  int64
	OutputBundles int64
	InputRows     int64
	OutputRows    int64
	InputBytes    int64
	OutputBytes   int64
}

// RecordInput records one input bundle with the given row count and
// payload size.
func (s *CallStatistics) RecordInput(numRows, payloadBytes int64) {
	s.InputBundles++
	s.InputRows += numRows
	s.InputBytes += payloadBytes
}

// RecordOutput records one output bundle with the given row count and
// payload size.
func (s *CallStatistics) RecordOutput(numRows, payloadBytes int64) {
	s.OutputBundles++
	s.OutputRows += numRows
	s.OutputBytes += payloadBytes
}
