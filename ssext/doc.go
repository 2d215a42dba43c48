// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

// Package ssext implements the plugin-side engine of the ssext protocol,
// a gRPC-based server-side extension channel for analytics and query
// engines. The engine advertises a set of externally implemented
// functions, then streams tabular parameter data out of the calling
// engine and streamed tabular results back in, either by invoking a
// registered function by numeric ID or by evaluating an ad-hoc script.
//
// # Calls
//
// Three calls make up the wire surface:
//
//   - GetCapabilities: a no-argument query returning the
//     [Capabilities] descriptor built from a [Registry].
//   - ExecuteFunction: a bidirectional stream of [BundledRows]
//     resolved to a registered [RowHandler] via the functionId in the
//     call's [FunctionRequestHeader].
//   - EvaluateScript: a bidirectional stream of [BundledRows] handed to
//     a [ScriptRunner] collaborator together with the script text and
//     type contract from the call's [ScriptRequestHeader].
//
// Every call additionally carries a [CommonRequestHeader] in its
// metadata. Headers travel binary-encoded under fixed metadata keys;
// see [MetaCommonHeader], [MetaFunctionHeader], [MetaScriptHeader].
//
// # Rows and bundles
//
// Handlers see a flat, ordered stream of [Row] values through a
// [RowReader] and emit result rows through a [RowWriter]. The grouping
// of rows into [BundledRows] messages is a transport-efficiency
// artifact controlled by [BundleConfig]; bundle boundaries carry no
// meaning and never reorder, drop, or duplicate rows.
//
// # Sessions
//
// Each streaming call is owned by one session, a small state machine
// (INIT through DONE or FAILED) that binds the decoded headers, the
// bundler pair, and the resolved handler. Sessions are independent:
// any number may run concurrently, and a failure terminates only its
// own call with a status distinguishable per error kind (see [Error]).
//
// # Values
//
// Cells are [Dual] values: a numeric component, a text component, both,
// or null, interpreted against the column's declared [DataType]. The
// two-field wire shape exists only at the boundary; in Go a Dual is a
// tagged immutable value.
package ssext
