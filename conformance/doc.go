// Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides the fixture plugin used by the protocol
// conformance suite. It registers a small set of functions that
// exercise every function type and data type the engine supports:
// scalar numeric mapping, numeric and string aggregation, tensor
// expansion, and null passthrough, plus a trivial script collaborator.
//
// The entry points intended for external use are [RegisterFunctions],
// which populates a [ssext.Registry], and [EchoRunner], a
// [ssext.ScriptRunner] that streams input rows back unchanged.
package conformance
