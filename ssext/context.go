// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import "log/slog"

// CallContext provides call-scoped information to handlers.
type CallContext struct {
	// SessionID correlates this call across logs and hook events.
	SessionID string
	// AppID and UserID identify the calling document and user as
	// reported in the common header.
	AppID  string
	UserID string
	// Cardinality is the caller's expected row count hint for the
	// parameters. A hint only; the input stream may be shorter or longer.
	Cardinality int64
	// Function carries the resolved definition for function calls;
	// nil for script calls.
	Function *FunctionDefinition
	// FunctionVersion is the opaque version string from the function
	// header. No semantics are defined for it.
	FunctionVersion string
	// Script carries the request header for script calls; nil for
	// function calls.
	Script *ScriptRequestHeader
	// Logger is scoped to the session.
	Logger *slog.Logger
}
