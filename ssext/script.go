// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import "context"

// ScriptRunner is the external script-execution collaborator. Open
// receives the script text and its declared type contract and returns
// the handler that will execute it; the engine never interprets the
// script itself, it only enforces the streaming and typing contract
// around the returned handler.
type ScriptRunner interface {
	Open(ctx context.Context, req *ScriptRequestHeader) (RowHandler, error)
}

// ScriptRunnerFunc adapts a function to the ScriptRunner interface.
type ScriptRunnerFunc func(ctx context.Context, req *ScriptRequestHeader) (RowHandler, error)

// Open calls f.
func (f ScriptRunnerFunc) Open(ctx context.Context, req *ScriptRequestHeader) (RowHandler, error) {
	return f(ctx, req)
}

// Evaluator serves script-evaluation calls by handing the decoded
// script header to a ScriptRunner and driving the resulting handler
// through a streaming session, identically to the function dispatcher.
type Evaluator struct {
	reg  *Registry
	opts options
}

// NewEvaluator creates an evaluator over the given registry. Wire the
// collaborator with [WithScriptRunner]; without one every call fails
// with ScriptingDisabled.
func NewEvaluator(reg *Registry, opt ...Option) *Evaluator {
	return &Evaluator{reg: reg, opts: buildOptions(opt)}
}

// EvaluateScript serves one script-evaluation call. It fails with
// ScriptingDisabled before any bundle is read when the capability is
// off, so a disabled plugin never touches script payloads.
func (e *Evaluator) EvaluateScript(stream BundleStream) error {
	sess := newSession(e.opts.logger, e.opts.bundle)
	ctx := stream.Context()

	common, err := CommonHeaderFromContext(ctx)
	if err != nil {
		return sess.fail(err)
	}
	sh, err := ScriptHeaderFromContext(ctx)
	if err != nil {
		return sess.fail(err)
	}
	if !e.reg.AllowScript() || e.opts.runner == nil {
		return sess.fail(Errorf(KindScriptingDisabled, "plugin %q does not permit script evaluation", e.reg.PluginID()))
	}
	sess.bind(common)

	info := DispatchInfo{
		CallKind:    DispatchScript,
		SessionID:   sess.id,
		PluginID:    e.reg.PluginID(),
		AppID:       common.AppID,
		UserID:      common.UserID,
		Cardinality: common.Cardinality,
	}
	ctx, token, active := hookStart(e.opts.hook, ctx, info)

	call := &CallContext{
		SessionID:   sess.id,
		AppID:       common.AppID,
		UserID:      common.UserID,
		Cardinality: common.Cardinality,
		Script:      sh,
		Logger:      sess.logger,
	}

	handler, err := e.opts.runner.Open(ctx, sh)
	if err != nil {
		err = sess.fail(err)
		hookEnd(e.opts.hook, ctx, token, active, info, &sess.stats, err)
		return err
	}

	c := contract{funcType: sh.Type, params: sh.Params, returnType: sh.ReturnType}
	err = sess.run(ctx, stream, c, call, handler)
	hookEnd(e.opts.hook, ctx, token, active, info, &sess.stats, err)
	return err
}
