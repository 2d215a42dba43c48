// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"log/slog"
)

// options collects the knobs shared by the dispatcher, the evaluator,
// and the server surface.
type options struct {
	logger *slog.Logger
	hook   DispatchHook
	bundle BundleConfig
	runner ScriptRunner
}

// Option configures a Dispatcher, Evaluator, or Server.
type Option func(*options)

// WithLogger sets the slog logger used for session tracing.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDispatchHook registers an observability hook called around every
// dispatched call. Hook panics are contained and never fail a call.
func WithDispatchHook(h DispatchHook) Option {
	return func(o *options) { o.hook = h }
}

// WithBundleConfig sets the output bundle sizing limits.
func WithBundleConfig(cfg BundleConfig) Option {
	return func(o *options) { o.bundle = cfg }
}

// WithScriptRunner wires the external script-execution collaborator.
// Without one, script-evaluation calls fail with ScriptingDisabled
// regardless of the registry's allowScript flag.
func WithScriptRunner(r ScriptRunner) Option {
	return func(o *options) { o.runner = r }
}

func buildOptions(opt []Option) options {
	o := options{logger: slog.Default()}
	for _, fn := range opt {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Dispatcher resolves function-execution calls against a Registry and
// drives the resolved handler through a streaming session.
type Dispatcher struct {
	reg  *Registry
	opts options
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(reg *Registry, opt ...Option) *Dispatcher {
	return &Dispatcher{reg: reg, opts: buildOptions(opt)}
}

// ExecuteFunction serves one function-execution call: it decodes the
// common and function headers from the call metadata, resolves the
// functionId, and pumps the stream through the handler. The returned
// error is the call's terminal status; nil means every declared output
// row was delivered.
func (d *Dispatcher) ExecuteFunction(stream BundleStream) error {
	sess := newSession(d.opts.logger, d.opts.bundle)
	ctx := stream.Context()

	common, err := CommonHeaderFromContext(ctx)
	if err != nil {
		return sess.fail(err)
	}
	fh, err := FunctionHeaderFromContext(ctx)
	if err != nil {
		return sess.fail(err)
	}
	def, handler, err := d.reg.Lookup(fh.FunctionID)
	if err != nil {
		return sess.fail(err)
	}
	sess.bind(common)

	info := DispatchInfo{
		CallKind:     DispatchFunction,
		SessionID:    sess.id,
		PluginID:     d.reg.PluginID(),
		AppID:        common.AppID,
		UserID:       common.UserID,
		Cardinality:  common.Cardinality,
		FunctionID:   def.FunctionID,
		FunctionName: def.Name,
	}
	ctx, token, active := hookStart(d.opts.hook, ctx, info)

	call := &CallContext{
		SessionID:       sess.id,
		AppID:           common.AppID,
		UserID:          common.UserID,
		Cardinality:     common.Cardinality,
		Function:        &def,
		FunctionVersion: fh.Version,
		Logger:          sess.logger,
	}
	c := contract{funcType: def.Type, params: def.Params, returnType: def.ReturnType}

	err = sess.run(ctx, stream, c, call, handler)
	hookEnd(d.opts.hook, ctx, token, active, info, &sess.stats, err)
	return err
}

// hookStart invokes the dispatch hook panic-safely. The returned
// context replaces the call context when the hook supplies one.
func hookStart(h DispatchHook, ctx context.Context, info DispatchInfo) (context.Context, HookToken, bool) {
	if h == nil {
		return ctx, nil, false
	}
	var token HookToken
	active := false
	func() {
		defer func() {
			if rv := recover(); rv != nil {
				slog.Error("dispatch hook start panic", "err", rv)
			}
		}()
		var hookCtx context.Context
		hookCtx, token = h.OnDispatchStart(ctx, info)
		if hookCtx != nil {
			ctx = hookCtx
		}
		active = true
	}()
	return ctx, token, active
}

// hookEnd invokes the dispatch hook's end callpoint panic-safely.
func hookEnd(h DispatchHook, ctx context.Context, token HookToken, active bool, info DispatchInfo, stats *CallStatistics, err error) {
	if h == nil || !active {
		return
	}
	defer func() {
		if rv := recover(); rv != nil {
			slog.Error("dispatch hook end panic", "err", rv)
		}
	}()
	h.OnDispatchEnd(ctx, token, info, stats, err)
}
