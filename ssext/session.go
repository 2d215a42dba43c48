// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionState is the lifecycle state of one streaming call.
type SessionState int32

const (
	// StateInit: headers not yet decoded.
	StateInit SessionState = iota
	// StateAwaitingInput: headers decoded, handler not yet started.
	StateAwaitingInput
	// StateStreaming: rows flowing bidirectionally.
	StateStreaming
	// StateDraining: input exhausted, remaining output being flushed.
	StateDraining
	// StateDone: terminal success; all declared output delivered.
	StateDone
	// StateFailed: terminal error; partial output already flushed is
	// not retracted, the caller discards on non-success status.
	StateFailed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateAwaitingInput:
		return "AWAITING_INPUT"
	case StateStreaming:
		return "STREAMING"
	case StateDraining:
		return "DRAINING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// RowHandler is the row-in/row-out execution contract shared by
// registered functions and script collaborators. Execute pulls the
// call's logical input stream from in until io.EOF and emits result
// rows through out; returning nil declares the output complete.
// Any returned error fails the session.
type RowHandler interface {
	Execute(ctx context.Context, call *CallContext, in *RowReader, out *RowWriter) error
}

// RowHandlerFunc adapts a function to the RowHandler interface.
type RowHandlerFunc func(ctx context.Context, call *CallContext, in *RowReader, out *RowWriter) error

// Execute calls f.
func (f RowHandlerFunc) Execute(ctx context.Context, call *CallContext, in *RowReader, out *RowWriter) error {
	return f(ctx, call, in, out)
}

// contract is the per-call typing contract a session enforces: the
// declared parameter list bounds every input row's cell count, and the
// function type bounds the output row count at drain.
type contract struct {
	funcType   FunctionType
	params     []Parameter
	returnType DataType
}

// RowReader delivers a call's logical input row stream to a handler,
// flattened across bundle boundaries in arrival order.
type RowReader struct {
	sess  *session
	un    *unbundler
	arity int
	count int64
}

// Next returns the next input row, or io.EOF once the caller has
// closed its side of the stream. Each row's cell count is checked
// against the declared parameter count; producers may vary row shape
// mid-stream, so the check runs per row, and the first offending row
// fails the call with ArityMismatch.
func (r *RowReader) Next() (Row, error) {
	row, err := r.un.next()
	if err == io.EOF {
		r.sess.to(StateDraining)
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	r.sess.to(StateStreaming)
	if len(row) != r.arity {
		return nil, Errorf(KindArityMismatch, "input row %d has %d cells, declared parameter count is %d",
			r.count, len(row), r.arity)
	}
	r.count++
	return row, nil
}

// Collect reads the rest of the stream into memory. Convenience for
// aggregation and tensor handlers that need the full input before
// producing anything.
func (r *RowReader) Collect() ([]Row, error) {
	var rows []Row
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

// Count returns the number of rows delivered so far.
func (r *RowReader) Count() int64 { return r.count }

// RowWriter accepts a handler's result rows and hands them to the
// bundler, which flushes opportunistically as size limits are reached.
// The session flushes the final partial bundle after the handler
// completes; handlers never deal in bundles.
type RowWriter struct {
	b     *bundler
	count int64
}

// Write emits result rows in order.
func (w *RowWriter) Write(rows ...Row) error {
	for _, row := range rows {
		if err := w.b.add(row); err != nil {
			return err
		}
		w.count++
	}
	return nil
}

// Count returns the number of rows written so far.
func (w *RowWriter) Count() int64 { return w.count }

// session is the per-call state machine. One exists per streaming
// call; it owns the decoded headers, the bundler/unbundler pair, and
// the call statistics, and is discarded once it reaches DONE or
// FAILED. Sessions are independent: state is never shared across
// calls, so any number may run in parallel.
type session struct {
	id     string
	state  atomic.Int32
	logger *slog.Logger
	cfg    BundleConfig
	stats  CallStatistics
	common *CommonRequestHeader
}

func newSession(logger *slog.Logger, cfg BundleConfig) *session {
	id := uuid.NewString()
	if logger == nil {
		logger = slog.Default()
	}
	return &session{
		id:     id,
		logger: logger.With("session", id),
		cfg:    cfg.withDefaults(),
	}
}

// State returns the current lifecycle state.
func (s *session) State() SessionState {
	return SessionState(s.state.Load())
}

// to advances the state machine. Transitions out of a terminal state
// or backwards are ignored, so repeated Streaming/Draining signals
// from the reader are harmless.
func (s *session) to(next SessionState) {
	for {
		cur := s.state.Load()
		if SessionState(cur) >= next || SessionState(cur) == StateDone || SessionState(cur) == StateFailed {
			return
		}
		if s.state.CompareAndSwap(cur, int32(next)) {
			s.logger.Debug("session state", "from", SessionState(cur), "to", next)
			return
		}
	}
}

// fail moves the session to FAILED and returns err for the transport.
func (s *session) fail(err error) error {
	s.state.Store(int32(StateFailed))
	s.logger.Debug("session failed", "state", StateFailed, "err", err)
	return err
}

// bind records the decoded common header: INIT -> AWAITING_INPUT.
func (s *session) bind(common *CommonRequestHeader) {
	s.common = common
	s.to(StateAwaitingInput)
}

// run drives the handler over the stream and enforces the output
// contract at drain. ctx is the handler's context (it may carry hook
// values); cancellation of the underlying call is observed at every
// bundle boundary through the stream's own context.
func (s *session) run(ctx context.Context, stream BundleStream, c contract, call *CallContext, h RowHandler) error {
	reader := &RowReader{
		sess:  s,
		un:    newUnbundler(stream, &s.stats),
		arity: len(c.params),
	}
	writer := &RowWriter{
		b: newBundler(stream, s.cfg, s.common.Cardinality, &s.stats),
	}

	err := s.execute(ctx, call, h, reader, writer)
	if err != nil {
		return s.fail(err)
	}

	// A handler may legitimately return before observing io.EOF (an
	// aggregation that needs no input, say). Drain what remains so the
	// row count below reflects the whole input stream.
	for {
		if _, err := reader.Next(); err == io.EOF {
			break
		} else if err != nil {
			return s.fail(err)
		}
	}
	s.to(StateDraining)

	switch c.funcType {
	case FuncScalar:
		if writer.count != reader.count {
			return s.fail(Errorf(KindArityMismatch, "scalar function produced %d rows for %d input rows",
				writer.count, reader.count))
		}
	case FuncAggregation:
		if writer.count != 1 {
			return s.fail(Errorf(KindArityMismatch, "aggregation produced %d rows, want exactly 1", writer.count))
		}
	}

	if err := writer.b.flush(); err != nil {
		return s.fail(err)
	}
	s.to(StateDone)
	s.logger.Debug("session done",
		"input_rows", s.stats.InputRows, "output_rows", s.stats.OutputRows,
		"input_bundles", s.stats.InputBundles, "output_bundles", s.stats.OutputBundles)
	return nil
}

// execute invokes the handler with panic containment; a panicking
// handler fails only its own session.
func (s *session) execute(ctx context.Context, call *CallContext, h RowHandler, in *RowReader, out *RowWriter) (err error) {
	defer func() {
		if rv := recover(); rv != nil {
			err = Errorf(KindUnknown, "handler panic: %v", rv)
		}
	}()
	return h.Execute(ctx, call, in, out)
}
