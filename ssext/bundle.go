// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"io"
)

// BundleStream is the transport-facing view of one streaming call: a
// bidirectional sequence of bundles plus the call's context. The gRPC
// surface adapts its server streams to this interface; tests use an
// in-memory implementation. Recv returns io.EOF at input end-of-stream.
type BundleStream interface {
	Context() context.Context
	Recv() (*BundledRows, error)
	Send(*BundledRows) error
}

// BundleConfig bounds how many rows accumulate before a bundle is
// flushed to the transport. Bundle sizing is a throughput/latency
// trade-off, not a correctness concern: smaller bundles reduce latency
// and memory at the cost of per-message overhead, larger bundles do the
// opposite. Boundaries never reorder, drop, or duplicate rows.
type BundleConfig struct {
	// MaxBundleRows flushes after this many rows. Default 256.
	MaxBundleRows int
	// MaxBundleBytes flushes once the encoded payload reaches this many
	// bytes, regardless of row count. Default 1 MiB. A single row larger
	// than the limit still ships, alone.
	MaxBundleBytes int
}

// DefaultBundleConfig returns the default sizing limits.
func DefaultBundleConfig() BundleConfig {
	return BundleConfig{MaxBundleRows: 256, MaxBundleBytes: 1 << 20}
}

func (c BundleConfig) withDefaults() BundleConfig {
	d := DefaultBundleConfig()
	if c.MaxBundleRows > 0 {
		d.MaxBundleRows = c.MaxBundleRows
	}
	if c.MaxBundleBytes > 0 {
		d.MaxBundleBytes = c.MaxBundleBytes
	}
	return d
}

// bundler groups a produced row sequence into size-bounded bundles and
// sends them downstream. Flush must be called at end-of-stream so no
// partial bundle is dropped.
type bundler struct {
	stream BundleStream
	cfg    BundleConfig
	stats  *CallStatistics

	rows  []Row
	bytes int
}

// newBundler sizes the accumulation buffer from the caller's
// cardinality hint, capped at the row limit. The hint never truncates
// the stream.
func newBundler(stream BundleStream, cfg BundleConfig, cardinality int64, stats *CallStatistics) *bundler {
	cap := cfg.MaxBundleRows
	if cardinality > 0 && cardinality < int64(cap) {
		cap = int(cardinality)
	}
	return &bundler{
		stream: stream,
		cfg:    cfg,
		stats:  stats,
		rows:   make([]Row, 0, cap),
	}
}

// add accumulates one row, flushing when either limit is reached.
func (b *bundler) add(r Row) error {
	b.rows = append(b.rows, r)
	b.bytes += sizeRow(r)
	if len(b.rows) >= b.cfg.MaxBundleRows || b.bytes >= b.cfg.MaxBundleBytes {
		return b.flush()
	}
	return nil
}

// flush sends any accumulated partial bundle. A no-op when empty.
// Buffered rows are released, not sent, when the call is already
// cancelled.
func (b *bundler) flush() error {
	if err := b.stream.Context().Err(); err != nil {
		b.rows = nil
		b.bytes = 0
		return err
	}
	if len(b.rows) == 0 {
		return nil
	}
	bundle := &BundledRows{Rows: b.rows}
	b.stats.RecordOutput(int64(len(b.rows)), int64(b.bytes))
	b.rows = make([]Row, 0, b.cfg.MaxBundleRows)
	b.bytes = 0
	return b.stream.Send(bundle)
}

// unbundler flattens the incoming bundle sequence back into rows,
// preserving order within and across bundles. Zero-row bundles are
// no-ops. A bundle that cannot be decoded surfaces as MalformedStream
// without invalidating rows already delivered.
type unbundler struct {
	stream  BundleStream
	stats   *CallStatistics
	pending []Row
	idx     int
	done    bool
}

func newUnbundler(stream BundleStream, stats *CallStatistics) *unbundler {
	return &unbundler{stream: stream, stats: stats}
}

// next returns the next row in stream order, or io.EOF at input
// end-of-stream.
func (u *unbundler) next() (Row, error) {
	for {
		if u.idx < len(u.pending) {
			r := u.pending[u.idx]
			u.idx++
			return r, nil
		}
		if u.done {
			return nil, io.EOF
		}
		// Cancellation is observed at every bundle boundary.
		if err := u.stream.Context().Err(); err != nil {
			u.done = true
			return nil, err
		}
		bundle, err := u.stream.Recv()
		if err == io.EOF {
			u.done = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		rows, err := bundle.decoded()
		if err != nil {
			u.done = true
			return nil, Errorf(KindMalformedStream, "decoding bundle: %v", err)
		}
		var size int
		for _, r := range rows {
			size += sizeRow(r)
		}
		u.stats.RecordInput(int64(len(rows)), int64(size))
		u.pending = rows
		u.idx = 0
	}
}
