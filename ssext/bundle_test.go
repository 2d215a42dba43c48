// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundlerFlushesAtRowLimit(t *testing.T) {
	stream := &fakeStream{}
	var stats CallStatistics
	b := newBundler(stream, BundleConfig{MaxBundleRows: 2}.withDefaults(), 0, &stats)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.add(NumericRow(float64(i))))
	}
	require.NoError(t, b.flush())

	require.Len(t, stream.sent, 3)
	assert.Len(t, stream.sent[0].Rows, 2)
	assert.Len(t, stream.sent[1].Rows, 2)
	assert.Len(t, stream.sent[2].Rows, 1)

	// Order preserved across bundle boundaries.
	rows := stream.sentRows()
	for i, r := range rows {
		v, _ := r[0].Numeric()
		assert.Equal(t, float64(i), v)
	}
	assert.Equal(t, int64(3), stats.OutputBundles)
	assert.Equal(t, int64(5), stats.OutputRows)
}

func TestBundlerFlushesAtByteLimit(t *testing.T) {
	stream := &fakeStream{}
	var stats CallStatistics
	cfg := BundleConfig{MaxBundleRows: 1000, MaxBundleBytes: 32}.withDefaults()
	b := newBundler(stream, cfg, 0, &stats)

	big := Row{StringDual("0123456789012345678901234567890123456789")}
	require.NoError(t, b.add(big))
	require.Len(t, stream.sent, 1, "oversized row ships alone")

	require.NoError(t, b.flush())
	assert.Len(t, stream.sent, 1, "flush with nothing buffered is a no-op")
}

func TestBundlerReleasesRowsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStream{ctx: ctx}
	var stats CallStatistics
	b := newBundler(stream, DefaultBundleConfig(), 0, &stats)

	require.NoError(t, b.add(NumericRow(1)))
	cancel()
	assert.Error(t, b.flush())
	assert.Empty(t, stream.sent)
}

func TestUnbundlerFlattensInOrder(t *testing.T) {
	stream := &fakeStream{in: []*BundledRows{
		numericBundle(1, 2),
		numericBundle(),
		numericBundle(3),
	}}
	var stats CallStatistics
	u := newUnbundler(stream, &stats)

	var got []float64
	for {
		row, err := u.next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		v, _ := row[0].Numeric()
		got = append(got, v)
	}
	assert.Equal(t, []float64{1, 2, 3}, got)
	assert.Equal(t, int64(3), stats.InputBundles)
	assert.Equal(t, int64(3), stats.InputRows)

	// Subsequent reads keep returning EOF.
	_, err := u.next()
	assert.Equal(t, io.EOF, err)
}

func TestUnbundlerCorruptBundle(t *testing.T) {
	stream := &fakeStream{in: []*BundledRows{
		numericBundle(1),
		corruptBundle(),
		numericBundle(2),
	}}
	var stats CallStatistics
	u := newUnbundler(stream, &stats)

	row, err := u.next()
	require.NoError(t, err)
	v, _ := row[0].Numeric()
	assert.Equal(t, 1.0, v)

	_, err = u.next()
	assert.True(t, IsKind(err, KindMalformedStream))
}

func TestUnbundlerObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStream{ctx: ctx, in: []*BundledRows{numericBundle(1), numericBundle(2)}}
	var stats CallStatistics
	u := newUnbundler(stream, &stats)

	_, err := u.next()
	require.NoError(t, err)

	cancel()
	_, err = u.next()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBundleUnbundleRoundTrip(t *testing.T) {
	rows := []Row{
		NumericRow(1),
		StringRow("two"),
		{BothDual(3, "three")},
		{NullDual},
		NumericRow(5),
	}

	// Lossless and order-preserving at every bundling threshold.
	for limit := 1; limit <= len(rows); limit++ {
		stream := &fakeStream{}
		var stats CallStatistics
		b := newBundler(stream, BundleConfig{MaxBundleRows: limit}.withDefaults(), 0, &stats)
		for _, r := range rows {
			require.NoError(t, b.add(r))
		}
		require.NoError(t, b.flush())

		readBack := &fakeStream{in: stream.sent}
		u := newUnbundler(readBack, &stats)
		var got []Row
		for {
			r, err := u.next()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			got = append(got, r)
		}
		assert.Equal(t, rows, got, "threshold %d", limit)
	}
}

func TestBundleConfigDefaults(t *testing.T) {
	cfg := BundleConfig{}.withDefaults()
	assert.Equal(t, 256, cfg.MaxBundleRows)
	assert.Equal(t, 1<<20, cfg.MaxBundleBytes)

	cfg = BundleConfig{MaxBundleRows: 8}.withDefaults()
	assert.Equal(t, 8, cfg.MaxBundleRows)
	assert.Equal(t, 1<<20, cfg.MaxBundleBytes)
}
