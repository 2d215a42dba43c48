// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

// Package zstd registers a zstd compressor with gRPC so clients that
// negotiate "zstd" message compression get it transparently. Import it
// for the side effect:
//
//	import _ "github.com/fieldray/ssext/ssext/encoding/zstd"
package zstd

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// Name is the compressor name registered with gRPC.
const Name = "zstd"

func init() {
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	encoding.RegisterCompressor(&compressor{enc: enc, dec: dec})
}

type compressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder

	poolCompressor   sync.Pool
	poolDecompressor sync.Pool
}

func (c *compressor) Name() string { return Name }

type writer struct {
	buf *bytes.Buffer
	c   *compressor
	out io.Writer
}

func (c *compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	z, ok := c.poolCompressor.Get().(*writer)
	if !ok {
		z = &writer{buf: new(bytes.Buffer), c: c}
	}
	z.buf.Reset()
	z.out = w
	return z, nil
}

func (z *writer) Write(p []byte) (int, error) {
	return z.buf.Write(p)
}

// Close compresses the buffered message in one shot. Stateless
// EncodeAll avoids per-stream encoder goroutines.
func (z *writer) Close() error {
	compressed := z.c.enc.EncodeAll(z.buf.Bytes(), nil)
	_, err := z.out.Write(compressed)
	z.out = nil
	z.c.poolCompressor.Put(z)
	return err
}

type reader struct {
	buf bytes.Reader
	c   *compressor
}

func (c *compressor) Decompress(r io.Reader) (io.Reader, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	plain, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, err
	}
	z, ok := c.poolDecompressor.Get().(*reader)
	if !ok {
		z = &reader{c: c}
	}
	z.buf.Reset(plain)
	return z, nil
}

func (z *reader) Read(p []byte) (int, error) {
	n, err := z.buf.Read(p)
	if err == io.EOF {
		z.c.poolDecompressor.Put(z)
	}
	return n, err
}
