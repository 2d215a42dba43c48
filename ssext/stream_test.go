// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"io"

	"google.golang.org/grpc/metadata"
)

// fakeStream is an in-memory BundleStream: a scripted inbound bundle
// sequence and a capture of everything sent.
type fakeStream struct {
	ctx  context.Context
	in   []*BundledRows
	sent []*BundledRows
	pos  int
}

func (s *fakeStream) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

func (s *fakeStream) Recv() (*BundledRows, error) {
	if s.pos >= len(s.in) {
		return nil, io.EOF
	}
	b := s.in[s.pos]
	s.pos++
	return b, nil
}

func (s *fakeStream) Send(b *BundledRows) error {
	s.sent = append(s.sent, b)
	return nil
}

func (s *fakeStream) sentRows() []Row {
	var rows []Row
	for _, b := range s.sent {
		rows = append(rows, b.Rows...)
	}
	return rows
}

func numericBundle(vals ...float64) *BundledRows {
	b := &BundledRows{Rows: make([]Row, len(vals))}
	for i, v := range vals {
		b.Rows[i] = NumericRow(v)
	}
	return b
}

// corruptBundle builds a bundle whose transport bytes do not decode,
// the way the codec would hand it to the unbundler.
func corruptBundle() *BundledRows {
	b := new(BundledRows)
	b.setRaw([]byte{0x0a, 0xff, 0xff, 0xff, 0xff})
	return b
}

// callCtx builds an incoming call context carrying encoded headers.
func callCtx(common *CommonRequestHeader, fn *FunctionRequestHeader, script *ScriptRequestHeader) context.Context {
	md := metadata.MD{}
	if common != nil {
		md.Set(MetaCommonHeader, string(EncodeCommonHeader(common)))
	}
	if fn != nil {
		md.Set(MetaFunctionHeader, string(EncodeFunctionHeader(fn)))
	}
	if script != nil {
		md.Set(MetaScriptHeader, string(EncodeScriptHeader(script)))
	}
	return metadata.NewIncomingContext(context.Background(), md)
}
