// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"

	"google.golang.org/grpc/metadata"
)

// Well-known metadata keys carrying the binary-encoded per-call headers.
// The "-bin" suffix makes the gRPC transport treat the values as raw
// bytes. Presence of the function or script key decides which call kind
// is in progress; only one of the two is expected per call.
const (
	MetaCommonHeader   = "ssext-commonrequestheader-bin"
	MetaFunctionHeader = "ssext-functionrequestheader-bin"
	MetaScriptHeader   = "ssext-scriptrequestheader-bin"
)

// EncodeCommonHeader encodes the header for the common metadata key.
// Same logical header, same bytes.
func EncodeCommonHeader(h *CommonRequestHeader) []byte {
	return h.appendWire(nil)
}

// DecodeCommonHeader decodes common-header bytes, failing with
// MalformedHeader on truncated or undecodable input.
func DecodeCommonHeader(b []byte) (*CommonRequestHeader, error) {
	h := new(CommonRequestHeader)
	if err := h.decodeWire(b); err != nil {
		return nil, Errorf(KindMalformedHeader, "common header: %v", err)
	}
	return h, nil
}

// EncodeFunctionHeader encodes the header for the function metadata key.
func EncodeFunctionHeader(h *FunctionRequestHeader) []byte {
	return h.appendWire(nil)
}

// DecodeFunctionHeader decodes function-header bytes, failing with
// MalformedHeader on truncated or undecodable input.
func DecodeFunctionHeader(b []byte) (*FunctionRequestHeader, error) {
	h := new(FunctionRequestHeader)
	if err := h.decodeWire(b); err != nil {
		return nil, Errorf(KindMalformedHeader, "function header: %v", err)
	}
	return h, nil
}

// EncodeScriptHeader encodes the header for the script metadata key.
func EncodeScriptHeader(h *ScriptRequestHeader) []byte {
	return h.appendWire(nil)
}

// DecodeScriptHeader decodes script-header bytes, failing with
// MalformedHeader on truncated or undecodable input.
func DecodeScriptHeader(b []byte) (*ScriptRequestHeader, error) {
	h := new(ScriptRequestHeader)
	if err := h.decodeWire(b); err != nil {
		return nil, Errorf(KindMalformedHeader, "script header: %v", err)
	}
	return h, nil
}

// headerBytes pulls the value for one header key out of call metadata.
// Lookup is by key only: ordering and unrelated entries are ignored.
func headerBytes(md metadata.MD, key string) ([]byte, bool) {
	vals := md.Get(key)
	if len(vals) == 0 {
		return nil, false
	}
	return []byte(vals[0]), true
}

// CommonHeaderFromContext decodes the mandatory common header from an
// incoming call context.
func CommonHeaderFromContext(ctx context.Context) (*CommonRequestHeader, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	b, ok := headerBytes(md, MetaCommonHeader)
	if !ok {
		return nil, Errorf(KindMalformedHeader, "missing %s", MetaCommonHeader)
	}
	return DecodeCommonHeader(b)
}

// FunctionHeaderFromContext decodes the function header from an
// incoming call context.
func FunctionHeaderFromContext(ctx context.Context) (*FunctionRequestHeader, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	b, ok := headerBytes(md, MetaFunctionHeader)
	if !ok {
		return nil, Errorf(KindMalformedHeader, "missing %s", MetaFunctionHeader)
	}
	return DecodeFunctionHeader(b)
}

// ScriptHeaderFromContext decodes the script header from an incoming
// call context.
func ScriptHeaderFromContext(ctx context.Context) (*ScriptRequestHeader, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	b, ok := headerBytes(md, MetaScriptHeader)
	if !ok {
		return nil, Errorf(KindMalformedHeader, "missing %s", MetaScriptHeader)
	}
	return DecodeScriptHeader(b)
}
