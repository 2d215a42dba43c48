// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"encoding"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// The wire layout is fixed by the existing schema and hand-rolled on
// protowire rather than generated: the message set is small, field
// presence on Dual is load-bearing (absence encodes null), and encoding
// must be deterministic so the engine may retry a call before streaming
// begins. Fields are always emitted in ascending field-number order;
// proto3 scalar defaults are skipped except on Dual, where presence is
// meaning.

// Parameter describes one column's contract: a declared type and a name.
type Parameter struct {
	Type DataType // field 1
	Name string   // field 2
}

// FunctionDefinition describes one registered function. FunctionID is
// assigned by the plugin, must be unique within a Capabilities response,
// and is the sole key the engine uses to invoke the function.
type FunctionDefinition struct {
	Name       string       // field 1
	Type       FunctionType // field 2
	ReturnType DataType     // field 3
	Params     []Parameter  // field 4
	FunctionID int32        // field 5
}

// Capabilities is the descriptor a plugin advertises at handshake.
type Capabilities struct {
	AllowScript   bool                 // field 1
	Functions     []FunctionDefinition // field 2
	PluginID      string               // field 3
	PluginVersion string               // field 4
}

// CommonRequestHeader is attached to every call. Cardinality is a row
// count hint used for bundle sizing, never a hard limit.
type CommonRequestHeader struct {
	AppID       string // field 1
	UserID      string // field 2
	Cardinality int64  // field 3
}

// FunctionRequestHeader is attached to function-execution calls.
// Version is an opaque passthrough with no defined semantics; the
// engine never validates or interprets it.
type FunctionRequestHeader struct {
	FunctionID int32  // field 1
	Version    string // field 2
}

// ScriptRequestHeader is attached to script-evaluation calls.
type ScriptRequestHeader struct {
	Script     string       // field 1
	Type       FunctionType // field 2
	ReturnType DataType     // field 3
	Params     []Parameter  // field 4
}

// BundledRows is a size-bounded batch of rows: purely a transport
// chunking artifact, never inspected by handler logic.
type BundledRows struct {
	Rows []Row // field 1

	// raw holds undecoded wire bytes when the message arrived off the
	// transport. Decoding is deferred to the unbundler so a corrupt
	// bundle surfaces as MalformedStream on the owning session instead
	// of an opaque transport error.
	raw []byte
}

// Empty is the argument of the capability query.
type Empty struct{}

// --- encoding ---

func appendDual(b []byte, d Dual) []byte {
	if d.kind == DualNumeric || d.kind == DualBoth {
		b = protowire.AppendTag(b, 1, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(d.num))
	}
	if d.kind == DualString || d.kind == DualBoth {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, d.str)
	}
	return b
}

func sizeDual(d Dual) int {
	var n int
	if d.kind == DualNumeric || d.kind == DualBoth {
		n += 1 + 8
	}
	if d.kind == DualString || d.kind == DualBoth {
		n += 1 + protowire.SizeBytes(len(d.str))
	}
	return n
}

func appendRow(b []byte, r Row) []byte {
	for _, d := range r {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(sizeDual(d)))
		b = appendDual(b, d)
	}
	return b
}

func sizeRow(r Row) int {
	var n int
	for _, d := range r {
		n += 1 + protowire.SizeBytes(sizeDual(d))
	}
	return n
}

func appendParameter(b []byte, p Parameter) []byte {
	if p.Type != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.Type))
	}
	if p.Name != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, p.Name)
	}
	return b
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func (m *BundledRows) appendWire(b []byte) []byte {
	for _, r := range m.Rows {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(sizeRow(r)))
		b = appendRow(b, r)
	}
	return b
}

func (m *FunctionDefinition) appendWire(b []byte) []byte {
	if m.Name != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Name)
	}
	if m.Type != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type))
	}
	if m.ReturnType != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ReturnType))
	}
	for _, p := range m.Params {
		b = appendMessage(b, 4, appendParameter(nil, p))
	}
	if m.FunctionID != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.FunctionID)))
	}
	return b
}

func (m *Capabilities) appendWire(b []byte) []byte {
	if m.AllowScript {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	for i := range m.Functions {
		b = appendMessage(b, 2, m.Functions[i].appendWire(nil))
	}
	if m.PluginID != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.PluginID)
	}
	if m.PluginVersion != "" {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, m.PluginVersion)
	}
	return b
}

func (m *CommonRequestHeader) appendWire(b []byte) []byte {
	if m.AppID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.AppID)
	}
	if m.UserID != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.UserID)
	}
	if m.Cardinality != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Cardinality))
	}
	return b
}

func (m *FunctionRequestHeader) appendWire(b []byte) []byte {
	if m.FunctionID != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(m.FunctionID)))
	}
	if m.Version != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, m.Version)
	}
	return b
}

func (m *ScriptRequestHeader) appendWire(b []byte) []byte {
	if m.Script != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, m.Script)
	}
	if m.Type != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type))
	}
	if m.ReturnType != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.ReturnType))
	}
	for _, p := range m.Params {
		b = appendMessage(b, 4, appendParameter(nil, p))
	}
	return b
}

// --- decoding ---

// fieldScanner walks the fields of one wire message, skipping unknown
// field numbers so decoders stay compatible with schema extensions.
type fieldScanner struct {
	buf []byte
	err error
}

func (s *fieldScanner) next() (protowire.Number, protowire.Type, bool) {
	if s.err != nil || len(s.buf) == 0 {
		return 0, 0, false
	}
	num, typ, n := protowire.ConsumeTag(s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return 0, 0, false
	}
	s.buf = s.buf[n:]
	return num, typ, true
}

func (s *fieldScanner) skip(num protowire.Number, typ protowire.Type) {
	n := protowire.ConsumeFieldValue(num, typ, s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return
	}
	s.buf = s.buf[n:]
}

func (s *fieldScanner) varint() uint64 {
	v, n := protowire.ConsumeVarint(s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return 0
	}
	s.buf = s.buf[n:]
	return v
}

func (s *fieldScanner) fixed64() uint64 {
	v, n := protowire.ConsumeFixed64(s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return 0
	}
	s.buf = s.buf[n:]
	return v
}

func (s *fieldScanner) bytes() []byte {
	v, n := protowire.ConsumeBytes(s.buf)
	if n < 0 {
		s.err = protowire.ParseError(n)
		return nil
	}
	s.buf = s.buf[n:]
	return v
}

func (s *fieldScanner) str() string {
	return string(s.bytes())
}

func decodeDual(b []byte) (Dual, error) {
	sc := fieldScanner{buf: b}
	var (
		num             float64
		str             string
		hasNum, hasText bool
	)
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		switch {
		case fnum == 1 && typ == protowire.Fixed64Type:
			num = math.Float64frombits(sc.fixed64())
			hasNum = true
		case fnum == 2 && typ == protowire.BytesType:
			str = sc.str()
			hasText = true
		default:
			sc.skip(fnum, typ)
		}
	}
	if sc.err != nil {
		return Dual{}, sc.err
	}
	switch {
	case hasNum && hasText:
		return BothDual(num, str), nil
	case hasNum:
		return NumericDual(num), nil
	case hasText:
		return StringDual(str), nil
	default:
		return NullDual, nil
	}
}

func decodeRow(b []byte) (Row, error) {
	sc := fieldScanner{buf: b}
	var row Row
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		if fnum == 1 && typ == protowire.BytesType {
			d, err := decodeDual(sc.bytes())
			if err != nil {
				return nil, err
			}
			row = append(row, d)
			continue
		}
		sc.skip(fnum, typ)
	}
	if sc.err != nil {
		return nil, sc.err
	}
	return row, nil
}

func decodeParameter(b []byte) (Parameter, error) {
	sc := fieldScanner{buf: b}
	var p Parameter
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		switch {
		case fnum == 1 && typ == protowire.VarintType:
			p.Type = DataType(sc.varint())
		case fnum == 2 && typ == protowire.BytesType:
			p.Name = sc.str()
		default:
			sc.skip(fnum, typ)
		}
	}
	return p, sc.err
}

func (m *BundledRows) decodeWire(b []byte) error {
	sc := fieldScanner{buf: b}
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		if fnum == 1 && typ == protowire.BytesType {
			row, err := decodeRow(sc.bytes())
			if err != nil {
				return err
			}
			m.Rows = append(m.Rows, row)
			continue
		}
		sc.skip(fnum, typ)
	}
	return sc.err
}

func (m *FunctionDefinition) decodeWire(b []byte) error {
	sc := fieldScanner{buf: b}
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		switch {
		case fnum == 1 && typ == protowire.BytesType:
			m.Name = sc.str()
		case fnum == 2 && typ == protowire.VarintType:
			m.Type = FunctionType(sc.varint())
		case fnum == 3 && typ == protowire.VarintType:
			m.ReturnType = DataType(sc.varint())
		case fnum == 4 && typ == protowire.BytesType:
			p, err := decodeParameter(sc.bytes())
			if err != nil {
				return err
			}
			m.Params = append(m.Params, p)
		case fnum == 5 && typ == protowire.VarintType:
			m.FunctionID = int32(sc.varint())
		default:
			sc.skip(fnum, typ)
		}
	}
	return sc.err
}

func (m *Capabilities) decodeWire(b []byte) error {
	sc := fieldScanner{buf: b}
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		switch {
		case fnum == 1 && typ == protowire.VarintType:
			m.AllowScript = sc.varint() != 0
		case fnum == 2 && typ == protowire.BytesType:
			var def FunctionDefinition
			if err := def.decodeWire(sc.bytes()); err != nil {
				return err
			}
			m.Functions = append(m.Functions, def)
		case fnum == 3 && typ == protowire.BytesType:
			m.PluginID = sc.str()
		case fnum == 4 && typ == protowire.BytesType:
			m.PluginVersion = sc.str()
		default:
			sc.skip(fnum, typ)
		}
	}
	return sc.err
}

func (m *CommonRequestHeader) decodeWire(b []byte) error {
	sc := fieldScanner{buf: b}
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		switch {
		case fnum == 1 && typ == protowire.BytesType:
			m.AppID = sc.str()
		case fnum == 2 && typ == protowire.BytesType:
			m.UserID = sc.str()
		case fnum == 3 && typ == protowire.VarintType:
			m.Cardinality = int64(sc.varint())
		default:
			sc.skip(fnum, typ)
		}
	}
	return sc.err
}

func (m *FunctionRequestHeader) decodeWire(b []byte) error {
	sc := fieldScanner{buf: b}
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		switch {
		case fnum == 1 && typ == protowire.VarintType:
			m.FunctionID = int32(sc.varint())
		case fnum == 2 && typ == protowire.BytesType:
			m.Version = sc.str()
		default:
			sc.skip(fnum, typ)
		}
	}
	return sc.err
}

func (m *ScriptRequestHeader) decodeWire(b []byte) error {
	sc := fieldScanner{buf: b}
	for {
		fnum, typ, ok := sc.next()
		if !ok {
			break
		}
		switch {
		case fnum == 1 && typ == protowire.BytesType:
			m.Script = sc.str()
		case fnum == 2 && typ == protowire.VarintType:
			m.Type = FunctionType(sc.varint())
		case fnum == 3 && typ == protowire.VarintType:
			m.ReturnType = DataType(sc.varint())
		case fnum == 4 && typ == protowire.BytesType:
			p, err := decodeParameter(sc.bytes())
			if err != nil {
				return err
			}
			m.Params = append(m.Params, p)
		default:
			sc.skip(fnum, typ)
		}
	}
	return sc.err
}

// --- public marshal surface ---

// MarshalBinary encodes the bundle. Deterministic.
func (m *BundledRows) MarshalBinary() ([]byte, error) { return m.appendWire(nil), nil }

// UnmarshalBinary decodes wire bytes into the bundle.
func (m *BundledRows) UnmarshalBinary(b []byte) error {
	m.Rows = nil
	m.raw = nil
	return m.decodeWire(b)
}

// MarshalBinary encodes the descriptor. Deterministic for a given
// function order; [Registry.Capabilities] emits functions sorted by ID.
func (m *Capabilities) MarshalBinary() ([]byte, error) { return m.appendWire(nil), nil }

// UnmarshalBinary decodes wire bytes into the descriptor.
func (m *Capabilities) UnmarshalBinary(b []byte) error {
	*m = Capabilities{}
	return m.decodeWire(b)
}

// MarshalBinary encodes the header. Deterministic, so a transport-level
// retry before streaming begins reuses identical metadata bytes.
func (m *CommonRequestHeader) MarshalBinary() ([]byte, error) { return m.appendWire(nil), nil }

// UnmarshalBinary decodes wire bytes into the header.
func (m *CommonRequestHeader) UnmarshalBinary(b []byte) error {
	*m = CommonRequestHeader{}
	return m.decodeWire(b)
}

// MarshalBinary encodes the header. Deterministic.
func (m *FunctionRequestHeader) MarshalBinary() ([]byte, error) { return m.appendWire(nil), nil }

// UnmarshalBinary decodes wire bytes into the header.
func (m *FunctionRequestHeader) UnmarshalBinary(b []byte) error {
	*m = FunctionRequestHeader{}
	return m.decodeWire(b)
}

// MarshalBinary encodes the header. Deterministic.
func (m *ScriptRequestHeader) MarshalBinary() ([]byte, error) { return m.appendWire(nil), nil }

// UnmarshalBinary decodes wire bytes into the header.
func (m *ScriptRequestHeader) UnmarshalBinary(b []byte) error {
	*m = ScriptRequestHeader{}
	return m.decodeWire(b)
}

// MarshalBinary encodes the empty message.
func (m *Empty) MarshalBinary() ([]byte, error) { return nil, nil }

// UnmarshalBinary accepts any bytes; unknown fields are ignored.
func (m *Empty) UnmarshalBinary([]byte) error { return nil }

// setRaw stores undecoded transport bytes for deferred decoding.
func (m *BundledRows) setRaw(b []byte) {
	m.Rows = nil
	m.raw = append(m.raw[:0], b...)
}

// decoded returns the bundle's rows, materializing them from raw
// transport bytes on first use.
func (m *BundledRows) decoded() ([]Row, error) {
	if m.raw != nil {
		raw := m.raw
		m.raw = nil
		if err := m.decodeWire(raw); err != nil {
			return nil, err
		}
	}
	return m.Rows, nil
}

// wireCodec is the gRPC message codec for the fixed schema. It keeps
// the standard "proto" name so unmodified engine-side clients
// negotiate it, and falls back to the protobuf runtime for ordinary
// generated messages. Incoming bundles are captured raw and decoded by
// the owning session's unbundler, which reports corrupt bundles as
// MalformedStream on that call alone.
type wireCodec struct{}

func (wireCodec) Name() string { return "proto" }

func (wireCodec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case *BundledRows:
		return m.appendWire(nil), nil
	case encoding.BinaryMarshaler:
		return m.MarshalBinary()
	case proto.Message:
		return proto.Marshal(m)
	default:
		return nil, fmt.Errorf("ssext: cannot marshal %T", v)
	}
}

func (wireCodec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case *BundledRows:
		m.setRaw(data)
		return nil
	case encoding.BinaryUnmarshaler:
		return m.UnmarshalBinary(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	default:
		return fmt.Errorf("ssext: cannot unmarshal into %T", v)
	}
}
