// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies protocol errors. Each kind maps to a distinct
// terminal gRPC status so the calling engine can tell failures apart.
type ErrorKind int

const (
	// KindUnknown is the zero kind, used for errors that fit no other bucket.
	KindUnknown ErrorKind = iota
	// KindMalformedHeader indicates a missing or undecodable request header.
	// The call fails before any streaming begins.
	KindMalformedHeader
	// KindMalformedStream indicates an undecodable bundle mid-stream.
	// Rows delivered before the bad bundle remain valid.
	KindMalformedStream
	// KindUnknownFunction indicates a functionId with no registration.
	KindUnknownFunction
	// KindArityMismatch indicates a row whose cell count does not match
	// the declared parameter count, or a handler output row count that
	// violates the function type's contract.
	KindArityMismatch
	// KindScriptingDisabled indicates a script call while allowScript is off.
	KindScriptingDisabled
	// KindDuplicateFunctionID indicates two registrations with one ID.
	// Registration-time misuse; fatal to plugin initialization.
	KindDuplicateFunctionID
	// KindRegistryFrozen indicates a registration after the registry was
	// first queried. Registration-time misuse; fatal to initialization.
	KindRegistryFrozen
)

// String returns the stable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindMalformedHeader:
		return "MalformedHeader"
	case KindMalformedStream:
		return "MalformedStream"
	case KindUnknownFunction:
		return "UnknownFunction"
	case KindArityMismatch:
		return "ArityMismatch"
	case KindScriptingDisabled:
		return "ScriptingDisabled"
	case KindDuplicateFunctionID:
		return "DuplicateFunctionId"
	case KindRegistryFrozen:
		return "RegistryFrozen"
	default:
		return "Unknown"
	}
}

// grpcCode maps the kind to its wire status code.
func (k ErrorKind) grpcCode() codes.Code {
	switch k {
	case KindMalformedHeader, KindArityMismatch:
		return codes.InvalidArgument
	case KindMalformedStream:
		return codes.DataLoss
	case KindUnknownFunction:
		return codes.NotFound
	case KindScriptingDisabled:
		return codes.PermissionDenied
	case KindDuplicateFunctionID, KindRegistryFrozen:
		return codes.FailedPrecondition
	default:
		return codes.Unknown
	}
}

// Error is the protocol error type. All per-call failures surfaced by
// the engine are *Error values; use [errors.Is] with a kind sentinel or
// [IsKind] to classify them.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Errorf builds an *Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is supports errors.Is: a target *Error matches when its kind is
// KindUnknown (any protocol error) or equal to the receiver's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == KindUnknown || t.Kind == e.Kind
}

// GRPCStatus lets the gRPC layer surface the error as the call's
// terminal status with a kind-specific code.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Kind.grpcCode(), e.Error())
}

// IsKind reports whether err is a protocol error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
