// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"io"

	"github.com/fieldray/ssext/ssext"
)

// EchoRunner is the script collaborator used by the conformance suite:
// regardless of the script text it streams every input row back
// unchanged. Scripts declared SCALAR therefore satisfy the row-count
// contract trivially, which is exactly what the suite needs to probe
// the engine's framing without a real interpreter.
type EchoRunner struct{}

// Open returns the echo handler for any script.
func (EchoRunner) Open(ctx context.Context, req *ssext.ScriptRequestHeader) (ssext.RowHandler, error) {
	return ssext.RowHandlerFunc(echo), nil
}

func echo(ctx context.Context, call *ssext.CallContext, in *ssext.RowReader, out *ssext.RowWriter) error {
	for {
		row, err := in.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := out.Write(row); err != nil {
			return err
		}
	}
}
