// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, call *CallContext, in *RowReader, out *RowWriter) error {
	return nil
}

func defWithID(id int32) FunctionDefinition {
	return FunctionDefinition{
		Name:       "f",
		Type:       FuncScalar,
		ReturnType: DataNumeric,
		Params:     []Parameter{{Type: DataNumeric, Name: "x"}},
		FunctionID: id,
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	reg := NewRegistry("p", "1.0")
	require.NoError(t, reg.Register(defWithID(1), RowHandlerFunc(noopHandler)))

	err := reg.Register(defWithID(1), RowHandlerFunc(noopHandler))
	assert.True(t, IsKind(err, KindDuplicateFunctionID))
}

func TestRegistryFreezesOnCapabilities(t *testing.T) {
	reg := NewRegistry("p", "1.0")
	require.NoError(t, reg.Register(defWithID(1), RowHandlerFunc(noopHandler)))

	caps := reg.Capabilities()
	require.Len(t, caps.Functions, 1)

	err := reg.Register(defWithID(2), RowHandlerFunc(noopHandler))
	assert.True(t, IsKind(err, KindRegistryFrozen))
	assert.True(t, IsKind(reg.EnableScript(), KindRegistryFrozen))

	// The issued snapshot is unaffected by the rejected registration.
	assert.Len(t, reg.Capabilities().Functions, 1)
}

func TestRegistryFreezesOnLookup(t *testing.T) {
	reg := NewRegistry("p", "1.0")
	require.NoError(t, reg.Register(defWithID(1), RowHandlerFunc(noopHandler)))

	_, _, err := reg.Lookup(1)
	require.NoError(t, err)

	err = reg.Register(defWithID(2), RowHandlerFunc(noopHandler))
	assert.True(t, IsKind(err, KindRegistryFrozen))
}

func TestLookupUnknownFunction(t *testing.T) {
	reg := NewRegistry("p", "1.0")
	_, _, err := reg.Lookup(99)
	assert.True(t, IsKind(err, KindUnknownFunction))
}

func TestCapabilitiesSortedByID(t *testing.T) {
	reg := NewRegistry("p", "2.1")
	for _, id := range []int32{30, 5, 12} {
		require.NoError(t, reg.Register(defWithID(id), RowHandlerFunc(noopHandler)))
	}
	require.NoError(t, reg.EnableScript())

	caps := reg.Capabilities()
	assert.Equal(t, "p", caps.PluginID)
	assert.Equal(t, "2.1", caps.PluginVersion)
	assert.True(t, caps.AllowScript)

	ids := make([]int32, len(caps.Functions))
	for i, f := range caps.Functions {
		ids[i] = f.FunctionID
	}
	assert.Equal(t, []int32{5, 12, 30}, ids)
}

func TestMustRegisterPanics(t *testing.T) {
	reg := NewRegistry("p", "1.0")
	reg.MustRegister(defWithID(1), RowHandlerFunc(noopHandler))
	assert.Panics(t, func() {
		reg.MustRegister(defWithID(1), RowHandlerFunc(noopHandler))
	})
}
