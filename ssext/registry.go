// © Copyright 2026, Fieldray Labs - https://fieldray.dev
// SPDX-License-Identifier: Apache-2.0

package ssext

import (
	"sort"
	"sync"
)

// Registry holds the plugin's identity and its registered function
// definitions. Registration happens at startup; the registry freezes on
// its first query (a capability snapshot or a dispatch lookup) and
// rejects registration afterwards, so an already-issued Capabilities
// descriptor can never drift from what the dispatcher resolves.
//
// Once frozen the function map is never written again, so lookups from
// any number of concurrent sessions are safe.
type Registry struct {
	pluginID      string
	pluginVersion string

	mu          sync.Mutex
	frozen      bool
	allowScript bool
	functions   map[int32]registration
}

type registration struct {
	def     FunctionDefinition
	handler RowHandler
}

// NewRegistry creates a registry for a plugin with the given identity
// and version, both echoed verbatim in the Capabilities descriptor.
func NewRegistry(pluginID, pluginVersion string) *Registry {
	return &Registry{
		pluginID:      pluginID,
		pluginVersion: pluginVersion,
		functions:     make(map[int32]registration),
	}
}

// PluginID returns the plugin identifier.
func (r *Registry) PluginID() string { return r.pluginID }

// Register adds a function definition bound to its handler. It fails
// with DuplicateFunctionId when the ID is taken and with RegistryFrozen
// after the registry's first query. Both indicate a misconfigured
// plugin and should abort initialization.
func (r *Registry) Register(def FunctionDefinition, h RowHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return Errorf(KindRegistryFrozen, "cannot register %q (id %d) after first capability query", def.Name, def.FunctionID)
	}
	if _, ok := r.functions[def.FunctionID]; ok {
		return Errorf(KindDuplicateFunctionID, "function id %d already registered", def.FunctionID)
	}
	r.functions[def.FunctionID] = registration{def: def, handler: h}
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (r *Registry) MustRegister(def FunctionDefinition, h RowHandler) {
	if err := r.Register(def, h); err != nil {
		panic("ssext: " + err.Error())
	}
}

// EnableScript turns on the allowScript capability. Like Register, it
// is a startup-time operation and fails once the registry is frozen.
func (r *Registry) EnableScript() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return Errorf(KindRegistryFrozen, "cannot enable scripting after first capability query")
	}
	r.allowScript = true
	return nil
}

// freeze marks the registry read-only. Idempotent.
func (r *Registry) freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// AllowScript reports whether script evaluation is permitted. Freezes
// the registry.
func (r *Registry) AllowScript() bool {
	r.freeze()
	return r.allowScript
}

// Capabilities returns a snapshot descriptor of the registry's
// contents. The first call freezes the registry; later registrations
// fail rather than retroactively changing issued snapshots. Functions
// are sorted by ID so repeated snapshots encode to identical bytes.
func (r *Registry) Capabilities() *Capabilities {
	r.freeze()
	caps := &Capabilities{
		AllowScript:   r.allowScript,
		PluginID:      r.pluginID,
		PluginVersion: r.pluginVersion,
		Functions:     make([]FunctionDefinition, 0, len(r.functions)),
	}
	for _, reg := range r.functions {
		caps.Functions = append(caps.Functions, reg.def)
	}
	sort.Slice(caps.Functions, func(i, j int) bool {
		return caps.Functions[i].FunctionID < caps.Functions[j].FunctionID
	})
	return caps
}

// Lookup resolves a function ID to its definition and handler, failing
// with UnknownFunction when absent. Freezes the registry.
func (r *Registry) Lookup(id int32) (FunctionDefinition, RowHandler, error) {
	r.freeze()
	reg, ok := r.functions[id]
	if !ok {
		return FunctionDefinition{}, nil, Errorf(KindUnknownFunction, "no function registered with id %d", id)
	}
	return reg.def, reg.handler, nil
}
