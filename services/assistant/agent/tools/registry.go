// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the closed catalog of tools available to the assistant.
//
// Description:
//
//	The catalog is assembled once at startup from the builtin tool set.
//	Lookups by name and skill-filtered schema listings are served from the
//	same map; registration after startup overwrites by name.
//
// Thread Safety: Registry is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry. Use Register to add tools.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the catalog, overwriting any previous tool with
// the same name. Tools with an empty name or nil handler are rejected.
func (r *Registry) Register(t Tool) error {
	if t.Schema.Name == "" {
		return fmt.Errorf("tool schema has no name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Schema.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Schema.Name] = t
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns all registered tool names, sorted for deterministic output.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemasForSkills returns the provider-facing schemas visible to a run
// with the given active skill set.
//
// Description:
//
//	Tools whose Skill is not in the active set are excluded entirely; the
//	reasoning backend never sees them. An empty skill set exposes nothing.
//	Output is sorted by name for deterministic prompts.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) SchemasForSkills(skills []string) []Schema {
	active := make(map[string]bool, len(skills))
	for _, s := range skills {
		active[s] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]Schema, 0, len(r.tools))
	for _, t := range r.tools {
		if active[t.Schema.Skill] {
			schemas = append(schemas, t.Schema)
		}
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Allowed reports whether a run with the given skills may invoke name.
func (r *Registry) Allowed(name string, skills []string) bool {
	t, ok := r.Get(name)
	if !ok {
		return false
	}
	for _, s := range skills {
		if s == t.Schema.Skill {
			return true
		}
	}
	return false
}
