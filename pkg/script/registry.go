// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"sync"
)

// Registry is a map-backed Host. An external script engine registers its
// configurations here; resolution is a plain keyed lookup.
type Registry struct {
	mu      sync.RWMutex
	entries map[registryKey]Configuration
}

type registryKey struct {
	usage UsageType
	acr   string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[registryKey]Configuration)}
}

// Register adds or replaces the configuration for (usage, cfg.Name()).
func (r *Registry) Register(usage UsageType, cfg Configuration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[registryKey{usage: usage, acr: cfg.Name()}] = cfg
}

// Resolve returns the configuration for (usage, acr), if registered.
func (r *Registry) Resolve(usage UsageType, acr string) (Configuration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.entries[registryKey{usage: usage, acr: acr}]
	return cfg, ok
}
