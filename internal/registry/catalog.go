// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package registry

import (
	"github.com/EldestGruff/sidhe-conclave/pkg/plugin"
)

// CatalogEntry is one known plugin identity. The catalog is supplied by
// configuration; handlers are resolved through the factory table rather
// than dynamic loading, so the set of linkable plugins is explicit.
type CatalogEntry struct {
	ID           string   `koanf:"id" json:"id"`
	Name         string   `koanf:"name" json:"name"`
	Description  string   `koanf:"description" json:"description"`
	Capabilities []string `koanf:"capabilities" json:"capabilities"`
}

// FactoryTable maps plugin ids to their compiled-in constructors.
type FactoryTable map[string]plugin.Factory

// Register adds a factory under an id, replacing any existing entry.
func (t FactoryTable) Register(id string, f plugin.Factory) {
	t[id] = f
}
