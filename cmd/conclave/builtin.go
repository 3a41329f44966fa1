// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package main

import (
	"github.com/EldestGruff/sidhe-conclave/internal/registry"
	"github.com/EldestGruff/sidhe-conclave/plugins/echo"
)

// builtinFactories is the compiled-in plugin registration table. Plugins
// linked into this binary register their constructor here; the discovery
// catalog decides which of them a deployment actually uses.
func builtinFactories() registry.FactoryTable {
	t := make(registry.FactoryTable)
	t.Register(echo.PluginID, echo.New)
	return t
}

// defaultCatalog is used when the configuration declares no plugins.
func defaultCatalog() []registry.CatalogEntry {
	return []registry.CatalogEntry{
		{
			ID:           echo.PluginID,
			Name:         "Echo",
			Description:  "Reference plugin that reflects requests back",
			Capabilities: []string{"echo", "ping"},
		},
	}
}
