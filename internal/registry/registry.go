// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package registry maintains the authoritative in-process view of which
// plugins exist, whether their handler is reachable, and their most recent
// health.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/EldestGruff/sidhe-conclave/pkg/plugin"
)

// Status is the lifecycle state of a plugin record. It is decided once at
// discovery and does not change afterwards; health is a parallel,
// independently-updated annotation.
type Status string

const (
	StatusActive       Status = "active"
	StatusNotAvailable Status = "not_available"
	StatusError        Status = "error"
)

// Health annotation values. Handlers may also return custom strings.
const (
	HealthNotAvailable = "not_available"
	HealthOperational  = "operational"
	HealthDegraded     = "degraded"
)

// healthProbeTimeout bounds a single health probe so one hung handler
// cannot stall a sweep.
const healthProbeTimeout = 5 * time.Second

// Record is the registry's view of one plugin. Records are created once at
// discovery and mutated in place by health refreshes; a failed plugin stays
// present with its error rather than disappearing.
type Record struct {
	Entry       CatalogEntry
	Handler     plugin.Handler // nil unless Status is StatusActive
	Status      Status
	LastError   string
	Health      string
	LastChecked time.Time
}

// Registry discovers plugins from a catalog and polls their health.
type Registry struct {
	catalog   []CatalogEntry
	factories FactoryTable
	logger    *slog.Logger

	mu      sync.RWMutex
	records map[string]*Record
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates a registry over a catalog and a factory table.
func New(catalog []CatalogEntry, factories FactoryTable, opts ...Option) *Registry {
	r := &Registry{
		catalog:   catalog,
		factories: factories,
		logger:    slog.Default(),
		records:   make(map[string]*Record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discover resolves and instantiates every catalog entry, then immediately
// runs a health sweep. Three terminal outcomes per plugin: active,
// not_available (no factory), error (factory failed).
func (r *Registry) Discover(ctx context.Context) {
	r.mu.Lock()
	for _, entry := range r.catalog {
		rec := &Record{
			Entry:  entry,
			Health: HealthNotAvailable,
		}

		factory, ok := r.factories[entry.ID]
		if !ok {
			rec.Status = StatusNotAvailable
			rec.LastError = fmt.Sprintf("no factory registered for plugin %q", entry.ID)
			r.logger.Warn("plugin not available", "plugin", entry.ID)
		} else if handler, err := instantiate(ctx, factory); err != nil {
			rec.Status = StatusError
			rec.LastError = err.Error()
			r.logger.Error("plugin instantiation failed", "plugin", entry.ID, "error", err)
		} else {
			rec.Status = StatusActive
			rec.Handler = handler
			r.logger.Info("plugin discovered", "plugin", entry.ID, "version", handler.Info().Version)
		}

		r.records[entry.ID] = rec
	}
	r.mu.Unlock()

	r.RefreshHealth(ctx)
}

// instantiate calls a factory, converting a panic into an error so one bad
// constructor cannot take down discovery.
func instantiate(ctx context.Context, factory plugin.Factory) (h plugin.Handler, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h = nil
			err = fmt.Errorf("factory panicked: %v", rec)
		}
	}()
	return factory(ctx)
}

// RefreshHealth probes every record with a live handler. Probe failures map
// to "degraded" and are never propagated; handlers without a HealthReporter
// are assumed operational.
func (r *Registry) RefreshHealth(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.records {
		rec.LastChecked = time.Now().UTC()
		if rec.Handler == nil {
			rec.Health = HealthNotAvailable
			continue
		}
		rec.Health = probeHealth(ctx, rec.Handler)
	}
}

// probeHealth runs one handler's health probe through a single call path
// regardless of how the handler implements it.
func probeHealth(ctx context.Context, h plugin.Handler) (health string) {
	reporter, ok := h.(plugin.HealthReporter)
	if !ok {
		return HealthOperational
	}

	defer func() {
		if rec := recover(); rec != nil {
			health = HealthDegraded
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	value, err := reporter.Health(probeCtx)
	if err != nil {
		return HealthDegraded
	}
	if value == "" {
		return HealthOperational
	}
	return value
}

// Statuses returns one glanceable string per catalog entry: the lifecycle
// status, suffixed with ":<health>" when live health differs from the
// nominal operational state.
func (r *Registry) Statuses() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]string, len(r.records))
	for id, rec := range r.records {
		s := string(rec.Status)
		if rec.Status == StatusActive && rec.Health != "" && rec.Health != HealthOperational {
			s += ":" + rec.Health
		}
		out[id] = s
	}
	return out
}

// Info returns the catalog entry for a plugin.
func (r *Registry) Info(id string) (CatalogEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return CatalogEntry{}, false
	}
	return rec.Entry, true
}

// Available returns the ids of all active plugins, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.records))
	for id, rec := range r.records {
		if rec.Status == StatusActive {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IsAvailable reports whether a plugin is active.
func (r *Registry) IsAvailable(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	return ok && rec.Status == StatusActive
}

// Capabilities returns a plugin's declared capability list.
func (r *Registry) Capabilities(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	return rec.Entry.Capabilities
}

// Instance returns a usable handler only when the plugin is active,
// so degraded plugins are never dereferenced.
func (r *Registry) Instance(id string) (plugin.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != StatusActive {
		return nil, false
	}
	return rec.Handler, true
}

// Record returns a copy of the full record for a plugin.
func (r *Registry) Record(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}
