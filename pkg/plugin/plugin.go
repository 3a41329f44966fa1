// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package plugin defines the contract every SIDHE plugin implements and the
// manifest format plugins ship alongside their code.
//
// A plugin is a single Handler answering REQUEST and HEALTH_CHECK messages.
// Optional behavior is expressed through additional interfaces the handler
// may satisfy (HealthReporter, LoggerProvider); absence of an interface is
// never an error.
//
// Example:
//
//	type Greeter struct{}
//
//	func (g *Greeter) Info() plugin.Info {
//		return plugin.Info{ID: "greeter", Name: "Greeter", Version: "1.0.0"}
//	}
//
//	func (g *Greeter) Capabilities() []plugin.Capability {
//		return []plugin.Capability{{Name: "greet", Description: "Say hello"}}
//	}
//
//	func (g *Greeter) HandleRequest(ctx context.Context, msg *message.Message) (map[string]any, error) {
//		return map[string]any{"status": "success", "hello": "world"}, nil
//	}
package plugin

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/EldestGruff/sidhe-conclave/internal/message"
)

// Info identifies a plugin implementation.
type Info struct {
	ID          string `json:"pluginId"`
	Name        string `json:"pluginName"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Capability is one declared ability of a plugin.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Handler is the entry point every plugin implements.
type Handler interface {
	// Info returns the plugin's identity.
	Info() Info

	// Capabilities returns the plugin's declared abilities.
	Capabilities() []Capability

	// HandleRequest processes one message and returns a response payload.
	// It should return an error only for genuinely unrecoverable input;
	// expected failure modes belong in the response payload.
	HandleRequest(ctx context.Context, msg *message.Message) (map[string]any, error)
}

// HealthReporter is optionally implemented by handlers that report health.
// Handlers without it are assumed operational.
type HealthReporter interface {
	// Health returns a free-form status value such as "operational".
	Health(ctx context.Context) (string, error)
}

// LoggerProvider is optionally implemented by handlers that carry a
// structured logger.
type LoggerProvider interface {
	Logger() *slog.Logger
}

// Factory constructs a plugin handler instance.
type Factory func(ctx context.Context) (Handler, error)

// ErrNotImplemented is the sentinel a handler returns from its dispatch
// path when it has no implementation for a request. The certifier treats
// this as the unimplemented-default path.
var ErrNotImplemented = oops.Code("PLUGIN_NOT_IMPLEMENTED").Errorf("request handling not implemented")
