// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package echo implements the reference SIDHE plugin. It answers every
// probe the certifier can throw at it and serves as the compliant baseline
// for certification tests and local development.
package echo

import (
	"context"
	"log/slog"

	"github.com/EldestGruff/sidhe-conclave/internal/message"
	"github.com/EldestGruff/sidhe-conclave/pkg/plugin"
)

// PluginID is the id the echo plugin registers under.
const PluginID = "echo"

// Echo is a fully-compliant plugin handler.
type Echo struct {
	logger *slog.Logger
}

// New constructs the echo plugin.
func New(_ context.Context) (plugin.Handler, error) {
	return &Echo{
		logger: slog.Default().With("plugin", PluginID),
	}, nil
}

// Info returns the plugin identity.
func (e *Echo) Info() plugin.Info {
	return plugin.Info{
		ID:          PluginID,
		Name:        "Echo",
		Version:     "1.0.0",
		Description: "Reflects request payloads back to the caller.",
	}
}

// Capabilities returns the plugin's declared abilities.
func (e *Echo) Capabilities() []plugin.Capability {
	return []plugin.Capability{
		{Name: "echo", Description: "Return the request payload unchanged"},
		{Name: "ping", Description: "Respond with a liveness acknowledgment"},
	}
}

// Logger exposes the plugin's structured logger.
func (e *Echo) Logger() *slog.Logger {
	return e.logger
}

// Health reports the plugin as operational.
func (e *Echo) Health(_ context.Context) (string, error) {
	return "operational", nil
}

// HandleRequest processes one message. Unknown actions produce a structured
// error response rather than an error return.
func (e *Echo) HandleRequest(ctx context.Context, msg *message.Message) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if msg.Type == message.TypeHealthCheck {
		return map[string]any{"status": "operational"}, nil
	}

	switch msg.Action() {
	case "ping":
		return map[string]any{"status": "success", "pong": true}, nil
	case "echo", "process", "":
		return map[string]any{"status": "success", "echo": msg.Payload}, nil
	default:
		e.logger.DebugContext(ctx, "unknown action", "action", msg.Action())
		return map[string]any{
			"status": "error",
			"error":  "unknown action: " + msg.Action(),
		}, nil
	}
}
