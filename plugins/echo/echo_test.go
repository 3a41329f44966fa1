// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package echo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EldestGruff/sidhe-conclave/internal/message"
	"github.com/EldestGruff/sidhe-conclave/pkg/plugin"
	"github.com/EldestGruff/sidhe-conclave/plugins/echo"
)

func newEcho(t *testing.T) plugin.Handler {
	t.Helper()
	h, err := echo.New(context.Background())
	require.NoError(t, err)
	return h
}

func TestInfo(t *testing.T) {
	h := newEcho(t)
	info := h.Info()

	assert.Equal(t, echo.PluginID, info.ID)
	assert.NotEmpty(t, info.Name)
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Description)

	for _, cap := range h.Capabilities() {
		assert.NotEmpty(t, cap.Name)
		assert.NotEmpty(t, cap.Description)
	}
}

func TestOptionalInterfaces(t *testing.T) {
	h := newEcho(t)

	reporter, ok := h.(plugin.HealthReporter)
	require.True(t, ok)
	health, err := reporter.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "operational", health)

	lp, ok := h.(plugin.LoggerProvider)
	require.True(t, ok)
	assert.NotNil(t, lp.Logger())
}

func TestHandleRequest(t *testing.T) {
	h := newEcho(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		msg    *message.Message
		status string
	}{
		{
			name:   "ping",
			msg:    message.NewRequest("test", echo.PluginID, "ping", nil),
			status: "success",
		},
		{
			name:   "echo",
			msg:    message.NewRequest("test", echo.PluginID, "echo", map[string]any{"k": "v"}),
			status: "success",
		},
		{
			name:   "empty action",
			msg:    message.NewRequest("test", echo.PluginID, "", nil),
			status: "success",
		},
		{
			name:   "unknown action is a structured error",
			msg:    message.NewRequest("test", echo.PluginID, "transmogrify", nil),
			status: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := h.HandleRequest(ctx, tt.msg)
			require.NoError(t, err)
			assert.Equal(t, tt.status, payload["status"])
		})
	}
}

func TestHandleRequest_HealthCheck(t *testing.T) {
	h := newEcho(t)

	payload, err := h.HandleRequest(context.Background(), message.New(message.TypeHealthCheck, "test", nil))
	require.NoError(t, err)
	assert.Equal(t, "operational", payload["status"])
}

func TestHandleRequest_CanceledContext(t *testing.T) {
	h := newEcho(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.HandleRequest(ctx, message.NewRequest("test", echo.PluginID, "ping", nil))
	assert.ErrorIs(t, err, context.Canceled)
}
