// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package bus_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/EldestGruff/sidhe-conclave/internal/bus"
	"github.com/EldestGruff/sidhe-conclave/internal/message"
	"github.com/EldestGruff/sidhe-conclave/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startResponder attaches a plugin-side client to the hub that answers
// requests on the given channel. The respond func returns the payload for a
// RESPONSE, or sets an ERROR when errText is non-empty.
func startResponder(t *testing.T, hub *transport.Hub, channel string, respond func(req *message.Message) (map[string]any, string)) {
	t.Helper()

	ctx := context.Background()
	client := hub.Client()
	require.NoError(t, client.Connect(ctx))
	require.NoError(t, client.Subscribe(ctx, channel))

	done := make(chan struct{})
	t.Cleanup(func() { <-done })
	t.Cleanup(func() { client.Close() })

	go func() {
		defer close(done)
		for d := range client.Messages() {
			req, err := message.Decode(d.Data)
			if err != nil || req.Type != message.TypeRequest {
				continue
			}

			payload, errText := respond(req)
			resp := req.Response("echo", payload)
			if errText != "" {
				resp.Type = message.TypeError
				resp.Payload = map[string]any{"error": errText}
			}

			data, err := resp.Encode()
			if err != nil {
				continue
			}
			client.Publish(ctx, message.ResponseChannel(req.ID), data)
		}
	}()
}

func startBus(t *testing.T, hub *transport.Hub, opts ...bus.Option) *bus.Bus {
	t.Helper()

	opts = append([]bus.Option{bus.WithLogger(quietLogger())}, opts...)
	b := bus.New(hub.Client(), bus.NewPendingTable(), opts...)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { b.Close() })
	return b
}

func TestRequest_Success(t *testing.T) {
	hub := transport.NewHub()
	startResponder(t, hub, "plugin:echo", func(req *message.Message) (map[string]any, string) {
		return map[string]any{"status": "success", "echoed": req.Action()}, ""
	})

	b := startBus(t, hub)
	require.True(t, b.Connected())

	resp := b.Request(context.Background(), "echo", "ping", nil, time.Second)

	require.True(t, resp.OK(), "got status %q error %q", resp.Status, resp.Error)
	assert.Equal(t, "ping", resp.Payload["echoed"])
	assert.NotEmpty(t, resp.MessageID)
}

func TestRequest_ErrorResponse(t *testing.T) {
	hub := transport.NewHub()
	startResponder(t, hub, "plugin:echo", func(*message.Message) (map[string]any, string) {
		return nil, "unknown action"
	})

	b := startBus(t, hub)
	resp := b.Request(context.Background(), "echo", "bogus", nil, time.Second)

	assert.Equal(t, bus.StatusError, resp.Status)
	assert.Equal(t, "unknown action", resp.Error)
}

func TestRequest_Timeout(t *testing.T) {
	hub := transport.NewHub()
	// No responder: the request must time out, as data, not an error.
	b := startBus(t, hub)

	start := time.Now()
	resp := b.Request(context.Background(), "ghost", "ping", nil, 100*time.Millisecond)

	assert.Equal(t, bus.StatusTimeout, resp.Status)
	assert.NotEmpty(t, resp.MessageID)
	assert.Contains(t, resp.Error, "ghost")
	assert.Less(t, time.Since(start), time.Second)
}

func TestRequest_TimeoutClearsPendingTable(t *testing.T) {
	hub := transport.NewHub()
	pending := bus.NewPendingTable()
	b := bus.New(hub.Client(), pending, bus.WithLogger(quietLogger()))
	require.NoError(t, b.Start(context.Background()))
	defer b.Close()

	resp := b.Request(context.Background(), "ghost", "ping", nil, 50*time.Millisecond)

	require.Equal(t, bus.StatusTimeout, resp.Status)
	assert.Equal(t, 0, pending.Len(), "timed-out request must not leak a waiter")
}

func TestRequest_ContextCanceled(t *testing.T) {
	hub := transport.NewHub()
	b := startBus(t, hub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := b.Request(ctx, "ghost", "ping", nil, time.Minute)
	assert.Equal(t, bus.StatusError, resp.Status)
}

func TestRequest_ConcurrentRequestsDoNotCross(t *testing.T) {
	hub := transport.NewHub()
	startResponder(t, hub, "plugin:echo", func(req *message.Message) (map[string]any, string) {
		return map[string]any{"action": req.Action()}, ""
	})

	b := startBus(t, hub)

	const n = 20
	var wg sync.WaitGroup
	results := make([]string, n)
	actions := make([]string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		actions[i] = message.NewID()
		go func(i int) {
			defer wg.Done()
			resp := b.Request(context.Background(), "echo", actions[i], nil, 2*time.Second)
			if resp.OK() {
				results[i], _ = resp.Payload["action"].(string)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, actions[i], results[i], "request %d got someone else's response", i)
	}
}

func TestRequest_LateResponseDropped(t *testing.T) {
	hub := transport.NewHub()
	b := startBus(t, hub)

	resp := b.Request(context.Background(), "ghost", "ping", nil, 50*time.Millisecond)
	require.Equal(t, bus.StatusTimeout, resp.Status)

	// Deliver a response for the already timed-out correlation id straight
	// through the hub. It must be ignored without fault.
	ctx := context.Background()
	late := hub.Client()
	require.NoError(t, late.Connect(ctx))
	defer late.Close()

	stale := &message.Message{
		ID:            message.NewID(),
		Type:          message.TypeResponse,
		Source:        "ghost",
		CorrelationID: resp.MessageID,
		Payload:       map[string]any{"status": "success"},
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := stale.Encode()
	require.NoError(t, err)
	_, err = late.Publish(ctx, message.ResponseChannel(resp.MessageID), data)
	require.NoError(t, err)

	// Bus must still serve fresh traffic afterwards.
	time.Sleep(20 * time.Millisecond)
	again := b.Request(context.Background(), "ghost", "ping", nil, 50*time.Millisecond)
	assert.Equal(t, bus.StatusTimeout, again.Status)
}

func TestRequest_DegradedBusReportsUnavailable(t *testing.T) {
	dead := transport.NewMemory()
	require.NoError(t, dead.Close())

	b := bus.New(dead, bus.NewPendingTable(),
		bus.WithLogger(quietLogger()),
		bus.WithConnectAttempts(1))
	require.NoError(t, b.Start(context.Background()), "connection failure degrades, never errors")
	defer b.Close()

	assert.False(t, b.Connected())

	resp := b.Request(context.Background(), "echo", "ping", nil, time.Second)
	assert.Equal(t, bus.StatusUnavailable, resp.Status)

	err := b.Publish(context.Background(), "plugin:echo", message.New(message.TypeEvent, "test", nil))
	assert.ErrorIs(t, err, bus.ErrUnavailable)

	assert.Equal(t, bus.HealthDisconnected, b.HealthCheck(context.Background()))
}

func TestRequest_AfterClose(t *testing.T) {
	hub := transport.NewHub()
	b := startBus(t, hub)
	require.NoError(t, b.Close())

	resp := b.Request(context.Background(), "echo", "ping", nil, time.Second)
	assert.Equal(t, bus.StatusError, resp.Status)

	// Close is idempotent.
	assert.NoError(t, b.Close())
}

func TestPublishEvent(t *testing.T) {
	hub := transport.NewHub()

	ctx := context.Background()
	watcher := hub.Client()
	require.NoError(t, watcher.Connect(ctx))
	require.NoError(t, watcher.Subscribe(ctx, message.SystemEventsChannel))
	defer watcher.Close()

	b := startBus(t, hub)
	require.NoError(t, b.PublishEvent(ctx, "orchestrator_started", map[string]any{"pid": 42}))

	select {
	case d := <-watcher.Messages():
		msg, err := message.Decode(d.Data)
		require.NoError(t, err)
		assert.Equal(t, message.TypeEvent, msg.Type)
		assert.Equal(t, "orchestrator_started", msg.Payload["event"])
	case <-time.After(time.Second):
		t.Fatal("event never arrived")
	}
}

func TestPublishDiscovery(t *testing.T) {
	hub := transport.NewHub()

	ctx := context.Background()
	pluginSide := hub.Client()
	require.NoError(t, pluginSide.Connect(ctx))
	require.NoError(t, pluginSide.Subscribe(ctx, message.DiscoveryChannel))
	defer pluginSide.Close()

	b := startBus(t, hub)
	require.NoError(t, b.PublishDiscovery(ctx))

	select {
	case d := <-pluginSide.Messages():
		msg, err := message.Decode(d.Data)
		require.NoError(t, err)
		assert.Equal(t, message.TypeDiscovery, msg.Type)
		assert.Equal(t, message.DiscoveryResponseChannel, msg.Payload["replyTo"])
	case <-time.After(time.Second):
		t.Fatal("discovery broadcast never arrived")
	}
}

func TestHealthCheck_Operational(t *testing.T) {
	hub := transport.NewHub()
	b := startBus(t, hub)

	assert.Equal(t, bus.HealthOperational, b.HealthCheck(context.Background()))
}

func TestRequest_DefaultTimeoutApplies(t *testing.T) {
	hub := transport.NewHub()
	b := startBus(t, hub, bus.WithDefaultTimeout(50*time.Millisecond))

	start := time.Now()
	resp := b.Request(context.Background(), "ghost", "ping", nil, 0)

	assert.Equal(t, bus.StatusTimeout, resp.Status)
	assert.Less(t, time.Since(start), time.Second)
}
