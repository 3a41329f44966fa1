// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package bus turns the fire-and-forget pub/sub transport into a reliable
// request/response primitive with timeouts and correlation ids.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/EldestGruff/sidhe-conclave/internal/message"
	"github.com/EldestGruff/sidhe-conclave/internal/transport"
)

// Transport health statuses reported by HealthCheck.
const (
	HealthOperational     = "operational"
	HealthDisconnected    = "disconnected"
	HealthConnectionError = "connection_error"
	HealthError           = "error"
)

// DefaultRequestTimeout bounds a Request when no override is given and
// configuration supplies nothing else.
const DefaultRequestTimeout = 30 * time.Second

// Bus provides request/response semantics and event broadcast on top of a
// publish/subscribe transport with no built-in correlation.
//
// A bus that fails to connect is degraded, not broken: Publish and Request
// report "unavailable" as data so callers can proceed without it.
type Bus struct {
	transport       transport.Transport
	pending         *PendingTable
	logger          *slog.Logger
	metrics         *Metrics
	source          string
	defaultTimeout  time.Duration
	connectAttempts uint64

	started      atomic.Bool
	connected    atomic.Bool
	closed       atomic.Bool
	closeOnce    sync.Once
	listenerDone chan struct{}
}

// Option configures the Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// WithSource sets the source tag stamped on every outgoing message.
func WithSource(source string) Option {
	return func(b *Bus) { b.source = source }
}

// WithDefaultTimeout sets the request timeout used when the caller passes
// zero.
func WithDefaultTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.defaultTimeout = d
		}
	}
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithConnectAttempts sets how many times Start retries the transport
// connection before settling into degraded mode.
func WithConnectAttempts(n uint64) Option {
	return func(b *Bus) {
		if n > 0 {
			b.connectAttempts = n
		}
	}
}

// New creates a bus over the given transport. The pending table is owned by
// this bus instance for its lifetime.
func New(t transport.Transport, pending *PendingTable, opts ...Option) *Bus {
	b := &Bus{
		transport:       t,
		pending:         pending,
		logger:          slog.Default(),
		source:          "orchestrator",
		defaultTimeout:  DefaultRequestTimeout,
		connectAttempts: 3,
		listenerDone:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start connects the transport, verifies liveness, and spawns the single
// background listener. Connection failure is not an error: the bus enters
// degraded mode and every operation reports "unavailable" until restarted.
func (b *Bus) Start(ctx context.Context) error {
	b.started.Store(true)

	backoff := retry.WithMaxRetries(b.connectAttempts, retry.NewFibonacci(250*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := b.transport.Connect(ctx); err != nil {
			return retry.RetryableError(err)
		}
		if err := b.transport.Ping(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		b.logger.Warn("bus starting degraded: transport unavailable", "error", err)
		close(b.listenerDone)
		return nil
	}

	b.connected.Store(true)
	go b.listen()

	b.logger.Info("message bus started", "source", b.source)
	return nil
}

// Connected reports whether the transport connection succeeded.
func (b *Bus) Connected() bool {
	return b.connected.Load()
}

// listen is the only code path that resolves pending requests. It runs for
// the bus's lifetime and must never crash on bad input.
func (b *Bus) listen() {
	defer close(b.listenerDone)

	for d := range b.transport.Messages() {
		msg, err := message.Decode(d.Data)
		if err != nil {
			b.logger.Warn("dropping malformed message", "channel", d.Channel, "error", err)
			continue
		}

		if msg.CorrelationID == "" {
			continue
		}
		if msg.Type != message.TypeResponse && msg.Type != message.TypeError {
			continue
		}

		if !b.pending.Resolve(msg.CorrelationID, msg) {
			// Late arrival for an already-resolved or timed-out request.
			if b.metrics != nil {
				b.metrics.DroppedResponses.Inc()
			}
			b.logger.Debug("dropping response with no waiter",
				"correlation_id", msg.CorrelationID,
				"source", msg.Source)
		}
	}
}

// Publish enriches msg with the bus source tag and a timestamp, then sends
// it on topic. Returns ErrUnavailable when the bus is degraded.
func (b *Bus) Publish(ctx context.Context, topic string, msg *message.Message) error {
	if b.closed.Load() || !b.connected.Load() {
		return ErrUnavailable
	}

	msg.Source = b.source
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if _, err := b.transport.Publish(ctx, topic, data); err != nil {
		return err
	}
	return nil
}

// PublishEvent broadcasts a fire-and-forget system event. No response is
// correlated or awaited.
func (b *Bus) PublishEvent(ctx context.Context, eventType string, data map[string]any) error {
	msg := message.New(message.TypeEvent, b.source, map[string]any{
		"event": eventType,
		"data":  data,
	})
	if err := b.Publish(ctx, message.SystemEventsChannel, msg); err != nil {
		return err
	}
	if b.metrics != nil {
		b.metrics.EventsPublished.Inc()
	}
	return nil
}

// PublishDiscovery broadcasts a DISCOVERY message asking live plugins to
// announce themselves on the discovery response channel. Responses are
// consumed by whoever subscribes there; the bus does not wait for them.
func (b *Bus) PublishDiscovery(ctx context.Context) error {
	msg := message.New(message.TypeDiscovery, b.source, map[string]any{
		"replyTo": message.DiscoveryResponseChannel,
	})
	return b.Publish(ctx, message.DiscoveryChannel, msg)
}

// Request sends a correlated request to a plugin and waits for its
// response. Exactly one Response is always returned; timeout and transport
// unavailability are data values, not errors, because a slow or offline
// plugin is an expected runtime condition.
func (b *Bus) Request(ctx context.Context, target, action string, data map[string]any, timeout time.Duration) *Response {
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}

	if b.closed.Load() {
		return b.finishRequest(&Response{Status: StatusError, Error: "message bus is closed"})
	}
	if !b.connected.Load() {
		return b.finishRequest(&Response{Status: StatusUnavailable, Error: "message bus unavailable"})
	}

	msg := message.NewRequest(b.source, target, action, data)
	msg.TimeoutSeconds = timeout.Seconds()

	ch, err := b.pending.Add(msg.ID)
	if err != nil {
		return b.finishRequest(&Response{Status: StatusError, Error: err.Error(), MessageID: msg.ID})
	}

	// Subscribe before publishing so a fast responder cannot reply before
	// the waiter exists.
	respChannel := message.ResponseChannel(msg.ID)
	if err := b.transport.Subscribe(ctx, respChannel); err != nil {
		b.pending.Remove(msg.ID)
		return b.finishRequest(&Response{Status: StatusError, Error: err.Error(), MessageID: msg.ID})
	}
	defer func() {
		// Cleanup runs on every exit path: resolution, timeout, error.
		if err := b.transport.Unsubscribe(context.WithoutCancel(ctx), respChannel); err != nil {
			b.logger.Warn("unsubscribe failed", "channel", respChannel, "error", err)
		}
		b.pending.Remove(msg.ID)
	}()

	payload, err := msg.Encode()
	if err != nil {
		return b.finishRequest(&Response{Status: StatusError, Error: err.Error(), MessageID: msg.ID})
	}
	if _, err := b.transport.Publish(ctx, message.PluginChannel(target), payload); err != nil {
		return b.finishRequest(&Response{Status: StatusError, Error: err.Error(), MessageID: msg.ID})
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return b.finishRequest(&Response{Status: StatusError, Error: "message bus closed while waiting", MessageID: msg.ID})
		}
		if resp.Type == message.TypeError {
			errText, _ := resp.Payload["error"].(string)
			return b.finishRequest(&Response{Status: StatusError, Error: errText, Payload: resp.Payload, MessageID: msg.ID})
		}
		return b.finishRequest(&Response{Status: StatusSuccess, Payload: resp.Payload, MessageID: msg.ID})

	case <-timer.C:
		return b.finishRequest(&Response{
			Status:    StatusTimeout,
			Error:     fmt.Sprintf("no response from %s within %s", target, timeout),
			MessageID: msg.ID,
		})

	case <-ctx.Done():
		return b.finishRequest(&Response{Status: StatusError, Error: ctx.Err().Error(), MessageID: msg.ID})
	}
}

// finishRequest records the outcome metric and returns the response.
func (b *Bus) finishRequest(r *Response) *Response {
	if b.metrics != nil {
		b.metrics.RequestsTotal.WithLabelValues(r.Status).Inc()
	}
	return r
}

// HealthCheck pings the transport and performs a throwaway publish,
// returning a coarse status for the registry and the orchestrator's own
// health endpoint.
func (b *Bus) HealthCheck(ctx context.Context) string {
	if b.closed.Load() || !b.connected.Load() {
		return HealthDisconnected
	}

	if err := b.transport.Ping(ctx); err != nil {
		return HealthConnectionError
	}

	probe := message.New(message.TypeHealthCheck, b.source, map[string]any{"probe": true})
	data, err := probe.Encode()
	if err != nil {
		return HealthError
	}
	if _, err := b.transport.Publish(ctx, message.SystemEventsChannel, data); err != nil {
		return HealthError
	}
	return HealthOperational
}

// Close unsubscribes everything and closes the transport. Idempotent.
// Waiters blocked in Request receive an error response.
func (b *Bus) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		b.connected.Store(false)

		b.pending.Close()

		if err := b.transport.Close(); err != nil {
			b.logger.Error("transport close failed", "error", err)
			closeErr = err
		}
		if b.started.Load() {
			<-b.listenerDone
		}
	})
	return closeErr
}
