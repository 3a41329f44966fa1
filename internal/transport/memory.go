// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package transport

import (
	"context"
	"sync"

	"github.com/gobwas/glob"
)

// Hub is an in-process pub/sub broker. It exists for tests and local
// development: every client created from the same hub sees messages
// published by any other, mirroring how independent processes share one
// redis instance.
type Hub struct {
	mu      sync.Mutex
	clients []*Memory
}

// NewHub creates an empty broker.
func NewHub() *Hub {
	return &Hub{}
}

// Client creates a transport attached to this hub.
func (h *Hub) Client() *Memory {
	m := &Memory{
		hub:        h,
		subs:       make(map[string]glob.Glob),
		deliveries: make(chan Delivery, deliveryBuffer),
	}
	h.mu.Lock()
	h.clients = append(h.clients, m)
	h.mu.Unlock()
	return m
}

// publish fans a payload out to every connected client with a matching
// subscription and returns the number of matched subscriptions.
func (h *Hub) publish(channel string, payload []byte) int64 {
	h.mu.Lock()
	clients := make([]*Memory, len(h.clients))
	copy(clients, h.clients)
	h.mu.Unlock()

	var n int64
	for _, c := range clients {
		n += c.deliver(channel, payload)
	}
	return n
}

// Memory is one client of a Hub. Subscriptions accept glob patterns such
// as "response:*".
type Memory struct {
	hub *Hub

	mu        sync.Mutex
	connected bool
	closed    bool
	subs      map[string]glob.Glob

	deliveries chan Delivery
}

// NewMemory creates a single-client transport on its own private hub.
func NewMemory() *Memory {
	return NewHub().Client()
}

// Connect marks the transport connected. Idempotent.
func (m *Memory) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.connected = true
	return nil
}

// Ping reports liveness.
func (m *Memory) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.connected {
		return ErrClosed
	}
	return nil
}

// Publish delivers payload through the hub to every matching subscriber.
// Returns the number of subscriptions it matched, mirroring redis's
// delivered-subscriber count.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) (int64, error) {
	m.mu.Lock()
	if m.closed || !m.connected {
		m.mu.Unlock()
		return 0, ErrClosed
	}
	m.mu.Unlock()

	return m.hub.publish(channel, payload), nil
}

// deliver enqueues the payload once if any of this client's subscriptions
// match, returning the number of matched subscriptions.
func (m *Memory) deliver(channel string, payload []byte) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.connected {
		return 0
	}

	var n int64
	for _, g := range m.subs {
		if g.Match(channel) {
			n++
		}
	}
	if n > 0 {
		// One delivery per client regardless of how many patterns matched;
		// the consumer demultiplexes by channel name.
		m.deliveries <- Delivery{Channel: channel, Data: payload}
	}
	return n
}

// Subscribe adds channel patterns to the listen set.
func (m *Memory) Subscribe(_ context.Context, channels ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.connected {
		return ErrClosed
	}
	for _, ch := range channels {
		g, err := glob.Compile(ch)
		if err != nil {
			return err
		}
		m.subs[ch] = g
	}
	return nil
}

// Unsubscribe removes channel patterns from the listen set.
func (m *Memory) Unsubscribe(_ context.Context, channels ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.connected {
		return ErrClosed
	}
	for _, ch := range channels {
		delete(m.subs, ch)
	}
	return nil
}

// Messages returns the delivery stream.
func (m *Memory) Messages() <-chan Delivery {
	return m.deliveries
}

// Close shuts this client down. Idempotent; the hub and its other clients
// are unaffected.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.connected = false
	close(m.deliveries)
	return nil
}
