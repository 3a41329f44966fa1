// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package bus

import (
	"sync"

	"github.com/samber/oops"

	"github.com/EldestGruff/sidhe-conclave/internal/message"
)

// PendingTable tracks in-flight requests by correlation id. It is owned by
// exactly one bus instance and injected at construction so tests can run
// multiple independent buses.
//
// Each entry resolves at most once: Resolve removes the entry before
// delivering, so a second response for the same id finds nothing.
type PendingTable struct {
	mu      sync.Mutex
	waiters map[string]chan *message.Message
	closed  bool
}

// NewPendingTable creates an empty pending-request table.
func NewPendingTable() *PendingTable {
	return &PendingTable{
		waiters: make(map[string]chan *message.Message),
	}
}

// Add registers a waiter for a correlation id and returns the channel the
// response will be delivered on.
func (p *PendingTable) Add(id string) (<-chan *message.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, oops.Code("BUS_CLOSED").Errorf("pending table is closed")
	}
	if _, ok := p.waiters[id]; ok {
		return nil, oops.Code("BUS_DUPLICATE_CORRELATION").Errorf("correlation id %s already pending", id)
	}

	ch := make(chan *message.Message, 1)
	p.waiters[id] = ch
	return ch, nil
}

// Resolve delivers a response to the waiter for id and removes the entry.
// Returns false when no waiter exists (already resolved, timed out, or
// never registered).
func (p *PendingTable) Resolve(id string, msg *message.Message) bool {
	p.mu.Lock()
	ch, ok := p.waiters[id]
	if ok {
		delete(p.waiters, id)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	ch <- msg // buffered, never blocks
	return true
}

// Remove drops the waiter for id if still present. Called by the requester
// on timeout or cancellation.
func (p *PendingTable) Remove(id string) {
	p.mu.Lock()
	delete(p.waiters, id)
	p.mu.Unlock()
}

// Len returns the number of in-flight requests.
func (p *PendingTable) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Close drops all waiters and closes their channels so blocked requesters
// return immediately. Further Adds fail.
func (p *PendingTable) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.waiters {
		close(ch)
		delete(p.waiters, id)
	}
}
