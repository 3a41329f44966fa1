// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package transport abstracts the pub/sub medium the bus runs on.
package transport

import (
	"context"

	"github.com/samber/oops"
)

// Delivery is one message read off a subscribed channel.
type Delivery struct {
	Channel string
	Data    []byte
}

// Transport is a broadcast pub/sub primitive with named channels and no
// built-in request/response or acknowledgment guarantees.
type Transport interface {
	// Connect opens the underlying connection. Idempotent.
	Connect(ctx context.Context) error

	// Ping verifies liveness of the connection.
	Ping(ctx context.Context) error

	// Publish sends payload on a channel and returns the number of
	// subscribers it was delivered to.
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)

	// Subscribe adds channels to the listen set.
	Subscribe(ctx context.Context, channels ...string) error

	// Unsubscribe removes channels from the listen set.
	Unsubscribe(ctx context.Context, channels ...string) error

	// Messages returns the stream of deliveries for all subscribed
	// channels. The channel is closed when the transport closes.
	Messages() <-chan Delivery

	// Close tears down the connection. Idempotent.
	Close() error
}

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = oops.Code("TRANSPORT_CLOSED").Errorf("transport is closed")
