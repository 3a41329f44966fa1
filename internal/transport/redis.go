// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package transport

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// deliveryBuffer bounds the redis pump channel. Deliveries beyond it block
// the pump, applying backpressure instead of dropping.
const deliveryBuffer = 256

// Redis implements Transport over redis pub/sub channels.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub

	mu        sync.Mutex
	connected bool
	closed    bool

	deliveries chan Delivery
	pumpDone   chan struct{}
}

// NewRedis creates a redis transport from a redis URL
// (redis://[user:pass@]host:port/db).
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, oops.Code("TRANSPORT_BAD_URL").Wrapf(err, "parse redis url")
	}
	return &Redis{
		client:     redis.NewClient(opts),
		deliveries: make(chan Delivery, deliveryBuffer),
		pumpDone:   make(chan struct{}),
	}, nil
}

// Connect verifies the connection and opens the subscriber. Idempotent.
func (r *Redis) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.connected {
		return nil
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		return oops.Code("TRANSPORT_CONNECT_FAILED").Wrapf(err, "ping redis")
	}

	// Subscriber with an initially empty channel set; channels are added
	// and removed dynamically by Subscribe/Unsubscribe.
	r.pubsub = r.client.Subscribe(ctx)
	r.connected = true

	go r.pump()
	return nil
}

// pump moves redis messages onto the delivery channel until the subscriber
// closes.
func (r *Redis) pump() {
	defer close(r.pumpDone)
	for msg := range r.pubsub.Channel() {
		r.deliveries <- Delivery{Channel: msg.Channel, Data: []byte(msg.Payload)}
	}
	close(r.deliveries)
}

// Ping verifies liveness.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return oops.Code("TRANSPORT_PING_FAILED").Wrapf(err, "ping redis")
	}
	return nil
}

// Publish sends payload on a channel and returns the subscriber count.
func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	n, err := r.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, oops.Code("TRANSPORT_PUBLISH_FAILED").Wrapf(err, "publish to %s", channel)
	}
	return n, nil
}

// Subscribe adds channels to the listen set.
func (r *Redis) Subscribe(ctx context.Context, channels ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected || r.closed {
		return ErrClosed
	}
	if err := r.pubsub.Subscribe(ctx, channels...); err != nil {
		return oops.Code("TRANSPORT_SUBSCRIBE_FAILED").Wrapf(err, "subscribe %v", channels)
	}
	return nil
}

// Unsubscribe removes channels from the listen set.
func (r *Redis) Unsubscribe(ctx context.Context, channels ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected || r.closed {
		return ErrClosed
	}
	if err := r.pubsub.Unsubscribe(ctx, channels...); err != nil {
		return oops.Code("TRANSPORT_UNSUBSCRIBE_FAILED").Wrapf(err, "unsubscribe %v", channels)
	}
	return nil
}

// Messages returns the delivery stream.
func (r *Redis) Messages() <-chan Delivery {
	return r.deliveries
}

// Close tears down the subscriber and client. Idempotent.
func (r *Redis) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	connected := r.connected
	r.mu.Unlock()

	if connected {
		_ = r.pubsub.Close()
		<-r.pumpDone
	} else {
		close(r.deliveries)
	}
	if err := r.client.Close(); err != nil {
		return oops.Code("TRANSPORT_CLOSE_FAILED").Wrapf(err, "close redis client")
	}
	return nil
}
