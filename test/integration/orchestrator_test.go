// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/EldestGruff/sidhe-conclave/internal/bench"
	"github.com/EldestGruff/sidhe-conclave/internal/bus"
	"github.com/EldestGruff/sidhe-conclave/internal/certify"
	"github.com/EldestGruff/sidhe-conclave/internal/message"
	"github.com/EldestGruff/sidhe-conclave/internal/registry"
	"github.com/EldestGruff/sidhe-conclave/internal/transport"
	"github.com/EldestGruff/sidhe-conclave/pkg/plugin"
	"github.com/EldestGruff/sidhe-conclave/plugins/echo"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// servePlugin runs a plugin handler as if it were a separate process: its
// own transport client, subscribed to its request channel, publishing
// correlated responses. Returns a stop function.
func servePlugin(hub *transport.Hub, handler plugin.Handler, id string) func() {
	ctx := context.Background()
	client := hub.Client()
	Expect(client.Connect(ctx)).To(Succeed())
	Expect(client.Subscribe(ctx, message.PluginChannel(id))).To(Succeed())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range client.Messages() {
			req, err := message.Decode(d.Data)
			if err != nil || req.Type != message.TypeRequest {
				continue
			}

			payload, err := handler.HandleRequest(ctx, req)
			resp := req.Response(id, payload)
			if err != nil {
				resp.Type = message.TypeError
				resp.Payload = map[string]any{"error": err.Error()}
			}

			data, encErr := resp.Encode()
			if encErr != nil {
				continue
			}
			_, _ = client.Publish(ctx, message.ResponseChannel(req.ID), data)
		}
	}()

	return func() {
		_ = client.Close()
		<-done
	}
}

var _ = Describe("Orchestrator end to end", func() {
	var (
		hub  *transport.Hub
		b    *bus.Bus
		stop func()
	)

	BeforeEach(func() {
		hub = transport.NewHub()

		handler, err := echo.New(context.Background())
		Expect(err).NotTo(HaveOccurred())
		stop = servePlugin(hub, handler, echo.PluginID)

		b = bus.New(hub.Client(), bus.NewPendingTable(), bus.WithLogger(discardLogger()))
		Expect(b.Start(context.Background())).To(Succeed())
		Expect(b.Connected()).To(BeTrue())
	})

	AfterEach(func() {
		Expect(b.Close()).To(Succeed())
		stop()
	})

	It("round-trips a request through the transport", func() {
		resp := b.Request(context.Background(), echo.PluginID, "ping", nil, 2*time.Second)

		Expect(resp.Status).To(Equal(bus.StatusSuccess))
		Expect(resp.Payload).To(HaveKeyWithValue("pong", true))
	})

	It("echoes arbitrary payload data", func() {
		resp := b.Request(context.Background(), echo.PluginID, "echo",
			map[string]any{"voice": "hello"}, 2*time.Second)

		Expect(resp.Status).To(Equal(bus.StatusSuccess))
		Expect(resp.Payload).To(HaveKey("echo"))
	})

	It("times out when the target plugin does not exist", func() {
		resp := b.Request(context.Background(), "ghost", "ping", nil, 200*time.Millisecond)

		Expect(resp.Status).To(Equal(bus.StatusTimeout))
		Expect(resp.MessageID).NotTo(BeEmpty())
	})

	It("broadcasts system events to subscribers", func() {
		ctx := context.Background()
		watcher := hub.Client()
		Expect(watcher.Connect(ctx)).To(Succeed())
		Expect(watcher.Subscribe(ctx, message.SystemEventsChannel)).To(Succeed())
		defer watcher.Close()

		Expect(b.PublishEvent(ctx, "plugin_certified", map[string]any{"plugin": "echo"})).To(Succeed())

		var evt *message.Message
		Eventually(watcher.Messages()).Should(Receive(WithTransform(func(d transport.Delivery) *message.Message {
			m, err := message.Decode(d.Data)
			Expect(err).NotTo(HaveOccurred())
			evt = m
			return m
		}, Not(BeNil()))))
		Expect(evt.Payload).To(HaveKeyWithValue("event", "plugin_certified"))
	})
})

var _ = Describe("Registry and certifier together", func() {
	It("discovers the catalog and certifies the active plugin", func() {
		catalog := []registry.CatalogEntry{
			{ID: echo.PluginID, Name: "Echo", Capabilities: []string{"echo", "ping"}},
			{ID: "phantom", Name: "Phantom"},
		}
		factories := registry.FactoryTable{}
		factories.Register(echo.PluginID, echo.New)

		reg := registry.New(catalog, factories, registry.WithLogger(discardLogger()))
		reg.Discover(context.Background())

		Expect(reg.Statuses()).To(HaveKeyWithValue(echo.PluginID, "active"))
		Expect(reg.Statuses()).To(HaveKeyWithValue("phantom", "not_available"))
		Expect(reg.Available()).To(Equal([]string{echo.PluginID}))

		certifier := certify.New(
			certify.WithLogger(discardLogger()),
			certify.WithBenchRunner(bench.Runner{Iterations: 10, PerCallTimeout: time.Second}),
		)
		report := certifier.Certify(context.Background(), echo.PluginID, factories[echo.PluginID], nil)

		Expect(report.Level).To(Equal(certify.LevelAdvanced))
		Expect(report.FailedChecks).To(BeZero())
	})
})

var _ = Describe("Redis transport", func() {
	It("round-trips a request over a live redis", func() {
		url := os.Getenv("CONCLAVE_REDIS_URL")
		if url == "" {
			Skip("CONCLAVE_REDIS_URL not set")
		}

		ctx := context.Background()

		pluginSide, err := transport.NewRedis(url)
		Expect(err).NotTo(HaveOccurred())
		Expect(pluginSide.Connect(ctx)).To(Succeed())
		defer pluginSide.Close()

		handler, err := echo.New(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(pluginSide.Subscribe(ctx, message.PluginChannel(echo.PluginID))).To(Succeed())
		go func() {
			for d := range pluginSide.Messages() {
				req, decErr := message.Decode(d.Data)
				if decErr != nil || req.Type != message.TypeRequest {
					continue
				}
				payload, _ := handler.HandleRequest(ctx, req)
				data, encErr := req.Response(echo.PluginID, payload).Encode()
				if encErr != nil {
					continue
				}
				_, _ = pluginSide.Publish(ctx, message.ResponseChannel(req.ID), data)
			}
		}()

		busSide, err := transport.NewRedis(url)
		Expect(err).NotTo(HaveOccurred())

		b := bus.New(busSide, bus.NewPendingTable(), bus.WithLogger(discardLogger()))
		Expect(b.Start(ctx)).To(Succeed())
		defer b.Close()
		Expect(b.Connected()).To(BeTrue())

		resp := b.Request(ctx, echo.PluginID, "ping", nil, 5*time.Second)
		Expect(resp.Status).To(Equal(bus.StatusSuccess))
	})
})
