// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package bus

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the bus's Prometheus metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	EventsPublished  prometheus.Counter
	DroppedResponses prometheus.Counter
	PendingRequests  prometheus.GaugeFunc
}

// NewMetrics creates and registers bus metrics. The pending gauge reads the
// live table so it needs no bookkeeping of its own.
func NewMetrics(reg prometheus.Registerer, pending *PendingTable) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidhe_bus_requests_total",
				Help: "Total number of bus requests by outcome status",
			},
			[]string{"status"},
		),
		EventsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sidhe_bus_events_published_total",
				Help: "Total number of fire-and-forget events published",
			},
		),
		DroppedResponses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sidhe_bus_dropped_responses_total",
				Help: "Responses dropped because no waiter matched their correlation id",
			},
		),
		PendingRequests: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "sidhe_bus_pending_requests",
				Help: "Number of requests currently awaiting a response",
			},
			func() float64 { return float64(pending.Len()) },
		),
	}

	if reg != nil {
		reg.MustRegister(m.RequestsTotal, m.EventsPublished, m.DroppedResponses, m.PendingRequests)
	}
	return m
}
