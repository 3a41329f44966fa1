// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package bench measures latency and error rate of repeated synchronous
// calls into a plugin handler. It is shared by the certifier and ad-hoc
// tooling.
package bench

import (
	"context"
	"time"

	"github.com/EldestGruff/sidhe-conclave/internal/message"
	"github.com/EldestGruff/sidhe-conclave/pkg/plugin"
)

// Defaults for the runner.
const (
	DefaultIterations     = 50
	DefaultPerCallTimeout = 5 * time.Second
)

// Runner drives repeated calls into a handler. Every call carries its own
// timeout so a hung handler stalls one iteration, not the whole run.
type Runner struct {
	Iterations     int
	PerCallTimeout time.Duration
}

// Result aggregates one benchmark run.
type Result struct {
	Iterations int
	Failures   int

	AvgLatency time.Duration
	MinLatency time.Duration
	MaxLatency time.Duration

	// SuccessRate is a percentage in [0, 100].
	SuccessRate float64
	// Throughput is successful requests per second over the whole run.
	Throughput float64
}

// Run calls the handler Iterations times with copies of the request and
// records timing. Handler errors and per-call timeouts count as failures;
// they never abort the run.
func (r Runner) Run(ctx context.Context, h plugin.Handler, req *message.Message) Result {
	iterations := r.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	perCall := r.PerCallTimeout
	if perCall <= 0 {
		perCall = DefaultPerCallTimeout
	}

	res := Result{Iterations: iterations}
	var total time.Duration

	start := time.Now()
	for i := 0; i < iterations; i++ {
		call := *req
		call.ID = message.NewID()

		elapsed, err := timedCall(ctx, h, &call, perCall)
		if err != nil {
			res.Failures++
			continue
		}

		total += elapsed
		if res.MinLatency == 0 || elapsed < res.MinLatency {
			res.MinLatency = elapsed
		}
		if elapsed > res.MaxLatency {
			res.MaxLatency = elapsed
		}
	}
	wall := time.Since(start)

	succeeded := iterations - res.Failures
	if succeeded > 0 {
		res.AvgLatency = total / time.Duration(succeeded)
	}
	res.SuccessRate = float64(succeeded) / float64(iterations) * 100
	if wall > 0 {
		res.Throughput = float64(succeeded) / wall.Seconds()
	}
	return res
}

// timedCall runs one handler call under a per-call timeout. The handler is
// invoked on a separate goroutine so a call that ignores its context still
// cannot block the benchmark past the deadline.
func timedCall(ctx context.Context, h plugin.Handler, msg *message.Message, timeout time.Duration) (time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		_, err := h.HandleRequest(callCtx, msg)
		done <- err
	}()

	select {
	case err := <-done:
		return time.Since(start), err
	case <-callCtx.Done():
		return time.Since(start), callCtx.Err()
	}
}
