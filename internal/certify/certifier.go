// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

// Package certify drives a plugin implementation through a fixed battery of
// protocol, error-handling, performance, security, and best-practice probes
// and produces a graded compliance report.
package certify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/EldestGruff/sidhe-conclave/internal/bench"
	"github.com/EldestGruff/sidhe-conclave/internal/message"
	"github.com/EldestGruff/sidhe-conclave/pkg/plugin"
)

// certifierSource is the source tag on synthetic probe messages.
const certifierSource = "certifier"

// cancellationGrace is how long a handler may take to return after its
// context is canceled before the best-practices probe flags it as blocking.
const cancellationGrace = 200 * time.Millisecond

// Certifier subjects one plugin implementation to the probe suite. Probes
// call the handler directly; no transport is involved.
type Certifier struct {
	logger *slog.Logger
	runner bench.Runner
}

// Option configures the Certifier.
type Option func(*Certifier)

// WithLogger sets the certifier logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Certifier) { c.logger = l }
}

// WithBenchRunner overrides the benchmark runner, mainly to shrink
// iteration counts in tests.
func WithBenchRunner(r bench.Runner) Option {
	return func(c *Certifier) { c.runner = r }
}

// New creates a certifier.
func New(opts ...Option) *Certifier {
	c := &Certifier{
		logger: slog.Default(),
		runner: bench.Runner{Iterations: bench.DefaultIterations},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Certify instantiates the plugin and runs every probe suite against it.
// A factory that fails or panics aborts the remaining probes with a single
// basic-compliance error; the certification run itself never crashes.
func (c *Certifier) Certify(ctx context.Context, pluginID string, factory plugin.Factory, manifest *plugin.Manifest) *Report {
	report := &Report{
		PluginID:  pluginID,
		Timestamp: time.Now().UTC(),
		Security:  newSecurityAssessment(),
	}

	handler, err := instantiate(ctx, factory)
	if err != nil {
		report.Checks = append(report.Checks, Check{
			Name:     "Plugin Instantiation",
			Category: CategoryBasic,
			Passed:   false,
			Severity: SeverityError,
			Message:  fmt.Sprintf("plugin failed to instantiate: %v", err),
		})
		report.finalize()
		return report
	}

	info := handler.Info()
	report.PluginID = info.ID
	report.PluginName = info.Name
	report.Version = info.Version

	c.logger.Info("certification started", "plugin", info.ID, "version", info.Version)

	c.checkBasic(ctx, handler, report)
	c.checkProtocol(ctx, handler, report)
	c.checkErrorHandling(ctx, handler, report)
	c.checkPerformance(ctx, handler, manifest, report)
	c.checkSecurity(ctx, handler, report)
	c.checkBestPractices(ctx, handler, report)
	if manifest != nil {
		c.checkManifest(handler, manifest, report)
	}

	report.finalize()
	c.logger.Info("certification finished",
		"plugin", info.ID,
		"level", report.Level,
		"passed", report.PassedChecks,
		"total", report.TotalChecks)
	return report
}

// instantiate calls the factory with panic containment.
func instantiate(ctx context.Context, factory plugin.Factory) (h plugin.Handler, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			h = nil
			err = fmt.Errorf("factory panicked: %v", rec)
		}
	}()
	if factory == nil {
		return nil, errors.New("no factory provided")
	}
	h, err = factory(ctx)
	if err == nil && h == nil {
		err = errors.New("factory returned nil handler")
	}
	return h, err
}

// callResult is one contained handler invocation.
type callResult struct {
	payload  map[string]any
	err      error
	panicked bool
	panicVal any
}

// call invokes the handler with panic containment. Probes decide for
// themselves what counts as compliant.
func call(ctx context.Context, h plugin.Handler, msg *message.Message) (res callResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res.panicked = true
			res.panicVal = rec
		}
	}()
	res.payload, res.err = h.HandleRequest(ctx, msg)
	return res
}

// unimplemented reports whether a call fell through to the default
// unimplemented dispatch path, the one failure mode every suite rejects.
func (r callResult) unimplemented() bool {
	return r.panicked || errors.Is(r.err, plugin.ErrNotImplemented)
}

// checkBasic verifies the required capability contract: identity fields, a
// concrete entry point, and at least one declared capability.
func (c *Certifier) checkBasic(ctx context.Context, h plugin.Handler, report *Report) {
	info := h.Info()

	var missing []string
	if info.ID == "" {
		missing = append(missing, "pluginId")
	}
	if info.Name == "" {
		missing = append(missing, "pluginName")
	}
	if info.Version == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		report.Checks = append(report.Checks, Check{
			Name:     "Required Identity Attributes",
			Category: CategoryBasic,
			Passed:   false,
			Severity: SeverityError,
			Message:  fmt.Sprintf("missing identity fields: %s", strings.Join(missing, ", ")),
			Details:  map[string]any{"missing": missing},
		})
	} else {
		report.Checks = append(report.Checks, Check{
			Name:     "Required Identity Attributes",
			Category: CategoryBasic,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  "pluginId, pluginName, and version are present",
		})
	}

	res := call(ctx, h, message.NewRequest(certifierSource, info.ID, "ping", nil))
	if res.unimplemented() {
		report.Checks = append(report.Checks, Check{
			Name:     "Request Entry Point",
			Category: CategoryBasic,
			Passed:   false,
			Severity: SeverityError,
			Message:  "HandleRequest is not concretely implemented",
		})
	} else {
		report.Checks = append(report.Checks, Check{
			Name:     "Request Entry Point",
			Category: CategoryBasic,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  "HandleRequest has a concrete implementation",
		})
	}

	caps := h.Capabilities()
	if len(caps) == 0 {
		report.Checks = append(report.Checks, Check{
			Name:     "Declared Capabilities",
			Category: CategoryBasic,
			Passed:   false,
			Severity: SeverityWarning,
			Message:  "plugin declares no capabilities",
		})
	} else {
		report.Checks = append(report.Checks, Check{
			Name:     "Declared Capabilities",
			Category: CategoryBasic,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("plugin declares %d capabilities", len(caps)),
		})
	}
}

// checkProtocol sends a synthetic REQUEST and HEALTH_CHECK through the
// handler and checks the responses are well-formed.
func (c *Certifier) checkProtocol(ctx context.Context, h plugin.Handler, report *Report) {
	info := h.Info()

	res := call(ctx, h, message.NewRequest(certifierSource, info.ID, "ping", map[string]any{"probe": true}))
	switch {
	case res.unimplemented():
		report.Checks = append(report.Checks, Check{
			Name:     "Request Response Format",
			Category: CategoryProtocol,
			Passed:   false,
			Severity: SeverityError,
			Message:  "REQUEST fell through to the unimplemented dispatch path",
		})
	case res.err == nil && res.payload == nil:
		report.Checks = append(report.Checks, Check{
			Name:     "Request Response Format",
			Category: CategoryProtocol,
			Passed:   false,
			Severity: SeverityError,
			Message:  "REQUEST produced a nil response payload",
		})
	default:
		report.Checks = append(report.Checks, Check{
			Name:     "Request Response Format",
			Category: CategoryProtocol,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  "REQUEST produced a well-formed response mapping",
		})
	}

	health := message.New(message.TypeHealthCheck, certifierSource, nil)
	health.Target = info.ID
	hres := call(ctx, h, health)
	if hres.unimplemented() || hres.payload == nil || hres.payload["status"] == nil {
		report.Checks = append(report.Checks, Check{
			Name:     "Health Check Response",
			Category: CategoryProtocol,
			Passed:   false,
			Severity: SeverityError,
			Message:  "HEALTH_CHECK response is missing a status field",
		})
	} else {
		report.Checks = append(report.Checks, Check{
			Name:     "Health Check Response",
			Category: CategoryProtocol,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("HEALTH_CHECK reported status %v", hres.payload["status"]),
		})
	}
}

// adversarialPayloads are the error-handling probes. A graceful structured
// response or a typed error are both compliant; only the unimplemented
// dispatch path fails.
var adversarialPayloads = []struct {
	name    string
	action  string
	payload map[string]any
}{
	{name: "Unknown Action", action: "no_such_action_xyzzy", payload: map[string]any{}},
	{name: "Empty Payload", action: "", payload: nil},
	{name: "Oversized Nested Data", action: "ping", payload: oversizedPayload()},
}

// oversizedPayload builds a deeply nested structure that stresses naive
// payload handling.
func oversizedPayload() map[string]any {
	leaf := map[string]any{"data": strings.Repeat("x", 4096)}
	current := leaf
	for i := 0; i < 32; i++ {
		current = map[string]any{"nested": current}
	}
	return current
}

func (c *Certifier) checkErrorHandling(ctx context.Context, h plugin.Handler, report *Report) {
	info := h.Info()

	for _, probe := range adversarialPayloads {
		res := call(ctx, h, message.NewRequest(certifierSource, info.ID, probe.action, probe.payload))
		if res.unimplemented() {
			report.Checks = append(report.Checks, Check{
				Name:     "Error Handling: " + probe.name,
				Category: CategoryErrorHandling,
				Passed:   false,
				Severity: SeverityError,
				Message:  "adversarial input crashed through the unimplemented dispatch path",
				Details:  map[string]any{"probe": probe.name},
			})
			continue
		}

		outcome := "graceful structured response"
		if res.err != nil {
			outcome = "typed error"
		}
		report.Checks = append(report.Checks, Check{
			Name:     "Error Handling: " + probe.name,
			Category: CategoryErrorHandling,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  "adversarial input handled with a " + outcome,
		})
	}
}

// checkPerformance benchmarks a representative request. A manifest latency
// ceiling turns the latency comparison into a warning-level check;
// otherwise the numbers are recorded with a 90% success threshold.
func (c *Certifier) checkPerformance(ctx context.Context, h plugin.Handler, manifest *plugin.Manifest, report *Report) {
	info := h.Info()
	req := message.NewRequest(certifierSource, info.ID, "ping", map[string]any{"benchmark": true})

	result := c.runner.Run(ctx, h, req)
	report.Performance = Performance{
		AvgLatencyMs: float64(result.AvgLatency.Microseconds()) / 1000,
		MinLatencyMs: float64(result.MinLatency.Microseconds()) / 1000,
		MaxLatencyMs: float64(result.MaxLatency.Microseconds()) / 1000,
		SuccessRate:  result.SuccessRate,
		Throughput:   result.Throughput,
		Iterations:   result.Iterations,
	}

	details := map[string]any{
		"avgLatencyMs": report.Performance.AvgLatencyMs,
		"minLatencyMs": report.Performance.MinLatencyMs,
		"maxLatencyMs": report.Performance.MaxLatencyMs,
		"successRate":  result.SuccessRate,
		"iterations":   result.Iterations,
	}

	if manifest != nil && manifest.ExpectedResponseTimeMs > 0 {
		withinCeiling := report.Performance.AvgLatencyMs <= manifest.ExpectedResponseTimeMs
		msg := fmt.Sprintf("average latency %.2fms against declared ceiling %.2fms",
			report.Performance.AvgLatencyMs, manifest.ExpectedResponseTimeMs)
		report.Checks = append(report.Checks, Check{
			Name:     "Declared Latency Ceiling",
			Category: CategoryPerformance,
			Passed:   withinCeiling,
			Severity: SeverityWarning,
			Message:  msg,
			Details:  details,
		})
		return
	}

	report.Checks = append(report.Checks, Check{
		Name:     "Benchmark Results",
		Category: CategoryPerformance,
		Passed:   result.SuccessRate >= 90,
		Severity: SeverityInfo,
		Message: fmt.Sprintf("%.0f%% success over %d iterations, avg latency %.2fms",
			result.SuccessRate, result.Iterations, report.Performance.AvgLatencyMs),
		Details: details,
	})
}

// securityProbes replay injection-style payloads. The handler must not
// crash via the unimplemented path; rejecting with an error is fine.
var securityProbes = []struct {
	name    string
	field   func(*SecurityAssessment) *string
	payload map[string]any
}{
	{
		name:    "Command Injection",
		field:   func(s *SecurityAssessment) *string { return &s.CommandInjection },
		payload: map[string]any{"input": "test; rm -rf /; echo pwned"},
	},
	{
		name:    "Script Injection",
		field:   func(s *SecurityAssessment) *string { return &s.ScriptInjection },
		payload: map[string]any{"input": "<script>alert('xss')</script>"},
	},
	{
		name:    "Path Traversal",
		field:   func(s *SecurityAssessment) *string { return &s.PathTraversal },
		payload: map[string]any{"path": "../../../../etc/passwd"},
	},
	{
		name:    "Large Payload",
		field:   func(s *SecurityAssessment) *string { return &s.LargePayload },
		payload: map[string]any{"blob": strings.Repeat("A", 256*1024)},
	},
}

// disclosureMarkers are substrings in error text that suggest leaked
// filesystem paths or stack traces.
var disclosureMarkers = []string{"/home/", "/usr/", "/var/", ".go:", "goroutine ", "runtime."}

func (c *Certifier) checkSecurity(ctx context.Context, h plugin.Handler, report *Report) {
	info := h.Info()

	for _, probe := range securityProbes {
		res := call(ctx, h, message.NewRequest(certifierSource, info.ID, "process", probe.payload))
		field := probe.field(&report.Security)
		if res.unimplemented() {
			*field = ProbeFail
			report.Checks = append(report.Checks, Check{
				Name:     "Security: " + probe.name,
				Category: CategorySecurity,
				Passed:   false,
				Severity: SeverityError,
				Message:  "injection payload crashed through the unimplemented dispatch path",
			})
			continue
		}
		*field = ProbePass
		report.Checks = append(report.Checks, Check{
			Name:     "Security: " + probe.name,
			Category: CategorySecurity,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  "injection payload handled without crashing",
		})
	}

	// Disclosure probe: force an error and inspect its text.
	res := call(ctx, h, message.NewRequest(certifierSource, info.ID, "no_such_action_xyzzy", nil))
	var errText string
	if res.err != nil {
		errText = res.err.Error()
	} else if res.payload != nil {
		if s, ok := res.payload["error"].(string); ok {
			errText = s
		}
	}

	leaked := false
	for _, marker := range disclosureMarkers {
		if strings.Contains(errText, marker) {
			leaked = true
			break
		}
	}
	if leaked {
		report.Security.ErrorDisclosure = ProbeFail
		report.Checks = append(report.Checks, Check{
			Name:     "Security: Error Disclosure",
			Category: CategorySecurity,
			Passed:   false,
			Severity: SeverityWarning,
			Message:  "error messages disclose filesystem paths or stack traces",
			Details:  map[string]any{"sample": errText},
		})
	} else {
		report.Security.ErrorDisclosure = ProbePass
		report.Checks = append(report.Checks, Check{
			Name:     "Security: Error Disclosure",
			Category: CategorySecurity,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  "error messages do not leak paths or stack traces",
		})
	}
}

// checkBestPractices probes the optional quality interfaces: documentation,
// a structured logger, health reporting, and a non-blocking entry point
// that honors context cancellation.
func (c *Certifier) checkBestPractices(ctx context.Context, h plugin.Handler, report *Report) {
	info := h.Info()

	documented := info.Description != ""
	for _, cap := range h.Capabilities() {
		if cap.Description == "" {
			documented = false
			break
		}
	}
	report.Checks = append(report.Checks, Check{
		Name:     "Documentation",
		Category: CategoryBestPractices,
		Passed:   documented,
		Severity: SeverityWarning,
		Message:  bestPracticeMessage(documented, "plugin and capabilities are documented", "plugin or capability descriptions are empty"),
	})

	logged := false
	if lp, ok := h.(plugin.LoggerProvider); ok {
		logged = lp.Logger() != nil
	}
	report.Checks = append(report.Checks, Check{
		Name:     "Structured Logger",
		Category: CategoryBestPractices,
		Passed:   logged,
		Severity: SeverityWarning,
		Message:  bestPracticeMessage(logged, "plugin provides a structured logger", "plugin does not provide a structured logger"),
	})

	_, reportsHealth := h.(plugin.HealthReporter)
	report.Checks = append(report.Checks, Check{
		Name:     "Health Reporting",
		Category: CategoryBestPractices,
		Passed:   reportsHealth,
		Severity: SeverityWarning,
		Message:  bestPracticeMessage(reportsHealth, "plugin reports health", "plugin does not implement health reporting"),
	})

	nonBlocking := honorsCancellation(ctx, h)
	report.Checks = append(report.Checks, Check{
		Name:     "Non-Blocking Entry Point",
		Category: CategoryBestPractices,
		Passed:   nonBlocking,
		Severity: SeverityWarning,
		Message:  bestPracticeMessage(nonBlocking, "HandleRequest returns promptly on canceled context", "HandleRequest blocks past context cancellation"),
	})
}

// honorsCancellation calls the handler with an already-canceled context and
// expects a prompt return.
func honorsCancellation(ctx context.Context, h plugin.Handler) bool {
	canceled, cancel := context.WithCancel(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() { _ = recover() }() // a panic still counts as returning
		_, _ = h.HandleRequest(canceled, message.NewRequest(certifierSource, h.Info().ID, "ping", nil))
	}()

	select {
	case <-done:
		return true
	case <-time.After(cancellationGrace):
		return false
	}
}

func bestPracticeMessage(ok bool, pass, fail string) string {
	if ok {
		return pass
	}
	return fail
}

// checkManifest compares the live handler against the supplied manifest.
// Any mismatch is a warning, itemizing missing and extra capabilities.
func (c *Certifier) checkManifest(h plugin.Handler, manifest *plugin.Manifest, report *Report) {
	info := h.Info()

	versionsMatch := info.Version == manifest.Version
	if !versionsMatch {
		// Tolerate formatting differences between equal semantic versions.
		iv, ierr := semver.NewVersion(info.Version)
		mv, merr := semver.NewVersion(manifest.Version)
		versionsMatch = ierr == nil && merr == nil && iv.Equal(mv)
	}
	report.Checks = append(report.Checks, Check{
		Name:     "Manifest Version",
		Category: CategoryManifest,
		Passed:   versionsMatch,
		Severity: SeverityWarning,
		Message: fmt.Sprintf("implementation version %q vs manifest version %q",
			info.Version, manifest.Version),
	})

	declared := make(map[string]bool)
	for _, cap := range manifest.Capabilities {
		declared[cap.Name] = true
	}
	live := make(map[string]bool)
	for _, cap := range h.Capabilities() {
		live[cap.Name] = true
	}

	var missing, extra []string
	for name := range declared {
		if !live[name] {
			missing = append(missing, name)
		}
	}
	for name := range live {
		if !declared[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	if len(missing) == 0 && len(extra) == 0 {
		report.Checks = append(report.Checks, Check{
			Name:     "Manifest Capabilities",
			Category: CategoryManifest,
			Passed:   true,
			Severity: SeverityInfo,
			Message:  "declared and live capability sets match",
		})
		return
	}
	report.Checks = append(report.Checks, Check{
		Name:     "Manifest Capabilities",
		Category: CategoryManifest,
		Passed:   false,
		Severity: SeverityWarning,
		Message:  "declared and live capability sets differ",
		Details:  map[string]any{"missing": missing, "extra": extra},
	})
}
