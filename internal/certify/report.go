// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package certify

import (
	"time"
)

// Level is the graded certification verdict.
type Level string

const (
	LevelFailed   Level = "FAILED"
	LevelBasic    Level = "BASIC"
	LevelStandard Level = "STANDARD"
	LevelAdvanced Level = "ADVANCED"
)

// Passing reports whether the level gates the plugin into production.
func (l Level) Passing() bool {
	return l != LevelFailed
}

// Performance holds the benchmark numbers gathered during certification.
type Performance struct {
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	MinLatencyMs float64 `json:"minLatencyMs"`
	MaxLatencyMs float64 `json:"maxLatencyMs"`
	SuccessRate  float64 `json:"successRatePercent"`
	Throughput   float64 `json:"throughputReqPerSec"`
	Iterations   int     `json:"iterations"`
}

// Probe outcomes for the security assessment fields.
const (
	ProbePass      = "pass"
	ProbeFail      = "fail"
	ProbeNotTested = "not_tested"
)

// SecurityAssessment summarizes the named security probes.
type SecurityAssessment struct {
	CommandInjection string `json:"commandInjection"`
	ScriptInjection  string `json:"scriptInjection"`
	PathTraversal    string `json:"pathTraversal"`
	LargePayload     string `json:"largePayload"`
	ErrorDisclosure  string `json:"errorDisclosure"`
}

// newSecurityAssessment returns an assessment with every field not tested.
func newSecurityAssessment() SecurityAssessment {
	return SecurityAssessment{
		CommandInjection: ProbeNotTested,
		ScriptInjection:  ProbeNotTested,
		PathTraversal:    ProbeNotTested,
		LargePayload:     ProbeNotTested,
		ErrorDisclosure:  ProbeNotTested,
	}
}

// Report is the aggregate certification verdict. Produced fresh on every
// run and never mutated after construction.
type Report struct {
	PluginID   string    `json:"pluginId"`
	PluginName string    `json:"pluginName"`
	Version    string    `json:"version"`
	Timestamp  time.Time `json:"timestamp"`

	Level  Level   `json:"certificationLevel"`
	Checks []Check `json:"checks"`

	Performance Performance        `json:"performance"`
	Security    SecurityAssessment `json:"security"`

	TotalChecks  int `json:"totalChecks"`
	PassedChecks int `json:"passedChecks"`
	FailedChecks int `json:"failedChecks"`
	Warnings     int `json:"warnings"`

	Recommendations []string `json:"recommendations"`
}

// finalize derives counts, level, and recommendations from the check
// sequence. Called exactly once when a run completes.
func (r *Report) finalize() {
	r.TotalChecks = len(r.Checks)
	for _, c := range r.Checks {
		if c.Passed {
			r.PassedChecks++
			continue
		}
		switch c.Severity {
		case SeverityError:
			r.FailedChecks++
		case SeverityWarning:
			r.Warnings++
		}
	}

	r.Level = deriveLevel(r.TotalChecks, r.PassedChecks, r.FailedChecks, r.Warnings)
	r.Recommendations = recommendations(r.Checks)
}

// deriveLevel applies the certification decision table, evaluated in order.
func deriveLevel(total, passed, errors, warnings int) Level {
	if errors > 0 {
		return LevelFailed
	}
	if total == 0 {
		return LevelFailed
	}

	passRate := float64(passed) / float64(total)
	switch {
	case passRate >= 0.95 && warnings == 0:
		return LevelAdvanced
	case passRate >= 0.80:
		return LevelStandard
	case passRate >= 0.60:
		return LevelBasic
	default:
		return LevelFailed
	}
}

// recommendationTemplates maps a probe category to advisory text emitted
// when any check in that category fails. Advisory only; never affects the
// level.
var recommendationTemplates = map[Category]string{
	CategoryBasic:         "Implement the required identity fields and the HandleRequest entry point with concrete behavior.",
	CategoryProtocol:      "Return a well-formed response payload for REQUEST messages and include a status field in health responses.",
	CategoryErrorHandling: "Handle unknown actions, missing fields, and oversized input with structured error responses instead of the unimplemented path.",
	CategoryPerformance:   "Reduce response latency or investigate failing requests to raise the benchmark success rate.",
	CategorySecurity:      "Reject or sanitize adversarial input and keep filesystem paths and stack traces out of error messages.",
	CategoryBestPractices: "Document the plugin and its capabilities, provide a structured logger, and honor context cancellation in HandleRequest.",
	CategoryManifest:      "Align the manifest's declared version and capability set with the live implementation.",
}

// recommendations scans failed checks and maps each failing category to its
// fixed suggestion, preserving category order.
func recommendations(checks []Check) []string {
	failed := make(map[Category]bool)
	for _, c := range checks {
		if !c.Passed {
			failed[c.Category] = true
		}
	}

	var recs []string
	for _, cat := range categoryOrder {
		if failed[cat] {
			recs = append(recs, recommendationTemplates[cat])
		}
	}
	return recs
}
