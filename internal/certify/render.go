// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package certify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// RenderJSON serializes the report for export.
func RenderJSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, oops.Code("REPORT_ENCODE_FAILED").Wrapf(err, "encode report")
	}
	return data, nil
}

// RenderMarkdown formats the report as a human-readable document.
func RenderMarkdown(r *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Plugin Certification Report\n\n")
	fmt.Fprintf(&b, "- **Plugin**: %s (%s)\n", r.PluginName, r.PluginID)
	fmt.Fprintf(&b, "- **Version**: %s\n", r.Version)
	fmt.Fprintf(&b, "- **Certified**: %s\n", r.Timestamp.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "- **Level**: **%s**\n\n", r.Level)

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Total | Passed | Failed | Warnings |\n")
	fmt.Fprintf(&b, "|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", r.TotalChecks, r.PassedChecks, r.FailedChecks, r.Warnings)

	fmt.Fprintf(&b, "## Checks\n\n")
	for _, cat := range categoryOrder {
		var checks []Check
		for _, c := range r.Checks {
			if c.Category == cat {
				checks = append(checks, c)
			}
		}
		if len(checks) == 0 {
			continue
		}

		fmt.Fprintf(&b, "### %s\n\n", cat)
		for _, c := range checks {
			mark := "PASS"
			if !c.Passed {
				mark = strings.ToUpper(string(c.Severity))
			}
			fmt.Fprintf(&b, "- [%s] %s — %s\n", mark, c.Name, c.Message)
		}
		b.WriteString("\n")
	}

	if r.Performance.Iterations > 0 {
		fmt.Fprintf(&b, "## Performance\n\n")
		fmt.Fprintf(&b, "- Average latency: %.2f ms\n", r.Performance.AvgLatencyMs)
		fmt.Fprintf(&b, "- Min/Max latency: %.2f / %.2f ms\n", r.Performance.MinLatencyMs, r.Performance.MaxLatencyMs)
		fmt.Fprintf(&b, "- Success rate: %.1f%%\n", r.Performance.SuccessRate)
		fmt.Fprintf(&b, "- Throughput: %.1f req/s over %d iterations\n\n", r.Performance.Throughput, r.Performance.Iterations)
	}

	fmt.Fprintf(&b, "## Security Assessment\n\n")
	fmt.Fprintf(&b, "| Probe | Outcome |\n|---|---|\n")
	fmt.Fprintf(&b, "| Command injection | %s |\n", r.Security.CommandInjection)
	fmt.Fprintf(&b, "| Script injection | %s |\n", r.Security.ScriptInjection)
	fmt.Fprintf(&b, "| Path traversal | %s |\n", r.Security.PathTraversal)
	fmt.Fprintf(&b, "| Large payload | %s |\n", r.Security.LargePayload)
	fmt.Fprintf(&b, "| Error disclosure | %s |\n\n", r.Security.ErrorDisclosure)

	if len(r.Recommendations) > 0 {
		fmt.Fprintf(&b, "## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
		b.WriteString("\n")
	}

	return b.String()
}
