// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package certify

// Category groups compliance checks by probe suite.
type Category string

// Probe categories, in report order.
const (
	CategoryBasic         Category = "Basic Compliance"
	CategoryProtocol      Category = "Message Protocol"
	CategoryErrorHandling Category = "Error Handling"
	CategoryPerformance   Category = "Performance"
	CategorySecurity      Category = "Security"
	CategoryBestPractices Category = "Best Practices"
	CategoryManifest      Category = "Manifest Compliance"
)

// categoryOrder fixes the order categories appear in reports and
// recommendations.
var categoryOrder = []Category{
	CategoryBasic,
	CategoryProtocol,
	CategoryErrorHandling,
	CategoryPerformance,
	CategorySecurity,
	CategoryBestPractices,
	CategoryManifest,
}

// Severity grades how serious a failed check is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Check is one certification probe result. Immutable once produced.
type Check struct {
	Name     string         `json:"name"`
	Category Category       `json:"category"`
	Passed   bool           `json:"passed"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}
