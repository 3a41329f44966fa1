// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package bus

// Response statuses. Timeout and unavailable are expected runtime
// conditions and are returned as data, never as errors.
const (
	StatusSuccess     = "success"
	StatusTimeout     = "timeout"
	StatusUnavailable = "unavailable"
	StatusError       = "error"
)

// Response is the outcome of one Request call. Exactly one Response is
// returned for every request: success, timeout, unavailable, or error.
type Response struct {
	Status    string         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
	MessageID string         `json:"messageId,omitempty"`
}

// OK reports whether the request completed successfully.
func (r *Response) OK() bool {
	return r.Status == StatusSuccess
}
