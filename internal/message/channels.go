// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package message

// Channel naming conventions shared by the orchestrator and plugins.
const (
	// DiscoveryChannel carries DISCOVERY broadcasts to all plugins.
	DiscoveryChannel = "plugin:discovery"
	// DiscoveryResponseChannel carries answers to discovery broadcasts.
	DiscoveryResponseChannel = "plugin:discovery:response"
	// SystemEventsChannel carries fire-and-forget EVENT messages.
	SystemEventsChannel = "system:events"
)

// PluginChannel returns the request channel for a plugin.
func PluginChannel(pluginID string) string {
	return "plugin:" + pluginID
}

// ResponseChannel returns the per-request response channel derived from a
// correlation id.
func ResponseChannel(correlationID string) string {
	return "response:" + correlationID
}

// ClientChannel returns the ad-hoc response channel for a test client.
func ClientChannel(clientID string) string {
	return "sidhe:plugin:" + clientID
}
