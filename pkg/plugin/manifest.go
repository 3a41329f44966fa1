// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package plugin

import (
	"os"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Manifest represents a plugin.yaml file declaring what a plugin promises
// to provide. It is consumed by the certifier's manifest-compliance probe.
type Manifest struct {
	PluginID               string       `yaml:"pluginId" json:"pluginId"`
	Name                   string       `yaml:"name" json:"name"`
	Version                string       `yaml:"version" json:"version"`
	Description            string       `yaml:"description,omitempty" json:"description,omitempty"`
	Capabilities           []Capability `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	ExpectedResponseTimeMs float64      `yaml:"expectedResponseTimeMs,omitempty" json:"expectedResponseTimeMs,omitempty"`
}

// maxIDLength is the maximum allowed length for plugin ids.
const maxIDLength = 64

// idPattern validates plugin ids: must start with a lowercase letter,
// followed by lowercase letters, digits, hyphens or underscores, and not
// end with a hyphen.
var idPattern = regexp.MustCompile(`^[a-z]([a-z0-9_-]*[a-z0-9])?$`)

// ParseManifest parses and validates manifest data.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, oops.Code("MANIFEST_EMPTY").Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("MANIFEST_INVALID_YAML").Wrapf(err, "parse manifest")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the CLI --manifest flag
	if err != nil {
		return nil, oops.Code("MANIFEST_READ_FAILED").Wrapf(err, "read manifest %s", path)
	}
	return ParseManifest(data)
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.PluginID == "" || !idPattern.MatchString(m.PluginID) {
		return oops.Code("MANIFEST_BAD_ID").
			Errorf("pluginId %q must start with a-z and contain only a-z, 0-9, hyphens, underscores", m.PluginID)
	}
	if len(m.PluginID) > maxIDLength {
		return oops.Code("MANIFEST_BAD_ID").
			Errorf("pluginId must be %d characters or less, got %d", maxIDLength, len(m.PluginID))
	}
	if m.Name == "" {
		return oops.Code("MANIFEST_MISSING_NAME").Errorf("name is required")
	}
	if m.Version == "" {
		return oops.Code("MANIFEST_MISSING_VERSION").Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return oops.Code("MANIFEST_BAD_VERSION").Wrapf(err, "version %q is not semantic", m.Version)
	}
	for _, c := range m.Capabilities {
		if c.Name == "" {
			return oops.Code("MANIFEST_BAD_CAPABILITY").Errorf("capability name is required")
		}
	}
	if m.ExpectedResponseTimeMs < 0 {
		return oops.Code("MANIFEST_BAD_LATENCY").Errorf("expectedResponseTimeMs cannot be negative")
	}
	return nil
}
