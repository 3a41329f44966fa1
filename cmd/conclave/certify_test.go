// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCertify_Properties(t *testing.T) {
	cmd := NewCertifyCmd()

	if !strings.HasPrefix(cmd.Use, "certify") {
		t.Errorf("Use = %q, want certify prefix", cmd.Use)
	}
	if !strings.Contains(cmd.Long, "probe") {
		t.Error("Long description should mention probes")
	}
}

func TestCertify_Flags(t *testing.T) {
	cmd := NewCertifyCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	for _, flag := range []string{"--manifest", "--output", "--format"} {
		if !strings.Contains(output, flag) {
			t.Errorf("Help missing %q flag", flag)
		}
	}
}

func TestCertify_EchoToStdout(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"certify", "echo"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "ADVANCED") {
		t.Error("expected echo to certify at ADVANCED")
	}
	if !strings.Contains(output, "Certification Report") {
		t.Error("expected markdown report header")
	}
}

func TestCertify_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"certify", "echo", "--format", "json", "--output", path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}

	var report map[string]any
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report["certificationLevel"] != "ADVANCED" {
		t.Errorf("certificationLevel = %v, want ADVANCED", report["certificationLevel"])
	}
	if !strings.Contains(buf.String(), path) {
		t.Error("expected confirmation message naming the output file")
	}
}

func TestCertify_WithManifest(t *testing.T) {
	manifest := filepath.Join(t.TempDir(), "plugin.yaml")
	content := `pluginId: echo
name: Echo
version: 1.0.0
capabilities:
  - name: echo
  - name: ping
`
	if err := os.WriteFile(manifest, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"certify", "echo", "--manifest", manifest})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(buf.String(), "Manifest Compliance") {
		t.Error("expected manifest compliance section in report")
	}
}

func TestCertify_UnknownPlugin(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"certify", "no-such-plugin"})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for unregistered plugin")
	}
	if !strings.Contains(err.Error(), "no-such-plugin") {
		t.Errorf("error should name the plugin, got %v", err)
	}
}

func TestCertify_InvalidFormat(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"certify", "echo", "--format", "xml"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestCertify_MissingManifestFile(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"certify", "echo", "--manifest", filepath.Join(t.TempDir(), "nope.yaml")})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing manifest file")
	}
}
