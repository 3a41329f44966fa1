// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EldestGruff/sidhe-conclave/internal/certify"
	"github.com/EldestGruff/sidhe-conclave/internal/logging"
	"github.com/EldestGruff/sidhe-conclave/pkg/plugin"
)

// errCertificationFailed distinguishes a FAILED verdict (exit 1) from
// usage or infrastructure errors (exit 2).
var errCertificationFailed = errors.New("certification failed")

// certifyConfig holds configuration for the certify command.
type certifyConfig struct {
	manifestPath string
	outputPath   string
	format       string
	logFormat    string
}

// NewCertifyCmd creates the certify subcommand.
func NewCertifyCmd() *cobra.Command {
	cfg := &certifyConfig{}

	cmd := &cobra.Command{
		Use:   "certify <plugin-id>",
		Short: "Run the compliance probe suite against a plugin",
		Long: `Certify drives a registered plugin through the protocol, error
handling, performance, security, and best-practice probes and prints a
graded compliance report. Exit code is 0 when the plugin certifies at
BASIC or above, 1 on a FAILED verdict.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCertify(cmd, cfg, args[0])
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVar(&cfg.manifestPath, "manifest", "", "path to the plugin manifest (plugin.yaml)")
	cmd.Flags().StringVar(&cfg.outputPath, "output", "", "write the report to a file instead of stdout")
	cmd.Flags().StringVar(&cfg.format, "format", "markdown", "report format: markdown or json")
	cmd.Flags().StringVar(&cfg.logFormat, "log-format", "text", "log format: json or text")

	return cmd
}

func runCertify(cmd *cobra.Command, cfg *certifyConfig, pluginID string) error {
	if cfg.format != "markdown" && cfg.format != "json" {
		return fmt.Errorf("format must be 'markdown' or 'json', got %q", cfg.format)
	}

	logging.SetDefault("conclave-certify", version, cfg.logFormat)

	factory, ok := builtinFactories()[pluginID]
	if !ok {
		return fmt.Errorf("no plugin registered under id %q", pluginID)
	}

	var manifest *plugin.Manifest
	if cfg.manifestPath != "" {
		var err error
		manifest, err = plugin.LoadManifest(cfg.manifestPath)
		if err != nil {
			return fmt.Errorf("load manifest: %w", err)
		}
	}

	certifier := certify.New()
	report := certifier.Certify(cmd.Context(), pluginID, factory, manifest)

	var rendered []byte
	if cfg.format == "json" {
		data, err := certify.RenderJSON(report)
		if err != nil {
			return err
		}
		rendered = data
	} else {
		rendered = []byte(certify.RenderMarkdown(report))
	}

	if cfg.outputPath != "" {
		if err := os.WriteFile(cfg.outputPath, rendered, 0o600); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		cmd.Printf("report written to %s (level: %s)\n", cfg.outputPath, report.Level)
	} else {
		cmd.Println(string(rendered))
	}

	if !report.Level.Passing() {
		return errCertificationFailed
	}
	return nil
}
