// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SIDHE Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the conclave CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conclave",
		Short: "SIDHE plugin orchestrator",
		Long: `Conclave is the SIDHE plugin communication and certification layer.
It runs the message bus and plugin registry, and certifies plugin
implementations against the compliance probe suite.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCertifyCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
