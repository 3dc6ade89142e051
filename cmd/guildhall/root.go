// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/guildhall/guildhall/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// resolveConfigFile returns the --config value, falling back to the
// XDG config location when the flag is unset.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return xdg.DefaultConfigPath()
}

// NewRootCmd creates the root command for the Guildhall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guildhall",
		Short: "Guildhall - guild authorization service",
		Long: `Guildhall resolves effective permissions for users across guilds
and channels: role unions, administrator saturation, owner bypass,
ban short-circuits, and per-channel overrides.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewFlagsCmd())

	return cmd
}
