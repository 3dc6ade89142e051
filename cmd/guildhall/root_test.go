// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	subcommands := []string{"serve", "migrate", "check", "flags"}
	for _, sub := range subcommands {
		assert.Contains(t, output, sub, "Help missing %q command", sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantFlag string
	}{
		{
			name:     "config flag",
			args:     []string{"--config", "/path/to/config.yaml", "--help"},
			wantFlag: "/path/to/config.yaml",
		},
		{
			name:     "config flag with equals",
			args:     []string{"--config=/etc/guildhall.yaml", "--help"},
			wantFlag: "/etc/guildhall.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset global
			configFile = ""

			cmd := NewRootCmd()
			cmd.SetOut(new(bytes.Buffer))
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			assert.Equal(t, tt.wantFlag, configFile)
		})
	}
}

func TestResolveConfigFile(t *testing.T) {
	t.Run("explicit flag wins", func(t *testing.T) {
		configFile = "/explicit/config.yaml"
		t.Cleanup(func() { configFile = "" })
		assert.Equal(t, "/explicit/config.yaml", resolveConfigFile())
	})

	t.Run("falls back to xdg location", func(t *testing.T) {
		configFile = ""
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		assert.Empty(t, resolveConfigFile(), "no file at the xdg location")
	})

	t.Run("finds file at xdg location", func(t *testing.T) {
		configFile = ""
		base := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", base)
		dir := filepath.Join(base, "guildhall")
		require.NoError(t, os.MkdirAll(dir, 0o700))
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("log_format: text\n"), 0o600))

		assert.Equal(t, path, resolveConfigFile())
	})
}

func TestMigrateCommand_InvalidStepsArgument(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate", "steps", "notanumber"})

	err := cmd.Execute()
	require.Error(t, err)
}

func TestCheckCommand_RequiredFlags(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"check"})

	err := cmd.Execute()
	require.Error(t, err, "check without --user and --guild should fail")
}
