// Package xdg provides XDG Base Directory paths for Guildhall.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "guildhall"

// ConfigDir returns the XDG config directory for guildhall.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DefaultConfigPath returns the conventional config file location,
// or "" if no file exists there. Used when --config is not given.
func DefaultConfigPath() string {
	path := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
