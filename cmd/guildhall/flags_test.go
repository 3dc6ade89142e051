// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guildhall Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsCommand_ListsAllVocabularies(t *testing.T) {
	cmd := NewFlagsCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Administrator")
	assert.Contains(t, output, "SendMessages")
	assert.Contains(t, output, "Connect")
}

func TestFlagsCommand_SingleVocabulary(t *testing.T) {
	cmd := NewFlagsCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--vocab", "text"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "SendMessages")
	assert.NotContains(t, output, "Administrator")
	assert.NotContains(t, output, "Speak")
}

func TestFlagsCommand_GlobFilter(t *testing.T) {
	cmd := NewFlagsCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--vocab", "guild", "--match", "Manage*"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "ManageGuild")
	assert.Contains(t, output, "ManageChannels")
	assert.NotContains(t, output, "Administrator")
}

func TestFlagsCommand_InvalidVocabulary(t *testing.T) {
	cmd := NewFlagsCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--vocab", "video"})

	err := cmd.Execute()
	require.Error(t, err)
}
