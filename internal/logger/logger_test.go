// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"":        log.InfoLevel,
		"DEBUG":   log.DebugLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestConfigureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monsoon.log")
	require.NoError(t, Configure("debug", path))
	t.Cleanup(func() { _ = Configure("info", "") })

	Debug("registered command", "command", "tp")
	New("dispatch").Info("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "registered command")
	assert.Contains(t, string(data), "dispatch")
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("warn", ""))
	SetOutput(&buf)
	t.Cleanup(func() { _ = Configure("info", "") })

	Info("hidden")
	Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
