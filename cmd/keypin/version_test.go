// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVersion_FromVariable(t *testing.T) {
	oldVersion := version
	version = "1.2.3"
	defer func() { version = oldVersion }()

	assert.Equal(t, "1.2.3", resolveVersion())
}

func TestResolveVersion_FromFile(t *testing.T) {
	oldVersion := version
	version = ""
	defer func() { version = oldVersion }()

	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "VERSION"), []byte("2.3.4\n"), 0644))
	t.Chdir(tmpDir)

	assert.Equal(t, "2.3.4", resolveVersion())
}

func TestResolveVersion_Fallback(t *testing.T) {
	oldVersion := version
	version = ""
	defer func() { version = oldVersion }()

	t.Chdir(t.TempDir())

	// Test binaries carry no module version, so nothing beats the default.
	assert.Equal(t, "unknown", resolveVersion())
}

func TestVersionCmd_Execute(t *testing.T) {
	oldVersion := version
	version = "test-1.0.0"
	defer func() { version = oldVersion }()

	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "keypin version test-1.0.0\n", out)
}
