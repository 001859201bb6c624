// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestListRecipesPrintsDefaultMarkerAndDescription(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Jakefile")
	require.NoError(t, os.WriteFile(path, []byte(
		"@desc \"Builds the app\"\ntask build:\n    echo hi\ntask test:\n    echo test\n"), 0o644))

	var err error
	out := captureStdout(t, func() {
		err = listRecipes(path)
	})
	require.NoError(t, err)
	assert.Contains(t, out, "build")
	assert.Contains(t, out, "Builds the app")
	assert.Contains(t, out, "test")
}

func TestListRecipesReturnsErrorOnMissingFile(t *testing.T) {
	err := listRecipes(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}
