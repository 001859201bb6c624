// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentLoadDotenvAndGet(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.LoadDotenv("FOO=bar\n"))
	v, ok := env.Get("FOO")
	require.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestEnvironmentSetKVOverridesDotenv(t *testing.T) {
	env := NewEnvironment()
	require.NoError(t, env.LoadDotenv("FOO=bar\n"))
	env.SetKV("FOO", "baz")
	v, _ := env.Get("FOO")
	assert.Equal(t, "baz", v)
}

func TestEnvironmentExportNoopsOnUnknownVariable(t *testing.T) {
	env := NewEnvironment()
	idx, err := BuildIndex(&Document{})
	require.NoError(t, err)
	ok := env.Export("UNKNOWN", idx)
	assert.False(t, ok)
	_, present := env.Get("UNKNOWN")
	assert.False(t, present)
}

func TestEnvironmentExportKnownJakefileVariable(t *testing.T) {
	env := NewEnvironment()
	idx, err := BuildIndex(&Document{Variables: []Variable{{Name: "VERSION", Value: "1.2.3"}}})
	require.NoError(t, err)
	ok := env.Export("VERSION", idx)
	assert.True(t, ok)
	v, present := env.Get("VERSION")
	require.True(t, present)
	assert.Equal(t, "1.2.3", v)
}

func TestEnvironmentExpandCommandSubstitutesAndEscapes(t *testing.T) {
	env := NewEnvironment()
	env.SetKV("NAME", "jake")
	out := env.ExpandCommand(`echo ${NAME} costs \$5`)
	assert.Equal(t, "echo jake costs $5", out)
}

func TestEnvironmentExpandCommandUnknownVarIsEmpty(t *testing.T) {
	env := NewEnvironment()
	out := env.ExpandCommand("echo $MISSING!")
	assert.Equal(t, "echo !", out)
}

func TestEnvironmentSnapshotIncludesLocalOverrides(t *testing.T) {
	env := NewEnvironment()
	env.SetKV("SPECIAL_JAKE_TEST_VAR", "1")
	snap := env.Snapshot()
	found := false
	for _, kv := range snap {
		if kv == "SPECIAL_JAKE_TEST_VAR=1" {
			found = true
		}
	}
	assert.True(t, found)
}
