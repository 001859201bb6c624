// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseFile(t *testing.T, path, src string) *Document {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	doc, err := Parse(path, src)
	require.NoError(t, err)
	doc.SourcePath = path
	return doc
}

func TestResolveImportsNamespacesRecipeNamesAndAliasesAndDeps(t *testing.T) {
	dir := t.TempDir()
	libPath := filepath.Join(dir, "lib.jake")
	mustParseFile(t, libPath, "task build | b:\n    echo lib build\ntask test: build\n    echo lib test\n")

	doc := mustParseFile(t, filepath.Join(dir, "Jakefile"),
		"@import \"lib.jake\" as lib\n")

	merged, err := ResolveImports(doc)
	require.NoError(t, err)
	require.Len(t, merged.Recipes, 2)

	idx, err := BuildIndex(merged)
	require.NoError(t, err)

	build := idx.GetRecipe("lib.build")
	require.NotNil(t, build)
	assert.Contains(t, build.Aliases, "lib.b")

	test := idx.GetRecipe("lib.test")
	require.NotNil(t, test)
	assert.Equal(t, []string{"lib.build"}, test.Dependencies)
}

func TestResolveImportsMergesVariablesUnprefixed(t *testing.T) {
	dir := t.TempDir()
	mustParseFile(t, filepath.Join(dir, "lib.jake"), "VERSION = 1.0\ntask build:\n    echo v{{VERSION}}\n")
	doc := mustParseFile(t, filepath.Join(dir, "Jakefile"), "@import \"lib.jake\" as lib\n")

	merged, err := ResolveImports(doc)
	require.NoError(t, err)
	require.Len(t, merged.Variables, 1)
	assert.Equal(t, "VERSION", merged.Variables[0].Name)
}

func TestResolveImportsNestedNamespaceComposition(t *testing.T) {
	dir := t.TempDir()
	mustParseFile(t, filepath.Join(dir, "inner.jake"), "task build:\n    echo inner build\n")
	mustParseFile(t, filepath.Join(dir, "outer.jake"), "@import \"inner.jake\" as inner\n")
	doc := mustParseFile(t, filepath.Join(dir, "Jakefile"), "@import \"outer.jake\" as outer\n")

	merged, err := ResolveImports(doc)
	require.NoError(t, err)
	require.Len(t, merged.Recipes, 1)
	r := merged.Recipes[0]
	assert.Equal(t, "outer.inner.build", r.Name)
	assert.Equal(t, "outer.inner", r.Origin.Namespace)
	assert.Equal(t, "build", r.Origin.OriginalName)
}

func TestResolveImportsCycleIsDetected(t *testing.T) {
	dir := t.TempDir()
	mustParseFile(t, filepath.Join(dir, "a.jake"), "@import \"b.jake\"\ntask a:\n    echo a\n")
	mustParseFile(t, filepath.Join(dir, "b.jake"), "@import \"a.jake\"\ntask b:\n    echo b\n")
	doc := mustParseFile(t, filepath.Join(dir, "Jakefile"), "@import \"a.jake\"\n")

	_, err := ResolveImports(doc)
	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindImport, ee.Kind)
}

func TestResolveImportsWithoutNamespaceMergesRecipesUnprefixed(t *testing.T) {
	dir := t.TempDir()
	mustParseFile(t, filepath.Join(dir, "lib.jake"), "task shared:\n    echo shared\n")
	doc := mustParseFile(t, filepath.Join(dir, "Jakefile"), "@import \"lib.jake\"\n")

	merged, err := ResolveImports(doc)
	require.NoError(t, err)
	require.Len(t, merged.Recipes, 1)
	assert.Equal(t, "shared", merged.Recipes[0].Name)
}
