// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIndexRecipeLookupByNameAliasAndNamespace(t *testing.T) {
	doc := &Document{
		Recipes: []Recipe{
			{Name: "build", Aliases: []string{"b"}},
			{Name: "lib.test", Origin: RecipeOrigin{Namespace: "lib", OriginalName: "test"}},
		},
	}
	idx, err := BuildIndex(doc)
	require.NoError(t, err)

	assert.NotNil(t, idx.GetRecipe("build"))
	assert.NotNil(t, idx.GetRecipe("b"))
	assert.NotNil(t, idx.GetRecipe("lib.test"))
	assert.Nil(t, idx.GetRecipe("nope"))
}

func TestBuildIndexDuplicateNameIsError(t *testing.T) {
	doc := &Document{
		Recipes: []Recipe{
			{Name: "build"},
			{Name: "other", Aliases: []string{"build"}},
		},
	}
	_, err := BuildIndex(doc)
	require.Error(t, err)
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
}

func TestBuildIndexDefaultFallsBackToFirstRecipe(t *testing.T) {
	doc := &Document{
		Recipes: []Recipe{{Name: "first"}, {Name: "second"}},
	}
	idx, err := BuildIndex(doc)
	require.NoError(t, err)
	require.NotNil(t, idx.DefaultRecipe())
	assert.Equal(t, "first", idx.DefaultRecipe().Name)
}

func TestBuildIndexExplicitDefault(t *testing.T) {
	doc := &Document{
		Recipes: []Recipe{{Name: "first"}, {Name: "second"}},
		Directives: []GlobalDirective{
			{Kind: GlobalDefault, Text: "second"},
		},
	}
	idx, err := BuildIndex(doc)
	require.NoError(t, err)
	require.NotNil(t, idx.DefaultRecipe())
	assert.Equal(t, "second", idx.DefaultRecipe().Name)
}

func TestBuildIndexDefaultNamingUnknownRecipeIsError(t *testing.T) {
	doc := &Document{
		Recipes: []Recipe{{Name: "first"}},
		Directives: []GlobalDirective{
			{Kind: GlobalDefault, Text: "missing"},
		},
	}
	_, err := BuildIndex(doc)
	require.Error(t, err)
}

func TestBuildIndexVariablesAndDirectivesByKind(t *testing.T) {
	doc := &Document{
		Variables: []Variable{{Name: "X", Value: "1"}},
		Directives: []GlobalDirective{
			{Kind: GlobalRequire, Text: "FOO"},
			{Kind: GlobalRequire, Text: "BAR"},
		},
	}
	idx, err := BuildIndex(doc)
	require.NoError(t, err)

	v, ok := idx.GetVariable("X")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = idx.GetVariable("Y")
	assert.False(t, ok)

	assert.Len(t, idx.Directives(GlobalRequire), 2)
	assert.Empty(t, idx.Directives(GlobalExport))
}
