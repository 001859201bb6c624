// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"fmt"
	"strings"
)

// JakefileIndex is the derived, O(1)-lookup structure built once after
// Parse (and after imports are merged). Keys are borrowed from the
// Document's slices rather than copied (spec.md §9, arena + index).
type JakefileIndex struct {
	doc *Document

	recipesByName map[string]*Recipe
	variables     map[string]string
	directives    map[GlobalDirectiveKind][]*GlobalDirective
	defaultRecipe *Recipe
}

// IndexError reports a structural collision discovered while building
// the index: duplicate recipe names/aliases across the merged AST.
type IndexError struct {
	Message string
}

func (e *IndexError) Error() string { return e.Message }

// BuildIndex constructs a JakefileIndex over doc. doc must already have
// imports merged (see import.go); BuildIndex itself performs no merging.
func BuildIndex(doc *Document) (*JakefileIndex, error) {
	idx := &JakefileIndex{
		doc:           doc,
		recipesByName: make(map[string]*Recipe, len(doc.Recipes)*2),
		variables:     make(map[string]string, len(doc.Variables)),
		directives:    make(map[GlobalDirectiveKind][]*GlobalDirective),
	}

	for i := range doc.Recipes {
		r := &doc.Recipes[i]
		names := make([]string, 0, 1+len(r.Aliases))
		names = append(names, r.Name)
		names = append(names, r.Aliases...)
		if r.Origin.Namespace != "" {
			if ns := r.Origin.Namespace + "." + r.Origin.OriginalName; ns != r.Name {
				names = append(names, ns)
			}
		}
		for _, n := range names {
			if _, dup := idx.recipesByName[n]; dup {
				return nil, &IndexError{Message: fmt.Sprintf("duplicate recipe name or alias %q", n)}
			}
			idx.recipesByName[n] = r
		}
		if r.IsDefault {
			if idx.defaultRecipe != nil {
				return nil, &IndexError{Message: fmt.Sprintf("multiple default recipes: %q and %q", idx.defaultRecipe.Name, r.Name)}
			}
			idx.defaultRecipe = r
		}
	}
	for i := range doc.Directives {
		d := &doc.Directives[i]
		if d.Kind != GlobalDefault {
			continue
		}
		name := strings.TrimSpace(d.Text)
		r, ok := idx.recipesByName[name]
		if !ok {
			return nil, &IndexError{Message: fmt.Sprintf("@default names unknown recipe %q", name)}
		}
		r.IsDefault = true
		idx.defaultRecipe = r
	}

	if idx.defaultRecipe == nil && len(doc.Recipes) > 0 {
		idx.defaultRecipe = &doc.Recipes[0]
	}

	for _, v := range doc.Variables {
		idx.variables[v.Name] = v.Value
	}

	for i := range doc.Directives {
		d := &doc.Directives[i]
		idx.directives[d.Kind] = append(idx.directives[d.Kind], d)
	}

	return idx, nil
}

// GetRecipe returns the recipe registered under name (canonical name,
// alias, or "namespace.name"), or nil if none matches.
func (idx *JakefileIndex) GetRecipe(name string) *Recipe {
	return idx.recipesByName[name]
}

// GetVariable returns the Jakefile-level value for name and whether it
// was present.
func (idx *JakefileIndex) GetVariable(name string) (string, bool) {
	v, ok := idx.variables[name]
	return v, ok
}

// DefaultRecipe returns the @default-marked recipe, falling back to the
// first recipe in source order; nil if the Jakefile has no recipes.
func (idx *JakefileIndex) DefaultRecipe() *Recipe { return idx.defaultRecipe }

// Directives returns every global directive of the given kind, in
// source order.
func (idx *JakefileIndex) Directives(kind GlobalDirectiveKind) []*GlobalDirective {
	return idx.directives[kind]
}

// VariablesIter returns variable bindings in deterministic (source)
// order, for display or expansion-engine iteration.
func (idx *JakefileIndex) VariablesIter() []Variable {
	return idx.doc.Variables
}

// Recipes returns every recipe in source order.
func (idx *JakefileIndex) Recipes() []Recipe { return idx.doc.Recipes }
