// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveImports walks doc's @import directives, parsing and merging each
// imported Jakefile into doc, per spec.md §4.11. Imports are resolved
// relative to the importing file's directory; a DFS over the import
// graph (keyed by absolute path) detects cycles during the walk rather
// than after, mirroring graph.go's BuildGraph cycle check and grounded
// on mk/graph.go's doInclude/evalScopedInclude scoped-include shape.
func ResolveImports(doc *Document) (*Document, error) {
	r := &importResolver{
		visiting: make(map[string]bool),
		visited:  make(map[string]bool),
	}
	merged, err := r.resolve(doc, filepath.Dir(doc.SourcePath), nil)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

type importResolver struct {
	visiting map[string]bool // absolute path -> on current DFS stack
	visited  map[string]bool // absolute path -> fully resolved already
}

// resolve merges doc (already parsed) with every Jakefile it @imports,
// returning a new Document with no remaining Imports of its own. stack
// is the chain of absolute paths above doc, used to report the cycle.
func (r *importResolver) resolve(doc *Document, baseDir string, stack []string) (*Document, error) {
	out := &Document{
		Variables:  append([]Variable(nil), doc.Variables...),
		Recipes:    append([]Recipe(nil), doc.Recipes...),
		Directives: append([]GlobalDirective(nil), doc.Directives...),
		PreHooks:   append([]Hook(nil), doc.PreHooks...),
		PostHooks:  append([]Hook(nil), doc.PostHooks...),
		OnErrHooks: append([]Hook(nil), doc.OnErrHooks...),
		SourcePath: doc.SourcePath,
	}

	for _, imp := range doc.Imports {
		path := imp.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, newErrAt(KindImport, imp.Pos, fmt.Sprintf("cannot resolve import path %q: %v", imp.Path, err))
		}

		if r.visiting[abs] {
			chain := append(append([]string(nil), stack...), abs)
			return nil, newErrAt(KindImport, imp.Pos, fmt.Sprintf("import cycle: %s", joinChain(chain)))
		}

		src, err := os.ReadFile(abs)
		if err != nil {
			return nil, newErrAt(KindImport, imp.Pos, fmt.Sprintf("cannot read imported file %q: %v", imp.Path, err))
		}

		sub, err := Parse(abs, string(src))
		if err != nil {
			return nil, wrapParseErr(err)
		}

		r.visiting[abs] = true
		subResolved, err := r.resolve(sub, filepath.Dir(abs), append(stack, abs))
		delete(r.visiting, abs)
		if err != nil {
			return nil, err
		}
		r.visited[abs] = true

		if imp.Namespace != "" {
			subResolved = namespaceDocument(subResolved, imp.Namespace)
		}

		out.Recipes = append(out.Recipes, subResolved.Recipes...)
		out.Variables = append(out.Variables, subResolved.Variables...)
		out.Directives = append(out.Directives, subResolved.Directives...)
		out.PreHooks = append(out.PreHooks, subResolved.PreHooks...)
		out.PostHooks = append(out.PostHooks, subResolved.PostHooks...)
		out.OnErrHooks = append(out.OnErrHooks, subResolved.OnErrHooks...)
	}

	return out, nil
}

// namespaceDocument prefixes every recipe name/alias/dependency and hook
// target in doc with "ns.", recording each recipe's original name in its
// Origin (spec.md §4.11). Variables are merged unprefixed per spec.md
// §4.11 ("merges variables ... into the current AST" names no renaming
// for variables, unlike recipe names).
func namespaceDocument(doc *Document, ns string) *Document {
	localNames := make(map[string]bool, len(doc.Recipes)*2)
	for _, r := range doc.Recipes {
		localNames[r.Name] = true
		for _, a := range r.Aliases {
			localNames[a] = true
		}
	}

	prefix := func(name string) string {
		if localNames[name] {
			return ns + "." + name
		}
		return name
	}

	out := &Document{
		Variables:  doc.Variables,
		Directives: doc.Directives,
		SourcePath: doc.SourcePath,
	}

	out.Recipes = make([]Recipe, len(doc.Recipes))
	for i, r := range doc.Recipes {
		orig := r.Name
		if r.Origin.OriginalName != "" {
			orig = r.Origin.OriginalName
		}
		r.Origin = RecipeOrigin{
			Namespace:    joinNamespace(ns, r.Origin.Namespace),
			OriginalName: orig,
		}
		r.Name = ns + "." + r.Name
		for j, a := range r.Aliases {
			r.Aliases[j] = ns + "." + a
		}
		deps := make([]string, len(r.Dependencies))
		for j, d := range r.Dependencies {
			deps[j] = prefix(d)
		}
		r.Dependencies = deps
		r.PreHooks = renameHooks(r.PreHooks, prefix)
		r.PostHooks = renameHooks(r.PostHooks, prefix)
		out.Recipes[i] = r
	}

	out.PreHooks = renameHooks(doc.PreHooks, prefix)
	out.PostHooks = renameHooks(doc.PostHooks, prefix)
	out.OnErrHooks = renameHooks(doc.OnErrHooks, prefix)

	for i, d := range out.Directives {
		if d.Target != "" {
			out.Directives[i].Target = prefix(d.Target)
		}
		if d.Kind == GlobalDefault {
			out.Directives[i].Text = prefix(strings.TrimSpace(d.Text))
		}
	}

	return out
}

func renameHooks(hooks []Hook, prefix func(string) string) []Hook {
	if hooks == nil {
		return nil
	}
	out := make([]Hook, len(hooks))
	for i, h := range hooks {
		if h.Target != "" {
			h.Target = prefix(h.Target)
		}
		out[i] = h
	}
	return out
}

func joinNamespace(outer, inner string) string {
	if inner == "" {
		return outer
	}
	return outer + "." + inner
}
