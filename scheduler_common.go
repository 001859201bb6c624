// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import "path/filepath"

// cacheKeyFor is the CacheEntry key for a file recipe's staleness
// check, per spec.md §3: "key = target_name + joined(input_paths)".
func cacheKeyFor(r *Recipe, inputs []string) string {
	key := r.Name
	for _, in := range inputs {
		key += "\x00" + in
	}
	return key
}

// runNode executes a single graph node's recipe, honoring file-recipe
// staleness (spec.md §4.9): a stale check against the cache decides
// whether commands run at all. params/positional carry the CLI
// parameter bindings for the top-level target; dependency recipes
// reached only transitively run with no parameter bindings of their
// own (spec.md doesn't define parameter propagation across recipes).
// out routes the node's output; nil means write straight to the real
// stdout/stderr (RunSequential's case).
func runNode(ctx *RuntimeContext, idx *JakefileIndex, n *GraphNode, params map[string]string, positional []string, out *recipeOutput) error {
	r := n.Recipe

	if r.Kind != RecipeFile {
		return RunRecipe(ctx, idx, r, params, positional, out)
	}

	inputs, err := ExpandGlobs(ctx.WorkDir, r.FileDeps)
	if err != nil {
		return err
	}
	key := cacheKeyFor(r, inputs)

	// Output and inputs are relative to the Jakefile directory, where the
	// recipe's commands run.
	output := r.Output
	if !filepath.IsAbs(output) {
		output = filepath.Join(ctx.WorkDir, output)
	}
	for i, in := range inputs {
		if !filepath.IsAbs(in) {
			inputs[i] = filepath.Join(ctx.WorkDir, in)
		}
	}

	stale, err := ctx.Cache.IsStaleFileRecipe(key, output, inputs)
	if err != nil {
		return err
	}
	if !stale {
		ctx.Log.Debugf("%s is up to date", r.Name)
		return nil
	}

	if err := RunRecipe(ctx, idx, r, params, positional, out); err != nil {
		return err
	}
	return ctx.Cache.Record(key, inputs)
}
