// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

// HookRunner orders and executes @pre, @post, @before NAME, @after
// NAME, and @on_error hooks across global and recipe scope, per
// spec.md §4.8/§4.9. It is preloaded with every global hook at
// RuntimeContext construction time and is reentrant only insofar as
// each hook is an independent subprocess invocation (spec.md §5).
//
// Global pre/post hooks are partitioned at load time into untargeted
// (bare @pre/@post, Target=="") and targeted (@before NAME/@after
// NAME) groups, because spec.md §4.9 fixes their relative order
// independent of how they're interleaved in the Jakefile source: a
// single combined slice ordered by parse position can't express that.
type HookRunner struct {
	idx *JakefileIndex
	ctx *RuntimeContext

	globalPreUntargeted  []Hook
	globalPreTargeted    []Hook
	globalPostUntargeted []Hook
	globalPostTargeted   []Hook
	globalOnErr          []Hook
}

// NewHookRunner preloads every global hook from idx's AST, splitting
// @pre/@post into untargeted and targeted groups.
func NewHookRunner(idx *JakefileIndex, ctx *RuntimeContext) *HookRunner {
	hr := &HookRunner{idx: idx, ctx: ctx, globalOnErr: idx.doc.OnErrHooks}
	for _, h := range idx.doc.PreHooks {
		if h.Target == "" {
			hr.globalPreUntargeted = append(hr.globalPreUntargeted, h)
		} else {
			hr.globalPreTargeted = append(hr.globalPreTargeted, h)
		}
	}
	for _, h := range idx.doc.PostHooks {
		if h.Target == "" {
			hr.globalPostUntargeted = append(hr.globalPostUntargeted, h)
		} else {
			hr.globalPostTargeted = append(hr.globalPostTargeted, h)
		}
	}
	return hr
}

// runHookLine spawns one hook's command line through the same runner
// path ordinary commands use. The line is plain shell command text
// (spec.md §3) and is never interpreted as a directive. out, when non-nil, routes
// the hook's stdout/stderr into the same sink as the recipe it runs
// alongside, so a parallel-mode flush sees one atomic block of output.
func (hr *HookRunner) runHookLine(h Hook, r *Recipe, out *recipeOutput) error {
	rs := newRecipeState(r, hr.ctx, out)
	line := hr.ctx.Env.ExpandCommand(h.Text)
	line = Expand(recipeVars(r), nil, line, hr.ctx)
	return rs.spawn(line, false)
}

func (hr *HookRunner) matches(target string, r *Recipe) bool {
	return target == "" || target == r.Name || hasString(r.Aliases, target)
}

func hasString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// RunPre runs, in the fixed order spec.md §4.9 mandates: untargeted
// global @pre hooks, then targeted @before hooks matching r, then r's
// own recipe-scoped @pre hooks.
func (hr *HookRunner) RunPre(r *Recipe, out *recipeOutput) error {
	for _, h := range hr.globalPreUntargeted {
		if err := hr.runHookLine(h, r, out); err != nil {
			return err
		}
	}
	for _, h := range hr.globalPreTargeted {
		if hr.matches(h.Target, r) {
			if err := hr.runHookLine(h, r, out); err != nil {
				return err
			}
		}
	}
	for _, h := range r.PreHooks {
		if err := hr.runHookLine(h, r, out); err != nil {
			return err
		}
	}
	return nil
}

// RunPost runs, in the fixed order spec.md §4.9 mandates: r's own
// recipe-scoped @post hooks, then targeted @after hooks matching r,
// then untargeted global @post hooks. @post always runs regardless of
// whether the recipe's commands succeeded (spec.md §4.9); failures
// here are aggregated rather than aborting the remaining hook list.
func (hr *HookRunner) RunPost(r *Recipe, out *recipeOutput) error {
	var result error
	for _, h := range r.PostHooks {
		if err := hr.runHookLine(h, r, out); err != nil {
			result = appendErr(result, err)
		}
	}
	for _, h := range hr.globalPostTargeted {
		if hr.matches(h.Target, r) {
			if err := hr.runHookLine(h, r, out); err != nil {
				result = appendErr(result, err)
			}
		}
	}
	for _, h := range hr.globalPostUntargeted {
		if err := hr.runHookLine(h, r, out); err != nil {
			result = appendErr(result, err)
		}
	}
	return result
}

// RunOnError runs every @on_error hook matching r (global untargeted,
// or targeted at r), per spec.md §4.9. Called only on recipe failure.
func (hr *HookRunner) RunOnError(r *Recipe, out *recipeOutput) error {
	var result error
	for _, h := range hr.globalOnErr {
		if hr.matches(h.Target, r) {
			if err := hr.runHookLine(h, r, out); err != nil {
				result = appendErr(result, err)
			}
		}
	}
	return result
}
