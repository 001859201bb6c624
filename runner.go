// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// recipeState is the mutable scoping state threaded through one
// recipe's command stream: the current working directory, shell
// override, pending ignore-next-failure flag, and pending timeout,
// per spec.md §4.8 step 3. One recipeState is created per recipe
// execution and is not shared across recipes.
type recipeState struct {
	r   *Recipe
	ctx *RuntimeContext
	idx *JakefileIndex

	vars       ExpandVars
	positional []string

	cwd            string
	shell          string
	pendingIgnore  bool
	pendingTimeout int // seconds; 0 = none

	stdout io.Writer
	stderr io.Writer

	cacheKeySeq int
}

// recipeOutput bundles the stdout/stderr sink for one recipe
// execution. Sequential mode leaves it nil, meaning "write straight
// to the real os.Stdout/os.Stderr"; the parallel scheduler supplies a
// buffer-backed one per node so a recipe's own commands and every
// hook that runs alongside it (spec.md §4.9) land in a single buffer
// it can flush atomically once the node completes (spec.md §5).
type recipeOutput struct {
	Stdout io.Writer
	Stderr io.Writer
}

func newRecipeState(r *Recipe, ctx *RuntimeContext, out *recipeOutput) *recipeState {
	stdout, stderr := io.Writer(os.Stdout), io.Writer(os.Stderr)
	if out != nil {
		stdout, stderr = out.Stdout, out.Stderr
	}
	return &recipeState{
		r:      r,
		ctx:    ctx,
		cwd:    ctx.WorkDir,
		shell:  r.Shell,
		vars:   ExpandVars{},
		stdout: stdout,
		stderr: stderr,
	}
}

// recipeVars builds the {{name}} lookup table for a recipe from its
// parameter defaults; RunRecipe overlays CLI-bound values afterward,
// honoring the precedence param(CLI) > environment > Jakefile variable
// from spec.md §3 (environment resolution itself happens in
// Environment.ExpandCommand, run before Expand per spec.md §4.8 step 6).
func recipeVars(r *Recipe) ExpandVars {
	vars := ExpandVars{}
	for _, p := range r.Params {
		if p.HasDefault {
			vars[p.Name] = p.Default
		}
	}
	return vars
}

// RunRecipe executes r's command body to completion, honoring every
// directive per spec.md §4.8's ordering. params binds recipe
// parameters (CLI "name=value" args); positional holds the remaining
// bare CLI args for {{$N}}/{{$@}}.
func RunRecipe(ctx *RuntimeContext, idx *JakefileIndex, r *Recipe, params map[string]string, positional []string, out *recipeOutput) error {
	if len(r.OnlyOS) > 0 && !r.OnlyOS[currentPlatformName()] {
		fmt.Fprintf(os.Stderr, "skipping %q: not applicable on %s\n", r.Name, currentPlatformName())
		return nil
	}

	if err := preflightNeeds(r); err != nil {
		return err
	}

	rs := newRecipeState(r, ctx, out)
	rs.idx = idx
	rs.positional = positional
	vars := recipeVars(r)
	for k, v := range globalVars(idx) {
		vars[k] = v
	}
	for k, v := range params {
		vars[k] = v
	}
	rs.vars = vars

	if err := ctx.Hooks.RunPre(r, out); err != nil {
		return err
	}

	err := rs.runBlock(r.Commands)
	if err != nil {
		if onErr := ctx.Hooks.RunOnError(r, out); onErr != nil {
			err = appendErr(err, onErr)
		}
	}
	if postErr := ctx.Hooks.RunPost(r, out); postErr != nil {
		err = appendErr(err, postErr)
	}
	return err
}

func globalVars(idx *JakefileIndex) ExpandVars {
	vars := ExpandVars{}
	for _, v := range idx.VariablesIter() {
		vars[v.Name] = v.Value
	}
	return vars
}

// preflightNeeds implements spec.md §4.8 step 1: fail the recipe before
// any command runs if a required external command is missing.
func preflightNeeds(r *Recipe) error {
	for _, n := range r.Needs {
		if commandExists(n.Command) {
			continue
		}
		msg := fmt.Sprintf("recipe %q requires %q but it's not installed", r.Name, n.Command)
		ee := newErr(KindMissingCommand, msg)
		ee.Hint = n.Hint
		if n.Install != "" {
			ee.Run = "jake " + n.Install
		}
		return ee
	}
	return nil
}

// runBlock executes an ordered list of commands (a recipe body, or a
// nested @if/@each/@cache block body).
func (rs *recipeState) runBlock(cmds []Command) error {
	for _, c := range cmds {
		if err := rs.execCommand(c); err != nil {
			return err
		}
	}
	return nil
}

func (rs *recipeState) execCommand(c Command) error {
	switch c.Directive {
	case DirNone:
		return rs.runShellCommand(c)
	case DirIgnore:
		rs.pendingIgnore = true
		return nil
	case DirCd:
		dir := rs.expand(c.Text)
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(rs.cwd, dir)
		}
		rs.cwd = dir
		return nil
	case DirShell:
		rs.shell = rs.expand(c.Text)
		return nil
	case DirTimeout:
		n, err := strconv.Atoi(strings.TrimSpace(c.Text))
		if err != nil {
			return newErr(KindIOError, fmt.Sprintf("invalid @timeout value %q", c.Text))
		}
		rs.pendingTimeout = n
		return nil
	case DirNeeds:
		for _, n := range c.Needs {
			if commandExists(n.Command) {
				continue
			}
			msg := fmt.Sprintf("recipe %q requires %q but it's not installed", rs.r.Name, n.Command)
			ee := newErr(KindMissingCommand, msg)
			ee.Hint = n.Hint
			if n.Install != "" {
				ee.Run = "jake " + n.Install
			}
			return ee
		}
		return nil
	case DirRequire:
		for _, name := range strings.Fields(c.Text) {
			if v, ok := rs.ctx.Env.Get(name); !ok || v == "" {
				ee := newErr(KindMissingRequiredEnv, fmt.Sprintf("Required environment variable '%s' is not set", name))
				ee.Hint = "set it in the environment or a .env file"
				return ee
			}
		}
		return nil
	case DirExport:
		applyExportDirective(c.Text, rs.ctx.Env, rs.idx)
		return nil
	case DirConfirm:
		msg := rs.expand(c.Text)
		if !rs.ctx.Confirm(msg) {
			return newErr(KindUserDeclined, "user declined confirmation")
		}
		return nil
	case DirWatch:
		// Informational only; no effect during execution (spec.md §3).
		return nil
	case DirLaunch:
		target := rs.expand(c.Text)
		return rs.spawn(launchCommand(target), false)
	case DirEach:
		return rs.execEach(c)
	case DirIf:
		return rs.execIf(c)
	case DirCache:
		return rs.execCache(c)
	default:
		return nil
	}
}

// runShellCommand implements spec.md §4.8 steps 4-9 for one plain
// command line.
func (rs *recipeState) runShellCommand(c Command) error {
	ignore := c.IgnoreErr || rs.pendingIgnore
	rs.pendingIgnore = false
	timeout := rs.pendingTimeout
	rs.pendingTimeout = 0

	line := rs.ctx.Env.ExpandCommand(c.Text)
	line = rs.expand(line)

	silent := c.Silent || rs.r.Quiet || (!rs.ctx.Verbose && false)
	if !silent {
		fmt.Fprintf(rs.stderr, "%s %s\n", rs.ctx.Theme.EchoPrefix(), line)
	}

	if rs.ctx.DryRun {
		fmt.Fprintf(rs.stderr, "%s %s\n", rs.ctx.Theme.DryRunPrefix(), line)
		return nil
	}

	err := rs.spawnTimeout(line, timeout)
	if err != nil {
		if ignore {
			return nil
		}
		if timeout > 0 && isTimeoutErr(err) {
			ee := newErr(KindTimeout, fmt.Sprintf("command killed after %ds timeout", timeout))
			ee.Cause = err
			return ee
		}
		ee := newErr(KindCommandFailed, err.Error())
		ee.Cause = err
		return ee
	}
	return nil
}

func (rs *recipeState) expand(line string) string {
	return Expand(rs.vars, rs.positional, line, rs.ctx)
}

// spawn runs line through the current shell with no timeout.
func (rs *recipeState) spawn(line string, quiet bool) error {
	return rs.spawnTimeout(line, 0)
}

type timeoutError struct{ seconds int }

func (e *timeoutError) Error() string { return fmt.Sprintf("timed out after %ds", e.seconds) }

func isTimeoutErr(err error) bool {
	_, ok := err.(*timeoutError)
	return ok
}

// spawnTimeout runs line through the configured shell (default
// "/bin/sh -c", or the platform/Windows equivalent) with the working
// directory and merged environment, killing it with SIGKILL after
// timeoutSeconds if nonzero.
func (rs *recipeState) spawnTimeout(line string, timeoutSeconds int) error {
	name, args := rs.shellCommand(line)
	cmd := exec.Command(name, args...)
	cmd.Dir = rs.cwd
	cmd.Env = rs.ctx.Env.Snapshot()
	cmd.Stdout = rs.stdout
	cmd.Stderr = rs.stderr

	if timeoutSeconds <= 0 {
		return cmd.Run()
	}

	if err := cmd.Start(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(time.Duration(timeoutSeconds) * time.Second):
		_ = cmd.Process.Signal(syscall.SIGKILL)
		<-done
		return &timeoutError{seconds: timeoutSeconds}
	}
}

func (rs *recipeState) shellCommand(line string) (string, []string) {
	if rs.shell != "" {
		fields := strings.Fields(rs.shell)
		if len(fields) > 0 {
			return fields[0], append(fields[1:], line)
		}
	}
	if currentPlatformName() == "windows" {
		return "cmd", []string{"/C", line}
	}
	return "/bin/sh", []string{"-c", line}
}

// execEach implements @each: resolve the item list, then re-run the
// body once per item with {{item}} bound, per spec.md §4.8.
func (rs *recipeState) execEach(c Command) error {
	items, err := rs.resolveEachItems(c.Text)
	if err != nil {
		return err
	}
	saved := rs.vars["item"]
	hadSaved := false
	if _, ok := rs.vars["item"]; ok {
		hadSaved = true
	}
	for _, item := range items {
		rs.vars["item"] = item
		if err := rs.runBlock(c.Children); err != nil {
			return err
		}
	}
	if hadSaved {
		rs.vars["item"] = saved
	} else {
		delete(rs.vars, "item")
	}
	return nil
}

// resolveEachItems implements the three item-source rules from
// spec.md §4.8: literal tokens, glob expansion, and variable expansion
// (which may itself yield a whitespace-separated list).
func (rs *recipeState) resolveEachItems(arg string) ([]string, error) {
	arg = strings.TrimSpace(arg)
	var items []string
	for _, tok := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
		if tok == "" {
			continue
		}
		switch {
		case strings.ContainsAny(tok, "*?["):
			matches, err := ExpandGlob(rs.cwd, tok)
			if err != nil {
				return nil, err
			}
			items = append(items, matches...)
		case strings.HasPrefix(tok, "{{") && strings.HasSuffix(tok, "}}"):
			expanded := rs.expand(tok)
			items = append(items, strings.Fields(expanded)...)
		default:
			if v, ok := rs.vars[tok]; ok {
				items = append(items, strings.Fields(v)...)
			} else {
				items = append(items, tok)
			}
		}
	}
	return items, nil
}

// execIf implements @if/@elif/@else: evaluate arms in order, running
// exactly one matching arm's body (or none).
func (rs *recipeState) execIf(c Command) error {
	if EvalCondition(c.Text, rs.vars, rs.positional, rs.ctx) {
		return rs.runBlock(c.Children)
	}
	for _, arm := range c.ElifArms {
		if EvalCondition(arm.Condition, rs.vars, rs.positional, rs.ctx) {
			return rs.runBlock(arm.Body)
		}
	}
	if c.ElseBranch != nil {
		return rs.runBlock(c.ElseBranch)
	}
	return nil
}

// execCache implements @cache: compute the joint input hash, compare
// against the stored value for this recipe+position, and skip the
// body if unchanged, per spec.md §4.8.
func (rs *recipeState) execCache(c Command) error {
	rs.cacheKeySeq++
	key := fmt.Sprintf("%s#%d", rs.r.Name, rs.cacheKeySeq)
	patterns := splitDepList(c.Text)

	inputs, err := ExpandGlobs(rs.cwd, patterns)
	if err != nil {
		return err
	}
	if len(patterns) > 0 && len(inputs) == 0 {
		inputs = patterns
	}
	for i, in := range inputs {
		if !filepath.IsAbs(in) {
			inputs[i] = filepath.Join(rs.cwd, in)
		}
	}

	stale, err := rs.ctx.Cache.IsStaleCacheDirective(key, inputs)
	if err != nil {
		return err
	}

	if rs.ctx.DryRun {
		if !stale {
			fmt.Fprintf(rs.stderr, "%s @cache: skipping (unchanged)\n", rs.ctx.Theme.EchoPrefix())
			return nil
		}
		fmt.Fprintf(rs.stderr, "%s @cache: would run\n", rs.ctx.Theme.EchoPrefix())
		return rs.runBlock(c.Children)
	}

	if !stale {
		return nil
	}
	if err := rs.runBlock(c.Children); err != nil {
		return err
	}
	return rs.ctx.Cache.Record(key, inputs)
}
