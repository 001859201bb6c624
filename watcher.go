// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
)

// WatchOptions configures Watch's poll/debounce cadence, per spec.md §4.10.
type WatchOptions struct {
	PollInterval time.Duration // default 100ms
	Debounce     time.Duration // default 300ms
}

func (o WatchOptions) withDefaults() WatchOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 100 * time.Millisecond
	}
	if o.Debounce <= 0 {
		o.Debounce = 300 * time.Millisecond
	}
	return o
}

// Watch re-drives the scheduler for target each time a watched file
// changes, per spec.md §4.10. It preserves idx/ctx across runs so the
// AST, index, and environment survive between builds. It returns when
// the process receives SIGINT/SIGTERM, persisting the cache first.
func Watch(ctx *RuntimeContext, idx *JakefileIndex, target string, jobs int, opts WatchOptions) error {
	opts = opts.withDefaults()

	r := idx.GetRecipe(target)
	if r == nil {
		return newErr(KindRecipeNotFound, fmt.Sprintf("recipe %q not found", target))
	}

	watched, err := watchedPaths(ctx, idx, r)
	if err != nil {
		return err
	}
	for i, p := range watched {
		if !filepath.IsAbs(p) {
			watched[i] = filepath.Join(ctx.WorkDir, p)
		}
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	ctx.Log.Infof("watching %d path(s), poll=%s debounce=%s", len(watched), units.HumanDuration(opts.PollInterval), units.HumanDuration(opts.Debounce))
	fmt.Fprintln(os.Stdout, "watching for changes (ctrl+c to stop)")

	if err := watchBuild(ctx, idx, target, jobs); err != nil {
		ctx.Log.WithError(err).Warn("initial watch build failed")
	}

	prev, err := snapshotHashes(ctx, watched)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(opts.PollInterval)
	defer ticker.Stop()

	var pendingSince time.Time
	sessionID := uuid.New().String()
	ctx.Log.Debugf("watch session %s started", sessionID)

	for {
		select {
		case <-sigc:
			return ctx.Persist()
		case <-ticker.C:
			cur, err := snapshotHashes(ctx, watched)
			if err != nil {
				ctx.Log.WithError(err).Warn("watch poll failed")
				continue
			}
			changed := hashesDiffer(prev, cur)
			if !changed {
				pendingSince = time.Time{}
				continue
			}
			if pendingSince.IsZero() {
				pendingSince = time.Now()
				continue
			}
			if time.Since(pendingSince) < opts.Debounce {
				continue
			}

			prev = cur
			pendingSince = time.Time{}
			invalidate(ctx, watched)

			fmt.Fprintln(os.Stdout, "change detected, rebuilding")
			if err := watchBuild(ctx, idx, target, jobs); err != nil {
				ctx.Log.WithError(err).Warn("watch rebuild failed")
			}
			fmt.Fprintln(os.Stdout, "watching for changes (ctrl+c to stop)")
		}
	}
}

func watchBuild(ctx *RuntimeContext, idx *JakefileIndex, target string, jobs int) error {
	g, err := BuildGraph(idx, target)
	if err != nil {
		return err
	}
	if jobs > 0 {
		return RunParallel(ctx, idx, g, jobs, nil, nil)
	}
	return RunSequential(ctx, idx, g, nil, nil)
}

// watchedPaths resolves the union of file_deps for target and every
// recipe it transitively depends on, plus every @watch pattern found
// in their command bodies, per spec.md §4.10.
func watchedPaths(ctx *RuntimeContext, idx *JakefileIndex, target *Recipe) ([]string, error) {
	seen := make(map[string]bool)
	var patterns []string
	var visit func(r *Recipe)
	visited := make(map[string]bool)
	visit = func(r *Recipe) {
		if visited[r.Name] {
			return
		}
		visited[r.Name] = true
		for _, fd := range r.FileDeps {
			if !seen[fd] {
				seen[fd] = true
				patterns = append(patterns, fd)
			}
		}
		collectWatchDirectives(r.Commands, &patterns, seen)
		for _, dep := range r.Dependencies {
			if dr := idx.GetRecipe(dep); dr != nil {
				visit(dr)
			}
		}
	}
	visit(target)

	return ExpandGlobs(ctx.WorkDir, patterns)
}

func collectWatchDirectives(cmds []Command, patterns *[]string, seen map[string]bool) {
	for _, c := range cmds {
		if c.Directive == DirWatch {
			if !seen[c.Text] {
				seen[c.Text] = true
				*patterns = append(*patterns, c.Text)
			}
		}
		collectWatchDirectives(c.Children, patterns, seen)
		if c.Directive == DirIf {
			collectWatchDirectives(c.ElseBranch, patterns, seen)
			for _, arm := range c.ElifArms {
				collectWatchDirectives(arm.Body, patterns, seen)
			}
		}
	}
}

func snapshotHashes(ctx *RuntimeContext, paths []string) (map[string]string, error) {
	out := make(map[string]string, len(paths))
	for _, p := range paths {
		h, err := ctx.Cache.HashFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				out[p] = ""
				continue
			}
			return nil, err
		}
		out[p] = h
	}
	return out, nil
}

func hashesDiffer(a, b map[string]string) bool {
	if len(a) != len(b) {
		return true
	}
	for k, v := range a {
		if b[k] != v {
			return true
		}
	}
	return false
}

func invalidate(ctx *RuntimeContext, paths []string) {
	ctx.Cache.Invalidate(paths)
}
