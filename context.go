// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// RuntimeContext owns the services shared by every execution mode:
// the content-hash cache, the merged environment, the hook runner, the
// interactive prompt, color/theme settings, and run flags. It is
// configured once per Jakefile load and reused by sequential, parallel,
// and watch modes (spec.md §3).
type RuntimeContext struct {
	WorkDir string
	Env     *Environment
	Cache   *HashCache
	Theme   *Theme
	Hooks   *HookRunner
	Log     *logrus.Logger

	DryRun   bool
	Verbose  bool
	AutoYes  bool
	Watching bool
	Jobs     int

	cacheSaveOnce sync.Once
}

// NewRuntimeContext builds the RuntimeContext for a loaded Jakefile.
// workDir is the Jakefile's own directory; cachePath is usually
// filepath.Join(workDir, ".jake", "cache").
func NewRuntimeContext(workDir, cachePath string, idx *JakefileIndex, dryRun, verbose, autoYes, watching bool, jobs int) (*RuntimeContext, error) {
	env := NewEnvironment()
	for _, d := range idx.Directives(GlobalDotenv) {
		path := d.Text
		if !isAbsPathLike(path) {
			path = workDir + string(os.PathSeparator) + path
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue // missing .env is not fatal; @require catches missing vars later
		}
		if err := env.LoadDotenv(string(data)); err != nil {
			return nil, err
		}
	}
	for _, d := range idx.Directives(GlobalExport) {
		applyExportDirective(d.Text, env, idx)
	}

	cache, err := LoadHashCache(cachePath)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	rc := &RuntimeContext{
		WorkDir:  workDir,
		Env:      env,
		Cache:    cache,
		Theme:    NewTheme(os.Stderr),
		Log:      log,
		DryRun:   dryRun,
		Verbose:  verbose,
		AutoYes:  autoYes,
		Watching: watching,
		Jobs:     jobs,
	}
	rc.Hooks = NewHookRunner(idx, rc)
	return rc, nil
}

func isAbsPathLike(p string) bool {
	return len(p) > 0 && (p[0] == '/' || p[0] == '\\' || (len(p) > 1 && p[1] == ':'))
}

// applyExportDirective implements "@export K=V", "@export K V", and
// bare "@export K" (spec.md §4.4).
func applyExportDirective(text string, env *Environment, idx *JakefileIndex) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if i := strings.IndexByte(text, '='); i >= 0 {
		env.SetKV(strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+1:]))
		return
	}
	fields := strings.Fields(text)
	if len(fields) >= 2 {
		env.SetKV(fields[0], strings.Join(fields[1:], " "))
		return
	}
	env.Export(fields[0], idx)
}

// Persist saves the content-hash cache exactly once per process
// lifetime, per spec.md §3's invariant. Safe to call more than once;
// only the first call does work.
func (rc *RuntimeContext) Persist() error {
	var err error
	rc.cacheSaveOnce.Do(func() {
		err = rc.Cache.Save()
	})
	return err
}

// Confirm implements @confirm's prompt, per spec.md §4.8: prints
// "? message [y/N]" to stderr, reads a line from stdin, accepts
// y/Y/yes/YES as true. Auto-yes skips the prompt; dry-run prints
// "Would prompt: ..." and returns true without reading stdin.
func (rc *RuntimeContext) Confirm(message string) bool {
	if rc.DryRun {
		fmt.Fprintf(os.Stderr, "Would prompt: %s\n", message)
		return true
	}
	if rc.AutoYes {
		return true
	}
	fmt.Fprintf(os.Stderr, "? %s [y/N] ", message)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	switch line {
	case "y", "Y", "yes", "YES":
		return true
	default:
		return false
	}
}
