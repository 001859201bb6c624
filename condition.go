// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"runtime"
	"strings"
)

// currentPlatformName maps runtime.GOOS to the name set spec.md §4.7
// uses: {linux, macos, windows, freebsd, openbsd, netbsd, dragonfly}.
func currentPlatformName() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	default:
		return runtime.GOOS
	}
}

// EvalCondition evaluates a single @if/@elif expression against ctx,
// after variable expansion, per spec.md §4.7. The expression is one of
// the condition functions from §4.5's table: env(X), exists(P),
// command(N), eq(a,b), neq(a,b), is_watching, is_dry_run, is_verbose,
// is_macos, is_linux, is_windows, is_unix, is_platform(name).
func EvalCondition(expr string, vars ExpandVars, args []string, ctx *RuntimeContext) bool {
	expr = strings.TrimSpace(expr)
	expr = Expand(vars, args, expr, ctx)

	if paren := strings.IndexByte(expr, '('); paren > 0 && strings.HasSuffix(expr, ")") {
		fn := strings.TrimSpace(expr[:paren])
		arg := strings.TrimSpace(expr[paren+1 : len(expr)-1])
		result, ok := callBuiltin(fn, arg, ctx)
		if !ok {
			return false
		}
		return result == "true"
	}

	switch expr {
	case "is_watching":
		return ctx != nil && ctx.Watching
	case "is_dry_run":
		return ctx != nil && ctx.DryRun
	case "is_verbose":
		return ctx != nil && ctx.Verbose
	case "is_macos":
		return currentPlatformName() == "macos"
	case "is_linux":
		return currentPlatformName() == "linux"
	case "is_windows":
		return currentPlatformName() == "windows"
	case "is_unix":
		return currentPlatformName() != "windows"
	default:
		return false
	}
}
