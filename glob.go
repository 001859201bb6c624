// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// ExpandGlob performs deterministic file enumeration against root for
// pattern, per spec.md §4.6. Uses github.com/gobwas/glob for the
// pattern-matching core (it natively supports "**" as an arbitrary-depth
// wildcard, which stdlib filepath.Glob does not); this package still
// owns the tree walk, rooting, sorting, and de-duplication since
// gobwas/glob itself has no filesystem awareness.
func ExpandGlob(root, pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		// Not actually a glob: treat as a literal path reference.
		full := pattern
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, pattern)
		}
		if _, err := os.Stat(full); err == nil {
			return []string{pattern}, nil
		}
		return nil, nil
	}

	walkRoot := root
	patt := pattern
	if filepath.IsAbs(pattern) {
		walkRoot = "/"
		patt = strings.TrimPrefix(pattern, "/")
	}

	g, err := glob.Compile(patt, '/')
	if err != nil {
		return nil, err
	}

	var matches []string
	err = filepath.Walk(walkRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if path == walkRoot {
			return nil
		}
		rel, err := filepath.Rel(walkRoot, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if g.Match(rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(matches)
	matches = dedupeStrings(matches)
	return matches, nil
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return in
	}
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// ExpandGlobs expands every pattern in patterns (in order), concatenating
// and then sorting/deduplicating the combined result set, per spec.md
// §4.6's determinism requirement.
func ExpandGlobs(root string, patterns []string) ([]string, error) {
	var all []string
	for _, p := range patterns {
		m, err := ExpandGlob(root, p)
		if err != nil {
			return nil, err
		}
		all = append(all, m...)
	}
	sort.Strings(all)
	return dedupeStrings(all), nil
}
