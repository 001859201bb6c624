// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import "github.com/google/shlex"

// shlexSplit tokenizes a directive argument string with shell-style
// quoting, used by @needs (and any other directive whose argument list
// allows quoted multi-word values).
func shlexSplit(s string) ([]string, error) {
	return shlex.Split(s)
}
