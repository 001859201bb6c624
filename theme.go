// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"os"

	"github.com/morikuni/aec"
	"golang.org/x/term"
)

// Theme controls ANSI coloring of echo prefixes, error/hint lines, and
// success/failure glyphs, honoring NO_COLOR/CLICOLOR/CLICOLOR_FORCE per
// spec.md §6.
type Theme struct {
	enabled bool
}

// NewTheme decides whether color is enabled for the given output
// stream's file descriptor, following the documented precedence:
// NO_COLOR always disables; CLICOLOR_FORCE=1 always enables; otherwise
// color is enabled iff the stream is a TTY and CLICOLOR != "0".
func NewTheme(out *os.File) *Theme {
	if os.Getenv("NO_COLOR") != "" {
		return &Theme{enabled: false}
	}
	if os.Getenv("CLICOLOR_FORCE") == "1" {
		return &Theme{enabled: true}
	}
	if os.Getenv("CLICOLOR") == "0" {
		return &Theme{enabled: false}
	}
	return &Theme{enabled: term.IsTerminal(int(out.Fd()))}
}

func (t *Theme) paint(c aec.ANSI, s string) string {
	if !t.enabled {
		return s
	}
	return aec.Apply(s, c)
}

// EchoPrefix renders the "$" prompt-like prefix preceding an echoed
// command line.
func (t *Theme) EchoPrefix() string { return t.paint(aec.LightBlackF, "$") }

// ErrorLine renders a full "error: message" line in the brand-red tone.
func (t *Theme) ErrorLine(msg string) string {
	return t.paint(aec.RedF, "error: ") + msg
}

// HintLine renders an indented "hint: message" line.
func (t *Theme) HintLine(msg string) string {
	return "  " + t.paint(aec.YellowF, "hint: ") + msg
}

// RunLine renders an indented "run: jake NAME" remediation line.
func (t *Theme) RunLine(cmd string) string {
	return "  " + t.paint(aec.CyanF, "run: ") + cmd
}

// SuccessGlyph / FailureGlyph mark per-recipe completion in parallel
// mode's flushed output.
func (t *Theme) SuccessGlyph() string { return t.paint(aec.GreenF, "✓") }
func (t *Theme) FailureGlyph() string { return t.paint(aec.RedF, "✗") }

// DryRunPrefix renders the "[dry-run]" tag prepended to echoed lines
// during a dry run.
func (t *Theme) DryRunPrefix() string { return t.paint(aec.MagentaF, "[dry-run]") }
