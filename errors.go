// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrorKind is the closed set of error categories from spec.md §7.
type ErrorKind int

const (
	KindParse ErrorKind = iota
	KindImport
	KindRecipeNotFound
	KindCyclicDependency
	KindMissingRequiredEnv
	KindMissingCommand
	KindCommandFailed
	KindTimeout
	KindUserDeclined
	KindIOError
)

func (k ErrorKind) String() string {
	switch k {
	case KindParse:
		return "ParseError"
	case KindImport:
		return "ImportError"
	case KindRecipeNotFound:
		return "RecipeNotFound"
	case KindCyclicDependency:
		return "CyclicDependency"
	case KindMissingRequiredEnv:
		return "MissingRequiredEnv"
	case KindMissingCommand:
		return "MissingCommand"
	case KindCommandFailed:
		return "CommandFailed"
	case KindTimeout:
		return "Timeout"
	case KindUserDeclined:
		return "UserDeclined"
	default:
		return "IOError"
	}
}

// EngineError is the single concrete error type the engine returns. It
// carries enough to render the `error:`/`hint:` two-line shape spec.md §7
// asks for, plus an optional `run: jake NAME` remediation.
type EngineError struct {
	Kind    ErrorKind
	Message string
	Pos     Pos
	HasPos  bool
	Hint    string
	Run     string // "run: jake NAME" suggestion, e.g. for MissingCommand
	Cause   error
}

func (e *EngineError) Error() string {
	if e.HasPos {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Pos, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Cause }

func newErr(kind ErrorKind, msg string) *EngineError {
	return &EngineError{Kind: kind, Message: msg}
}

func newErrAt(kind ErrorKind, pos Pos, msg string) *EngineError {
	return &EngineError{Kind: kind, Message: msg, Pos: pos, HasPos: true}
}

// KindOf extracts the ErrorKind from err, defaulting to IOError for
// errors the engine did not itself classify (e.g. raw os errors).
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindIOError
	}
	if ee, ok := err.(*EngineError); ok {
		return ee.Kind
	}
	if me, ok := err.(*multierror.Error); ok && len(me.Errors) > 0 {
		return KindOf(me.Errors[0])
	}
	return KindIOError
}

// ExitCode maps an engine error to the CLI exit codes from spec.md §6,
// shared identically by the sequential and parallel scheduler paths
// (DESIGN.md, Open Question #3).
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindParse, KindImport:
		return 2
	case KindRecipeNotFound:
		return 3
	default:
		return 1
	}
}

// appendErr accumulates err into acc using hashicorp/go-multierror,
// mirroring how spec.md §5 wants parallel-scheduler failures and
// @on_error cleanup failures combined into one reported error.
func appendErr(acc error, err error) error {
	if err == nil {
		return acc
	}
	return multierror.Append(acc, err)
}
