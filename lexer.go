// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"strings"

	"github.com/pkg/errors"
)

// LexError is raised for unterminated strings and indentation problems
// (an unknown character becomes a TokInvalid token instead). It carries the offending position so the parser
// (and the CLI) can print `line:col: message`.
type LexError struct {
	Pos     Pos
	Message string
}

func (e *LexError) Error() string {
	return errors.Errorf("%s: %s", e.Pos, e.Message).Error()
}

const symbolChars = "=:,|->@[](){}"

// Lexer tokenizes Jakefile source into a token stream. One Lexer instance
// is consumed exactly once by the parser; it holds no parser-facing state
// beyond the token it is about to emit.
type Lexer struct {
	src    string
	pos    int
	line   int
	col    int
	indent []int // stack of indent widths currently open
}

// NewLexer creates a Lexer over src. Source is assumed already decoded as
// UTF-8; CRLF and bare CR are both treated as a single line terminator.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, col: 1, indent: []int{0}}
}

func (l *Lexer) curPos() Pos { return Pos{Line: l.line, Col: l.col, Offset: l.pos} }

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.src) {
		return 0
	}
	return l.src[l.pos+n]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// Tokenize runs the lexer to completion and returns the full token stream,
// terminated by a single TokEOF. Layout tokens (TokNewline, TokIndent,
// TokDedent) are only emitted at the start of a logical line; blank lines
// and comment-only lines never trigger indent/dedent changes.
func (l *Lexer) Tokenize() ([]Token, error) {
	var toks []Token
	atLineStart := true
	for {
		if atLineStart {
			indentToks, _, err := l.scanLineStart()
			if err != nil {
				return nil, err
			}
			toks = append(toks, indentToks...)
			atLineStart = false
		}
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokNewline {
			atLineStart = true
		}
		if tok.Kind == TokEOF {
			break
		}
	}
	return toks, nil
}

// scanLineStart consumes leading whitespace of a physical line, translating
// it into indent-level tokens. Both a tab and four spaces count as one
// indent level; mixing a partial run of fewer than four spaces with the
// rest of the line is an error. Returns blank=true for empty or
// comment-only lines, which never change the indent stack.
func (l *Lexer) scanLineStart() ([]Token, bool, error) {
	levels := 0
	for {
		c := l.peekByte()
		if c == '\t' {
			l.advance()
			levels++
			continue
		}
		if c == ' ' {
			spaces := 0
			for l.peekByte() == ' ' {
				l.advance()
				spaces++
			}
			if spaces%4 != 0 {
				return nil, false, &LexError{
					Pos:     Pos{Line: l.line, Col: l.col, Offset: l.pos},
					Message: "insufficient indentation",
				}
			}
			levels += spaces / 4
			continue
		}
		break
	}
	rest := l.peekByte()
	if rest == 0 {
		// End of input closes every open indent level.
		levels = 0
	} else if rest == '\n' || rest == '\r' || rest == '#' {
		// Blank or comment-only line: indentation never changes, but the
		// caller (next()) still needs to emit the TokComment/TokNewline
		// pair, so just report there's nothing to do here.
		return nil, true, nil
	}

	cur := l.indent[len(l.indent)-1]
	var toks []Token
	switch {
	case levels > cur:
		l.indent = append(l.indent, levels)
		toks = append(toks, Token{Kind: TokIndent, Pos: l.curPos(), Indents: levels})
	case levels < cur:
		for len(l.indent) > 1 && l.indent[len(l.indent)-1] > levels {
			l.indent = l.indent[:len(l.indent)-1]
			toks = append(toks, Token{Kind: TokDedent, Pos: l.curPos(), Indents: l.indent[len(l.indent)-1]})
		}
	}
	return toks, false, nil
}

func (l *Lexer) next() (Token, error) {
	l.skipInlineSpace()
	pos := l.curPos()
	c := l.peekByte()

	switch {
	case c == 0:
		return Token{Kind: TokEOF, Pos: pos}, nil
	case c == '\r':
		l.advance()
		if l.peekByte() == '\n' {
			l.advance()
		}
		return Token{Kind: TokNewline, Text: "\n", Pos: pos}, nil
	case c == '\n':
		l.advance()
		return Token{Kind: TokNewline, Text: "\n", Pos: pos}, nil
	case c == '#':
		return l.scanComment(pos), nil
	case c == '"' || c == '\'':
		return l.scanString(pos)
	case isDigit(c):
		return l.scanNumber(pos), nil
	case isIdentStart(c):
		return l.scanIdentOrGlob(pos), nil
	case strings.IndexByte(symbolChars, c) >= 0:
		return l.scanSymbol(pos), nil
	default:
		l.advance()
		return Token{Kind: TokInvalid, Text: l.src[pos.Offset:l.pos], Pos: pos}, nil
	}
}

func (l *Lexer) skipInlineSpace() {
	for {
		c := l.peekByte()
		if c == ' ' || c == '\t' {
			l.advance()
			continue
		}
		break
	}
}

func (l *Lexer) scanComment(pos Pos) Token {
	start := l.pos
	for l.peekByte() != '\n' && l.peekByte() != '\r' && l.peekByte() != 0 {
		l.advance()
	}
	return Token{Kind: TokComment, Text: l.src[start:l.pos], Pos: pos}
}

func (l *Lexer) scanString(pos Pos) (Token, error) {
	quote := l.advance()
	var b strings.Builder
	for {
		c := l.peekByte()
		if c == 0 || c == '\n' {
			return Token{}, &LexError{Pos: pos, Message: "unterminated string literal"}
		}
		if c == quote {
			l.advance()
			return Token{Kind: TokString, Text: b.String(), Pos: pos}, nil
		}
		if c == '\\' {
			l.advance()
			e := l.peekByte()
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case '"':
				b.WriteByte('"')
			case '\'':
				b.WriteByte('\'')
			case '\\':
				b.WriteByte('\\')
			case '$':
				b.WriteByte('$')
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
			if e != 0 {
				l.advance()
			}
			continue
		}
		b.WriteByte(c)
		l.advance()
	}
}

func (l *Lexer) scanNumber(pos Pos) Token {
	start := l.pos
	for isDigit(l.peekByte()) {
		l.advance()
	}
	if l.peekByte() == '.' && isDigit(l.peekAt(1)) {
		l.advance()
		for isDigit(l.peekByte()) {
			l.advance()
		}
	}
	return Token{Kind: TokNumber, Text: l.src[start:l.pos], Pos: pos}
}

// scanIdentOrGlob consumes an identifier-like run and classifies it as a
// keyword, plain identifier, or glob atom. Per spec.md §4.1, any
// identifier-like token containing *, ?, [, or a path separator is a glob
// atom rather than a plain identifier.
func (l *Lexer) scanIdentOrGlob(pos Pos) Token {
	start := l.pos
	hasGlobChar := false
	for {
		c := l.peekByte()
		if isIdentCont(c) {
			l.advance()
			continue
		}
		if c == '*' || c == '?' || c == '[' || c == '/' || c == '.' {
			hasGlobChar = hasGlobChar || c == '*' || c == '?' || c == '['
			if c == '[' {
				// consume a bracket class as part of the atom
				l.advance()
				for l.peekByte() != ']' && l.peekByte() != 0 && l.peekByte() != '\n' {
					l.advance()
				}
				if l.peekByte() == ']' {
					l.advance()
				}
				continue
			}
			l.advance()
			continue
		}
		break
	}
	text := l.src[start:l.pos]
	if hasGlobChar || strings.ContainsRune(text, '/') {
		return Token{Kind: TokGlob, Text: text, Pos: pos}
	}
	if IsKeyword(text) {
		return Token{Kind: TokKeyword, Text: text, Pos: pos}
	}
	return Token{Kind: TokIdent, Text: text, Pos: pos}
}

func (l *Lexer) scanSymbol(pos Pos) Token {
	// "->" is the only two-character symbol.
	if l.peekByte() == '-' && l.peekAt(1) == '>' {
		l.advance()
		l.advance()
		return Token{Kind: TokSymbol, Text: "->", Pos: pos}
	}
	c := l.advance()
	return Token{Kind: TokSymbol, Text: string(c), Pos: pos}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentCont(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}
