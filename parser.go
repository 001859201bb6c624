// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseError is a single diagnostic with a line/column and a one-line
// message, per spec.md §4.2.
type ParseError struct {
	Pos     Pos
	Message string
}

func (e *ParseError) Error() string {
	return errors.Errorf("%s: %s", e.Pos, e.Message).Error()
}

// Parse tokenizes and parses Jakefile source, producing an immutable
// Document. Grounded in mk/parse.go's recursive-descent parser shape
// (a struct holding position + peek/next helpers, parseBlock/
// parseStatement dispatch), generalized from line-based scanning to a
// real token stream per spec.md §4.1/§4.2.
func Parse(sourcePath, src string) (*Document, error) {
	toks, err := NewLexer(src).Tokenize()
	if err != nil {
		return nil, lexErrToParseErr(err)
	}
	p := &parser{toks: toks, doc: &Document{SourcePath: sourcePath}}
	if err := p.parseTop(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

func lexErrToParseErr(err error) error {
	if le, ok := err.(*LexError); ok {
		return &ParseError{Pos: le.Pos, Message: le.Message}
	}
	return err
}

type parser struct {
	toks []Token
	pos  int
	doc  *Document

	pendingDoc   []string // accumulated doc-comment lines for the next recipe
	pendingMeta  pendingMetadata
}

// pendingMetadata holds recipe-metadata directives (@group, @desc, @alias,
// @quiet, @only, @needs, @timeout) that attach only to the next recipe
// parsed, per spec.md §4.2.
type pendingMetadata struct {
	group       string
	description string
	aliases     []string
	quiet       bool
	onlyOS      map[string]bool
	needs       []NeedsEntry
	timeout     int
	hasTimeout  bool
}

func (m *pendingMetadata) reset() { *m = pendingMetadata{} }

func (p *parser) tok() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: TokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) at(kind TokenKind) bool { return p.tok().Kind == kind }

func (p *parser) atSymbol(s string) bool { return p.tok().Kind == TokSymbol && p.tok().Text == s }

func (p *parser) atKeyword(s string) bool { return p.tok().Kind == TokKeyword && p.tok().Text == s }

func (p *parser) advance() Token {
	t := p.tok()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) errf(pos Pos, format string, args ...interface{}) error {
	return &ParseError{Pos: pos, Message: errors.Errorf(format, args...).Error()}
}

// skipBlankLines consumes stray newline tokens between statements.
func (p *parser) skipBlankLines() {
	for p.at(TokNewline) {
		p.advance()
		p.pendingDoc = nil
	}
}

func (p *parser) parseTop() error {
	for {
		p.skipBlankLinesKeepDoc()
		if p.at(TokEOF) {
			return nil
		}
		if p.at(TokDedent) || p.at(TokIndent) {
			// Stray layout token at top level (shouldn't normally occur);
			// skip defensively rather than erroring the whole load.
			p.advance()
			continue
		}
		if p.at(TokComment) {
			p.pendingDoc = append(p.pendingDoc, strings.TrimSpace(strings.TrimPrefix(p.tok().Text, "#")))
			p.advance()
			p.expectNewlineOrEOF()
			continue
		}
		if p.atSymbol("@") {
			if err := p.parseTopDirective(); err != nil {
				return err
			}
			continue
		}
		if err := p.parseTopIdentLine(); err != nil {
			return err
		}
	}
}

// skipBlankLinesKeepDoc consumes blank lines and, like skipBlankLines,
// resets the pending doc-comment block on each one. Comment lines are
// not consumed here, so a contiguous run of comment lines with no blank
// line between them and the recipe becomes its doc_comment (spec.md §4.2).
func (p *parser) skipBlankLinesKeepDoc() {
	for p.at(TokNewline) {
		p.advance()
		p.pendingDoc = nil
	}
}

func (p *parser) expectNewlineOrEOF() error {
	if p.at(TokNewline) {
		p.advance()
		return nil
	}
	if p.at(TokEOF) {
		return nil
	}
	return p.errf(p.tok().Pos, "expected end of line, found %q", p.tok().Text)
}

// restOfLine collects the raw text of tokens until the next newline/EOF,
// reconstructing source-like spacing. Used for directive arguments and
// condition expressions where we want the original text rather than a
// token-by-token grammar.
func (p *parser) restOfLine() (string, Pos) {
	pos := p.tok().Pos
	var b strings.Builder
	first := true
	prevEnd := -1 // source offset just past the previous token; -1 if unknown
	for !p.at(TokNewline) && !p.at(TokEOF) && !p.at(TokIndent) && !p.at(TokDedent) {
		t := p.advance()
		if !first && t.Pos.Offset != prevEnd {
			b.WriteByte(' ')
		}
		first = false
		if t.Kind == TokString {
			b.WriteByte('"')
			b.WriteString(t.Text)
			b.WriteByte('"')
			prevEnd = -1 // decoded escapes: source length unknown
		} else {
			b.WriteString(t.Text)
			prevEnd = t.Pos.Offset + len(t.Text)
		}
	}
	return b.String(), pos
}

func (p *parser) parseTopDirective() error {
	at := p.advance() // consume '@'
	if !p.at(TokKeyword) && !p.at(TokIdent) {
		return p.errf(at.Pos, "expected directive name after '@'")
	}
	name := p.advance().Text

	switch name {
	case "import":
		return p.parseImportDirective(at.Pos)
	case "dotenv":
		arg, _ := p.restOfLine()
		p.doc.Directives = append(p.doc.Directives, GlobalDirective{Kind: GlobalDotenv, Pos: at.Pos, Text: unquoteArg(arg)})
		return p.expectNewlineOrEOF()
	case "require":
		arg, _ := p.restOfLine()
		p.doc.Directives = append(p.doc.Directives, GlobalDirective{Kind: GlobalRequire, Pos: at.Pos, Text: arg})
		return p.expectNewlineOrEOF()
	case "export":
		arg, _ := p.restOfLine()
		p.doc.Directives = append(p.doc.Directives, GlobalDirective{Kind: GlobalExport, Pos: at.Pos, Text: arg})
		return p.expectNewlineOrEOF()
	case "default":
		arg, _ := p.restOfLine()
		p.doc.Directives = append(p.doc.Directives, GlobalDirective{Kind: GlobalDefault, Pos: at.Pos, Text: arg})
		return p.expectNewlineOrEOF()
	case "pre", "post":
		text, pos := p.restOfLine()
		h := Hook{Pos: pos, Text: text}
		if name == "pre" {
			p.doc.PreHooks = append(p.doc.PreHooks, h)
		} else {
			p.doc.PostHooks = append(p.doc.PostHooks, h)
		}
		return p.expectNewlineOrEOF()
	case "before", "after":
		target := ""
		if p.at(TokIdent) {
			target = p.advance().Text
		}
		text, pos := p.restOfLine()
		kind := GlobalBefore
		if name == "after" {
			kind = GlobalAfter
		}
		p.doc.Directives = append(p.doc.Directives, GlobalDirective{Kind: kind, Pos: at.Pos, Text: text, Target: target})
		h := Hook{Pos: pos, Text: text, Target: target}
		if name == "before" {
			p.doc.PreHooks = append(p.doc.PreHooks, h)
		} else {
			p.doc.PostHooks = append(p.doc.PostHooks, h)
		}
		return p.expectNewlineOrEOF()
	case "on_error":
		target := ""
		if p.at(TokIdent) {
			target = p.advance().Text
		}
		text, pos := p.restOfLine()
		p.doc.OnErrHooks = append(p.doc.OnErrHooks, Hook{Pos: pos, Text: text, Target: target})
		return p.expectNewlineOrEOF()
	case "group":
		arg, _ := p.restOfLine()
		p.pendingMeta.group = unquoteArg(arg)
		return p.expectNewlineOrEOF()
	case "desc", "description":
		arg, _ := p.restOfLine()
		p.pendingMeta.description = unquoteArg(arg)
		return p.expectNewlineOrEOF()
	case "alias":
		arg, _ := p.restOfLine()
		for _, a := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' || r == '|' }) {
			if a != "" {
				p.pendingMeta.aliases = append(p.pendingMeta.aliases, a)
			}
		}
		return p.expectNewlineOrEOF()
	case "quiet":
		p.pendingMeta.quiet = true
		_, _ = p.restOfLine()
		return p.expectNewlineOrEOF()
	case "only", "only-os", "platform":
		arg, _ := p.restOfLine()
		if p.pendingMeta.onlyOS == nil {
			p.pendingMeta.onlyOS = map[string]bool{}
		}
		for _, os := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			if os != "" {
				p.pendingMeta.onlyOS[os] = true
			}
		}
		return p.expectNewlineOrEOF()
	case "needs":
		arg, pos := p.restOfLine()
		entries, err := parseNeedsArg(arg, pos)
		if err != nil {
			return err
		}
		p.pendingMeta.needs = append(p.pendingMeta.needs, entries...)
		return p.expectNewlineOrEOF()
	case "timeout":
		arg, pos := p.restOfLine()
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return p.errf(pos, "invalid @timeout value %q", arg)
		}
		p.pendingMeta.timeout = n
		p.pendingMeta.hasTimeout = true
		return p.expectNewlineOrEOF()
	default:
		return p.errf(at.Pos, "unknown directive '@%s'", name)
	}
}

func (p *parser) parseImportDirective(pos Pos) error {
	if !p.at(TokString) {
		return p.errf(p.tok().Pos, "expected quoted path after '@import'")
	}
	path := p.advance().Text
	ns := ""
	if p.atKeyword("as") {
		p.advance()
		if !p.at(TokIdent) {
			return p.errf(p.tok().Pos, "expected namespace identifier after 'as'")
		}
		ns = p.advance().Text
	}
	p.doc.Imports = append(p.doc.Imports, Import{Pos: pos, Path: path, Namespace: ns})
	return p.expectNewlineOrEOF()
}

func parseNeedsArg(arg string, pos Pos) ([]NeedsEntry, error) {
	toks, err := shlexSplit(arg)
	if err != nil {
		return nil, &ParseError{Pos: pos, Message: "invalid @needs argument: " + err.Error()}
	}
	var entries []NeedsEntry
	var cur *NeedsEntry
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t == "hint:" || t == "hint":
			if cur != nil && i+1 < len(toks) {
				cur.Hint = toks[i+1]
				i++
			}
		case t == "install:" || t == "install":
			if cur != nil && i+1 < len(toks) {
				cur.Install = toks[i+1]
				i++
			}
		case strings.HasPrefix(t, "hint:"):
			if cur != nil {
				cur.Hint = t[len("hint:"):]
			}
		case strings.HasPrefix(t, "install:"):
			if cur != nil {
				cur.Install = t[len("install:"):]
			}
		default:
			entries = append(entries, NeedsEntry{Command: t})
			cur = &entries[len(entries)-1]
		}
	}
	return entries, nil
}

func unquoteArg(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// parseTopIdentLine parses a variable assignment or a recipe header.
func (p *parser) parseTopIdentLine() error {
	switch {
	case p.atKeyword("task"):
		return p.parseRecipe(RecipeTask)
	case p.atKeyword("file"):
		return p.parseRecipe(RecipeFile)
	case p.at(TokIdent):
		// Either "NAME = value" or the keyword-less "NAME: deps" form.
		save := p.pos
		name := p.advance().Text
		if p.atSymbol("=") {
			p.advance()
			val, pos := p.restOfLine()
			p.doc.Variables = append(p.doc.Variables, Variable{Name: name, Value: strings.TrimSpace(val), Pos: pos})
			return p.expectNewlineOrEOF()
		}
		p.pos = save
		return p.parseRecipe(RecipeSimple)
	default:
		return p.errf(p.tok().Pos, "unexpected token %q", p.tok().Text)
	}
}

// parseRecipe parses a recipe header and body for all three forms:
//
//	task NAME [params...] [| alias...]: [deps]
//	file PATH: file_deps
//	NAME: [deps]
func (p *parser) parseRecipe(kind RecipeKind) error {
	pos := p.tok().Pos
	if kind == RecipeTask || kind == RecipeFile {
		p.advance() // consume "task"/"file" keyword
	}
	if !p.at(TokIdent) && !p.at(TokGlob) {
		return p.errf(p.tok().Pos, "expected recipe name")
	}
	name := p.advance().Text

	r := Recipe{Kind: kind, Name: name, Pos: pos}
	if kind == RecipeFile {
		r.Output = name
	}

	if kind == RecipeTask {
		for p.at(TokIdent) {
			param := Param{Name: p.tok().Text}
			p.advance()
			if p.atSymbol("=") {
				p.advance()
				if !p.at(TokString) {
					return p.errf(p.tok().Pos, "expected quoted default value")
				}
				param.Default = p.advance().Text
				param.HasDefault = true
			}
			r.Params = append(r.Params, param)
		}
	}

	for p.atSymbol("|") {
		p.advance()
		if !p.at(TokIdent) {
			return p.errf(p.tok().Pos, "expected alias after '|'")
		}
		r.Aliases = append(r.Aliases, p.advance().Text)
	}

	if !p.atSymbol(":") {
		return p.errf(p.tok().Pos, "expected ':' after %s name", kind)
	}
	p.advance()

	deps, pos2 := p.restOfLine()
	depList := splitDepList(deps)
	if kind == RecipeFile {
		r.FileDeps = depList
	} else {
		r.Dependencies = depList
	}
	_ = pos2
	if err := p.expectNewlineOrEOF(); err != nil {
		return err
	}

	r.Group = p.pendingMeta.group
	r.Description = p.pendingMeta.description
	r.Aliases = append(r.Aliases, p.pendingMeta.aliases...)
	r.Quiet = p.pendingMeta.quiet
	r.OnlyOS = p.pendingMeta.onlyOS
	r.Needs = append(r.Needs, p.pendingMeta.needs...)
	if p.pendingMeta.hasTimeout {
		r.TimeoutSeconds = p.pendingMeta.timeout
	}
	if r.Description == "" && len(p.pendingDoc) > 0 {
		r.DocComment = strings.TrimSpace(strings.Join(p.pendingDoc, "\n"))
	}
	p.pendingMeta.reset()
	p.pendingDoc = nil

	if p.at(TokIndent) {
		p.advance()
		cmds, err := p.parseCommandBlock(&r)
		if err != nil {
			return err
		}
		r.Commands, r.PreHooks, r.PostHooks = hoistRecipeHooks(cmds)
		if !p.at(TokDedent) && !p.at(TokEOF) {
			return p.errf(p.tok().Pos, "expected dedent after recipe body")
		}
		if p.at(TokDedent) {
			p.advance()
		}
	}

	p.doc.Recipes = append(p.doc.Recipes, r)
	return nil
}

// hoistRecipeHooks pulls recipe-body "@pre"/"@post" lines out of the
// command stream into the recipe's own hook lists, per spec.md §3:
// they are "parsed into hook lists, not executed inline". Hoisting
// happens only at the top level of a recipe body, not inside nested
// @if/@each/@cache blocks.
func hoistRecipeHooks(cmds []Command) (body []Command, pre, post []Hook) {
	for _, c := range cmds {
		switch c.Directive {
		case DirPre:
			pre = append(pre, Hook{Pos: c.Pos, Text: c.Text})
		case DirPost:
			post = append(post, Hook{Pos: c.Pos, Text: c.Text})
		default:
			body = append(body, c)
		}
	}
	return body, pre, post
}

func splitDepList(s string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '[' || r == ']' }) {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// parseCommandBlock parses the indented body of a recipe (or of a nested
// block directive), stopping at the matching dedent.
func (p *parser) parseCommandBlock(r *Recipe) ([]Command, error) {
	var cmds []Command
	for {
		p.skipBlankLines()
		if p.at(TokDedent) || p.at(TokEOF) {
			return cmds, nil
		}
		if p.at(TokComment) {
			p.advance()
			_ = p.expectNewlineOrEOF()
			continue
		}
		if p.atBlockTerminator() {
			// @elif/@else/@end belong to the enclosing block; leave them
			// unconsumed for parseIfBlock/parseBlockDirective to handle.
			return cmds, nil
		}
		cmd, err := p.parseCommandLine(r)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
}

// atBlockTerminator reports whether the parser is sitting on an
// "@elif"/"@else"/"@end" line, which closes an enclosing block rather
// than being a command of the current one.
func (p *parser) atBlockTerminator() bool {
	if !p.atSymbol("@") {
		return false
	}
	if p.pos+1 >= len(p.toks) {
		return false
	}
	nxt := p.toks[p.pos+1]
	return nxt.Kind == TokKeyword && (nxt.Text == "elif" || nxt.Text == "else" || nxt.Text == "end")
}

// knownDirectiveNames maps the directive keyword spelled right after '@'
// inside a recipe body to its DirectiveTag, per spec.md §3's table.
var knownDirectiveNames = map[string]DirectiveTag{
	"ignore": DirIgnore, "cache": DirCache, "watch": DirWatch, "cd": DirCd,
	"shell": DirShell, "needs": DirNeeds, "confirm": DirConfirm, "each": DirEach,
	"if": DirIf, "elif": DirElif, "else": DirElse, "end": DirEnd,
	"require": DirRequire, "export": DirExport, "launch": DirLaunch,
	"timeout": DirTimeout, "pre": DirPre, "post": DirPost,
}

// parseCommandLine parses one shell-command or directive line of a
// recipe body. Callers (parseCommandBlock) only invoke this once
// atBlockTerminator has ruled out @elif/@else/@end.
func (p *parser) parseCommandLine(r *Recipe) (Command, error) {
	pos := p.tok().Pos
	ignore := false
	if p.atSymbol("-") {
		p.advance()
		ignore = true
	}
	if p.atSymbol("@") {
		save := p.pos
		p.advance()
		if (p.at(TokKeyword) || p.at(TokIdent)) && knownDirectiveNames[p.tok().Text] != DirNone {
			name := p.tok().Text
			tag := knownDirectiveNames[name]
			p.advance()
			return p.parseDirectiveLine(r, tag, pos)
		}
		// Not a recognized directive keyword: a silenced shell command.
		p.pos = save
		p.advance() // consume '@'
		text, _ := p.restOfLine()
		if err := p.expectNewlineOrEOF(); err != nil {
			return Command{}, err
		}
		return Command{Pos: pos, Text: text, Silent: true, IgnoreErr: ignore}, nil
	}
	text, _ := p.restOfLine()
	if err := p.expectNewlineOrEOF(); err != nil {
		return Command{}, err
	}
	return Command{Pos: pos, Text: text, IgnoreErr: ignore}, nil
}

func (p *parser) parseDirectiveLine(r *Recipe, tag DirectiveTag, pos Pos) (Command, error) {
	switch tag {
	case DirIf:
		return p.parseIfBlock(r, pos)
	case DirEach:
		return p.parseBlockDirective(r, DirEach, pos)
	case DirCache:
		return p.parseBlockDirective(r, DirCache, pos)
	case DirNeeds:
		arg, npos := p.restOfLine()
		entries, err := parseNeedsArg(arg, npos)
		if err != nil {
			return Command{}, err
		}
		if err := p.expectNewlineOrEOF(); err != nil {
			return Command{}, err
		}
		return Command{Pos: pos, Directive: DirNeeds, Needs: entries}, nil
	default:
		arg, _ := p.restOfLine()
		if err := p.expectNewlineOrEOF(); err != nil {
			return Command{}, err
		}
		return Command{Pos: pos, Directive: tag, Text: strings.TrimSpace(arg)}, nil
	}
}

// parseBlockDirective handles @each and @cache, which share the shape
// "directive args\n  <indented body>\n@end".
func (p *parser) parseBlockDirective(r *Recipe, tag DirectiveTag, pos Pos) (Command, error) {
	arg, _ := p.restOfLine()
	if err := p.expectNewlineOrEOF(); err != nil {
		return Command{}, err
	}
	var body []Command
	if p.at(TokIndent) {
		p.advance()
		b, err := p.parseCommandBlock(r)
		if err != nil {
			return Command{}, err
		}
		body = b
		if p.at(TokDedent) {
			p.advance()
		}
	}
	if err := p.consumeEnd(); err != nil {
		return Command{}, err
	}
	return Command{Pos: pos, Directive: tag, Text: strings.TrimSpace(arg), Children: body}, nil
}

// parseIfBlock handles @if/@elif/@else/@end.
func (p *parser) parseIfBlock(r *Recipe, pos Pos) (Command, error) {
	cond, _ := p.restOfLine()
	if err := p.expectNewlineOrEOF(); err != nil {
		return Command{}, err
	}
	body, err := p.parseIndentedOrEmpty(r)
	if err != nil {
		return Command{}, err
	}
	cmd := Command{Pos: pos, Directive: DirIf, Text: strings.TrimSpace(cond), Children: body}

	for {
		if !p.at(TokSymbol) || p.tok().Text != "@" {
			break
		}
		save := p.pos
		p.advance()
		if !(p.at(TokKeyword) && (p.tok().Text == "elif" || p.tok().Text == "else" || p.tok().Text == "end")) {
			p.pos = save
			break
		}
		kw := p.advance().Text
		switch kw {
		case "elif":
			earg, _ := p.restOfLine()
			if err := p.expectNewlineOrEOF(); err != nil {
				return Command{}, err
			}
			ebody, err := p.parseIndentedOrEmpty(r)
			if err != nil {
				return Command{}, err
			}
			cmd.ElifArms = append(cmd.ElifArms, ElifArm{Condition: strings.TrimSpace(earg), Body: ebody})
			continue
		case "else":
			_, _ = p.restOfLine()
			if err := p.expectNewlineOrEOF(); err != nil {
				return Command{}, err
			}
			ebody, err := p.parseIndentedOrEmpty(r)
			if err != nil {
				return Command{}, err
			}
			cmd.ElseBranch = ebody
			continue
		case "end":
			_, _ = p.restOfLine()
			_ = p.expectNewlineOrEOF()
			return cmd, nil
		}
	}
	return Command{}, p.errf(p.tok().Pos, "unmatched @if: expected @end")
}

func (p *parser) parseIndentedOrEmpty(r *Recipe) ([]Command, error) {
	if !p.at(TokIndent) {
		return nil, nil
	}
	p.advance()
	body, err := p.parseCommandBlock(r)
	if err != nil {
		return nil, err
	}
	if p.at(TokDedent) {
		p.advance()
	}
	return body, nil
}

func (p *parser) consumeEnd() error {
	if !p.atSymbol("@") {
		return p.errf(p.tok().Pos, "expected '@end'")
	}
	p.advance()
	if !p.atKeyword("end") {
		return p.errf(p.tok().Pos, "expected '@end'")
	}
	p.advance()
	return p.expectNewlineOrEOF()
}
