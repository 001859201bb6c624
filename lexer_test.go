// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenKinds(t *testing.T, toks []Token) []TokenKind {
	t.Helper()
	kinds := make([]TokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	return kinds
}

func TestLexerIndentDedent(t *testing.T) {
	src := "task build:\n    echo hi\n    echo bye\ntask clean:\n    echo rm\n"
	toks, err := NewLexer(src).Tokenize()
	require.NoError(t, err)
	kinds := tokenKinds(t, toks)

	var indents, dedents int
	for _, k := range kinds {
		if k == TokIndent {
			indents++
		}
		if k == TokDedent {
			dedents++
		}
	}
	assert.Equal(t, 2, indents)
	assert.Equal(t, 2, dedents)
}

func TestLexerTabAndFourSpacesAreOneLevel(t *testing.T) {
	tabSrc := "task x:\n\techo a\n"
	spaceSrc := "task x:\n    echo a\n"

	tabToks, err := NewLexer(tabSrc).Tokenize()
	require.NoError(t, err)
	spaceToks, err := NewLexer(spaceSrc).Tokenize()
	require.NoError(t, err)

	assert.Equal(t, tokenKinds(t, tabToks), tokenKinds(t, spaceToks))
}

func TestLexerInsufficientIndentIsError(t *testing.T) {
	src := "task x:\n  echo a\n" // two spaces, not a multiple of 4
	_, err := NewLexer(src).Tokenize()
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}

func TestLexerGlobAtomClassification(t *testing.T) {
	src := "src/*.go\n"
	toks, err := NewLexer(src).Tokenize()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, TokGlob, toks[0].Kind)
	assert.Equal(t, "src/*.go", toks[0].Text)
}

func TestLexerKeywordVsIdent(t *testing.T) {
	src := "task mytask:\n"
	toks, err := NewLexer(src).Tokenize()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(toks), 2)
	assert.Equal(t, TokKeyword, toks[0].Kind)
	assert.Equal(t, TokIdent, toks[1].Kind)
}

func TestLexerStringEscapes(t *testing.T) {
	src := `"a\nb\t\"c\""` + "\n"
	toks, err := NewLexer(src).Tokenize()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, TokString, toks[0].Kind)
	assert.Equal(t, "a\nb\t\"c\"", toks[0].Text)
}

func TestLexerUnterminatedStringIsError(t *testing.T) {
	_, err := NewLexer(`"unterminated` + "\n").Tokenize()
	require.Error(t, err)
}

func TestLexerCRLFTreatedAsSingleNewline(t *testing.T) {
	src := "task x:\r\n    echo a\r\n"
	toks, err := NewLexer(src).Tokenize()
	require.NoError(t, err)
	var newlines int
	for _, tok := range toks {
		if tok.Kind == TokNewline {
			newlines++
		}
	}
	assert.Equal(t, 2, newlines)
}
