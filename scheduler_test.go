// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countOccurrences(t *testing.T, logFile, tag string) int {
	t.Helper()
	data, err := os.ReadFile(logFile)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return strings.Count(string(data), tag+"\n")
}

func buildSchedulerCtx(t *testing.T, doc *Document) (*RuntimeContext, *JakefileIndex) {
	t.Helper()
	idx, err := BuildIndex(doc)
	require.NoError(t, err)
	dir := t.TempDir()
	ctx, err := NewRuntimeContext(dir, filepath.Join(dir, ".jake", "cache"), idx, false, false, true, false, 0)
	require.NoError(t, err)
	return ctx, idx
}

func diamondDoc(logFile string) *Document {
	cmd := func(tag string) []Command {
		return []Command{{Text: "echo " + tag + " >> " + logFile}}
	}
	return &Document{Recipes: []Recipe{
		{Name: "all", Dependencies: []string{"a", "b"}, Commands: cmd("all")},
		{Name: "a", Dependencies: []string{"common"}, Commands: cmd("a")},
		{Name: "b", Dependencies: []string{"common"}, Commands: cmd("b")},
		{Name: "common", Commands: cmd("common")},
	}}
}

func TestRunSequentialExecutesEachNodeExactlyOnce(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "log.txt")
	ctx, idx := buildSchedulerCtx(t, diamondDoc(logFile))
	g, err := BuildGraph(idx, "all")
	require.NoError(t, err)

	require.NoError(t, RunSequential(ctx, idx, g, nil, nil))
	assert.Equal(t, 1, countOccurrences(t, logFile, "common"))
	assert.Equal(t, 1, countOccurrences(t, logFile, "a"))
	assert.Equal(t, 1, countOccurrences(t, logFile, "b"))
	assert.Equal(t, 1, countOccurrences(t, logFile, "all"))
}

func TestRunSequentialRespectsDependencyOrder(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "log.txt")
	ctx, idx := buildSchedulerCtx(t, diamondDoc(logFile))
	g, err := BuildGraph(idx, "all")
	require.NoError(t, err)
	require.NoError(t, RunSequential(ctx, idx, g, nil, nil))

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, 4, len(lines))
	assert.Equal(t, "common", lines[0])
	assert.Equal(t, "all", lines[3])
}

func TestRunSequentialStopsAtFirstFailure(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "log.txt")
	doc := &Document{Recipes: []Recipe{
		{Name: "top", Dependencies: []string{"mid"}, Commands: []Command{{Text: "echo top >> " + logFile}}},
		{Name: "mid", Dependencies: []string{"bottom"}, Commands: []Command{{Text: "exit 1"}}},
		{Name: "bottom", Commands: []Command{{Text: "echo bottom >> " + logFile}}},
	}}
	ctx, idx := buildSchedulerCtx(t, doc)
	g, err := BuildGraph(idx, "top")
	require.NoError(t, err)

	err = RunSequential(ctx, idx, g, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 1, countOccurrences(t, logFile, "bottom"))
	assert.Equal(t, 0, countOccurrences(t, logFile, "top"))
}

func TestRunParallelExecutesEachNodeExactlyOnce(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "log.txt")
	ctx, idx := buildSchedulerCtx(t, diamondDoc(logFile))
	g, err := BuildGraph(idx, "all")
	require.NoError(t, err)

	require.NoError(t, RunParallel(ctx, idx, g, 4, nil, nil))
	assert.Equal(t, 1, countOccurrences(t, logFile, "common"))
	assert.Equal(t, 1, countOccurrences(t, logFile, "a"))
	assert.Equal(t, 1, countOccurrences(t, logFile, "b"))
	assert.Equal(t, 1, countOccurrences(t, logFile, "all"))
}

func TestRunParallelPropagatesFailure(t *testing.T) {
	doc := &Document{Recipes: []Recipe{
		{Name: "top", Dependencies: []string{"bad"}},
		{Name: "bad", Commands: []Command{{Text: "exit 1"}}},
	}}
	ctx, idx := buildSchedulerCtx(t, doc)
	g, err := BuildGraph(idx, "top")
	require.NoError(t, err)

	err = RunParallel(ctx, idx, g, 4, nil, nil)
	require.Error(t, err)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, KindCommandFailed, ee.Kind)
}

func TestRunParallelSingleJobFallsBackToSequentialOrdering(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "log.txt")
	ctx, idx := buildSchedulerCtx(t, diamondDoc(logFile))
	g, err := BuildGraph(idx, "all")
	require.NoError(t, err)

	require.NoError(t, RunParallel(ctx, idx, g, 1, nil, nil))
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, 4, len(lines))
	assert.Equal(t, "common", lines[0])
	assert.Equal(t, "all", lines[3])
}

func TestRunParallelBuffersEachRecipesOutputInsteadOfWritingStdoutDirectly(t *testing.T) {
	doc := &Document{Recipes: []Recipe{
		{Name: "all", Dependencies: []string{"a", "b"}},
		{Name: "a", Commands: []Command{{Text: "echo from-a"}}},
		{Name: "b", Commands: []Command{{Text: "echo from-b"}}},
	}}
	ctx, idx := buildSchedulerCtx(t, doc)
	g, err := BuildGraph(idx, "all")
	require.NoError(t, err)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdout
	os.Stdout = w
	runErr := RunParallel(ctx, idx, g, 4, nil, nil)
	w.Close()
	os.Stdout = old
	require.NoError(t, runErr)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	// Each recipe's line must appear whole; a raw unsynchronized write
	// from two goroutines could otherwise interleave mid-line.
	assert.Contains(t, string(out), "from-a\n")
	assert.Contains(t, string(out), "from-b\n")
}

func TestRunParallelSingleNodeGraphRunsOnce(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "log.txt")
	doc := &Document{Recipes: []Recipe{
		{Name: "solo", Commands: []Command{{Text: "echo solo >> " + logFile}}},
	}}
	ctx, idx := buildSchedulerCtx(t, doc)
	g, err := BuildGraph(idx, "solo")
	require.NoError(t, err)

	require.NoError(t, RunParallel(ctx, idx, g, 8, nil, nil))
	assert.Equal(t, 1, countOccurrences(t, logFile, "solo"))
}
