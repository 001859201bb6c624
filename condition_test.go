// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvalConditionPlatformPredicates(t *testing.T) {
	name := currentPlatformName()
	assert.True(t, EvalCondition("is_platform("+name+")", nil, nil, nil))
	assert.False(t, EvalCondition("is_platform(not-a-real-platform)", nil, nil, nil))
	assert.Equal(t, name != "windows", EvalCondition("is_unix", nil, nil, nil))
}

func TestEvalConditionDryRunWatchingVerbose(t *testing.T) {
	ctx := &RuntimeContext{DryRun: true}
	assert.True(t, EvalCondition("is_dry_run", nil, nil, ctx))
	assert.False(t, EvalCondition("is_watching", nil, nil, ctx))
	assert.False(t, EvalCondition("is_verbose", nil, nil, nil))
}

func TestEvalConditionFunctionCallForm(t *testing.T) {
	assert.True(t, EvalCondition("eq(a,a)", nil, nil, nil))
	assert.False(t, EvalCondition("eq(a,b)", nil, nil, nil))
	assert.True(t, EvalCondition("exists(condition.go)", nil, nil, nil))
	assert.False(t, EvalCondition("exists(no/such/path)", nil, nil, nil))
}

func TestEvalConditionExpandsVariablesBeforeEvaluating(t *testing.T) {
	vars := ExpandVars{"a": "x", "b": "x"}
	assert.True(t, EvalCondition("eq({{a}},{{b}})", vars, nil, nil))
}

func TestEvalConditionUnknownBareWordIsFalse(t *testing.T) {
	assert.False(t, EvalCondition("not_a_real_condition", nil, nil, nil))
}
