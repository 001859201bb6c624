// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package jake

// RunSequential executes every node of g in dependency order (each
// dependency before its dependents), stopping at the first failure
// per spec.md §4.9: "a recipe executes at most once per invocation."
func RunSequential(ctx *RuntimeContext, idx *JakefileIndex, g *Graph, params map[string]string, positional []string) error {
	for _, n := range g.TopoOrder() {
		if n.State == stateCompleted || n.State == stateFailed {
			continue
		}

		n.State = stateRunning
		isTarget := len(n.Dependents) == 0
		p, pos := map[string]string(nil), []string(nil)
		if isTarget {
			p, pos = params, positional
		}

		if err := runNode(ctx, idx, n, p, pos, nil); err != nil {
			n.State = stateFailed
			n.Err = err
			return err
		}
		n.State = stateCompleted
	}
	return nil
}
