package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/cartograph/cartograph/internal/graph"
	"github.com/cartograph/cartograph/internal/lock"
	"github.com/cartograph/cartograph/internal/reconcile"
)

// Run executes a scenario against a fresh in-memory graph and lock store.
// Step outcomes are checked against each step's expect clause; assertions
// run after the last step. A non-nil error means the scenario could not be
// executed at all; expectation mismatches are reported through the Result.
func Run(scenario *Scenario) (*Result, error) {
	result := NewResult()

	store := graph.NewMemory()
	lockStore := lock.NewMemoryStore()

	opts := []reconcile.Option{
		reconcile.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if scenario.Watermark {
		opts = append(opts, reconcile.WithWatermark(reconcile.NewWatermark(lockStore, "watermark")))
	}
	engine := reconcile.New(lock.New(lockStore, "reconciler"), store, opts...)

	ctx := context.Background()
	for i, step := range scenario.Steps {
		snap, err := step.Snapshot.toSnapshot()
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		stepResult, err := engine.Reconcile(ctx, step.SnapshotID, snap)
		outcome := string(stepResult.Outcome)
		result.Outcomes = append(result.Outcomes, outcome)

		expected := step.Expect
		if expected == "" {
			expected = string(reconcile.Applied)
		}
		if outcome != expected {
			result.AddError(fmt.Sprintf("steps[%d] %s: outcome %q, want %q",
				i, step.SnapshotID, outcome, expected))
		}
		if err != nil && outcome != string(reconcile.PartialFailure) {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.SnapshotID, err)
		}
	}

	result.Ops = store.OpLog()
	result.State = captureState(store)
	runAssertions(scenario, result)
	return result, nil
}

func captureState(store *graph.Memory) GraphState {
	state := GraphState{
		Services:  append([]string{}, store.NodeKeys(graph.NodeService)...),
		Instances: append([]string{}, store.NodeKeys(graph.NodeInstance)...),
		Edges:     make(map[string][]string),
	}
	for _, kind := range []graph.EdgeKind{graph.EdgeDependsOn, graph.EdgeHasInstance} {
		if edges := store.EdgeList(kind); len(edges) > 0 {
			state.Edges[string(kind)] = edges
		}
	}
	return state
}
