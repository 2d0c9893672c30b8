package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// runSnapshot is the serialized form compared against golden files. Field
// order is fixed by the struct; slices are already deterministic because
// snapshots are normalized and the state capture sorts its keys.
type runSnapshot struct {
	ScenarioName string     `json:"scenario_name"`
	Outcomes     []string   `json:"outcomes"`
	Ops          []string   `json:"ops"`
	State        GraphState `json:"state"`
}

// RunWithGolden executes a scenario and compares its outcomes, operation
// log, and final state against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario could not be executed or failed its own
// expectations; golden mismatches fail t via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		for _, msg := range result.Errors {
			t.Error(msg)
		}
	}

	// Encoder rather than MarshalIndent: the op log contains "->", which
	// must not be HTML-escaped in golden files.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runSnapshot{
		ScenarioName: scenario.Name,
		Outcomes:     result.Outcomes,
		Ops:          result.Ops,
		State:        result.State,
	}); err != nil {
		return err
	}
	data := buf.Bytes()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
