package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cartograph/cartograph/internal/snapshot"
)

// Scenario defines one reconciliation scenario: a sequence of snapshots
// applied in order to a fresh graph, with expected outcomes and assertions
// over the result.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps are applied in order. Each step is one snapshot delivery.
	Steps []Step `yaml:"steps"`

	// Assertions validate the operation log and final graph state.
	// Supported types: op_contains, op_order, op_count, graph_nodes,
	// graph_edges.
	Assertions []Assertion `yaml:"assertions"`

	// Watermark enables the stale-snapshot sequence guard for the run.
	Watermark bool `yaml:"watermark,omitempty"`
}

// Step applies one snapshot under a given tag.
type Step struct {
	// SnapshotID is the delivery tag for this application.
	SnapshotID string `yaml:"snapshot_id"`

	// Snapshot is the inline registry state to apply.
	Snapshot SnapshotSpec `yaml:"snapshot"`

	// Expect is the expected outcome: applied, skipped, lock_busy or
	// partial_failure. Empty means applied.
	Expect string `yaml:"expect,omitempty"`
}

// SnapshotSpec is the YAML shape of a snapshot. Mirrors the wire payload.
type SnapshotSpec struct {
	Sequence int64         `yaml:"sequence,omitempty"`
	Services []ServiceSpec `yaml:"services"`
}

// ServiceSpec is one service entry in a scenario snapshot.
type ServiceSpec struct {
	Name      string         `yaml:"name"`
	DependsOn string         `yaml:"depends_on,omitempty"`
	Instances []InstanceSpec `yaml:"instances,omitempty"`
}

// InstanceSpec is one instance entry in a scenario snapshot.
type InstanceSpec struct {
	ID         string            `yaml:"id"`
	Attributes map[string]string `yaml:"attributes,omitempty"`
}

// Assertion type constants.
const (
	AssertOpContains = "op_contains"
	AssertOpOrder    = "op_order"
	AssertOpCount    = "op_count"
	AssertGraphNodes = "graph_nodes"
	AssertGraphEdges = "graph_edges"
)

// Assertion validates the operation log or the final graph.
type Assertion struct {
	// Type selects the assertion:
	//   - op_contains: Op appears in the operation log
	//   - op_order: Ops appear in the log in the given relative order
	//   - op_count: entries containing Op appear exactly Count times
	//   - graph_nodes: nodes of Kind are exactly Keys (sorted)
	//   - graph_edges: edges of Kind are exactly Edges ("from->to", sorted)
	Type string `yaml:"type"`

	Op    string   `yaml:"op,omitempty"`
	Ops   []string `yaml:"ops,omitempty"`
	Count int      `yaml:"count,omitempty"`
	Kind  string   `yaml:"kind,omitempty"`
	Keys  []string `yaml:"keys,omitempty"`
	Edges []string `yaml:"edges,omitempty"`
}

// toSnapshot converts the YAML spec into a normalized, validated snapshot.
func (s SnapshotSpec) toSnapshot() (*snapshot.Snapshot, error) {
	snap := &snapshot.Snapshot{Sequence: s.Sequence}
	for _, svc := range s.Services {
		record := snapshot.ServiceRecord{Name: svc.Name, DependsOn: svc.DependsOn}
		for _, inst := range svc.Instances {
			record.Instances = append(record.Instances, snapshot.InstanceRecord{
				ID:         inst.ID,
				Attributes: inst.Attributes,
			})
		}
		snap.Services = append(snap.Services, record)
	}
	snap.Normalize()
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so typos fail loudly instead of silently skipping assertions.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.SnapshotID == "" {
			return fmt.Errorf("steps[%d]: snapshot_id is required", i)
		}
		switch step.Expect {
		case "", "applied", "skipped", "lock_busy", "partial_failure":
		default:
			return fmt.Errorf("steps[%d]: unknown expect %q", i, step.Expect)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertOpContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for op_contains", index)
		}
	case AssertOpOrder:
		if len(a.Ops) < 2 {
			return fmt.Errorf("assertions[%d]: op_order needs at least two ops", index)
		}
	case AssertOpCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for op_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertGraphNodes:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for graph_nodes", index)
		}
	case AssertGraphEdges:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for graph_edges", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
