package harness

// GraphState is the final graph, flattened into deterministic slices.
type GraphState struct {
	Services  []string            `json:"services"`
	Instances []string            `json:"instances"`
	Edges     map[string][]string `json:"edges"`
}

// Result is the outcome of one scenario execution.
type Result struct {
	// Pass is true when every step outcome and every assertion matched.
	Pass bool `json:"pass"`

	// Outcomes records the engine outcome of each step, in order.
	Outcomes []string `json:"outcomes"`

	// Ops is the full operation log across all steps.
	Ops []string `json:"ops"`

	// State is the final graph state.
	State GraphState `json:"state"`

	// Errors contains validation failures. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result to accumulate into.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a validation failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}
