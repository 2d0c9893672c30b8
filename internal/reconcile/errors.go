package reconcile

import "fmt"

// PassError reports a failure inside one reconciliation pass. The stage
// tells operators whether the graph was left before the sweep ("upsert")
// or mid-sweep ("sweep"); either way the next applied snapshot converges
// the graph, so the error is retryable at message granularity.
type PassError struct {
	Stage      string // "upsert" or "sweep"
	SnapshotID string
	Err        error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("reconcile %s: %s failed: %v", e.SnapshotID, e.Stage, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}
