// Package harness runs declarative reconciliation scenarios.
//
// A scenario is a YAML file describing a sequence of snapshots applied to
// a fresh in-memory graph, the outcome expected from each application, and
// assertions over the resulting operation log and final graph state. The
// operation log makes ordering observable: a scenario can assert that no
// sweep ran before its upsert pass finished, not just that the final state
// is right.
//
// Scenarios double as golden tests: RunWithGolden serializes the outcomes,
// the operation log, and the final state, and compares them against
// testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
