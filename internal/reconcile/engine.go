// Package reconcile implements the snapshot-reconciliation engine: the
// single component allowed to mutate the graph. One pass takes one
// snapshot, tags every node and edge it describes with the delivery's
// unique ID, then sweeps everything not carrying that tag. Deletions are
// never received as facts; they are inferred by the sweep.
//
// The pass runs under the distributed lock. Ordering inside a pass is the
// correctness-critical property and is enforced here, not left to the
// store: the sweep runs strictly after the upsert pass completes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cartograph/cartograph/internal/graph"
	"github.com/cartograph/cartograph/internal/lock"
	"github.com/cartograph/cartograph/internal/snapshot"
)

// Outcome classifies one reconciliation attempt.
type Outcome string

const (
	// Applied means the graph now reflects exactly this snapshot.
	Applied Outcome = "applied"

	// LockBusy means another holder owns the lock. Expected backpressure;
	// the dispatch channel's redelivery retries later.
	LockBusy Outcome = "lock_busy"

	// Skipped means the sequence guard rejected a snapshot older than the
	// last applied one. The delivery can be acknowledged.
	Skipped Outcome = "skipped"

	// PartialFailure means an upsert or sweep failed mid-pass. The lock
	// was still released; the graph converges on the next applied
	// snapshot.
	PartialFailure Outcome = "partial_failure"
)

// Result describes what one Reconcile call did.
type Result struct {
	Outcome    Outcome
	SnapshotID string
	Holder     string

	// Upsert counts, for logging. Zero on LockBusy/Skipped.
	Services  int
	Instances int
	Edges     int
}

// DefaultLease bounds how long a crashed consumer blocks the next pass.
// It must comfortably exceed the worst-case pass duration; the dispatch
// channel's visibility timeout must exceed it in turn.
const DefaultLease = 2 * time.Minute

// Engine coordinates one reconciliation pass per call. Safe for use by a
// single worker loop; concurrency across processes is arbitrated entirely
// by the lock.
type Engine struct {
	mutex     *lock.Mutex
	store     graph.Store
	tokens    TokenGenerator
	watermark *Watermark
	lease     time.Duration
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLease overrides DefaultLease.
func WithLease(lease time.Duration) Option {
	return func(e *Engine) { e.lease = lease }
}

// WithTokens overrides the holder token generator. Tests pass FixedTokens.
func WithTokens(tokens TokenGenerator) Option {
	return func(e *Engine) { e.tokens = tokens }
}

// WithWatermark enables the stale-snapshot guard. Snapshots carrying a
// positive sequence at or below the watermark are skipped instead of
// applied; unsequenced snapshots are never guarded.
func WithWatermark(w *Watermark) Option {
	return func(e *Engine) { e.watermark = w }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine writing through store under mutex.
func New(mutex *lock.Mutex, store graph.Store, opts ...Option) *Engine {
	e := &Engine{
		mutex:  mutex,
		store:  store,
		tokens: UUIDv7Tokens{},
		lease:  DefaultLease,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile applies one snapshot under the lock. snapshotID must be the
// delivery-unique message ID: redelivering the same message re-runs the
// pass with the same tag, which is idempotent by construction.
//
// The returned error is non-nil only for Outcome PartialFailure and for
// lock-substrate faults; LockBusy and Skipped are ordinary outcomes.
func (e *Engine) Reconcile(ctx context.Context, snapshotID string, snap *snapshot.Snapshot) (Result, error) {
	if snapshotID == "" {
		return Result{}, fmt.Errorf("reconcile: empty snapshot id")
	}

	holder := e.tokens.Generate()
	result := Result{SnapshotID: snapshotID, Holder: holder}

	err := e.mutex.Acquire(ctx, holder, e.lease)
	if errors.Is(err, lock.ErrBusy) {
		result.Outcome = LockBusy
		e.logger.Info("lock busy, deferring to redelivery", "snapshot_id", snapshotID)
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("reconcile %s: %w", snapshotID, err)
	}

	// Release on every exit path. A failed pass must not wedge the lock;
	// a fencing violation is logged and swallowed because the new holder,
	// not this one, now owns the graph.
	defer func() {
		releaseErr := e.mutex.Release(ctx, holder)
		switch {
		case releaseErr == nil:
		case errors.Is(releaseErr, lock.ErrNotHolder):
			e.logger.Warn("lease lost before release; another holder may have overlapped",
				"snapshot_id", snapshotID, "holder", holder)
		default:
			e.logger.Error("lock release failed", "snapshot_id", snapshotID, "error", releaseErr)
		}
	}()

	if skip, err := e.guard(ctx, snap); err != nil {
		return result, err
	} else if skip {
		result.Outcome = Skipped
		e.logger.Info("snapshot older than watermark, skipping",
			"snapshot_id", snapshotID, "sequence", snap.Sequence)
		return result, nil
	}

	if err := e.upsertPass(ctx, snapshotID, snap, &result); err != nil {
		result.Outcome = PartialFailure
		return result, &PassError{Stage: "upsert", SnapshotID: snapshotID, Err: err}
	}

	// Sweep strictly after the upsert pass: sweeping first would
	// transiently delete entities the snapshot still contains.
	if err := e.store.DeleteNotTagged(ctx, snapshotID); err != nil {
		result.Outcome = PartialFailure
		return result, &PassError{Stage: "sweep", SnapshotID: snapshotID, Err: err}
	}

	if e.watermark != nil && snap.Sequence > 0 {
		if err := e.watermark.Advance(ctx, snap.Sequence); err != nil {
			result.Outcome = PartialFailure
			return result, &PassError{Stage: "sweep", SnapshotID: snapshotID, Err: err}
		}
	}

	result.Outcome = Applied
	e.logger.Info("snapshot applied",
		"snapshot_id", snapshotID,
		"services", result.Services,
		"instances", result.Instances,
		"edges", result.Edges)
	return result, nil
}

func (e *Engine) guard(ctx context.Context, snap *snapshot.Snapshot) (bool, error) {
	if e.watermark == nil || snap.Sequence <= 0 {
		return false, nil
	}
	last, err := e.watermark.Last(ctx)
	if err != nil {
		return false, err
	}
	return snap.Sequence <= last, nil
}

// upsertPass writes every node first, then every edge, so no edge ever
// references a node that has not been confirmed. Dependency edges are
// resolved against the snapshot itself: a target outside the snapshot is
// dropped, not an error.
func (e *Engine) upsertPass(ctx context.Context, tag string, snap *snapshot.Snapshot, result *Result) error {
	for _, svc := range snap.Services {
		svcRef := graph.NodeRef{Kind: graph.NodeService, Key: svc.Name}
		if err := e.store.UpsertNode(ctx, svcRef, map[string]string{"name": svc.Name}, tag); err != nil {
			return err
		}
		result.Services++

		for _, inst := range svc.Instances {
			instRef := graph.NodeRef{Kind: graph.NodeInstance, Key: graph.InstanceKey(svc.Name, inst.ID)}
			if err := e.store.UpsertNode(ctx, instRef, inst.Attributes, tag); err != nil {
				return err
			}
			result.Instances++

			if err := e.store.UpsertEdge(ctx, graph.EdgeHasInstance, svcRef, instRef, tag); err != nil {
				return err
			}
			result.Edges++
		}
	}

	for _, svc := range snap.Services {
		if svc.DependsOn == "" {
			continue
		}
		if !snap.HasService(svc.DependsOn) {
			e.logger.Warn("dependency target not in snapshot, dropping edge",
				"service", svc.Name, "depends_on", svc.DependsOn)
			continue
		}
		from := graph.NodeRef{Kind: graph.NodeService, Key: svc.Name}
		to := graph.NodeRef{Kind: graph.NodeService, Key: svc.DependsOn}
		if err := e.store.UpsertEdge(ctx, graph.EdgeDependsOn, from, to, tag); err != nil {
			return err
		}
		result.Edges++
	}
	return nil
}
