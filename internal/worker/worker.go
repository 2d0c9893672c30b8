// Package worker runs the consumer loop: receive one snapshot delivery,
// decode and validate it, hand it to the reconciliation engine, and decide
// the delivery's fate from the outcome.
//
// Ack policy:
//   - Applied, Skipped: ack — the message is spent
//   - LockBusy: leave it — the visibility timeout redelivers it
//   - PartialFailure: leave it — redelivery retries, or a newer snapshot
//     supersedes it
//   - undecodable payload: leave it — retention and dead-lettering are the
//     queue's policy, not ours
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cartograph/cartograph/internal/queue"
	"github.com/cartograph/cartograph/internal/reconcile"
	"github.com/cartograph/cartograph/internal/snapshot"
)

// Worker consumes the dispatch channel until its context is canceled.
type Worker struct {
	consumer queue.Consumer
	engine   *reconcile.Engine
	logger   *slog.Logger

	// receiveBackoff throttles the loop after a transport error.
	receiveBackoff time.Duration
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithReceiveBackoff overrides the pause after a failed receive.
func WithReceiveBackoff(d time.Duration) Option {
	return func(w *Worker) { w.receiveBackoff = d }
}

// New creates a Worker.
func New(consumer queue.Consumer, engine *reconcile.Engine, opts ...Option) *Worker {
	w := &Worker{
		consumer:       consumer,
		engine:         engine,
		logger:         slog.Default(),
		receiveBackoff: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run loops until ctx is canceled. Individual delivery failures never stop
// the loop; the system retries at the granularity of the next message.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started")
	for {
		if ctx.Err() != nil {
			w.logger.Info("worker stopping")
			return nil
		}

		delivery, err := w.consumer.Receive(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrBatchTooLarge) {
				w.logger.Error("dispatch channel handed over a batch; check queue configuration", "error", err)
			} else {
				w.logger.Error("receive failed", "error", err)
			}
			select {
			case <-ctx.Done():
			case <-time.After(w.receiveBackoff):
			}
			continue
		}
		if delivery == nil {
			continue
		}

		w.handle(ctx, delivery)
	}
}

func (w *Worker) handle(ctx context.Context, d *queue.Delivery) {
	snap, err := snapshot.Decode(d.Body)
	if err != nil {
		w.logger.Error("rejecting undecodable snapshot payload",
			"message_id", d.ID, "error", err)
		return
	}

	checksum, err := snapshot.Checksum(snap)
	if err != nil {
		checksum = "unknown"
	}
	w.logger.Info("snapshot received",
		"message_id", d.ID,
		"services", len(snap.Services),
		"checksum", checksum)

	result, err := w.engine.Reconcile(ctx, d.ID, snap)
	switch result.Outcome {
	case reconcile.Applied, reconcile.Skipped:
		if ackErr := w.consumer.Ack(ctx, d); ackErr != nil {
			// Redelivery of an applied snapshot is harmless: same ID,
			// same tag, idempotent pass.
			w.logger.Warn("ack failed", "message_id", d.ID, "error", ackErr)
		}
	case reconcile.LockBusy:
		// Nothing to do; the visibility timeout schedules the retry.
	case reconcile.PartialFailure:
		w.logger.Error("reconciliation failed, leaving message for redelivery",
			"message_id", d.ID, "error", err)
	default:
		if err != nil {
			w.logger.Error("reconciliation error", "message_id", d.ID, "error", err)
		}
	}
}
