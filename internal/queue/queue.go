// Package queue is the dispatch channel: an at-least-once, one-message-at-
// a-time conduit for serialized snapshots. The channel assigns every
// message a delivery-unique ID, which the reconciliation engine reuses as
// the snapshot tag.
//
// Delivery semantics the rest of the system leans on:
//   - at-least-once: a message not acknowledged within the visibility
//     timeout is redelivered, with the same ID
//   - no fan-out: a delivery is visible to exactly one consumer call at a
//     time
//   - no ordering between messages; each snapshot is self-contained
package queue

import (
	"context"
	"errors"
)

// ErrBatchTooLarge is returned when the transport hands over more than one
// message at once. Reconciliation is strictly one snapshot per pass.
var ErrBatchTooLarge = errors.New("queue: received more than one message in a batch")

// Delivery is one received message. ID is stable across redeliveries of
// the same message; Receipt identifies this particular delivery for Ack.
type Delivery struct {
	ID      string
	Body    []byte
	Receipt string
}

// Consumer receives snapshot messages. Receive blocks until a message is
// available, the wait times out (nil, nil), or ctx is done.
type Consumer interface {
	Receive(ctx context.Context) (*Delivery, error)

	// Ack removes the delivered message so it is not redelivered. Called
	// only after the snapshot was applied (or deliberately skipped).
	Ack(ctx context.Context, d *Delivery) error
}

// Publisher sends one serialized snapshot and returns the message ID the
// channel assigned to it.
type Publisher interface {
	Publish(ctx context.Context, body []byte) (string, error)
}
