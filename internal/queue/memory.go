package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process dispatch channel with real at-least-once
// semantics: unacked deliveries become visible again after the visibility
// timeout. It backs tests and single-process deployments.
//
// Thread-safety follows the mutex-plus-signal-channel shape: Publish may be
// called from any goroutine while one consumer loops on Receive. The signal
// channel has a buffer of one so concurrent publishes coalesce.
type Memory struct {
	mu         sync.Mutex
	messages   []*memoryMessage
	nextID     int
	visibility time.Duration
	now        func() time.Time
	signal     chan struct{}
}

type memoryMessage struct {
	id          string
	body        []byte
	invisibleTo time.Time
	deliveries  int
}

// MemoryOption configures a Memory channel.
type MemoryOption func(*Memory)

// WithVisibilityTimeout sets how long an unacked delivery stays invisible.
// Default is 30 seconds.
func WithVisibilityTimeout(d time.Duration) MemoryOption {
	return func(m *Memory) { m.visibility = d }
}

// WithNow injects a clock for deterministic redelivery tests.
func WithNow(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty in-memory channel.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		visibility: 30 * time.Second,
		now:        time.Now,
		signal:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Publish enqueues one message and returns its assigned ID.
func (m *Memory) Publish(ctx context.Context, body []byte) (string, error) {
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("msg-%d", m.nextID)
	m.messages = append(m.messages, &memoryMessage{id: id, body: body})
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return id, nil
}

// Receive returns the next visible message, or (nil, nil) once ctx is done
// with nothing available. The returned delivery is invisible to other
// Receive calls until acked or the visibility timeout elapses.
func (m *Memory) Receive(ctx context.Context) (*Delivery, error) {
	for {
		if d := m.tryReceive(); d != nil {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-m.signal:
		case <-time.After(10 * time.Millisecond):
			// Re-check for messages whose visibility timeout expired.
		}
	}
}

func (m *Memory) tryReceive() *Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, msg := range m.messages {
		if msg.invisibleTo.After(now) {
			continue
		}
		msg.invisibleTo = now.Add(m.visibility)
		msg.deliveries++
		return &Delivery{
			ID:      msg.id,
			Body:    msg.body,
			Receipt: fmt.Sprintf("%s#%d", msg.id, msg.deliveries),
		}
	}
	return nil
}

// Ack removes the message. Acking with a stale receipt (the message was
// already redelivered to someone else) is rejected, mirroring SQS receipt
// handle behavior closely enough for tests.
func (m *Memory) Ack(ctx context.Context, d *Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.messages {
		if msg.id != d.ID {
			continue
		}
		current := fmt.Sprintf("%s#%d", msg.id, msg.deliveries)
		if current != d.Receipt {
			return fmt.Errorf("queue: stale receipt %s", d.Receipt)
		}
		m.messages = append(m.messages[:i], m.messages[i+1:]...)
		return nil
	}
	// Already acked; at-least-once makes duplicate acks harmless.
	return nil
}

// Len reports how many messages remain (visible or not). Test helper.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
