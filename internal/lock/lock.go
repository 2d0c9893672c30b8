package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBusy means another holder owns the lock and its lease has not
	// expired. Expected backpressure, not a fault: callers retry via the
	// dispatch channel's redelivery.
	ErrBusy = errors.New("lock: busy")

	// ErrNotHolder means the caller's token no longer matches the current
	// holder. This is the fencing check: a holder that outlived its lease
	// must not touch the lock state the new holder relies on.
	ErrNotHolder = errors.New("lock: not holder")
)

// Record is the lock state serialized into the store item.
type Record struct {
	Holder      string    `json:"holder,omitempty"`
	AcquiredAt  time.Time `json:"acquired_at,omitempty"`
	LeaseExpiry time.Time `json:"lease_expiry,omitempty"`
}

func (r Record) heldAt(now time.Time) bool {
	return r.Holder != "" && r.LeaseExpiry.After(now)
}

// Mutex is a leased distributed lock over one fixed key. All methods are
// single round trips plus one CAS; none of them block or retry internally.
type Mutex struct {
	store Store
	key   string
	now   func() time.Time
}

// Option configures a Mutex.
type Option func(*Mutex)

// WithNow injects a clock. Tests use this to expire leases on demand.
func WithNow(now func() time.Time) Option {
	return func(m *Mutex) { m.now = now }
}

// New creates a Mutex over the given store key. The record is created
// lazily on first acquire, so no provisioning step is needed beyond the
// store itself.
func New(store Store, key string, opts ...Option) *Mutex {
	m := &Mutex{store: store, key: key, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire takes the lock for holder with the given lease. Returns ErrBusy
// while an unexpired holder exists. An expired lease is taken over
// immediately; the CAS guarantees only one contender wins the takeover.
func (m *Mutex) Acquire(ctx context.Context, holder string, lease time.Duration) error {
	if holder == "" {
		return fmt.Errorf("lock: empty holder token")
	}
	now := m.now()
	rec := Record{Holder: holder, AcquiredAt: now, LeaseExpiry: now.Add(lease)}

	item, err := m.store.Get(ctx, m.key)
	switch {
	case errors.Is(err, ErrNotFound):
		// First use: create the record already held.
		if err := m.put(ctx, rec, 0); errors.Is(err, ErrConflict) {
			return ErrBusy
		} else if err != nil {
			return err
		}
		return nil
	case err != nil:
		return fmt.Errorf("lock: read %s: %w", m.key, err)
	}

	current, err := decodeRecord(item)
	if err != nil {
		return err
	}
	if current.heldAt(now) {
		return ErrBusy
	}
	if err := m.put(ctx, rec, item.Version); errors.Is(err, ErrConflict) {
		return ErrBusy
	} else if err != nil {
		return err
	}
	return nil
}

// Renew extends the lease if holder still owns the lock. Returns
// ErrNotHolder once the lease expired or was taken over.
func (m *Mutex) Renew(ctx context.Context, holder string, lease time.Duration) error {
	now := m.now()

	item, current, err := m.read(ctx)
	if err != nil {
		return err
	}
	if current.Holder != holder || !current.heldAt(now) {
		return ErrNotHolder
	}
	current.LeaseExpiry = now.Add(lease)
	if err := m.put(ctx, current, item.Version); errors.Is(err, ErrConflict) {
		return ErrNotHolder
	} else if err != nil {
		return err
	}
	return nil
}

// Release clears the lock if holder still owns it. A stale holder gets
// ErrNotHolder and leaves the current holder's state untouched; this is
// deliberate and the caller must treat it as a warning, not retry.
func (m *Mutex) Release(ctx context.Context, holder string) error {
	item, current, err := m.read(ctx)
	if errors.Is(err, ErrNotFound) {
		return ErrNotHolder
	}
	if err != nil {
		return err
	}
	if current.Holder != holder {
		return ErrNotHolder
	}
	if err := m.put(ctx, Record{}, item.Version); errors.Is(err, ErrConflict) {
		return ErrNotHolder
	} else if err != nil {
		return err
	}
	return nil
}

// Holder returns the current holder token, or "" when free or expired.
// Diagnostic only; never use this to decide whether to write.
func (m *Mutex) Holder(ctx context.Context) (string, error) {
	_, current, err := m.read(ctx)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if !current.heldAt(m.now()) {
		return "", nil
	}
	return current.Holder, nil
}

func (m *Mutex) read(ctx context.Context) (Item, Record, error) {
	item, err := m.store.Get(ctx, m.key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Item{}, Record{}, err
		}
		return Item{}, Record{}, fmt.Errorf("lock: read %s: %w", m.key, err)
	}
	rec, err := decodeRecord(item)
	return item, rec, err
}

func (m *Mutex) put(ctx context.Context, rec Record, version int64) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("lock: encode record: %w", err)
	}
	_, err = m.store.Put(ctx, Item{Key: m.key, Value: value, Version: version})
	if err != nil && !errors.Is(err, ErrConflict) {
		return fmt.Errorf("lock: write %s: %w", m.key, err)
	}
	return err
}

func decodeRecord(item Item) (Record, error) {
	var rec Record
	if len(item.Value) == 0 {
		return rec, nil
	}
	if err := json.Unmarshal(item.Value, &rec); err != nil {
		return rec, fmt.Errorf("lock: corrupt record at %s: %w", item.Key, err)
	}
	return rec, nil
}
