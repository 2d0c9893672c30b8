package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cartograph/cartograph/internal/lock"
)

// Watermark persists the sequence of the last successfully applied
// snapshot. It rides on the same conditional-put store as the lock, under
// its own key, and is only read and advanced while the lock is held, so a
// single CAS attempt suffices.
type Watermark struct {
	store lock.Store
	key   string
}

type watermarkValue struct {
	Sequence int64 `json:"sequence"`
}

// NewWatermark creates a watermark under the given store key.
func NewWatermark(store lock.Store, key string) *Watermark {
	return &Watermark{store: store, key: key}
}

// Last returns the last applied sequence, zero if none was recorded yet.
func (w *Watermark) Last(ctx context.Context) (int64, error) {
	item, err := w.store.Get(ctx, w.key)
	if errors.Is(err, lock.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("watermark: read %s: %w", w.key, err)
	}

	var val watermarkValue
	if err := json.Unmarshal(item.Value, &val); err != nil {
		return 0, fmt.Errorf("watermark: corrupt value at %s: %w", w.key, err)
	}
	return val.Sequence, nil
}

// Advance records seq as the last applied sequence. Callers hold the
// reconciliation lock, so a CAS conflict here means the invariant broke;
// it is surfaced, not retried.
func (w *Watermark) Advance(ctx context.Context, seq int64) error {
	value, err := json.Marshal(watermarkValue{Sequence: seq})
	if err != nil {
		return fmt.Errorf("watermark: encode: %w", err)
	}

	item, err := w.store.Get(ctx, w.key)
	switch {
	case errors.Is(err, lock.ErrNotFound):
		_, err = w.store.Put(ctx, lock.Item{Key: w.key, Value: value})
	case err != nil:
		return fmt.Errorf("watermark: read %s: %w", w.key, err)
	default:
		_, err = w.store.Put(ctx, lock.Item{Key: w.key, Value: value, Version: item.Version})
	}
	if err != nil {
		return fmt.Errorf("watermark: advance to %d: %w", seq, err)
	}
	return nil
}
