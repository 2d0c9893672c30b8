package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartograph/cartograph/internal/lock"
)

func TestWatermark_LastDefaultsToZero(t *testing.T) {
	w := NewWatermark(lock.NewMemoryStore(), "wm")

	last, err := w.Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
}

func TestWatermark_AdvanceAndReadBack(t *testing.T) {
	w := NewWatermark(lock.NewMemoryStore(), "wm")
	ctx := context.Background()

	require.NoError(t, w.Advance(ctx, 4))
	last, err := w.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), last)

	require.NoError(t, w.Advance(ctx, 9))
	last, err = w.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), last)
}

func TestWatermark_SharesStoreWithLock(t *testing.T) {
	store := lock.NewMemoryStore()
	w := NewWatermark(store, "wm")
	m := lock.New(store, "lock")
	ctx := context.Background()

	require.NoError(t, w.Advance(ctx, 2))
	require.NoError(t, m.Acquire(ctx, "holder", DefaultLease))

	last, err := w.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last, "lock and watermark keys must not collide")
}

func TestTokens_UUIDv7Unique(t *testing.T) {
	gen := UUIDv7Tokens{}
	a := gen.Generate()
	b := gen.Generate()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestTokens_FixedSequence(t *testing.T) {
	gen := NewFixedTokens("t1", "t2")
	assert.Equal(t, "t1", gen.Generate())
	assert.Equal(t, "t2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}
