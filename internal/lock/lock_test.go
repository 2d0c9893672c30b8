package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMutex(t *testing.T) (*Mutex, *testClock) {
	t.Helper()
	clock := newTestClock()
	return New(NewMemoryStore(), "registry-sync", WithNow(clock.Now)), clock
}

func TestMutex_AcquireCreatesRecordLazily(t *testing.T) {
	m, _ := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))

	holder, err := m.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "holder-a", holder)
}

func TestMutex_SecondAcquireIsBusy(t *testing.T) {
	m, _ := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))
	assert.ErrorIs(t, m.Acquire(ctx, "holder-b", time.Minute), ErrBusy)
}

func TestMutex_ReleaseThenReacquire(t *testing.T) {
	m, _ := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))
	require.NoError(t, m.Release(ctx, "holder-a"))
	assert.NoError(t, m.Acquire(ctx, "holder-b", time.Minute))
}

func TestMutex_ReleaseByNonHolder(t *testing.T) {
	m, _ := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))
	assert.ErrorIs(t, m.Release(ctx, "holder-b"), ErrNotHolder)

	// The real holder is undisturbed.
	holder, err := m.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "holder-a", holder)
}

func TestMutex_ReleaseWithoutRecord(t *testing.T) {
	m, _ := newTestMutex(t)
	assert.ErrorIs(t, m.Release(context.Background(), "holder-a"), ErrNotHolder)
}

func TestMutex_ExpiredLeaseCanBeTakenOver(t *testing.T) {
	m, clock := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))
	assert.ErrorIs(t, m.Acquire(ctx, "holder-b", time.Minute), ErrBusy)

	clock.Advance(2 * time.Minute)
	assert.NoError(t, m.Acquire(ctx, "holder-b", time.Minute))
}

func TestMutex_FencingAfterTakeover(t *testing.T) {
	m, clock := newTestMutex(t)
	ctx := context.Background()

	// Holder A acquires, then stalls past its lease.
	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))
	clock.Advance(2 * time.Minute)

	// Holder B takes over, completes its pass, and releases.
	require.NoError(t, m.Acquire(ctx, "holder-b", time.Minute))
	require.NoError(t, m.Release(ctx, "holder-b"))

	// Holder C acquires next.
	require.NoError(t, m.Acquire(ctx, "holder-c", time.Minute))

	// The straggler's release reports the fencing violation and leaves
	// holder C untouched.
	assert.ErrorIs(t, m.Release(ctx, "holder-a"), ErrNotHolder)

	holder, err := m.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "holder-c", holder)
}

func TestMutex_StaleReleaseWhileTakeoverHolds(t *testing.T) {
	m, clock := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))
	clock.Advance(2 * time.Minute)
	require.NoError(t, m.Acquire(ctx, "holder-b", time.Minute))

	assert.ErrorIs(t, m.Release(ctx, "holder-a"), ErrNotHolder)

	holder, err := m.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "holder-b", holder)
}

func TestMutex_RenewExtendsLease(t *testing.T) {
	m, clock := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))

	clock.Advance(45 * time.Second)
	require.NoError(t, m.Renew(ctx, "holder-a", time.Minute))

	// Past the original expiry but within the renewed lease.
	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, m.Acquire(ctx, "holder-b", time.Minute), ErrBusy)
}

func TestMutex_RenewAfterExpiry(t *testing.T) {
	m, clock := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))
	clock.Advance(2 * time.Minute)

	assert.ErrorIs(t, m.Renew(ctx, "holder-a", time.Minute), ErrNotHolder)
}

func TestMutex_RenewByNonHolder(t *testing.T) {
	m, _ := newTestMutex(t)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "holder-a", time.Minute))
	assert.ErrorIs(t, m.Renew(ctx, "holder-b", time.Minute), ErrNotHolder)
}

func TestMutex_ConcurrentAcquire_ExactlyOneWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const contenders = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)
	start := make(chan struct{})

	for i := 0; i < contenders; i++ {
		holder := string(rune('a' + i))
		m := New(store, "registry-sync")
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if err := m.Acquire(ctx, holder, time.Minute); err == nil {
				mu.Lock()
				wins = append(wins, holder)
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Len(t, wins, 1, "exactly one contender may hold the lock")
}

func TestMutex_EmptyHolderRejected(t *testing.T) {
	m, _ := newTestMutex(t)
	assert.Error(t, m.Acquire(context.Background(), "", time.Minute))
}
