package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(hour, day int) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	return NewLimiter(Limits{MaxPerHour: hour, MaxPerDay: day}, WithClock(clock.Now)), clock
}

func TestLimiter_FirstContactAllowed(t *testing.T) {
	l, _ := newTestLimiter(1, 1)
	assert.NoError(t, l.Check(context.Background(), "acct-1", "5550001"))
}

func TestLimiter_HourBoundary(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter(20, 100)

	for i := 0; i < 20; i++ {
		require.NoError(t, l.Check(ctx, "acct-1", "5550001"), "send %d", i+1)
		require.NoError(t, l.Increment(ctx, "acct-1", "5550001"))
		clock.Advance(time.Second)
	}

	err := l.Check(ctx, "acct-1", "5550001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))

	var limitErr *LimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, "hour", limitErr.Window)
	assert.Equal(t, time.Hour-20*time.Second, limitErr.RetryAfter)

	clock.Advance(time.Hour)
	assert.NoError(t, l.Check(ctx, "acct-1", "5550001"))
}

func TestLimiter_CheckDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(2, 10)

	require.NoError(t, l.Increment(ctx, "a", "d"))
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Check(ctx, "a", "d"))
	}
	require.NoError(t, l.Increment(ctx, "a", "d"))
	assert.Error(t, l.Check(ctx, "a", "d"))
}

func TestLimiter_DayWindow(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestLimiter(100, 3)

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Increment(ctx, "a", "d"))
		clock.Advance(2 * time.Hour)
	}

	var limitErr *LimitError
	require.ErrorAs(t, l.Check(ctx, "a", "d"), &limitErr)
	assert.Equal(t, "day", limitErr.Window)
	assert.Equal(t, 18*time.Hour, limitErr.RetryAfter)

	clock.Advance(18 * time.Hour)
	assert.NoError(t, l.Check(ctx, "a", "d"))
}

func TestLimiter_HourCheckedFirst(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(1, 1)
	require.NoError(t, l.Increment(ctx, "a", "d"))

	var limitErr *LimitError
	require.ErrorAs(t, l.Check(ctx, "a", "d"), &limitErr)
	assert.Equal(t, "hour", limitErr.Window)
}

func TestLimiter_Reset(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(1, 1)
	require.NoError(t, l.Increment(ctx, "a", "d"))
	require.Error(t, l.Check(ctx, "a", "d"))

	require.NoError(t, l.Reset(ctx, "a", "d"))
	assert.NoError(t, l.Check(ctx, "a", "d"))
	require.NoError(t, l.Reset(ctx, "a", "unknown"))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("boom")
}
func (failingStore) Put(context.Context, string, Entry) error { return errors.New("boom") }
func (failingStore) Delete(context.Context, string) error     { return errors.New("boom") }

func TestLimiter_StoreErrors(t *testing.T) {
	ctx := context.Background()
	l := NewLimiter(Limits{MaxPerHour: 1, MaxPerDay: 1}, WithStore(failingStore{}))

	err := l.Check(ctx, "a", "d")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRateLimited))
	assert.Error(t, l.Increment(ctx, "a", "d"))
	assert.Error(t, l.Reset(ctx, "a", "d"))
}
