package turntimer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = time.Second

type recorder struct {
	ticks   chan time.Duration
	expires chan uint64
}

func newRecorder() *recorder {
	return &recorder{
		ticks:   make(chan time.Duration, 64),
		expires: make(chan uint64, 8),
	}
}

func (r *recorder) tick(_ uint64, remaining time.Duration) { r.ticks <- remaining }
func (r *recorder) expire(id uint64)                      { r.expires <- id }

func blockUntilTicker(t *testing.T, clock *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
}

// step advances the clock by one interval and waits for the matching tick.
func step(t *testing.T, clock *clockwork.FakeClock, r *recorder, want time.Duration) {
	t.Helper()
	clock.Advance(time.Second)
	select {
	case got := <-r.ticks:
		require.Equal(t, want, got)
	case <-time.After(wait):
		t.Fatalf("no tick for remaining=%s", want)
	}
}

func expectNoExpire(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case id := <-r.expires:
		t.Fatalf("unexpected expiry of countdown %d", id)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimer_ExpiresOnceAfterFullDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := newRecorder()
	tm := New(clock, time.Second)

	id := tm.Start(3*time.Second, r.tick, r.expire)
	require.True(t, tm.Active())
	assert.Equal(t, id, tm.Current())
	assert.Equal(t, 3*time.Second, tm.Remaining())

	blockUntilTicker(t, clock)
	step(t, clock, r, 2*time.Second)
	step(t, clock, r, time.Second)
	assert.Equal(t, time.Second, tm.Remaining())

	clock.Advance(time.Second)
	select {
	case got := <-r.expires:
		assert.Equal(t, id, got)
	case <-time.After(wait):
		t.Fatal("countdown did not expire")
	}

	assert.False(t, tm.Active())
	assert.Zero(t, tm.Remaining())

	// nothing else arrives once the countdown is over
	clock.Advance(5 * time.Second)
	expectNoExpire(t, r)
}

func TestTimer_CancelSuppressesExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := newRecorder()
	tm := New(clock, time.Second)

	tm.Start(2*time.Second, r.tick, r.expire)
	blockUntilTicker(t, clock)
	step(t, clock, r, time.Second)

	tm.Cancel()
	tm.Cancel() // idempotent
	assert.False(t, tm.Active())

	clock.Advance(time.Second)
	clock.Advance(time.Second)
	expectNoExpire(t, r)
}

func TestTimer_ResetRestartsFullDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := newRecorder()
	tm := New(clock, time.Second)

	first := tm.Start(2*time.Second, r.tick, r.expire)
	blockUntilTicker(t, clock)
	step(t, clock, r, time.Second)

	second := tm.Reset(2 * time.Second)
	require.NotEqual(t, first, second)
	assert.Equal(t, second, tm.Current())
	assert.Equal(t, 2*time.Second, tm.Remaining())

	// the first countdown would have expired here
	blockUntilTicker(t, clock)
	step(t, clock, r, time.Second)

	clock.Advance(time.Second)
	select {
	case got := <-r.expires:
		assert.Equal(t, second, got)
	case <-time.After(wait):
		t.Fatal("reset countdown did not expire")
	}
	expectNoExpire(t, r)
}

func TestTimer_ShortDurationStillExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := newRecorder()
	tm := New(clock, time.Second)

	id := tm.Start(500*time.Millisecond, r.tick, r.expire)
	blockUntilTicker(t, clock)
	clock.Advance(time.Second)

	select {
	case got := <-r.expires:
		assert.Equal(t, id, got)
	case <-time.After(wait):
		t.Fatal("countdown did not expire")
	}
	assert.Empty(t, r.ticks)
}

func TestTimer_NewDefaults(t *testing.T) {
	tm := New(nil, 0)
	assert.Equal(t, time.Second, tm.interval)
	assert.NotNil(t, tm.clock)
	assert.False(t, tm.Active())
	tm.Cancel()
}
