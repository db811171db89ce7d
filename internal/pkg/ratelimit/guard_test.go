package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		MaxAttempts:      5,
		AttemptWindow:    15 * time.Minute,
		LockoutThreshold: 10,
		LockoutWindow:    time.Hour,
		LockoutDuration:  30 * time.Minute,
	}
}

func newTestGuard() (*Guard, *FakeClock, *MemoryStore) {
	clock := NewFakeClock(time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC))
	store := NewMemoryStore(clock)
	return NewGuard(store, testPolicy()), clock, store
}

func TestGuard_LimitsAttemptsWithinWindow(t *testing.T) {
	guard, clock, _ := newTestGuard()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := guard.Allow(ctx, "10.0.0.1", "admin@example.com")
		require.NoError(t, err)
		assert.True(t, d.Allowed(), "attempt %d", i+1)
		clock.Advance(time.Minute)
	}

	d, err := guard.Allow(ctx, "10.0.0.1", "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, Limited, d.Status)
	assert.Equal(t, 10*time.Minute, d.RetryAfter)
	assert.Equal(t, 600, d.RetryAfterSeconds())

	// another client address has its own window
	d, err = guard.Allow(ctx, "10.0.0.2", "admin@example.com")
	require.NoError(t, err)
	assert.True(t, d.Allowed())

	clock.Advance(10 * time.Minute)
	d, err = guard.Allow(ctx, "10.0.0.1", "ADMIN@example.com ")
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestGuard_LocksAccountAfterRepeatedFailures(t *testing.T) {
	guard, clock, _ := newTestGuard()
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		d, err := guard.Fail(ctx, "admin@example.com")
		require.NoError(t, err)
		assert.True(t, d.Allowed())
	}
	d, err := guard.Fail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, Locked, d.Status)

	clock.Advance(5 * time.Minute)
	d, err = guard.Allow(ctx, "10.0.0.9", "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, Locked, d.Status)
	assert.Equal(t, 25*time.Minute, d.RetryAfter)

	clock.Advance(25 * time.Minute)
	d, err = guard.Allow(ctx, "10.0.0.9", "admin@example.com")
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestGuard_FailuresOutsideWindowDoNotLock(t *testing.T) {
	guard, clock, _ := newTestGuard()
	ctx := context.Background()

	for i := 0; i < 9; i++ {
		_, err := guard.Fail(ctx, "admin@example.com")
		require.NoError(t, err)
	}
	clock.Advance(time.Hour)

	d, err := guard.Fail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestGuard_ResetClearsCounters(t *testing.T) {
	guard, _, store := newTestGuard()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := guard.Allow(ctx, "10.0.0.1", "admin@example.com")
		require.NoError(t, err)
		_, err = guard.Fail(ctx, "admin@example.com")
		require.NoError(t, err)
	}
	require.NoError(t, guard.Reset(ctx, "10.0.0.1", "admin@example.com"))
	assert.Zero(t, store.Len())

	d, err := guard.Allow(ctx, "10.0.0.1", "admin@example.com")
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestDecision_RetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 2, Decision{RetryAfter: 1100 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 1, Decision{}.RetryAfterSeconds())
}
