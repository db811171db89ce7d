package jobqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseSeat/app/models"
	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/ratelimit"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/testutil"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep() int {
	s.calls.Add(1)
	return 0
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(nil, nil, config.Jobs{})

	assert.Equal(t, 30*time.Minute, m.cfg.PendingTTL)
	assert.Equal(t, 5*time.Minute, m.cfg.PendingSweepInterval)
	assert.Equal(t, time.Minute, m.cfg.LimiterSweepInterval)
	assert.False(t, m.IsRunning())
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil, nil, config.Jobs{})

	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManager_StartStopRestart(t *testing.T) {
	sweeper := &countingSweeper{}
	m := NewManager(nil, sweeper, config.Jobs{
		PendingSweepInterval: time.Hour,
		LimiterSweepInterval: 5 * time.Millisecond,
	})

	m.Start()
	m.Start()
	assert.True(t, m.IsRunning())

	assert.Eventually(t, func() bool {
		return sweeper.calls.Load() > 0
	}, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.False(t, m.IsRunning())

	m.Start()
	assert.True(t, m.IsRunning())
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManager_ExpirePendingOnce(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewEnrollmentRepository(db)
	ctx := context.Background()
	session := testutil.CreateSession(t, db, 5, 49900)

	stale, _, err := repo.Reserve(ctx, session.ID, testutil.Payer("stale@example.com"), repository.ReservationPaid)
	require.NoError(t, err)
	require.NoError(t, repo.AttachOrder(ctx, stale.ID, "order_stale"))

	fresh, _, err := repo.Reserve(ctx, session.ID, testutil.Payer("fresh@example.com"), repository.ReservationPaid)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Enrollment{}).Where("id = ?", fresh.ID).
		UpdateColumn("created_at", time.Now().Add(2*time.Hour)).Error)

	m := NewManager(repo, nil, config.Jobs{PendingTTL: 30 * time.Minute})
	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	n, err := m.ExpirePendingOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.PaymentStatus)
	assert.Equal(t, models.FailureReasonExpired, got.FailureReason)

	got, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)

	// a capture that arrives after expiry cannot revive the row
	_, _, err = repo.ConfirmPayment(ctx, repository.PaymentConfirmation{
		OrderID:    "order_stale",
		PaymentID:  "pay_late",
		VerifiedAt: time.Now(),
	})
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)

	n, err = m.ExpirePendingOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_SweepLimiterOnce(t *testing.T) {
	clock := ratelimit.NewFakeClock(time.Now())
	store := ratelimit.NewMemoryStore(clock)
	ctx := context.Background()

	_, _, err := store.Incr(ctx, "login:attempt:a", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "login:lock:b", time.Hour))

	m := NewManager(nil, store, config.Jobs{})
	assert.Zero(t, m.SweepLimiterOnce())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, m.SweepLimiterOnce())
	assert.Equal(t, 1, store.Len())

	assert.Zero(t, NewManager(nil, nil, config.Jobs{}).SweepLimiterOnce())
}
