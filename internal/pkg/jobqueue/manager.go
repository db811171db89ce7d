package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/CourseSeat/app/repository"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/config"
	"github.com/ManuelReschke/CourseSeat/internal/pkg/metrics"
)

const sweepTimeout = 30 * time.Second

// Sweeper drops expired entries from an in-process store.
type Sweeper interface {
	Sweep() int
}

// Manager runs the periodic maintenance tasks of the enrollment engine
type Manager struct {
	enrollments repository.EnrollmentRepository
	sweeper     Sweeper
	cfg         config.Jobs

	pendingTicker *time.Ticker
	limiterTicker *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool

	now func() time.Time
}

// NewManager creates a manager. sweeper may be nil when the limiter state
// lives in Redis and expires on its own.
func NewManager(enrollments repository.EnrollmentRepository, sweeper Sweeper, cfg config.Jobs) *Manager {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 30 * time.Minute
	}
	if cfg.PendingSweepInterval <= 0 {
		cfg.PendingSweepInterval = 5 * time.Minute
	}
	if cfg.LimiterSweepInterval <= 0 {
		cfg.LimiterSweepInterval = time.Minute
	}
	return &Manager{
		enrollments: enrollments,
		sweeper:     sweeper,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Start starts the background workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting background tasks")

	m.pendingTicker = time.NewTicker(m.cfg.PendingSweepInterval)
	m.wg.Add(1)
	go m.pendingWorker(m.pendingTicker, m.stopCh)

	if m.sweeper != nil {
		m.limiterTicker = time.NewTicker(m.cfg.LimiterSweepInterval)
		m.wg.Add(1)
		go m.limiterWorker(m.limiterTicker, m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the background workers and waits for them to return
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping background tasks...")

	if m.pendingTicker != nil {
		m.pendingTicker.Stop()
	}
	if m.limiterTicker != nil {
		m.limiterTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	m.wg.Wait()

	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) pendingWorker(ticker *time.Ticker, stopCh <-chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started pending expiry worker (interval: %s, ttl: %s)", m.cfg.PendingSweepInterval, m.cfg.PendingTTL)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Pending expiry worker stopping")
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			if _, err := m.ExpirePendingOnce(ctx); err != nil {
				log.Errorf("[JobQueue Manager] Pending expiry error: %v", err)
			}
			cancel()
		}
	}
}

func (m *Manager) limiterWorker(ticker *time.Ticker, stopCh <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Limiter sweep worker stopping")
			return
		case <-ticker.C:
			m.SweepLimiterOnce()
		}
	}
}

// ExpirePendingOnce fails every pending enrollment older than the pending TTL.
// Rows that a payment confirmation moved out of pending are left alone.
func (m *Manager) ExpirePendingOnce(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.cfg.PendingTTL)
	n, err := m.enrollments.ExpireStalePending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.ExpiredPending.Add(float64(n))
		log.Infof("[JobQueue Manager] Expired %d pending enrollments created before %s", n, cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// SweepLimiterOnce drops expired login limiter entries.
func (m *Manager) SweepLimiterOnce() int {
	if m.sweeper == nil {
		return 0
	}
	n := m.sweeper.Sweep()
	if n > 0 {
		log.Debugf("[JobQueue Manager] Swept %d expired limiter entries", n)
	}
	return n
}
