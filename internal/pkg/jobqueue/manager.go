package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/jackmine/storefront/app/repository"
	"github.com/jackmine/storefront/internal/pkg/billing"
	"github.com/jackmine/storefront/internal/pkg/env"
	"github.com/jackmine/storefront/internal/pkg/metrics"
	"github.com/jackmine/storefront/internal/pkg/poller"
)

const (
	DefaultGracePeriod   = 72 * time.Hour
	DefaultSweepInterval = 15 * time.Minute
	DefaultStatsInterval = 30 * time.Second
)

// CacheInvalidator drops cached status documents after the sweeper changed rows.
type CacheInvalidator interface {
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

// ManagerConfig wires the background tasks next to the queue.
type ManagerConfig struct {
	Subscriptions repository.SubscriptionRepository
	Cache         CacheInvalidator
	GracePeriod   time.Duration
	SweepInterval time.Duration
	StatsInterval time.Duration
}

// ManagerConfigFromEnv reads SUBSCRIPTION_GRACE_HOURS, SUBSCRIPTION_SWEEP_MINUTES
// and JOBQUEUE_STATS_SECONDS.
func ManagerConfigFromEnv(subs repository.SubscriptionRepository, cache CacheInvalidator) ManagerConfig {
	return ManagerConfig{
		Subscriptions: subs,
		Cache:         cache,
		GracePeriod:   time.Duration(env.GetEnvInt("SUBSCRIPTION_GRACE_HOURS", 72)) * time.Hour,
		SweepInterval: time.Duration(env.GetEnvInt("SUBSCRIPTION_SWEEP_MINUTES", 15)) * time.Minute,
		StatsInterval: time.Duration(env.GetEnvInt("JOBQUEUE_STATS_SECONDS", 30)) * time.Second,
	}
}

// Manager owns the job queue, the subscription expiry sweeper and the queue gauges.
type Manager struct {
	queue  *Queue
	cfg    ManagerConfig
	expiry *poller.Poller
	stats  *poller.Poller
	mu     sync.Mutex
	now    func() time.Time
}

func NewManager(queue *Queue, cfg ManagerConfig) *Manager {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	m := &Manager{
		queue: queue,
		cfg:   cfg,
		now:   time.Now,
	}
	m.expiry = poller.New("subscription-expiry", cfg.SweepInterval, m.expireOverdue)
	m.stats = poller.New("jobqueue-stats", cfg.StatsInterval, m.recordQueueStats)
	return m
}

// Start starts the job queue and background tasks
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stats.IsRunning() {
		return
	}

	log.Info("[JobQueue Manager] Starting job queue and background tasks")
	m.queue.Start()
	m.stats.Start(ctx)
	if m.cfg.Subscriptions != nil {
		m.expiry.Start(ctx)
	} else {
		log.Warn("[JobQueue Manager] No subscription repository, expiry sweeper disabled")
	}
	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	m.expiry.Stop()
	m.stats.Stop()
	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped successfully")
}

// IsRunning returns whether the queue workers are up
func (m *Manager) IsRunning() bool {
	m.queue.mu.Lock()
	defer m.queue.mu.Unlock()
	return m.queue.running
}

// RunExpirySweepOnce runs a single expiry pass outside the schedule.
func (m *Manager) RunExpirySweepOnce(ctx context.Context) (int64, error) {
	return m.sweep(ctx)
}

func (m *Manager) expireOverdue(ctx context.Context) error {
	_, err := m.sweep(ctx)
	return err
}

func (m *Manager) sweep(ctx context.Context) (int64, error) {
	cutoff := m.now().Add(-m.cfg.GracePeriod)
	n, err := m.cfg.Subscriptions.ExpireOverdue(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		log.Debug("[JobQueue Manager] No overdue subscriptions")
		return 0, nil
	}

	log.Infof("[JobQueue Manager] Marked %d overdue subscriptions inactive (cutoff %s)", n, cutoff.Format(time.RFC3339))
	metrics.SubscriptionsExpired.Add(float64(n))
	if m.cfg.Cache != nil {
		if _, err := m.cfg.Cache.DeletePrefix(ctx, billing.StatusCacheKey("")); err != nil {
			log.Warnf("[JobQueue Manager] Status cache flush failed: %v", err)
		}
	}
	return n, nil
}

// recordQueueStats publishes the queue lengths and the Redis status counters as gauges.
func (m *Manager) recordQueueStats(ctx context.Context) error {
	pending, err := m.queue.GetQueueSize(ctx)
	if err != nil {
		return err
	}
	processing, err := m.queue.GetProcessingSize(ctx)
	if err != nil {
		return err
	}
	stats, err := m.queue.GetJobStats(ctx)
	if err != nil {
		return err
	}

	metrics.JobQueueDepth.WithLabelValues("pending").Set(float64(pending))
	metrics.JobQueueDepth.WithLabelValues("processing").Set(float64(processing))
	for status, n := range stats {
		metrics.JobStatusCount.WithLabelValues(string(status)).Set(float64(n))
	}
	return nil
}
