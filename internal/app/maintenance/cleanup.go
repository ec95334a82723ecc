// Package maintenance runs the background cleanup jobs that keep the durable
// store from growing without bound.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kisansathi/gateway/internal/models"
	"github.com/kisansathi/gateway/internal/store"
	"github.com/kisansathi/gateway/pkg/logger"
)

const (
	defaultCacheSpec       = "@hourly"
	defaultSyncedSpec      = "@daily"
	defaultSyncedRetention = 7 * 24 * time.Hour
)

// Cleaner coordinates background maintenance: sweeping expired response cache
// entries and pruning synced crop-analysis history past its retention window.
type Cleaner struct {
	store   *store.Store
	cron    *cron.Cron
	now     func() time.Time
	log     *zap.Logger
	enabled bool

	cacheSchedule   string
	syncedSchedule  string
	syncedRetention time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithCacheSchedule overrides the cron schedule for expired cache sweeps.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// WithSyncedSchedule overrides the cron schedule for synced history pruning.
func WithSyncedSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.syncedSchedule = spec
		}
	}
}

// WithSyncedRetention adjusts how long synced crop-analysis records are kept.
func WithSyncedRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.syncedRetention = retention
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil store results
// in all jobs being skipped.
func NewCleaner(st *store.Store, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		store:           st,
		now:             time.Now,
		cacheSchedule:   defaultCacheSpec,
		syncedSchedule:  defaultSyncedSpec,
		syncedRetention: defaultSyncedRetention,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.store != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if _, err := c.cron.AddFunc(c.cacheSchedule, func() {
		ctx := context.Background()
		if removed, err := c.store.ClearExpiredCache(ctx); err != nil {
			c.log.Warn("expired cache sweep failed", zap.Error(err))
		} else if removed > 0 {
			c.log.Info("expired cache entries removed", zap.Int64("count", removed))
		}
	}); err != nil {
		return err
	}

	if _, err := c.cron.AddFunc(c.syncedSchedule, func() {
		ctx := context.Background()
		if removed, err := c.store.PruneSyncedRecords(ctx, models.CategoryCropAnalysis, c.syncedRetention); err != nil {
			c.log.Warn("synced history prune failed", zap.Error(err))
		} else if removed > 0 {
			c.log.Info("synced crop analysis records pruned", zap.Int64("count", removed))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if _, err := c.store.ClearExpiredCache(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.store.PruneSyncedRecords(ctx, models.CategoryCropAnalysis, c.syncedRetention); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}
