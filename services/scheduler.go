package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// SchedulerConfig lists the periodic jobs. A nil Publisher disables the
// snapshot job.
type SchedulerConfig struct {
	Nonces          *NonceStore
	NoncePurgeEvery time.Duration
	Publisher       *SnapshotPublisher
	SnapshotEvery   time.Duration
}

// StartScheduler registers the jobs and starts the scheduler. The caller
// owns Shutdown.
func StartScheduler(ctx context.Context, cfg SchedulerConfig) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	if cfg.Nonces != nil && cfg.NoncePurgeEvery > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.NoncePurgeEvery),
			gocron.NewTask(func() {
				if _, err := cfg.Nonces.PurgeExpired(ctx); err != nil {
					zap.L().Error("[Scheduler] nonce purge failed", zap.Error(err))
				}
			}),
			gocron.WithName("nonce-purge"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule nonce purge: %w", err)
		}
	}

	if cfg.Publisher != nil && cfg.SnapshotEvery > 0 {
		_, err = sched.NewJob(
			gocron.DurationJob(cfg.SnapshotEvery),
			gocron.NewTask(func() {
				if _, err := cfg.Publisher.PublishAll(ctx); err != nil {
					zap.L().Error("[Scheduler] snapshot publish failed", zap.Error(err))
				}
			}),
			gocron.WithName("leaderboard-snapshots"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule snapshot publish: %w", err)
		}
	}

	sched.Start()
	zap.L().Info("[Scheduler] started", zap.Int("jobs", len(sched.Jobs())))
	return sched, nil
}
