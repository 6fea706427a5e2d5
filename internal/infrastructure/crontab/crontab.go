package crontab

import (
	"context"
	"fmt"
	"time"

	"github.com/mileusna/crontab"

	"github.com/facksten/PushRSP-Telegram-bot/internal/domain/indexer"
	"github.com/facksten/PushRSP-Telegram-bot/internal/infrastructure/logger"
	"github.com/facksten/PushRSP-Telegram-bot/internal/utils/platformerrors"
)

const (
	DefaultUpdateIntervalHours = 6
	CronJobTimeout             = 2 * time.Hour // Timeout for each cron job execution
)

// RecentIndexer is the part of the indexer the scheduler drives.
type RecentIndexer interface {
	UpdateRecent(ctx context.Context, window time.Duration, limit int) ([]indexer.RunResult, error)
}

type Config struct {
	Enabled       bool
	IntervalHours int
	Window        time.Duration
	Limit         int
}

type Crontab struct {
	ctab    *crontab.Crontab
	indexer RecentIndexer
	cfg     Config
}

func NewCrontab(indexer RecentIndexer, cfg Config) *Crontab {
	return &Crontab{
		ctab:    crontab.New(),
		indexer: indexer,
		cfg:     cfg,
	}
}

// Run schedules the periodic channel refresh and blocks until ctx is done.
func (c *Crontab) Run(ctx context.Context) error {
	log := logger.GetLogger()
	if !c.cfg.Enabled {
		<-ctx.Done()
		c.ctab.Shutdown()
		return nil
	}

	expr := UpdateExpression(c.cfg.IntervalHours)
	if err := c.ctab.AddJob(expr, func() {
		jobCtx, cancel := context.WithTimeout(ctx, CronJobTimeout)
		defer cancel()
		c.updateRecent(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add channel update job")
	}
	log.Info().Str("schedule", expr).Dur("window", c.cfg.Window).Msg("channel update scheduled")

	<-ctx.Done()
	c.ctab.Shutdown()
	return nil
}

// UpdateExpression returns the cron expression firing every intervalHours at minute 0.
func UpdateExpression(intervalHours int) string {
	if intervalHours <= 0 {
		intervalHours = DefaultUpdateIntervalHours
	}
	if intervalHours >= 24 {
		return "0 0 * * *"
	}
	return fmt.Sprintf("0 */%d * * *", intervalHours)
}

func (c *Crontab) updateRecent(ctx context.Context) {
	log := logger.GetLogger()
	results, err := c.indexer.UpdateRecent(ctx, c.cfg.Window, c.cfg.Limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh channels")
		return
	}

	var inserted, failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		if r.Report != nil {
			inserted += r.Report.Inserted
		}
	}
	log.Info().Int("channels", len(results)).Int("failed", failed).Int("inserted", inserted).Msg("channel update finished")
}
