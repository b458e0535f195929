package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"paperwatch/internal/config"
	"paperwatch/internal/ports"
)

// CronScheduler triggers the pipeline on a cron expression in the
// configured timezone.
type CronScheduler struct {
	spec     string
	location *time.Location
	cron     *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from configuration.
func NewCronScheduler(cfg config.SchedulerConfig) *CronScheduler {
	return &CronScheduler{
		spec:     cfg.CronExpression,
		location: cfg.Location(),
	}
}

// Start registers the job and begins scheduling. Calling Start on a
// running scheduler is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if c.cron != nil {
		return nil
	}

	runner := cron.New(cron.WithLocation(c.location))
	if _, err := runner.AddFunc(c.spec, func() {
		job(time.Now().In(c.location))
	}); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", c.spec, err)
	}

	c.cron = runner
	c.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running job, bounded by ctx.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.cron == nil {
		return nil
	}

	done := c.cron.Stop()
	c.cron = nil

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
