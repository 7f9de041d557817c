package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"DailyBriefing/internal/ports"
	"DailyBriefing/pkg/logger"
)

// CronScheduler fires a job on a standard five-field cron expression
// evaluated in the configured location.
type CronScheduler struct {
	spec     string
	schedule cron.Schedule
	loc      *time.Location
	base     *slog.Logger
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
	quit chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
// Descriptors such as @daily and @every 1h are accepted as well.
func NewCronScheduler(spec string, loc *time.Location, log *slog.Logger) (*CronScheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("cron %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &CronScheduler{
		spec:     spec,
		schedule: schedule,
		loc:      loc,
		base:     log,
		logger:   log.With("component", "scheduler.cron"),
	}, nil
}

// Next returns the first trigger strictly after t, in the scheduler location.
func (c *CronScheduler) Next(t time.Time) time.Time {
	return c.schedule.Next(t.In(c.loc))
}

// Start runs job at every trigger until ctx is cancelled or Stop is called.
// A trigger that fires while the previous job still runs is skipped.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	cronLog := logger.NewCron(c.base, "scheduler.cron")
	runner := cron.New(
		cron.WithLocation(c.loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now().In(c.loc)) }); err != nil {
		return fmt.Errorf("cron %q: %w", c.spec, err)
	}
	runner.Start()
	quit := make(chan struct{})
	c.cron, c.quit = runner, quit
	c.logger.Info("next run scheduled", "at", c.Next(time.Now()))

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop(context.Background())
		case <-quit:
		}
	}()
	return nil
}

// Stop halts the scheduler and waits for a running job to return or ctx to end.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	runner, quit := c.cron, c.quit
	c.cron, c.quit = nil, nil
	c.mu.Unlock()

	if runner == nil {
		return nil
	}
	close(quit)

	select {
	case <-runner.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
