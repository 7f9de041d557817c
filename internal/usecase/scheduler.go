package usecase

import (
	"context"
	"log/slog"
	"time"

	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/ports"
)

// Scheduler wires the daily driver with the batch pipeline.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
	// AfterRun, when set, is called after every batch with its trigger
	// time, reports and error.
	AfterRun func(ctx context.Context, trigger time.Time, reports []domain.RunReport, err error)
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger.With("component", "scheduler")}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		reports, err := s.pipeline.RunAll(ctx, trigger)
		if err != nil {
			s.logger.Error("batch failed", "trigger", trigger, "error", err)
		} else {
			s.logger.Info("batch finished", "trigger", trigger, "users", len(reports))
		}
		if s.AfterRun != nil {
			s.AfterRun(ctx, trigger, reports, err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
