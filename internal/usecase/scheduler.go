package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsDesk/internal/logging"
	"NewsDesk/internal/ports"
)

// Scheduler wires the periodic driver with the pipeline use case.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	regions  []string
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring region batches.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, regions []string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, regions: regions, logger: logger}
}

// Start registers the region batches with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		results, err := s.pipeline.RunRegions(ctx, s.regions, 0)
		processed := 0
		for _, rs := range results {
			processed += len(rs)
		}
		if err != nil {
			s.logger.Warn("scheduled run ended with error", "trigger", trigger, "processed", processed, "error", err)
			return
		}
		s.logger.Info("scheduled run finished", "trigger", trigger, "processed", processed)
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
