package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ewintr.nl/shortscout/quota"
)

type Scheduler struct {
	pipeline *Pipeline
	subs     *Subscriptions
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(pipeline *Pipeline, subs *Subscriptions, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		subs:     subs,
		interval: interval,
		logger:   logger,
	}
}

// Run starts a discovery run right away and then every interval until ctx
// is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.pipeline != nil {
		_, err := s.pipeline.Run(ctx)
		switch {
		case errors.Is(err, quota.ErrBudgetHeld):
			s.logger.Info("another run holds the budget, skipping")
			return
		case err != nil:
			s.logger.Error("discovery run failed", slog.String("error", err.Error()))
		}
	}

	if s.subs == nil {
		return
	}
	if _, err := s.subs.Poll(ctx); err != nil {
		s.logger.Error("could not poll subscriptions", slog.String("error", err.Error()))
	}
}
