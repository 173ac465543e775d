// Package main provides the flowdesk due-date scheduler service.
package main

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/dukex/flowdesk/pkg/notify"
)

// Scheduler drains due reminder and escalation schedules on a fixed
// cadence and publishes them as events for the worker.
type Scheduler struct {
	poller   *notify.Poller
	cron     *cron.Cron
	logger   *slog.Logger
	interval string
}

func NewScheduler(poller *notify.Poller, logger *slog.Logger, interval string) *Scheduler {
	return &Scheduler{
		poller:   poller,
		cron:     cron.New(),
		logger:   logger.With("module", "scheduler"),
		interval: interval,
	}
}

// Start polls until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc("@every "+s.interval, func() {
		if err := s.poller.Poll(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Poll cycle failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Starting schedule polling", "interval", s.interval)
	s.cron.Start()

	<-ctx.Done()
	s.logger.Info("Stopping schedule polling")
	<-s.cron.Stop().Done()

	return nil
}
