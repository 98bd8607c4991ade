package application

import (
	"context"
	"log"
	"time"
)

// Scheduler triggers sweeper runs on a fixed interval.
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(sweeper *Sweeper, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{sweeper: sweeper, interval: interval, logger: logger}
}

// Start begins the scheduler loop and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.sweeper == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.sweeper.Run(ctx, nil); err != nil && s.logger != nil {
		s.logger.Printf("sweeper schedule error: err=%v", err)
	}
}
