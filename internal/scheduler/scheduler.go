// Package scheduler runs registered jobs on cron expressions. Specs use
// the six-field form with a leading seconds column.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	logger *slog.Logger
}

// New builds a scheduler whose jobs inherit ctx, so cancelling it stops
// in-flight work during shutdown.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		ctx:    ctx,
		logger: logger,
	}
}

// Register schedules fn under name. Jobs scheduled after the root
// context is cancelled are skipped.
func (s *Scheduler) Register(name, spec string, fn func(context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Info("running scheduled job", "job", name)
		fn(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("register %s job: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop halts scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}
