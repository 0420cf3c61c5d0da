// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Expirer removes sessions whose TTL has passed.
type Expirer interface {
	ExpireSessions(ctx context.Context, now time.Time) (int, error)
}

const sweepTimeout = 5 * time.Minute

// Scheduler sweeps expired sessions on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	expirer Expirer
	now     func() time.Time
	logger  *zap.Logger
}

// New creates a stopped scheduler.
func New(expirer Expirer, logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		ctx:     ctx,
		cancel:  cancel,
		expirer: expirer,
		now:     time.Now,
		logger:  logger,
	}
}

// Start registers the sweep under schedule (standard cron or "@every 30m")
// and starts the cron runner.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Session cleanup scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop waits for a running sweep to finish and cancels future ones.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.logger.Info("Session cleanup stopped")
}

// Sweep runs one expiry pass.
func (s *Scheduler) Sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
	defer cancel()

	removed, err := s.expirer.ExpireSessions(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to expire sessions", zap.Error(err))
		return
	}
	s.logger.Info("Session cleanup completed", zap.Int("removed", removed))
}
