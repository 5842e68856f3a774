package audit

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/openreach/openreach/pkg/observability"
)

// Purger is implemented by sinks that can delete expired events.
type Purger interface {
	Purge(ctx context.Context, policy RetentionPolicy) (int64, error)
}

// RetentionSweeper periodically purges audit events past the retention
// window.
type RetentionSweeper struct {
	purger Purger
	policy RetentionPolicy
	logger *observability.Logger
	cron   *cron.Cron
}

// NewRetentionSweeper creates a sweeper. schedule is a cron expression;
// an empty schedule runs daily at 03:00.
func NewRetentionSweeper(purger Purger, policy RetentionPolicy, schedule string, logger *observability.Logger) (*RetentionSweeper, error) {
	if schedule == "" {
		schedule = "0 3 * * *"
	}

	s := &RetentionSweeper{
		purger: purger,
		policy: policy,
		logger: logger,
		cron:   cron.New(),
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *RetentionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	removed, err := s.purger.Purge(ctx, s.policy)
	if err != nil {
		s.logger.WithError(err).Error("audit retention sweep failed")
		return
	}
	s.logger.WithField("removed", removed).Info("audit retention sweep complete")
}

// Start begins the sweep schedule.
func (s *RetentionSweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
