package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quizdeck/quizdeck/pkg/observability"
)

// RetentionSweeper periodically deletes audit events older than the
// configured retention window.
type RetentionSweeper struct {
	store  *Store
	policy RetentionPolicy
	logger *observability.Logger
	cron   *cron.Cron
}

// NewRetentionSweeper creates a sweeper for the given store and policy
func NewRetentionSweeper(store *Store, policy RetentionPolicy, logger *observability.Logger) *RetentionSweeper {
	if policy.RetentionDays <= 0 {
		policy.RetentionDays = DefaultRetentionPolicy().RetentionDays
	}
	if policy.Schedule == "" {
		policy.Schedule = DefaultRetentionPolicy().Schedule
	}
	return &RetentionSweeper{
		store:  store,
		policy: policy,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the sweep and begins running it
func (s *RetentionSweeper) Start() error {
	_, err := s.cron.AddFunc(s.policy.Schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.WithError(err).Error("Audit retention sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.policy.Schedule, err)
	}
	s.cron.Start()
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish
func (s *RetentionSweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep deletes events past the retention window and returns the count removed
func (s *RetentionSweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -s.policy.RetentionDays)
	deleted, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("Audit retention sweep completed")
	}
	return deleted, nil
}
