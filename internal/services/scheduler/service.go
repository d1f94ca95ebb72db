package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/common"
	"github.com/ternarybob/sitebatch/internal/interfaces"
)

// GroupForgetter is the slice of the aggregator the reaper needs to
// release per-group state for removed groups
type GroupForgetter interface {
	Forget(groupID string)
}

// Service runs the maintenance reaper on a fixed schedule. The sweep
// itself lives on the archive manager; this service only owns the timing
// and exposes the manual trigger the maintenance endpoint calls.
type Service struct {
	archiver  interfaces.Archiver
	forgetter GroupForgetter
	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    arbor.ILogger
	running   bool
}

// CleanupResult reports one maintenance run
type CleanupResult struct {
	Removed  int      `json:"removed"`
	GroupIDs []string `json:"group_ids"`
}

// NewService creates the maintenance scheduler
func NewService(config *common.MaintenanceConfig, archiver interfaces.Archiver, forgetter GroupForgetter, logger arbor.ILogger) *Service {
	return &Service{
		archiver:  archiver,
		forgetter: forgetter,
		retention: time.Duration(config.RetentionDays) * 24 * time.Hour,
		schedule:  config.Schedule,
		cron:      cron.New(),
		logger:    logger,
	}
}

// Start registers the daily cleanup job and starts the cron loop
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunCleanup(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("Scheduled cleanup failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to register cleanup job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().
		Str("schedule", s.schedule).
		Dur("retention", s.retention).
		Msg("Maintenance scheduler started")
	return nil
}

// Stop halts the cron loop, waiting for a running sweep to finish
func (s *Service) Stop() {
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// RunCleanup sweeps expired archives once and reports what was removed.
// Reaped groups release their aggregator lock entries, same as an explicit
// delete.
func (s *Service) RunCleanup(ctx context.Context) (*CleanupResult, error) {
	ids, err := s.archiver.Reap(ctx, s.retention)
	if err != nil {
		return nil, err
	}

	if s.forgetter != nil {
		for _, id := range ids {
			s.forgetter.Forget(id)
		}
	}

	return &CleanupResult{
		Removed:  len(ids),
		GroupIDs: ids,
	}, nil
}
