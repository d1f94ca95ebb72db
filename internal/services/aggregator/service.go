package aggregator

import (
	"context"
	"errors"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/interfaces"
	"github.com/ternarybob/sitebatch/internal/models"
)

// Service implements interfaces.StatusAggregator. Recomputation is
// serialized per group with a keyed mutex so concurrently finishing items
// of the same group cannot both observe "not yet done" and double-trigger
// archiving, while unrelated groups never contend.
type Service struct {
	store    interfaces.GroupStorage
	archiver interfaces.Archiver
	bus      interfaces.NotificationBus
	logger   arbor.ILogger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a new status aggregator
func NewService(store interfaces.GroupStorage, archiver interfaces.Archiver, bus interfaces.NotificationBus, logger arbor.ILogger) *Service {
	return &Service{
		store:    store,
		archiver: archiver,
		bus:      bus,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Recompute re-evaluates a group after an item transition. The read-
// modify-write-emit sequence runs inside the group's critical section and
// is idempotent: with no intervening item change it reproduces the stored
// status and performs no further side effects.
func (s *Service) Recompute(ctx context.Context, groupID string) error {
	lock := s.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			// Group deleted while a worker was still finishing; nothing to do
			return nil
		}
		return err
	}

	counts, err := s.store.CountItemStatuses(ctx, groupID)
	if err != nil {
		return err
	}

	previous := group.Status
	next := models.GroupStatusFor(counts)
	if next == previous {
		return nil
	}

	// First transition to done triggers archiving, exactly once per group.
	// A failed build is logged, not fatal: the raw directory survives, so a
	// later Ensure can still produce the bundle.
	if next == models.GroupStatusDone {
		if _, err := s.archiver.Archive(groupID); err != nil {
			s.logger.Error().Err(err).Str("group_id", groupID).Msg("Archive build failed")
		}
	}

	if err := s.store.UpdateGroupStatus(ctx, groupID, next); err != nil {
		return err
	}

	s.logger.Info().
		Str("group_id", groupID).
		Str("from", string(previous)).
		Str("to", string(next)).
		Msg("Group status changed")

	payload := map[string]any{
		"group_id": groupID,
		"status":   string(next),
	}
	s.bus.Publish(models.TopicBroadcast, models.EventGroupStatus, payload)
	s.bus.Publish(models.UserTopic(group.Username), models.EventGroupStatus, payload)

	return nil
}

// Forget drops the lock entry of a deleted group
func (s *Service) Forget(groupID string) {
	s.mu.Lock()
	delete(s.locks, groupID)
	s.mu.Unlock()
}

func (s *Service) groupLock(groupID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[groupID] = lock
	}
	return lock
}
