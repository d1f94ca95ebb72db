package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/interfaces"
	"github.com/ternarybob/sitebatch/internal/models"
)

// Service implements interfaces.ExecutionBridge: the only code path that
// mutates item status from worker context. Item transitions are strictly
// monotonic (queued -> running -> terminal); a lower-ordered transition is
// refused silently. Marks against items whose group was deleted mid-flight
// are no-ops so a worker outliving its group cannot crash the bridge.
type Service struct {
	store      interfaces.GroupStorage
	aggregator interfaces.StatusAggregator
	bus        interfaces.NotificationBus
	logger     arbor.ILogger
}

// NewService creates a new execution bridge
func NewService(store interfaces.GroupStorage, aggregator interfaces.StatusAggregator, bus interfaces.NotificationBus, logger arbor.ILogger) *Service {
	return &Service{
		store:      store,
		aggregator: aggregator,
		bus:        bus,
		logger:     logger,
	}
}

// MarkStarted flips an item to running, records the worker handle, and
// flips the group to running via recomputation.
func (s *Service) MarkStarted(ctx context.Context, itemID, workerID string) error {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Debug().Str("item_id", itemID).Msg("MarkStarted for vanished item - ignored")
			return nil
		}
		return err
	}

	if item.Status.Rank() >= models.ItemStatusRunning.Rank() {
		return nil
	}

	now := time.Now().UTC()
	item.Status = models.ItemStatusRunning
	item.StartedAt = &now
	item.WorkerID = workerID
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return err
	}

	s.emitItemEvent(ctx, item, models.EventItemStarted)
	return s.aggregator.Recompute(ctx, item.GroupID)
}

// MarkDone records an item's terminal status with its result payload, then
// recomputes the owning group under its critical section.
func (s *Service) MarkDone(ctx context.Context, itemID string, ok bool, result string) error {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			s.logger.Debug().Str("item_id", itemID).Msg("MarkDone for vanished item - ignored")
			return nil
		}
		return err
	}

	if item.Status.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()
	if ok {
		item.Status = models.ItemStatusOK
	} else {
		item.Status = models.ItemStatusError
	}
	item.FinishedAt = &now
	item.Result = result
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return err
	}

	s.logger.Debug().
		Str("item_id", itemID).
		Str("status", string(item.Status)).
		Msg("Item finished")

	s.emitItemEvent(ctx, item, models.EventItemFinished)
	return s.aggregator.Recompute(ctx, item.GroupID)
}

func (s *Service) emitItemEvent(ctx context.Context, item *models.JobItem, event string) {
	payload := map[string]any{
		"item_id":  item.ID,
		"group_id": item.GroupID,
		"status":   string(item.Status),
	}
	s.bus.Publish(models.TopicBroadcast, event, payload)

	// The owner topic needs the username off the group row; if the group is
	// already gone the broadcast alone has to do.
	group, err := s.store.GetGroup(ctx, item.GroupID)
	if err != nil {
		return
	}
	s.bus.Publish(models.UserTopic(group.Username), event, payload)
}
