package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/interfaces"
	"github.com/ternarybob/sitebatch/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// groupRecord is the group row as persisted. Items live in their own rows
// so the active-groups summary path never loads them.
type groupRecord struct {
	ID        string
	Username  string
	CreatedAt time.Time
	Status    models.GroupStatus
}

// GroupStorage implements interfaces.GroupStorage on Badger
type GroupStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewGroupStorage creates a new GroupStorage instance
func NewGroupStorage(db *BadgerDB, logger arbor.ILogger) interfaces.GroupStorage {
	return &GroupStorage{
		db:     db,
		logger: logger,
	}
}

func (s *GroupStorage) CreateGroup(ctx context.Context, group *models.JobGroup) error {
	if err := group.Validate(); err != nil {
		return fmt.Errorf("invalid group: %w", err)
	}

	record := &groupRecord{
		ID:        group.ID,
		Username:  group.Username,
		CreatedAt: group.CreatedAt,
		Status:    group.Status,
	}

	// Group and item rows are written in one Badger transaction: partial
	// failure leaves prior state unchanged.
	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		if err := s.db.Store().TxInsert(tx, group.ID, record); err != nil {
			return fmt.Errorf("failed to insert group: %w", err)
		}
		for i := range group.Items {
			if err := s.db.Store().TxInsert(tx, group.Items[i].ID, &group.Items[i]); err != nil {
				return fmt.Errorf("failed to insert item %s: %w", group.Items[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("group_id", group.ID).
		Str("username", group.Username).
		Int("items", len(group.Items)).
		Msg("Group created")
	return nil
}

func (s *GroupStorage) GetGroup(ctx context.Context, groupID string) (*models.JobGroup, error) {
	var record groupRecord
	if err := s.db.Store().Get(groupID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("group %s: %w", groupID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	items, err := s.groupItems(groupID)
	if err != nil {
		return nil, err
	}

	return s.assemble(&record, items), nil
}

func (s *GroupStorage) ListGroups(ctx context.Context, username string) ([]*models.JobGroup, error) {
	query := badgerhold.Where("ID").Ne("")
	if username != "" {
		query = query.And("Username").Eq(username)
	}
	query = query.SortBy("CreatedAt").Reverse()

	var records []groupRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]*models.JobGroup, len(records))
	for i := range records {
		items, err := s.groupItems(records[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i] = s.assemble(&records[i], items)
	}
	return groups, nil
}

func (s *GroupStorage) ListActiveGroups(ctx context.Context) ([]*models.GroupSummary, error) {
	query := badgerhold.Where("Status").
		In(models.GroupStatusQueued, models.GroupStatusRunning).
		SortBy("CreatedAt").Reverse()

	var records []groupRecord
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list active groups: %w", err)
	}

	summaries := make([]*models.GroupSummary, len(records))
	for i := range records {
		summaries[i] = &models.GroupSummary{
			ID:        records[i].ID,
			Username:  records[i].Username,
			CreatedAt: records[i].CreatedAt,
			Status:    records[i].Status,
			Type:      s.firstItemType(records[i].ID),
		}
	}
	return summaries, nil
}

func (s *GroupStorage) DeleteGroup(ctx context.Context, groupID string) error {
	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		var record groupRecord
		if err := s.db.Store().TxGet(tx, groupID, &record); err != nil {
			if err == badgerhold.ErrNotFound {
				return fmt.Errorf("group %s: %w", groupID, interfaces.ErrNotFound)
			}
			return err
		}

		var items []models.JobItem
		if err := s.db.Store().TxFind(tx, &items, badgerhold.Where("GroupID").Eq(groupID)); err != nil {
			return fmt.Errorf("failed to load items for delete: %w", err)
		}

		// Item rows first, then the group row
		for i := range items {
			if err := s.db.Store().TxDelete(tx, items[i].ID, &models.JobItem{}); err != nil && err != badgerhold.ErrNotFound {
				return fmt.Errorf("failed to delete item %s: %w", items[i].ID, err)
			}
		}
		if err := s.db.Store().TxDelete(tx, groupID, &groupRecord{}); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Str("group_id", groupID).Msg("Group deleted")
	return nil
}

func (s *GroupStorage) GetItem(ctx context.Context, itemID string) (*models.JobItem, error) {
	var item models.JobItem
	if err := s.db.Store().Get(itemID, &item); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("item %s: %w", itemID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

func (s *GroupStorage) UpdateItem(ctx context.Context, item *models.JobItem) error {
	if item.ID == "" {
		return fmt.Errorf("item ID is required")
	}
	if err := s.db.Store().Upsert(item.ID, item); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

func (s *GroupStorage) UpdateGroupStatus(ctx context.Context, groupID string, status models.GroupStatus) error {
	var record groupRecord
	if err := s.db.Store().Get(groupID, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return fmt.Errorf("group %s: %w", groupID, interfaces.ErrNotFound)
		}
		return fmt.Errorf("failed to get group: %w", err)
	}

	record.Status = status
	if err := s.db.Store().Upsert(groupID, &record); err != nil {
		return fmt.Errorf("failed to update group status: %w", err)
	}
	return nil
}

func (s *GroupStorage) CountItemStatuses(ctx context.Context, groupID string) (models.ItemStatusCounts, error) {
	items, err := s.groupItems(groupID)
	if err != nil {
		return models.ItemStatusCounts{}, err
	}

	counts := models.ItemStatusCounts{Total: len(items)}
	for i := range items {
		switch items[i].Status {
		case models.ItemStatusOK:
			counts.OK++
		case models.ItemStatusError:
			counts.Error++
		}
	}
	return counts, nil
}

func (s *GroupStorage) Close() error {
	return s.db.Close()
}

func (s *GroupStorage) groupItems(groupID string) ([]models.JobItem, error) {
	var items []models.JobItem
	query := badgerhold.Where("GroupID").Eq(groupID).SortBy("Seq")
	if err := s.db.Store().Find(&items, query); err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	return items, nil
}

// firstItemType reads a single item to tag the summary; errors degrade to
// an empty tag rather than failing the listing.
func (s *GroupStorage) firstItemType(groupID string) models.ItemType {
	var items []models.JobItem
	query := badgerhold.Where("GroupID").Eq(groupID).SortBy("Seq").Limit(1)
	if err := s.db.Store().Find(&items, query); err != nil || len(items) == 0 {
		return ""
	}
	return items[0].Type
}

func (s *GroupStorage) assemble(record *groupRecord, items []models.JobItem) *models.JobGroup {
	return &models.JobGroup{
		ID:        record.ID,
		Username:  record.Username,
		CreatedAt: record.CreatedAt,
		Status:    record.Status,
		Items:     items,
	}
}
