package interfaces

import (
	"context"

	"github.com/ternarybob/sitebatch/internal/models"
)

// GroupStorage is the durable state of job groups and their items. It is
// the single source of truth mutated by both the request-serving and the
// worker context; all multi-row mutations are transactional.
type GroupStorage interface {
	// CreateGroup persists a group with all its items in one transaction
	CreateGroup(ctx context.Context, group *models.JobGroup) error

	// GetGroup returns a group with its items in creation order, or ErrNotFound
	GetGroup(ctx context.Context, groupID string) (*models.JobGroup, error)

	// ListGroups returns groups with items, newest-first, optionally
	// filtered by owner. An empty username means no filter.
	ListGroups(ctx context.Context, username string) ([]*models.JobGroup, error)

	// ListActiveGroups returns queued/running group summaries without
	// loading items, newest-first
	ListActiveGroups(ctx context.Context) ([]*models.GroupSummary, error)

	// DeleteGroup removes item rows then the group row in one transaction.
	// Returns ErrNotFound if the group does not exist.
	DeleteGroup(ctx context.Context, groupID string) error

	// GetItem returns one item or ErrNotFound
	GetItem(ctx context.Context, itemID string) (*models.JobItem, error)

	// UpdateItem overwrites one item row
	UpdateItem(ctx context.Context, item *models.JobItem) error

	// UpdateGroupStatus sets the group status. Only the aggregator calls
	// this after creation.
	UpdateGroupStatus(ctx context.Context, groupID string, status models.GroupStatus) error

	// CountItemStatuses tallies the group's items per status
	CountItemStatuses(ctx context.Context, groupID string) (models.ItemStatusCounts, error)

	// Close releases the underlying store
	Close() error
}
