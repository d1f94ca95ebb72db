package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobGroup represents one user-submitted batch of work items. The group
// exclusively owns its items: deleting a group cascades to them, and items
// are never added after creation.
type JobGroup struct {
	ID        string      `json:"group_id"`
	Username  string      `json:"username"`
	CreatedAt time.Time   `json:"created_at"`
	Status    GroupStatus `json:"status"`
	Items     []JobItem   `json:"items,omitempty"`
}

// JobItem is one unit of work, processed by exactly one worker execution.
type JobItem struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id"`
	// Seq preserves creation order within the group
	Seq    int        `json:"seq"`
	Type   ItemType   `json:"type"`
	Status ItemStatus `json:"status"`

	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// WorkerID is the execution-correlation handle assigned when a worker
	// claims the item
	WorkerID string `json:"worker_id,omitempty"`

	// Result carries the terminal outcome: "ok" or a failure description
	Result string `json:"result,omitempty"`

	Data ItemData `json:"data"`
}

// NewJobGroup creates a queued group with its items in creation order.
// IDs are assigned here; persistence is the store's concern.
func NewJobGroup(username string, specs []ItemSpec) *JobGroup {
	now := time.Now().UTC()
	group := &JobGroup{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: now,
		Status:    GroupStatusQueued,
	}

	group.Items = make([]JobItem, len(specs))
	for i, spec := range specs {
		group.Items[i] = JobItem{
			ID:       uuid.New().String(),
			GroupID:  group.ID,
			Seq:      i,
			Type:     spec.Type,
			Status:   ItemStatusQueued,
			QueuedAt: now,
			Data:     spec.Data(),
		}
	}
	return group
}

// Validate validates the group before persistence
func (g *JobGroup) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("group ID is required")
	}
	if g.Username == "" {
		return fmt.Errorf("group username is required")
	}
	for i := range g.Items {
		if g.Items[i].ID == "" {
			return fmt.Errorf("item %d: ID is required", i)
		}
		if g.Items[i].GroupID != g.ID {
			return fmt.Errorf("item %d: group mismatch", i)
		}
	}
	return nil
}

// PercentDone returns the share of items that finished ok, 0..100.
func (g *JobGroup) PercentDone() float64 {
	if len(g.Items) == 0 {
		return 0
	}
	done := 0
	for i := range g.Items {
		if g.Items[i].Status == ItemStatusOK {
			done++
		}
	}
	return float64(done) / float64(len(g.Items)) * 100
}

// ItemIDs returns the item ids in creation order
func (g *JobGroup) ItemIDs() []string {
	ids := make([]string, len(g.Items))
	for i := range g.Items {
		ids[i] = g.Items[i].ID
	}
	return ids
}

// GroupSummary is the cheap projection used by the active-groups listing:
// no items are loaded.
type GroupSummary struct {
	ID        string      `json:"group_id"`
	Username  string      `json:"username"`
	CreatedAt time.Time   `json:"created_at"`
	Status    GroupStatus `json:"status"`
	Type      ItemType    `json:"type,omitempty"` // type of the first item, "mixed" semantics left to callers
}
