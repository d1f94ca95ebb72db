package interfaces

import (
	"context"

	"github.com/ternarybob/sitebatch/internal/models"
)

// StatusAggregator recomputes a group's status from its items under a
// per-group critical section. Recompute is idempotent: with no intervening
// item change it reproduces the same status and performs no side effects.
type StatusAggregator interface {
	Recompute(ctx context.Context, groupID string) error

	// Forget drops the per-group lock entry after a group is deleted
	Forget(groupID string)
}

// ExecutionBridge is the only caller that mutates item status from worker
// context. Marks for items that no longer exist are silent no-ops.
type ExecutionBridge interface {
	MarkStarted(ctx context.Context, itemID, workerID string) error
	MarkDone(ctx context.Context, itemID string, ok bool, result string) error
}

// Renderer produces the report artefacts for one item and returns the path
// it wrote under the group's raw output directory. The concrete report
// engine lives outside this core.
type Renderer interface {
	Render(ctx context.Context, item *models.JobItem) (string, error)
}
