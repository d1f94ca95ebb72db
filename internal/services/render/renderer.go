package render

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/common"
	"github.com/ternarybob/sitebatch/internal/models"
)

// Service materializes an item's payload into the group's raw output
// directory and returns the written path. The spreadsheet/chart report
// engine is an external collaborator consumed behind interfaces.Renderer;
// this implementation produces the per-item payload file that engine is
// invoked with.
type Service struct {
	outputsDir string
	logger     arbor.ILogger
}

// NewService creates a renderer writing under the configured outputs root
func NewService(config *common.ArchiveConfig, logger arbor.ILogger) *Service {
	return &Service{
		outputsDir: config.OutputsDir,
		logger:     logger,
	}
}

// Render writes outputs/<gid>/<type>_<item-id>.json
func (s *Service) Render(ctx context.Context, item *models.JobItem) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.outputsDir, item.GroupID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	payload := map[string]any{
		"item_id":  item.ID,
		"group_id": item.GroupID,
		"type":     string(item.Type),
		"fields":   item.Data.Fields(),
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode item payload: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", item.Type, item.ID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write item output: %w", err)
	}

	s.logger.Debug().Str("item_id", item.ID).Str("path", path).Msg("Item output written")
	return path, nil
}
