package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/services/scheduler"
)

// MaintenanceHandler exposes the manual cleanup trigger
type MaintenanceHandler struct {
	scheduler *scheduler.Service
	logger    arbor.ILogger
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(svc *scheduler.Service, logger arbor.ILogger) *MaintenanceHandler {
	return &MaintenanceHandler{
		scheduler: svc,
		logger:    logger,
	}
}

// CleanupHandler runs one retention sweep immediately.
// POST /api/maintenance/cleanup
func (h *MaintenanceHandler) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	result, err := h.scheduler.RunCleanup(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual cleanup failed")
		WriteError(w, http.StatusInternalServerError, "Cleanup failed")
		return
	}

	h.logger.Info().Int("removed", result.Removed).Msg("Manual cleanup completed")
	WriteJSON(w, http.StatusOK, result)
}
