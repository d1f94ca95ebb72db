package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitebatch/internal/interfaces"
	"github.com/ternarybob/sitebatch/internal/models"
)

// ItemEnqueuer is the slice of the worker pool the submission path needs
type ItemEnqueuer interface {
	Enqueue(itemIDs ...string)
}

// GroupHandler serves the batch submission and query surface
type GroupHandler struct {
	store      interfaces.GroupStorage
	bus        interfaces.NotificationBus
	archiver   interfaces.Archiver
	aggregator interfaces.StatusAggregator
	pool       ItemEnqueuer
	logger     arbor.ILogger
	validate   *validator.Validate
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(store interfaces.GroupStorage, bus interfaces.NotificationBus, archiver interfaces.Archiver, aggregator interfaces.StatusAggregator, pool ItemEnqueuer, logger arbor.ILogger) *GroupHandler {
	return &GroupHandler{
		store:      store,
		bus:        bus,
		archiver:   archiver,
		aggregator: aggregator,
		pool:       pool,
		logger:     logger,
		validate:   validator.New(),
	}
}

// ItemRequest is one item spec in a batch submission. Fields beyond the
// variant tag are variant-specific; unrecognized tags carry their payload
// in extra.
type ItemRequest struct {
	Type    string            `json:"type" validate:"required"`
	SiteID  string            `json:"site_id,omitempty"`
	Date    string            `json:"date,omitempty"`
	Tech    string            `json:"tech,omitempty"`
	Report  string            `json:"report,omitempty"`
	Period  string            `json:"period,omitempty"`
	CellIDs []string          `json:"cell_ids,omitempty"`
	Raster  string            `json:"raster,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// BatchRequest is the submission payload
type BatchRequest struct {
	Username string        `json:"username" validate:"required"`
	Items    []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// BatchResponse acknowledges an accepted submission
type BatchResponse struct {
	GroupID     string   `json:"group_id"`
	ItemIDs     []string `json:"item_ids"`
	PercentDone float64  `json:"percent_done"`
}

// SubmitHandler creates a group with its items in one transaction, emits
// the group-added events and schedules one worker execution per item.
// POST /api/groups
func (h *GroupHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	specs := make([]models.ItemSpec, len(req.Items))
	for i, item := range req.Items {
		spec, err := item.toSpec()
		if err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("item %d: %v", i, err))
			return
		}
		specs[i] = spec
	}

	group := models.NewJobGroup(req.Username, specs)
	if err := h.store.CreateGroup(r.Context(), group); err != nil {
		h.logger.Error().Err(err).Msg("Failed to create group")
		WriteError(w, http.StatusInternalServerError, "Failed to create group")
		return
	}

	h.emitGroupAdded(group)
	h.pool.Enqueue(group.ItemIDs()...)

	h.logger.Info().
		Str("group_id", group.ID).
		Str("username", group.Username).
		Int("items", len(group.Items)).
		Msg("Batch submitted")

	WriteJSON(w, http.StatusAccepted, BatchResponse{
		GroupID:     group.ID,
		ItemIDs:     group.ItemIDs(),
		PercentDone: group.PercentDone(),
	})
}

// ListHandler returns every group with its items, newest-first, optionally
// filtered by owner.
// GET /api/groups?username=
func (h *GroupHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	username := r.URL.Query().Get("username")
	groups, err := h.store.ListGroups(r.Context(), username)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list groups")
		WriteError(w, http.StatusInternalServerError, "Failed to list groups")
		return
	}
	if len(groups) == 0 {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("no task groups for user: %s", username))
		return
	}

	WriteJSON(w, http.StatusOK, groups)
}

// ActiveHandler returns queued/running group summaries without items.
// GET /api/groups/active
func (h *GroupHandler) ActiveHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	summaries, err := h.store.ListActiveGroups(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list active groups")
		WriteError(w, http.StatusInternalServerError, "Failed to list active groups")
		return
	}

	WriteJSON(w, http.StatusOK, summaries)
}

// GetHandler returns one group with its items.
// GET /api/groups/{id}
func (h *GroupHandler) GetHandler(w http.ResponseWriter, r *http.Request, groupID string) {
	group, err := h.store.GetGroup(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Group not found")
			return
		}
		h.logger.Error().Err(err).Str("group_id", groupID).Msg("Failed to get group")
		WriteError(w, http.StatusInternalServerError, "Failed to get group")
		return
	}

	WriteJSON(w, http.StatusOK, group)
}

// DeleteHandler removes a group, its items and its archive. Workers still
// executing items of the group keep running; their late marks no-op.
// DELETE /api/groups/{id}
func (h *GroupHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, groupID string) {
	if err := h.store.DeleteGroup(r.Context(), groupID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Group not found")
			return
		}
		h.logger.Error().Err(err).Str("group_id", groupID).Msg("Failed to delete group")
		WriteError(w, http.StatusInternalServerError, "Failed to delete group")
		return
	}

	h.archiver.Remove(groupID)
	h.aggregator.Forget(groupID)

	h.logger.Info().Str("group_id", groupID).Msg("Group deleted")
	w.WriteHeader(http.StatusNoContent)
}

// DownloadHandler streams the group's zip, building it lazily when the raw
// outputs still exist.
// GET /api/groups/{id}/download
func (h *GroupHandler) DownloadHandler(w http.ResponseWriter, r *http.Request, groupID string) {
	if _, err := h.store.GetGroup(r.Context(), groupID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Group not found")
			return
		}
		h.logger.Error().Err(err).Str("group_id", groupID).Msg("Failed to get group")
		WriteError(w, http.StatusInternalServerError, "Failed to get group")
		return
	}

	path, err := h.archiver.Ensure(groupID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Archive not found")
			return
		}
		h.logger.Error().Err(err).Str("group_id", groupID).Msg("Failed to build archive")
		WriteError(w, http.StatusInternalServerError, "Failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", groupID+".zip"))
	http.ServeFile(w, r, path)
}

func (h *GroupHandler) emitGroupAdded(group *models.JobGroup) {
	h.bus.Publish(models.TopicBroadcast, models.EventGroupAdded, map[string]any{
		"group_id": group.ID,
		"status":   string(group.Status),
	})

	// The owner topic carries the full item payload
	items := make([]map[string]any, len(group.Items))
	for i := range group.Items {
		items[i] = map[string]any{
			"id":     group.Items[i].ID,
			"type":   string(group.Items[i].Type),
			"status": string(group.Items[i].Status),
			"fields": group.Items[i].Data.Fields(),
		}
	}
	h.bus.Publish(models.UserTopic(group.Username), models.EventGroupAdded, map[string]any{
		"group_id": group.ID,
		"status":   string(group.Status),
		"data":     items,
	})
}

func (r ItemRequest) toSpec() (models.ItemSpec, error) {
	itemType := models.ItemType(strings.TrimSpace(r.Type))
	switch itemType {
	case models.ItemTypeSiteSurvey:
		if r.SiteID == "" || r.Date == "" {
			return models.ItemSpec{}, fmt.Errorf("site_survey requires site_id and date")
		}
		return models.ItemSpec{
			Type:       itemType,
			SiteSurvey: &models.SiteSurveyData{SiteID: r.SiteID, Date: r.Date, Tech: r.Tech},
		}, nil
	case models.ItemTypeKPIExport:
		if r.Report == "" {
			return models.ItemSpec{}, fmt.Errorf("kpi_export requires report")
		}
		return models.ItemSpec{
			Type:      itemType,
			KPIExport: &models.KPIExportData{Report: r.Report, Period: r.Period},
		}, nil
	case models.ItemTypeCoverageScan:
		if len(r.CellIDs) == 0 {
			return models.ItemSpec{}, fmt.Errorf("coverage_scan requires cell_ids")
		}
		return models.ItemSpec{
			Type:         itemType,
			CoverageScan: &models.CoverageScanData{CellIDs: r.CellIDs, Raster: r.Raster},
		}, nil
	default:
		// Unknown tags are accepted for forward compatibility; their
		// payload rides in the opaque map
		return models.ItemSpec{Type: itemType, Extra: r.Extra}, nil
	}
}
