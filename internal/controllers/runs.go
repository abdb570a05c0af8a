package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/piougy/CzechIdMng-sub011/internal/repository"
)

// RunsHandler exposes synchronization run history.
type RunsHandler struct {
	logs *repository.SyncLogRepository
}

func NewRunsHandler(logs *repository.SyncLogRepository) *RunsHandler {
	return &RunsHandler{logs: logs}
}

// HandleListRuns handles GET /api/sync/{id}/runs
func (h *RunsHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	configID := strings.TrimSpace(mux.Vars(r)["id"])
	if configID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	runs, err := h.logs.ListRuns(r.Context(), configID)
	if err != nil {
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// HandleGetRun handles GET /api/runs/{id} and inlines the per-action buckets.
func (h *RunsHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])

	run, err := h.logs.GetRun(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	actions, err := h.logs.ActionLogs(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "Failed to load action logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"run":     run,
		"actions": actions,
	})
}

// HandleListItems handles GET /api/runs/actions/{id}/items
func (h *RunsHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	actionLogID := strings.TrimSpace(mux.Vars(r)["id"])

	items, err := h.logs.Items(r.Context(), actionLogID)
	if err != nil {
		http.Error(w, "Failed to load items", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}
