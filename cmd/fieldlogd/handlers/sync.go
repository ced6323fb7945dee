// Package handlers provides REST API handlers for the FieldLog daemon.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/fieldlog/internal/models"
	syncpkg "github.com/kimhsiao/fieldlog/internal/sync"
)

// SyncHandler exposes sync status and manual sync controls.
type SyncHandler struct {
	engine syncpkg.EngineInterface
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(engine syncpkg.EngineInterface) *SyncHandler {
	return &SyncHandler{engine: engine}
}

// Routes mounts the sync endpoints.
func (h *SyncHandler) Routes(r chi.Router) {
	r.Get("/sync/status", h.GetStatus)
	r.Get("/sync/failed", h.ListFailed)
	r.Post("/sync/now", h.TriggerSync)
	r.Post("/sync/retry", h.RetryFailed)
}

// GetStatus handles GET /sync/status. Read-only: it never mutates queue
// state.
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.QueueStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read queue stats")
		return
	}

	response := map[string]interface{}{
		"queue":   stats,
		"online":  h.engine.IsOnline(),
		"network": h.engine.NetworkState(),
	}
	if stats.LastSyncAt != nil {
		response["last_sync"] = stats.LastSyncAt.Unix()
	}

	writeJSON(w, http.StatusOK, response)
}

// ListFailed handles GET /sync/failed. Failed operations stay inspectable,
// with their last error, until the user re-arms them.
func (h *SyncHandler) ListFailed(w http.ResponseWriter, r *http.Request) {
	ops, err := h.engine.ListFailed()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list failed operations")
		return
	}
	if ops == nil {
		ops = []*models.Operation{}
	}
	writeJSON(w, http.StatusOK, ops)
}

// TriggerSync handles POST /sync/now. Runs a drain synchronously so the
// caller sees the result, under the same guard as the automatic triggers.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result := h.engine.ForceDrain(r.Context())

	if !result.Ran {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"status":  "skipped",
			"message": "sync already in progress or network unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "completed",
		"processed":         result.Processed,
		"skipped":           result.Skipped,
		"retried":           result.Retried,
		"failed":            result.Failed,
		"remaining":         result.Remaining,
		"connectivity_lost": result.ConnectivityLost,
	})
}

// RetryFailed handles POST /sync/retry. Re-arms operations that exhausted
// their retry budget.
func (h *SyncHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	count, err := h.engine.RetryFailed()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retry operations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"rearmed": count,
	})
}
