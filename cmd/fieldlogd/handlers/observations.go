// Package handlers provides REST API handlers for the FieldLog daemon.
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kimhsiao/fieldlog/internal/db"
	"github.com/kimhsiao/fieldlog/internal/logging"
	"github.com/kimhsiao/fieldlog/internal/models"
	syncpkg "github.com/kimhsiao/fieldlog/internal/sync"
	"github.com/kimhsiao/fieldlog/internal/uuid"
)

// ObservationHandler handles observation and note CRUD. Every local write
// also enqueues the matching sync operation; the response never waits on the
// network.
type ObservationHandler struct {
	repo   *db.Repository
	engine syncpkg.EngineInterface
}

// NewObservationHandler creates an ObservationHandler.
func NewObservationHandler(repo *db.Repository, engine syncpkg.EngineInterface) *ObservationHandler {
	return &ObservationHandler{
		repo:   repo,
		engine: engine,
	}
}

// Routes mounts the observation endpoints.
func (h *ObservationHandler) Routes(r chi.Router) {
	r.Get("/observations", h.List)
	r.Post("/observations", h.Create)
	r.Get("/observations/{id}", h.Get)
	r.Put("/observations/{id}", h.Update)
	r.Delete("/observations/{id}", h.Delete)

	r.Get("/observations/{id}/notes", h.ListNotes)
	r.Post("/observations/{id}/notes", h.CreateNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	r.Post("/observations/{id}/photos", h.AttachPhoto)
}

// List handles GET /observations.
func (h *ObservationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	items, err := h.repo.ListObservations(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list observations")
		return
	}
	if items == nil {
		items = []*models.Observation{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /observations/{id}.
func (h *ObservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	obs, err := h.repo.GetObservation(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Observation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve observation")
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// Create handles POST /observations.
func (h *ObservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Title      string  `json:"title"`
		Body       string  `json:"body"`
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
		Tags       string  `json:"tags"`
		ObservedAt int64   `json:"observed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	obs := &models.Observation{
		Title:      request.Title,
		Body:       request.Body,
		Latitude:   request.Latitude,
		Longitude:  request.Longitude,
		Tags:       request.Tags,
		ObservedAt: request.ObservedAt,
	}
	if err := h.repo.CreateObservation(obs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create observation")
		return
	}

	if err := h.enqueue(models.OpObservationCreate, obs); err != nil {
		writeError(w, http.StatusInternalServerError, "Observation saved locally but could not be queued for sync")
		return
	}
	writeJSON(w, http.StatusCreated, obs)
}

// Update handles PUT /observations/{id}.
func (h *ObservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	obs, err := h.repo.GetObservation(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Observation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve observation")
		return
	}

	var request struct {
		Title      *string  `json:"title"`
		Body       *string  `json:"body"`
		Latitude   *float64 `json:"latitude"`
		Longitude  *float64 `json:"longitude"`
		Tags       *string  `json:"tags"`
		ObservedAt *int64   `json:"observed_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if request.Title != nil {
		obs.Title = *request.Title
	}
	if request.Body != nil {
		obs.Body = *request.Body
	}
	if request.Latitude != nil {
		obs.Latitude = *request.Latitude
	}
	if request.Longitude != nil {
		obs.Longitude = *request.Longitude
	}
	if request.Tags != nil {
		obs.Tags = *request.Tags
	}
	if request.ObservedAt != nil {
		obs.ObservedAt = *request.ObservedAt
	}

	if err := h.repo.UpdateObservation(obs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update observation")
		return
	}

	if err := h.enqueue(models.OpObservationUpdate, obs); err != nil {
		writeError(w, http.StatusInternalServerError, "Observation saved locally but could not be queued for sync")
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

// Delete handles DELETE /observations/{id}.
func (h *ObservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.repo.DeleteObservation(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Observation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete observation")
		return
	}

	if err := h.enqueue(models.OpObservationDelete, map[string]interface{}{"id": id}); err != nil {
		writeError(w, http.StatusInternalServerError, "Observation deleted locally but could not be queued for sync")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted"})
}

// ListNotes handles GET /observations/{id}/notes.
func (h *ObservationHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.repo.ListNotes(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notes")
		return
	}
	if notes == nil {
		notes = []*models.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// CreateNote handles POST /observations/{id}/notes.
func (h *ObservationHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	observationID := chi.URLParam(r, "id")

	if _, err := h.repo.GetObservation(observationID); errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Observation not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve observation")
		return
	}

	var request struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.Body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	note := &models.Note{
		ObservationID: models.UUID(observationID),
		Body:          request.Body,
	}
	if err := h.repo.CreateNote(note); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create note")
		return
	}

	if err := h.enqueue(models.OpNoteCreate, note); err != nil {
		writeError(w, http.StatusInternalServerError, "Note saved locally but could not be queued for sync")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /notes/{id}.
func (h *ObservationHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.repo.GetNote(chi.URLParam(r, "id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve note")
		return
	}

	var request struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	note.Body = request.Body
	if err := h.repo.UpdateNote(note); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update note")
		return
	}

	if err := h.enqueue(models.OpNoteUpdate, note); err != nil {
		writeError(w, http.StatusInternalServerError, "Note saved locally but could not be queued for sync")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /notes/{id}.
func (h *ObservationHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.repo.DeleteNote(id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Note not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete note")
		return
	}

	if err := h.enqueue(models.OpNoteDelete, map[string]interface{}{"id": id}); err != nil {
		writeError(w, http.StatusInternalServerError, "Note deleted locally but could not be queued for sync")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted"})
}

// AttachPhoto handles POST /observations/{id}/photos. The photo bytes live
// on the client; the daemon queues the asset descriptor for upload. The
// response is 202 because the upload itself happens on a later drain.
func (h *ObservationHandler) AttachPhoto(w http.ResponseWriter, r *http.Request) {
	observationID := chi.URLParam(r, "id")

	if _, err := h.repo.GetObservation(observationID); errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "Observation not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve observation")
		return
	}

	var request struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		SHA256      string `json:"sha256"`
		Size        int64  `json:"size"`
		CapturedAt  int64  `json:"captured_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if request.FileName == "" || request.SHA256 == "" {
		writeError(w, http.StatusBadRequest, "file_name and sha256 are required")
		return
	}
	if request.CapturedAt == 0 {
		request.CapturedAt = time.Now().Unix()
	}

	descriptor := map[string]interface{}{
		"id":             uuid.New(),
		"observation_id": observationID,
		"file_name":      request.FileName,
		"content_type":   request.ContentType,
		"sha256":         request.SHA256,
		"size":           request.Size,
		"captured_at":    request.CapturedAt,
	}

	// The descriptor exists nowhere else: a failed enqueue here would lose
	// the photo entirely, so it must be an error, not a 202.
	if err := h.enqueue(models.OpPhotoUpload, descriptor); err != nil {
		writeError(w, http.StatusInternalServerError, "Photo could not be queued for upload")
		return
	}
	writeJSON(w, http.StatusAccepted, descriptor)
}

// enqueue queues the sync operation mirroring a local write. Failures
// propagate to the handler: the local mutation already happened, but the
// caller must learn the change was not queued, otherwise it would silently
// never reach the remote.
func (h *ObservationHandler) enqueue(opType models.OperationType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal sync payload", err, map[string]interface{}{
			"type": string(opType),
		})
		return err
	}
	if _, err := h.engine.Enqueue(opType, data); err != nil {
		logging.Error("Failed to enqueue sync operation", err, map[string]interface{}{
			"type": string(opType),
		})
		return err
	}
	return nil
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return defaultValue
	}
	return n
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}
