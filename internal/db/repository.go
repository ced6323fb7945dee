// Package db provides CRUD repository operations for FieldLog data models.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/kimhsiao/fieldlog/internal/models"
	"github.com/kimhsiao/fieldlog/internal/uuid"
)

// Repository provides CRUD operations for the local durable store.
// Statements are prepared on first use and cached for reuse.
type Repository struct {
	db *sql.DB

	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Observation Operations
// =====================================================

// CreateObservation creates a new observation.
func (r *Repository) CreateObservation(obs *models.Observation) error {
	now := time.Now().Unix()
	obs.ID = models.UUID(uuid.New())
	obs.CreatedAt = now
	obs.UpdatedAt = now
	obs.Version = 1
	if obs.ObservedAt == 0 {
		obs.ObservedAt = now
	}

	query := `
	INSERT INTO observations (id, title, body, latitude, longitude, tags, observed_at,
		is_deleted, created_at, updated_at, version)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, obs.ID, obs.Title, obs.Body, obs.Latitude, obs.Longitude,
		obs.Tags, obs.ObservedAt, obs.IsDeleted, obs.CreatedAt, obs.UpdatedAt, obs.Version)
	return err
}

// GetObservation retrieves an observation by ID.
func (r *Repository) GetObservation(id string) (*models.Observation, error) {
	query := `
	SELECT id, title, body, latitude, longitude, tags, observed_at,
		   is_deleted, created_at, updated_at, version
	FROM observations WHERE id = ? AND is_deleted = 0
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var obs models.Observation
	err = stmt.QueryRow(id).Scan(
		&obs.ID, &obs.Title, &obs.Body, &obs.Latitude, &obs.Longitude,
		&obs.Tags, &obs.ObservedAt, &obs.IsDeleted, &obs.CreatedAt,
		&obs.UpdatedAt, &obs.Version,
	)
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

// ListObservations returns observations with pagination, newest first.
func (r *Repository) ListObservations(limit, offset int) ([]*models.Observation, error) {
	query := `
	SELECT id, title, body, latitude, longitude, tags, observed_at,
		   is_deleted, created_at, updated_at, version
	FROM observations WHERE is_deleted = 0
	ORDER BY observed_at DESC LIMIT ? OFFSET ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.Observation
	for rows.Next() {
		var obs models.Observation
		if err := rows.Scan(
			&obs.ID, &obs.Title, &obs.Body, &obs.Latitude, &obs.Longitude,
			&obs.Tags, &obs.ObservedAt, &obs.IsDeleted, &obs.CreatedAt,
			&obs.UpdatedAt, &obs.Version,
		); err != nil {
			return nil, err
		}
		items = append(items, &obs)
	}
	return items, rows.Err()
}

// UpdateObservation updates an existing observation and bumps its version.
func (r *Repository) UpdateObservation(obs *models.Observation) error {
	obs.UpdatedAt = time.Now().Unix()
	obs.Version++

	query := `
	UPDATE observations
	SET title = ?, body = ?, latitude = ?, longitude = ?, tags = ?, observed_at = ?,
		updated_at = ?, version = ?
	WHERE id = ? AND is_deleted = 0
	`
	result, err := r.db.Exec(query, obs.Title, obs.Body, obs.Latitude, obs.Longitude,
		obs.Tags, obs.ObservedAt, obs.UpdatedAt, obs.Version, obs.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteObservation soft-deletes an observation.
func (r *Repository) DeleteObservation(id string) error {
	query := `UPDATE observations SET is_deleted = 1, updated_at = ? WHERE id = ?`
	result, err := r.db.Exec(query, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =====================================================
// Note Operations
// =====================================================

// CreateNote creates a new note attached to an observation.
func (r *Repository) CreateNote(note *models.Note) error {
	now := time.Now().Unix()
	note.ID = models.UUID(uuid.New())
	note.CreatedAt = now
	note.UpdatedAt = now

	query := `
	INSERT INTO notes (id, observation_id, body, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, note.ID, note.ObservationID, note.Body,
		note.CreatedAt, note.UpdatedAt)
	return err
}

// GetNote retrieves a note by ID.
func (r *Repository) GetNote(id string) (*models.Note, error) {
	query := `
	SELECT id, observation_id, body, created_at, updated_at
	FROM notes WHERE id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	var note models.Note
	err = stmt.QueryRow(id).Scan(&note.ID, &note.ObservationID, &note.Body,
		&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// ListNotes returns all notes for an observation, oldest first.
func (r *Repository) ListNotes(observationID string) ([]*models.Note, error) {
	query := `
	SELECT id, observation_id, body, created_at, updated_at
	FROM notes WHERE observation_id = ?
	ORDER BY created_at ASC
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(observationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		var note models.Note
		if err := rows.Scan(&note.ID, &note.ObservationID, &note.Body,
			&note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, &note)
	}
	return notes, rows.Err()
}

// UpdateNote updates a note's body.
func (r *Repository) UpdateNote(note *models.Note) error {
	note.UpdatedAt = time.Now().Unix()

	query := `UPDATE notes SET body = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.Exec(query, note.Body, note.UpdatedAt, note.ID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteNote removes a note.
func (r *Repository) DeleteNote(id string) error {
	result, err := r.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =====================================================
// ConflictLog Operations
// =====================================================

// CreateConflictLog records a detected local/remote conflict.
func (r *Repository) CreateConflictLog(log *models.ConflictLog) error {
	log.ID = models.UUID(uuid.New())
	if log.DetectedAt == 0 {
		log.DetectedAt = time.Now().Unix()
	}
	if log.Resolution == "" {
		log.Resolution = "manual"
	}

	query := `
	INSERT INTO conflict_log (id, observation_id, local_timestamp, remote_timestamp, resolution, detected_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, log.ID, log.ObservationID, log.LocalTimestamp,
		log.RemoteTimestamp, log.Resolution, log.DetectedAt)
	return err
}

// ListConflictLogs returns recorded conflicts, newest first.
func (r *Repository) ListConflictLogs(limit int) ([]*models.ConflictLog, error) {
	query := `
	SELECT id, observation_id, local_timestamp, remote_timestamp, resolution, detected_at
	FROM conflict_log ORDER BY detected_at DESC LIMIT ?
	`
	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.ConflictLog
	for rows.Next() {
		var log models.ConflictLog
		if err := rows.Scan(&log.ID, &log.ObservationID, &log.LocalTimestamp,
			&log.RemoteTimestamp, &log.Resolution, &log.DetectedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
