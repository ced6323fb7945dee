// Package queue provides the durable store for pending sync operations.
// Operations live in SQLite so the queue survives process restarts; rows are
// deleted on confirmed remote success, so the table content is always exactly
// the outstanding work.
package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kimhsiao/fieldlog/internal/models"
	"github.com/kimhsiao/fieldlog/internal/uuid"
)

// Store persists sync operations in the operations table.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store backed by db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Stats summarizes queue contents by status.
type Stats struct {
	Pending  int `json:"pending"`
	InFlight int `json:"in_flight"`
	Failed   int `json:"failed"`
}

// Insert persists a new operation with a fresh ID and pending status.
func (s *Store) Insert(opType models.OperationType, payload json.RawMessage) (*models.Operation, error) {
	if !opType.Valid() {
		return nil, fmt.Errorf("unknown operation type: %s", opType)
	}

	now := time.Now().Unix()
	op := &models.Operation{
		ID:         models.UUID(uuid.New()),
		Type:       opType,
		Payload:    payload,
		EnqueuedAt: now,
		RetryCount: 0,
		MaxRetries: models.DefaultMaxRetries,
		Status:     models.OperationPending,
		UpdatedAt:  now,
	}

	query := `
	INSERT INTO operations (id, type, payload, enqueued_at, retry_count, max_retries, status, last_error, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, op.ID, op.Type, string(op.Payload), op.EnqueuedAt,
		op.RetryCount, op.MaxRetries, op.Status, op.LastError, op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ListPending returns all pending operations ordered oldest first.
// The implicit rowid breaks ties between operations enqueued within the
// same second, preserving insertion order.
func (s *Store) ListPending() ([]*models.Operation, error) {
	query := `
	SELECT id, type, payload, enqueued_at, retry_count, max_retries, status, last_error, updated_at
	FROM operations WHERE status = ?
	ORDER BY enqueued_at ASC, rowid ASC
	`
	rows, err := s.db.Query(query, models.OperationPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOperations(rows)
}

// ListFailed returns operations that exhausted their retry budget.
func (s *Store) ListFailed() ([]*models.Operation, error) {
	query := `
	SELECT id, type, payload, enqueued_at, retry_count, max_retries, status, last_error, updated_at
	FROM operations WHERE status = ?
	ORDER BY enqueued_at ASC, rowid ASC
	`
	rows, err := s.db.Query(query, models.OperationFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOperations(rows)
}

// Get retrieves a single operation by ID.
func (s *Store) Get(id string) (*models.Operation, error) {
	query := `
	SELECT id, type, payload, enqueued_at, retry_count, max_retries, status, last_error, updated_at
	FROM operations WHERE id = ?
	`
	var op models.Operation
	var payload string
	err := s.db.QueryRow(query, id).Scan(&op.ID, &op.Type, &payload, &op.EnqueuedAt,
		&op.RetryCount, &op.MaxRetries, &op.Status, &op.LastError, &op.UpdatedAt)
	if err != nil {
		return nil, err
	}
	op.Payload = json.RawMessage(payload)
	return &op, nil
}

// MarkInFlight transitions an operation to in_flight for the duration of a
// remote attempt.
func (s *Store) MarkInFlight(id string) error {
	return s.setStatus(id, models.OperationInFlight, "")
}

// RecordRetry increments the retry counter after a failed attempt and keeps
// the operation pending for a later drain.
func (s *Store) RecordRetry(id string, lastError string) error {
	query := `
	UPDATE operations
	SET retry_count = retry_count + 1, status = ?, last_error = ?, updated_at = ?
	WHERE id = ?
	`
	return s.exec(query, models.OperationPending, lastError, time.Now().Unix(), id)
}

// MarkFailed counts the final attempt and transitions an operation to the
// terminal failed state. The row is kept for user-visible inspection, never
// silently dropped.
func (s *Store) MarkFailed(id string, lastError string) error {
	query := `
	UPDATE operations
	SET retry_count = retry_count + 1, status = ?, last_error = ?, updated_at = ?
	WHERE id = ?
	`
	return s.exec(query, models.OperationFailed, lastError, time.Now().Unix(), id)
}

// Delete removes an operation after confirmed remote success (or an explicit
// facility-unavailable skip).
func (s *Store) Delete(id string) error {
	return s.exec(`DELETE FROM operations WHERE id = ?`, id)
}

// ResetInFlight returns any in-flight operations to pending. A row can only
// be in flight while a drain is running, so rows found in that state at
// startup were orphaned by a crash mid-attempt; the remote writes are
// idempotent, so re-sending is safe.
func (s *Store) ResetInFlight() (int, error) {
	query := `UPDATE operations SET status = ?, updated_at = ? WHERE status = ?`
	result, err := s.db.Exec(query, models.OperationPending, time.Now().Unix(), models.OperationInFlight)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// RetryFailed resets all failed operations to pending with a fresh retry
// budget. Returns the number of operations re-armed.
func (s *Store) RetryFailed() (int, error) {
	query := `
	UPDATE operations
	SET status = ?, retry_count = 0, last_error = '', updated_at = ?
	WHERE status = ?
	`
	result, err := s.db.Exec(query, models.OperationPending, time.Now().Unix(), models.OperationFailed)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// Stats returns queue counts by status.
func (s *Store) Stats() (Stats, error) {
	query := `SELECT status, COUNT(*) FROM operations GROUP BY status`
	rows, err := s.db.Query(query)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status models.OperationStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case models.OperationPending:
			stats.Pending = count
		case models.OperationInFlight:
			stats.InFlight = count
		case models.OperationFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

func (s *Store) setStatus(id string, status models.OperationStatus, lastError string) error {
	query := `UPDATE operations SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`
	return s.exec(query, status, lastError, time.Now().Unix(), id)
}

func (s *Store) exec(query string, args ...interface{}) error {
	result, err := s.db.Exec(query, args...)
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

func scanOperations(rows *sql.Rows) ([]*models.Operation, error) {
	var ops []*models.Operation
	for rows.Next() {
		var op models.Operation
		var payload string
		if err := rows.Scan(&op.ID, &op.Type, &payload, &op.EnqueuedAt,
			&op.RetryCount, &op.MaxRetries, &op.Status, &op.LastError, &op.UpdatedAt); err != nil {
			return nil, err
		}
		op.Payload = json.RawMessage(payload)
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}
