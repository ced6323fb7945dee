// Package models provides data model definitions for FieldLog.
package models

import (
	"encoding/json"
	"time"
)

// OperationType identifies the remote mutation a queued operation performs.
type OperationType string

const (
	OpObservationCreate OperationType = "observation.create"
	OpObservationUpdate OperationType = "observation.update"
	OpObservationDelete OperationType = "observation.delete"
	OpNoteCreate        OperationType = "note.create"
	OpNoteUpdate        OperationType = "note.update"
	OpNoteDelete        OperationType = "note.delete"
	OpPhotoUpload       OperationType = "photo.upload"
)

// Valid reports whether t is one of the known operation types.
func (t OperationType) Valid() bool {
	switch t {
	case OpObservationCreate, OpObservationUpdate, OpObservationDelete,
		OpNoteCreate, OpNoteUpdate, OpNoteDelete, OpPhotoUpload:
		return true
	}
	return false
}

// OperationStatus represents the lifecycle state of a queued operation.
// A successfully synced operation has no status: its row is deleted, so the
// queue's content is always exactly the outstanding work.
type OperationStatus string

const (
	OperationPending  OperationStatus = "pending"
	OperationInFlight OperationStatus = "in_flight"
	OperationFailed   OperationStatus = "failed"
)

// DefaultMaxRetries is the retry ceiling applied at enqueue time.
const DefaultMaxRetries = 3

// Operation represents one durable pending local-to-remote mutation.
type Operation struct {
	ID         UUID            `db:"id" json:"id"`
	Type       OperationType   `db:"type" json:"type"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	EnqueuedAt int64           `db:"enqueued_at" json:"enqueued_at"`
	RetryCount int             `db:"retry_count" json:"retry_count"`
	MaxRetries int             `db:"max_retries" json:"max_retries"`
	Status     OperationStatus `db:"status" json:"status"`
	LastError  string          `db:"last_error" json:"last_error,omitempty"`
	UpdatedAt  int64           `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Operation.
func (Operation) TableName() string {
	return "operations"
}

// EnqueuedAtTime returns EnqueuedAt as time.Time.
func (o *Operation) EnqueuedAtTime() time.Time {
	return time.Unix(o.EnqueuedAt, 0)
}

// DecodePayload unmarshals the payload into a generic map.
func (o *Operation) DecodePayload() (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(o.Payload, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
