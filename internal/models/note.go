// Package models provides data model definitions for FieldLog.
package models

// Note represents a follow-up note attached to an observation.
type Note struct {
	ID            UUID   `db:"id" json:"id"`
	ObservationID UUID   `db:"observation_id" json:"observation_id"`
	Body          string `db:"body" json:"body"`
	CreatedAt     int64  `db:"created_at" json:"created_at"`
	UpdatedAt     int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Note.
func (Note) TableName() string {
	return "notes"
}
