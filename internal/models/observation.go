// Package models provides data model definitions for FieldLog.
package models

import "time"

// Observation represents a single field observation recorded by the user.
type Observation struct {
	ID         UUID    `db:"id" json:"id"`
	Title      string  `db:"title" json:"title"`
	Body       string  `db:"body" json:"body"`
	Latitude   float64 `db:"latitude" json:"latitude,omitempty"`
	Longitude  float64 `db:"longitude" json:"longitude,omitempty"`
	Tags       string  `db:"tags" json:"tags"` // Comma-separated
	ObservedAt int64   `db:"observed_at" json:"observed_at"`
	IsDeleted  bool    `db:"is_deleted" json:"is_deleted"`
	CreatedAt  int64   `db:"created_at" json:"created_at"`
	UpdatedAt  int64   `db:"updated_at" json:"updated_at"`
	Version    int     `db:"version" json:"version"`
}

// TableName returns the table name for Observation.
func (Observation) TableName() string {
	return "observations"
}

// ObservedAtTime returns ObservedAt as time.Time.
func (o *Observation) ObservedAtTime() time.Time {
	return time.Unix(o.ObservedAt, 0)
}
