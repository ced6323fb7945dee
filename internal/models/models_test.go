// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"testing"
)

// TestUUIDValue verifies driver.Valuer implementation.
func TestUUIDValue(t *testing.T) {
	u := UUID("11111111-1111-4111-8111-111111111111")

	value, err := u.Value()
	if err != nil {
		t.Fatalf("Value() failed: %v", err)
	}
	if value != "11111111-1111-4111-8111-111111111111" {
		t.Errorf("Value() = %v, want the UUID string", value)
	}
}

// TestUUIDScan verifies sql.Scanner implementation across source types.
func TestUUIDScan(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  UUID
	}{
		{"string", "abc-123", UUID("abc-123")},
		{"bytes", []byte("abc-123"), UUID("abc-123")},
		{"nil", nil, UUID("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u UUID
			if err := u.Scan(tt.input); err != nil {
				t.Fatalf("Scan(%v) failed: %v", tt.input, err)
			}
			if u != tt.want {
				t.Errorf("Scan(%v) = %q, want %q", tt.input, u, tt.want)
			}
		})
	}
}

// TestOperationTypeValid verifies the known operation type set.
func TestOperationTypeValid(t *testing.T) {
	valid := []OperationType{
		OpObservationCreate, OpObservationUpdate, OpObservationDelete,
		OpNoteCreate, OpNoteUpdate, OpNoteDelete, OpPhotoUpload,
	}
	for _, opType := range valid {
		if !opType.Valid() {
			t.Errorf("OperationType %q should be valid", opType)
		}
	}

	invalid := []OperationType{"", "observation.merge", "photo.download", "note"}
	for _, opType := range invalid {
		if opType.Valid() {
			t.Errorf("OperationType %q should be invalid", opType)
		}
	}
}

// TestDecodePayload verifies payload decoding.
func TestDecodePayload(t *testing.T) {
	op := &Operation{
		Type:    OpObservationCreate,
		Payload: json.RawMessage(`{"id":"obs-1","title":"Heron"}`),
	}

	payload, err := op.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload() failed: %v", err)
	}
	if payload["id"] != "obs-1" {
		t.Errorf("payload[id] = %v, want obs-1", payload["id"])
	}
	if payload["title"] != "Heron" {
		t.Errorf("payload[title] = %v, want Heron", payload["title"])
	}
}

// TestDecodePayloadMalformed verifies malformed JSON surfaces an error.
func TestDecodePayloadMalformed(t *testing.T) {
	op := &Operation{Payload: json.RawMessage(`{not json`)}

	if _, err := op.DecodePayload(); err == nil {
		t.Error("DecodePayload() should fail on malformed JSON")
	}
}

// TestTableNames verifies table name mappings.
func TestTableNames(t *testing.T) {
	if got := (Observation{}).TableName(); got != "observations" {
		t.Errorf("Observation.TableName() = %q", got)
	}
	if got := (Note{}).TableName(); got != "notes" {
		t.Errorf("Note.TableName() = %q", got)
	}
	if got := (Operation{}).TableName(); got != "operations" {
		t.Errorf("Operation.TableName() = %q", got)
	}
}
