// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"testing"
)

// TestErrorCodeValues verifies all error codes have non-empty values.
func TestErrorCodeValues(t *testing.T) {
	tests := []struct {
		name string
		code ErrorCode
	}{
		// General errors
		{"internal", ErrInternal},
		{"invalid", ErrInvalid},
		{"not found", ErrNotFound},
		{"validation", ErrValidation},

		// Database errors
		{"database", ErrDatabase},
		{"migration", ErrMigration},

		// Sync errors
		{"queue write", ErrQueueWrite},
		{"sync transient", ErrSyncTransient},
		{"sync permanent", ErrSyncPermanent},
		{"facility unavailable", ErrFacilityUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code == "" {
				t.Errorf("ErrorCode %q should not be empty", tt.name)
			}
		})
	}
}

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrSyncTransient, Message: "remote call failed", Err: errors.New("connection reset")},
			want:     "[SYNC_TRANSIENT] remote call failed: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appError.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestNew verifies AppError creation.
func TestNew(t *testing.T) {
	err := New(ErrSyncPermanent, "payload rejected")

	if err.Code != ErrSyncPermanent {
		t.Errorf("Code = %q, want %q", err.Code, ErrSyncPermanent)
	}
	if err.Message != "payload rejected" {
		t.Errorf("Message = %q, want %q", err.Message, "payload rejected")
	}
	if err.Err != nil {
		t.Errorf("Err = %v, want nil", err.Err)
	}
}

// TestWrap verifies error wrapping preserves the cause.
func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrQueueWrite, "failed to persist operation", cause)

	if err.Code != ErrQueueWrite {
		t.Errorf("Code = %q, want %q", err.Code, ErrQueueWrite)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should match the cause via errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

// TestIs verifies code matching.
func TestIs(t *testing.T) {
	err := New(ErrFacilityUnavailable, "asset storage not provisioned")

	if !Is(err, ErrFacilityUnavailable) {
		t.Error("Is() should match the error's own code")
	}
	if Is(err, ErrSyncTransient) {
		t.Error("Is() should not match a different code")
	}
	if Is(errors.New("plain"), ErrInternal) {
		t.Error("Is() should not match a non-AppError")
	}
	if Is(nil, ErrInternal) {
		t.Error("Is() should not match nil")
	}
}

// TestCodeOf verifies code extraction.
func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(ErrSyncTransient, "x")); got != ErrSyncTransient {
		t.Errorf("CodeOf(AppError) = %q, want %q", got, ErrSyncTransient)
	}
	if got := CodeOf(errors.New("plain")); got != ErrInternal {
		t.Errorf("CodeOf(plain error) = %q, want %q", got, ErrInternal)
	}
}
