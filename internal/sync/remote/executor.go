// Package remote translates queued operations into idempotent backend calls.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/fieldlog/internal/errors"
	"github.com/kimhsiao/fieldlog/internal/models"
)

// Executor performs one queued operation against the remote backend.
type Executor interface {
	// Execute dispatches the operation to exactly one idempotent backend
	// call. Errors carry one of the sync error codes: SYNC_TRANSIENT for
	// retryable failures, SYNC_PERMANENT for failures retrying cannot fix,
	// FACILITY_UNAVAILABLE for a provisioned-off backend feature.
	Execute(ctx context.Context, op *models.Operation) error
}

// DefaultCallTimeout bounds each remote call so a hung request cannot stall
// the drain loop.
const DefaultCallTimeout = 15 * time.Second

// BackendExecutor maps operation types onto Backend calls.
type BackendExecutor struct {
	backend Backend
	timeout time.Duration
}

// NewBackendExecutor creates a BackendExecutor. A non-positive timeout
// selects DefaultCallTimeout.
func NewBackendExecutor(backend Backend, timeout time.Duration) *BackendExecutor {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &BackendExecutor{
		backend: backend,
		timeout: timeout,
	}
}

// Execute dispatches one operation. The payload's timestamps are normalized
// to canonical RFC 3339 UTC here, in one place, because payloads originate
// from different local code paths that disagree on date representation.
func (e *BackendExecutor) Execute(ctx context.Context, op *models.Operation) error {
	payload, err := op.DecodePayload()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncPermanent, "malformed operation payload", err)
	}

	id, ok := payload["id"].(string)
	if !ok || id == "" {
		return apperrors.New(apperrors.ErrSyncPermanent, "operation payload has no id")
	}

	NormalizeTimestamps(payload)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	switch op.Type {
	case models.OpObservationCreate, models.OpObservationUpdate:
		err = e.backend.Upsert(ctx, CollectionObservations, id, payload)
	case models.OpObservationDelete:
		err = e.backend.Delete(ctx, CollectionObservations, id)
	case models.OpNoteCreate, models.OpNoteUpdate:
		err = e.backend.Upsert(ctx, CollectionNotes, id, payload)
	case models.OpNoteDelete:
		err = e.backend.Delete(ctx, CollectionNotes, id)
	case models.OpPhotoUpload:
		err = e.backend.UploadAsset(ctx, id, payload)
	default:
		return apperrors.New(apperrors.ErrSyncPermanent,
			fmt.Sprintf("unknown operation type: %s", op.Type))
	}

	return classify(err)
}

// classify maps backend errors onto the sync error taxonomy.
//
// The backend gives no single signal for retryability, so the boundary is:
//   - facility-unavailable: the backend's explicit not-provisioned signal
//   - transient: timeouts, connection errors, HTTP 5xx and 429
//   - permanent: remaining HTTP 4xx (the request itself is bad)
//   - anything unrecognized is treated as transient, since retrying a
//     transient failure is cheap and dropping a recoverable write is not
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrAssetFacilityUnavailable) {
		return apperrors.Wrap(apperrors.ErrFacilityUnavailable, "asset storage not provisioned", err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrSyncTransient, "remote call timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Wrap(apperrors.ErrSyncTransient, "network error", err)
	}

	var serr *StatusError
	if errors.As(err, &serr) {
		switch {
		case serr.StatusCode >= 500:
			return apperrors.Wrap(apperrors.ErrSyncTransient, "backend error", err)
		case serr.StatusCode == http.StatusTooManyRequests:
			return apperrors.Wrap(apperrors.ErrSyncTransient, "backend throttled the request", err)
		case serr.StatusCode >= 400:
			return apperrors.Wrap(apperrors.ErrSyncPermanent, "backend rejected the request", err)
		}
	}

	return apperrors.Wrap(apperrors.ErrSyncTransient, "remote call failed", err)
}

// timestampKeys are payload keys whose values carry a date or time.
var timestampKeys = map[string]bool{
	"observed_at":      true,
	"created_at":       true,
	"updated_at":       true,
	"enqueued_at":      true,
	"detected_at":      true,
	"captured_at":      true,
	"timestamp":        true,
	"local_timestamp":  true,
	"remote_timestamp": true,
}

// NormalizeTimestamps rewrites every timestamp value in the payload to
// RFC 3339 UTC, in place, recursing into nested objects and arrays. Values
// may arrive as RFC 3339 strings, UNIX seconds or milliseconds (JSON
// numbers or numeric strings), or time.Time; all leave as one canonical
// wire representation.
func NormalizeTimestamps(payload map[string]interface{}) {
	for key, value := range payload {
		switch v := value.(type) {
		case map[string]interface{}:
			NormalizeTimestamps(v)
		case []interface{}:
			for _, elem := range v {
				if m, ok := elem.(map[string]interface{}); ok {
					NormalizeTimestamps(m)
				}
			}
		default:
			if timestampKeys[key] {
				if canonical, ok := canonicalTime(value); ok {
					payload[key] = canonical
				}
			}
		}
	}
}

// canonicalTime converts a timestamp of any accepted shape to RFC 3339 UTC.
func canonicalTime(value interface{}) (string, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339), true
	case float64:
		return unixToRFC3339(int64(v)), true
	case int64:
		return unixToRFC3339(v), true
	case int:
		return unixToRFC3339(int64(v)), true
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
		if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return t.UTC().Format(time.RFC3339), true
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return unixToRFC3339(n), true
		}
		return "", false
	default:
		return "", false
	}
}

// unixToRFC3339 accepts seconds or milliseconds, disambiguated by magnitude.
func unixToRFC3339(n int64) string {
	// Values above ~year 5138 in seconds are actually milliseconds.
	if n > 1e12 {
		return time.UnixMilli(n).UTC().Format(time.RFC3339)
	}
	return time.Unix(n, 0).UTC().Format(time.RFC3339)
}
