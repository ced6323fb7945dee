package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/fieldlog/internal/errors"
	"github.com/kimhsiao/fieldlog/internal/models"
)

// stubBackend records the single call made by Execute and returns a scripted
// error.
type stubBackend struct {
	err error

	upsertCollection string
	upsertID         string
	upsertDoc        map[string]interface{}
	deleteCollection string
	deleteID         string
	assetID          string
	calls            int
}

func (b *stubBackend) Upsert(_ context.Context, collection, id string, doc map[string]interface{}) error {
	b.calls++
	b.upsertCollection = collection
	b.upsertID = id
	b.upsertDoc = doc
	return b.err
}

func (b *stubBackend) Delete(_ context.Context, collection, id string) error {
	b.calls++
	b.deleteCollection = collection
	b.deleteID = id
	return b.err
}

func (b *stubBackend) UploadAsset(_ context.Context, id string, _ map[string]interface{}) error {
	b.calls++
	b.assetID = id
	return b.err
}

func op(opType models.OperationType, payload string) *models.Operation {
	return &models.Operation{
		ID:         models.UUID("11111111-1111-4111-8111-111111111111"),
		Type:       opType,
		Payload:    json.RawMessage(payload),
		MaxRetries: models.DefaultMaxRetries,
		Status:     models.OperationInFlight,
	}
}

func TestExecuteDispatch(t *testing.T) {
	tests := []struct {
		name       string
		opType     models.OperationType
		wantUpsert string // collection, empty when not an upsert
		wantDelete string
		wantAsset  bool
	}{
		{"observation create", models.OpObservationCreate, CollectionObservations, "", false},
		{"observation update", models.OpObservationUpdate, CollectionObservations, "", false},
		{"observation delete", models.OpObservationDelete, "", CollectionObservations, false},
		{"note create", models.OpNoteCreate, CollectionNotes, "", false},
		{"note update", models.OpNoteUpdate, CollectionNotes, "", false},
		{"note delete", models.OpNoteDelete, "", CollectionNotes, false},
		{"photo upload", models.OpPhotoUpload, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{}
			executor := NewBackendExecutor(backend, time.Second)

			err := executor.Execute(context.Background(), op(tt.opType, `{"id":"doc-1"}`))
			require.NoError(t, err)
			assert.Equal(t, 1, backend.calls, "exactly one backend call per operation")

			switch {
			case tt.wantUpsert != "":
				assert.Equal(t, tt.wantUpsert, backend.upsertCollection)
				assert.Equal(t, "doc-1", backend.upsertID)
			case tt.wantDelete != "":
				assert.Equal(t, tt.wantDelete, backend.deleteCollection)
				assert.Equal(t, "doc-1", backend.deleteID)
			case tt.wantAsset:
				assert.Equal(t, "doc-1", backend.assetID)
			}
		})
	}
}

func TestExecutePermanentWithoutBackendCall(t *testing.T) {
	tests := []struct {
		name string
		op   *models.Operation
	}{
		{"malformed payload", op(models.OpObservationCreate, `{not json`)},
		{"missing id", op(models.OpObservationCreate, `{"title":"no id"}`)},
		{"empty id", op(models.OpObservationCreate, `{"id":""}`)},
		{"non-string id", op(models.OpObservationCreate, `{"id":42}`)},
		{"unknown type", op(models.OperationType("observation.merge"), `{"id":"x"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{}
			executor := NewBackendExecutor(backend, time.Second)

			err := executor.Execute(context.Background(), tt.op)
			assert.True(t, apperrors.Is(err, apperrors.ErrSyncPermanent), "got: %v", err)
			assert.Equal(t, 0, backend.calls, "bad payloads must never reach the backend")
		})
	}
}

// timeoutNetError mimics a dial timeout.
type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

var _ net.Error = timeoutNetError{}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode apperrors.ErrorCode
	}{
		{"server error", &StatusError{StatusCode: 500}, apperrors.ErrSyncTransient},
		{"bad gateway", &StatusError{StatusCode: 502}, apperrors.ErrSyncTransient},
		{"throttled", &StatusError{StatusCode: 429}, apperrors.ErrSyncTransient},
		{"bad request", &StatusError{StatusCode: 400}, apperrors.ErrSyncPermanent},
		{"unauthorized", &StatusError{StatusCode: 401}, apperrors.ErrSyncPermanent},
		{"conflict", &StatusError{StatusCode: 409}, apperrors.ErrSyncPermanent},
		{"deadline", context.DeadlineExceeded, apperrors.ErrSyncTransient},
		{"net error", timeoutNetError{}, apperrors.ErrSyncTransient},
		{"facility sentinel", ErrAssetFacilityUnavailable, apperrors.ErrFacilityUnavailable},
		{"unrecognized", errors.New("something odd"), apperrors.ErrSyncTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{err: tt.err}
			executor := NewBackendExecutor(backend, time.Second)

			err := executor.Execute(context.Background(), op(models.OpObservationCreate, `{"id":"x"}`))
			assert.True(t, apperrors.Is(err, tt.wantCode),
				"want %s, got: %v", tt.wantCode, err)
		})
	}
}

// slowBackend blocks until its context expires.
type slowBackend struct{ stubBackend }

func (b *slowBackend) Upsert(ctx context.Context, _, _ string, _ map[string]interface{}) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestExecuteEnforcesCallTimeout(t *testing.T) {
	executor := NewBackendExecutor(&slowBackend{}, 20*time.Millisecond)

	start := time.Now()
	err := executor.Execute(context.Background(), op(models.OpObservationCreate, `{"id":"x"}`))
	elapsed := time.Since(start)

	assert.True(t, apperrors.Is(err, apperrors.ErrSyncTransient), "got: %v", err)
	assert.Less(t, elapsed, 5*time.Second, "the call must be bounded by the executor timeout")
}

func TestExecuteNormalizesPayloadTimestamps(t *testing.T) {
	backend := &stubBackend{}
	executor := NewBackendExecutor(backend, time.Second)

	payload := `{"id":"obs-1","observed_at":1700000000,"title":"Heron"}`
	require.NoError(t, executor.Execute(context.Background(), op(models.OpObservationCreate, payload)))

	require.NotNil(t, backend.upsertDoc)
	assert.Equal(t, "2023-11-14T22:13:20Z", backend.upsertDoc["observed_at"])
	assert.Equal(t, "Heron", backend.upsertDoc["title"], "non-timestamp fields pass through untouched")
}

func TestNormalizeTimestamps(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]interface{}
		want map[string]interface{}
	}{
		{
			name: "unix seconds",
			in:   map[string]interface{}{"created_at": float64(1700000000)},
			want: map[string]interface{}{"created_at": "2023-11-14T22:13:20Z"},
		},
		{
			name: "unix milliseconds",
			in:   map[string]interface{}{"created_at": float64(1700000000000)},
			want: map[string]interface{}{"created_at": "2023-11-14T22:13:20Z"},
		},
		{
			name: "numeric string",
			in:   map[string]interface{}{"updated_at": "1700000000"},
			want: map[string]interface{}{"updated_at": "2023-11-14T22:13:20Z"},
		},
		{
			name: "rfc3339 with offset",
			in:   map[string]interface{}{"observed_at": "2023-11-14T23:13:20+01:00"},
			want: map[string]interface{}{"observed_at": "2023-11-14T22:13:20Z"},
		},
		{
			name: "space-separated datetime",
			in:   map[string]interface{}{"captured_at": "2023-11-14 22:13:20"},
			want: map[string]interface{}{"captured_at": "2023-11-14T22:13:20Z"},
		},
		{
			name: "time.Time value",
			in:   map[string]interface{}{"timestamp": time.Unix(1700000000, 0)},
			want: map[string]interface{}{"timestamp": "2023-11-14T22:13:20Z"},
		},
		{
			name: "unparseable string left alone",
			in:   map[string]interface{}{"observed_at": "yesterday-ish"},
			want: map[string]interface{}{"observed_at": "yesterday-ish"},
		},
		{
			name: "non-timestamp keys untouched",
			in:   map[string]interface{}{"title": "1700000000"},
			want: map[string]interface{}{"title": "1700000000"},
		},
		{
			name: "nested object",
			in: map[string]interface{}{
				"meta": map[string]interface{}{"created_at": float64(1700000000)},
			},
			want: map[string]interface{}{
				"meta": map[string]interface{}{"created_at": "2023-11-14T22:13:20Z"},
			},
		},
		{
			name: "array of objects",
			in: map[string]interface{}{
				"notes": []interface{}{
					map[string]interface{}{"created_at": float64(1700000000)},
				},
			},
			want: map[string]interface{}{
				"notes": []interface{}{
					map[string]interface{}{"created_at": "2023-11-14T22:13:20Z"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			NormalizeTimestamps(tt.in)
			assert.Equal(t, tt.want, tt.in)
		})
	}
}
