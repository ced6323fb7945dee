package queue

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/fieldlog/internal/db"
	"github.com/kimhsiao/fieldlog/internal/models"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, closer := openStore(t, dir)
	t.Cleanup(closer)
	return store, dir
}

func openStore(t *testing.T, dir string) (*Store, func()) {
	t.Helper()
	database, err := db.Open(dir)
	require.NoError(t, err)

	migrator := db.NewMigrator(database.DB)
	require.NoError(t, migrator.Initialize())
	require.NoError(t, migrator.Up())

	return NewStore(database.DB), func() { database.Close() }
}

func insertOp(t *testing.T, store *Store, opType models.OperationType, payload string) *models.Operation {
	t.Helper()
	op, err := store.Insert(opType, json.RawMessage(payload))
	require.NoError(t, err)
	return op
}

func TestInsertDefaults(t *testing.T) {
	store, _ := newTestStore(t)

	op := insertOp(t, store, models.OpObservationCreate, `{"id":"a"}`)

	assert.NotEmpty(t, op.ID)
	assert.Equal(t, models.OperationPending, op.Status)
	assert.Equal(t, 0, op.RetryCount)
	assert.Equal(t, models.DefaultMaxRetries, op.MaxRetries)
	assert.NotZero(t, op.EnqueuedAt)

	stored, err := store.Get(op.ID.String())
	require.NoError(t, err)
	assert.Equal(t, op.ID, stored.ID)
	assert.JSONEq(t, `{"id":"a"}`, string(stored.Payload))
}

func TestInsertRejectsUnknownType(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Insert(models.OperationType("observation.frobnicate"), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestListPendingIsFIFO(t *testing.T) {
	store, _ := newTestStore(t)

	// Inserted within the same second: rowid must break the tie.
	first := insertOp(t, store, models.OpObservationCreate, `{"id":"1"}`)
	second := insertOp(t, store, models.OpNoteCreate, `{"id":"2"}`)
	third := insertOp(t, store, models.OpObservationDelete, `{"id":"3"}`)

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)
	assert.Equal(t, third.ID, pending[2].ID)
}

func TestStatusTransitions(t *testing.T) {
	store, _ := newTestStore(t)
	op := insertOp(t, store, models.OpObservationCreate, `{"id":"a"}`)
	id := op.ID.String()

	require.NoError(t, store.MarkInFlight(id))
	stored, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.OperationInFlight, stored.Status)

	// In-flight rows are invisible to the drain listing.
	pending, err := store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRecordRetryKeepsPending(t *testing.T) {
	store, _ := newTestStore(t)
	op := insertOp(t, store, models.OpNoteUpdate, `{"id":"n"}`)
	id := op.ID.String()

	require.NoError(t, store.MarkInFlight(id))
	require.NoError(t, store.RecordRetry(id, "connection reset"))

	stored, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.OperationPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "connection reset", stored.LastError)
}

func TestMarkFailedCountsFinalAttempt(t *testing.T) {
	store, _ := newTestStore(t)
	op := insertOp(t, store, models.OpObservationUpdate, `{"id":"u"}`)
	id := op.ID.String()

	require.NoError(t, store.RecordRetry(id, "try 1"))
	require.NoError(t, store.RecordRetry(id, "try 2"))
	require.NoError(t, store.MarkFailed(id, "try 3"))

	stored, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.OperationFailed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
	assert.Equal(t, "try 3", stored.LastError)

	// Failed rows stay out of the drain listing but remain inspectable.
	pending, err := store.ListPending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := store.ListFailed()
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, op.ID, failed[0].ID)
}

func TestDeleteRemovesRow(t *testing.T) {
	store, _ := newTestStore(t)
	op := insertOp(t, store, models.OpPhotoUpload, `{"id":"p"}`)

	require.NoError(t, store.Delete(op.ID.String()))

	_, err := store.Get(op.ID.String())
	assert.ErrorIs(t, err, sql.ErrNoRows)

	// Deleting again reports the missing row.
	assert.ErrorIs(t, store.Delete(op.ID.String()), sql.ErrNoRows)
}

func TestResetInFlight(t *testing.T) {
	store, _ := newTestStore(t)
	a := insertOp(t, store, models.OpObservationCreate, `{"id":"a"}`)
	b := insertOp(t, store, models.OpObservationCreate, `{"id":"b"}`)
	insertOp(t, store, models.OpObservationCreate, `{"id":"c"}`)

	require.NoError(t, store.MarkInFlight(a.ID.String()))
	require.NoError(t, store.MarkInFlight(b.ID.String()))

	recovered, err := store.ResetInFlight()
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	pending, err := store.ListPending()
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestRetryFailedResetsBudget(t *testing.T) {
	store, _ := newTestStore(t)
	op := insertOp(t, store, models.OpObservationCreate, `{"id":"a"}`)

	require.NoError(t, store.RecordRetry(op.ID.String(), "x"))
	require.NoError(t, store.RecordRetry(op.ID.String(), "y"))
	require.NoError(t, store.MarkFailed(op.ID.String(), "z"))

	count, err := store.RetryFailed()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored, err := store.Get(op.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.OperationPending, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)
	assert.Empty(t, stored.LastError)
}

func TestStats(t *testing.T) {
	store, _ := newTestStore(t)

	a := insertOp(t, store, models.OpObservationCreate, `{"id":"a"}`)
	insertOp(t, store, models.OpObservationCreate, `{"id":"b"}`)
	c := insertOp(t, store, models.OpObservationCreate, `{"id":"c"}`)

	require.NoError(t, store.MarkInFlight(a.ID.String()))
	require.NoError(t, store.MarkFailed(c.ID.String(), "boom"))

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 1, InFlight: 1, Failed: 1}, stats)
}

func TestQueueSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, closer := openStore(t, dir)

	op := insertOp(t, store, models.OpObservationCreate, `{"id":"persist-me"}`)
	closer()

	store, closer = openStore(t, dir)
	defer closer()

	pending, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, op.ID, pending[0].ID)
	assert.JSONEq(t, `{"id":"persist-me"}`, string(pending[0].Payload))
}
