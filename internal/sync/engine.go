// Package sync provides the offline-first synchronization engine.
//
// The engine owns a single drain loop that converts durably queued local
// mutations into idempotent remote writes. Enqueueing never waits for the
// network; draining happens opportunistically whenever a trigger fires and
// the network is actually usable.
package sync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/fieldlog/internal/errors"
	"github.com/kimhsiao/fieldlog/internal/lifecycle"
	"github.com/kimhsiao/fieldlog/internal/logging"
	"github.com/kimhsiao/fieldlog/internal/models"
	"github.com/kimhsiao/fieldlog/internal/network"
	"github.com/kimhsiao/fieldlog/internal/sync/queue"
	"github.com/kimhsiao/fieldlog/internal/sync/remote"
)

// EventType identifies a sync notification.
type EventType string

const (
	EventDrainStarted    EventType = "drain.started"
	EventDrainCompleted  EventType = "drain.completed"
	EventOperationFailed EventType = "operation.failed"
)

// Event is a sync notification delivered to the event handler.
type Event struct {
	Type EventType
	Data map[string]interface{}
}

// EventHandler receives sync events, e.g. for forwarding to a UI.
type EventHandler interface {
	OnSyncEvent(event Event)
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	// Ran is false when the drain was a no-op: another drain was in
	// progress or the network was unusable.
	Ran bool

	Processed        int // operations removed from the queue (synced or skipped)
	Skipped          int // facility-unavailable skips, included in Processed
	Retried          int // transient failures left pending for a later drain
	Failed           int // operations that reached a terminal failed state
	Remaining        int // operations left untouched after an early break
	ConnectivityLost bool
}

// QueueStats is the read-only snapshot served to the status API.
type QueueStats struct {
	Pending    int        `json:"pending"`
	InFlight   int        `json:"in_flight"`
	Failed     int        `json:"failed"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// Engine implements EngineInterface over a durable queue store, a remote
// executor, and the network/lifecycle collaborators. All collaborators are
// injected at construction; there is no ambient global instance.
type Engine struct {
	store    *queue.Store
	executor remote.Executor
	monitor  network.Monitor
	observer lifecycle.Observer

	mu        sync.Mutex
	draining  bool
	lastSync  *time.Time
	processed int64 // operations processed since process start
	handler   EventHandler
}

// NewEngine creates an Engine. Call Start to wire the trigger
// subscriptions.
func NewEngine(store *queue.Store, executor remote.Executor, monitor network.Monitor, observer lifecycle.Observer) *Engine {
	return &Engine{
		store:    store,
		executor: executor,
		monitor:  monitor,
		observer: observer,
	}
}

// Start recovers operations orphaned in flight by a previous crash and
// subscribes the engine to reachability and foreground transitions.
func (e *Engine) Start() {
	if recovered, err := e.store.ResetInFlight(); err != nil {
		logging.Error("Failed to recover in-flight operations", err)
	} else if recovered > 0 {
		logging.Info("Recovered in-flight operations from previous run",
			map[string]interface{}{"count": recovered})
	}

	e.monitor.Subscribe(func(state network.State) {
		if state.Usable() {
			e.OnNetworkReachable()
		}
	})
	e.observer.Subscribe(func(lifecycle.State) {
		e.OnForeground()
	})
}

// SetEventHandler sets the handler receiving sync event notifications.
func (e *Engine) SetEventHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// Enqueue persists one pending operation and returns as soon as the write is
// durable. A drain attempt is triggered asynchronously when the network is
// usable; the caller is never blocked on network I/O.
func (e *Engine) Enqueue(opType models.OperationType, payload json.RawMessage) (*models.Operation, error) {
	op, err := e.store.Insert(opType, payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueueWrite, "failed to persist operation", err)
	}

	logging.Debug("Operation enqueued", map[string]interface{}{
		"operation_id": op.ID.String(),
		"type":         string(op.Type),
	})

	if e.monitor.State().Usable() {
		go e.Drain(context.Background())
	}

	return op, nil
}

// OnNetworkReachable triggers a drain when connectivity returns.
func (e *Engine) OnNetworkReachable() {
	go e.Drain(context.Background())
}

// OnForeground triggers a drain when the host app comes to the foreground.
func (e *Engine) OnForeground() {
	go e.Drain(context.Background())
}

// ForceDrain runs a drain synchronously (e.g. user pull-to-refresh).
func (e *Engine) ForceDrain(ctx context.Context) DrainResult {
	return e.Drain(ctx)
}

// Drain processes all currently pending operations oldest-first. It is a
// no-op when another drain is in progress or the network is unusable, which
// makes every trigger safe to fire at any time. Connectivity is re-checked
// before each operation so a mid-drain drop degrades to "processed N of M,
// the rest stay pending".
//
// Drain never returns an error: per-operation failures are recorded on the
// operation rows and surfaced through QueueStats.
func (e *Engine) Drain(ctx context.Context) DrainResult {
	var result DrainResult

	if !e.monitor.State().Usable() {
		return result
	}
	if !e.beginDrain() {
		return result
	}
	defer e.endDrain()
	result.Ran = true

	ops, err := e.store.ListPending()
	if err != nil {
		logging.ErrorWithCode("Failed to load pending operations", string(apperrors.ErrDatabase), err)
		return result
	}
	if len(ops) == 0 {
		return result
	}

	e.emitEvent(Event{Type: EventDrainStarted, Data: map[string]interface{}{
		"pending": len(ops),
	}})

	for i, op := range ops {
		select {
		case <-ctx.Done():
			result.Remaining = len(ops) - i
			e.emitDrainCompleted(result)
			return result
		default:
		}

		if !e.monitor.State().Usable() {
			result.ConnectivityLost = true
			result.Remaining = len(ops) - i
			logging.Info("Connectivity lost mid-drain", map[string]interface{}{
				"processed": result.Processed,
				"remaining": result.Remaining,
			})
			e.emitDrainCompleted(result)
			return result
		}

		e.processOperation(ctx, op, &result)
	}

	now := time.Now()
	e.mu.Lock()
	e.lastSync = &now
	e.mu.Unlock()

	logging.Info("Drain completed", map[string]interface{}{
		"processed": result.Processed,
		"retried":   result.Retried,
		"failed":    result.Failed,
	})
	e.emitDrainCompleted(result)

	return result
}

// processOperation runs one operation through the executor and applies the
// outcome to the durable queue.
func (e *Engine) processOperation(ctx context.Context, op *models.Operation, result *DrainResult) {
	if err := e.store.MarkInFlight(op.ID.String()); err != nil {
		logging.Error("Failed to mark operation in flight", err, map[string]interface{}{
			"operation_id": op.ID.String(),
		})
		return
	}

	err := e.executor.Execute(ctx, op)

	switch {
	case err == nil:
		e.completeOperation(op, result)

	case apperrors.Is(err, apperrors.ErrFacilityUnavailable):
		// Retrying against a permanently unavailable facility would starve
		// the queue, so the operation is skipped, not failed.
		logging.Warn("Skipping operation: backend facility unavailable", map[string]interface{}{
			"operation_id": op.ID.String(),
			"type":         string(op.Type),
		})
		result.Skipped++
		e.completeOperation(op, result)

	case apperrors.Is(err, apperrors.ErrSyncPermanent):
		// A malformed payload cannot heal with retries; fail immediately.
		if serr := e.store.MarkFailed(op.ID.String(), err.Error()); serr != nil {
			logging.Error("Failed to mark operation failed", serr, map[string]interface{}{
				"operation_id": op.ID.String(),
			})
			return
		}
		result.Failed++
		e.emitOperationFailed(op, err)

	default:
		// Transient: keep the operation pending until it exhausts its
		// retry budget.
		if op.RetryCount+1 >= op.MaxRetries {
			if serr := e.store.MarkFailed(op.ID.String(), err.Error()); serr != nil {
				logging.Error("Failed to mark operation failed", serr, map[string]interface{}{
					"operation_id": op.ID.String(),
				})
				return
			}
			result.Failed++
			logging.ErrorWithCode("Operation exhausted retries", string(apperrors.CodeOf(err)), err,
				map[string]interface{}{
					"operation_id": op.ID.String(),
					"retry_count":  op.RetryCount + 1,
				})
			e.emitOperationFailed(op, err)
			return
		}
		if serr := e.store.RecordRetry(op.ID.String(), err.Error()); serr != nil {
			logging.Error("Failed to record retry", serr, map[string]interface{}{
				"operation_id": op.ID.String(),
			})
			return
		}
		result.Retried++
		logging.Debug("Operation failed, will retry", map[string]interface{}{
			"operation_id": op.ID.String(),
			"retry_count":  op.RetryCount + 1,
			"max_retries":  op.MaxRetries,
		})
	}
}

// completeOperation deletes a finished operation and counts it.
func (e *Engine) completeOperation(op *models.Operation, result *DrainResult) {
	if err := e.store.Delete(op.ID.String()); err != nil {
		logging.Error("Failed to delete completed operation", err, map[string]interface{}{
			"operation_id": op.ID.String(),
		})
		return
	}
	result.Processed++

	e.mu.Lock()
	e.processed++
	e.mu.Unlock()
}

// QueueStats returns a read-only snapshot for the status API. It never
// mutates queue state.
func (e *Engine) QueueStats() (QueueStats, error) {
	stats, err := e.store.Stats()
	if err != nil {
		return QueueStats{}, apperrors.Wrap(apperrors.ErrDatabase, "failed to read queue stats", err)
	}

	e.mu.Lock()
	lastSync := e.lastSync
	e.mu.Unlock()

	return QueueStats{
		Pending:    stats.Pending,
		InFlight:   stats.InFlight,
		Failed:     stats.Failed,
		LastSyncAt: lastSync,
	}, nil
}

// ProcessedSinceStart returns the number of operations processed since the
// engine was created.
func (e *Engine) ProcessedSinceStart() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processed
}

// ListFailed returns operations that exhausted their retry budget. Failed
// rows are kept in the queue store precisely so they can be inspected here
// and re-armed via RetryFailed.
func (e *Engine) ListFailed() ([]*models.Operation, error) {
	ops, err := e.store.ListFailed()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list failed operations", err)
	}
	return ops, nil
}

// RetryFailed resets failed operations to pending and triggers a drain.
func (e *Engine) RetryFailed() (int, error) {
	count, err := e.store.RetryFailed()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to re-arm failed operations", err)
	}
	if count > 0 {
		logging.Info("Re-armed failed operations", map[string]interface{}{"count": count})
		if e.monitor.State().Usable() {
			go e.Drain(context.Background())
		}
	}
	return count, nil
}

// IsOnline reports whether the network is currently usable for sync.
func (e *Engine) IsOnline() bool {
	return e.monitor.State().Usable()
}

// NetworkState returns the current network state snapshot.
func (e *Engine) NetworkState() network.State {
	return e.monitor.State()
}

// beginDrain atomically checks-and-sets the drain guard. Reachability and
// lifecycle callbacks can fire concurrently with a manual trigger, so a
// plain flag is not enough.
func (e *Engine) beginDrain() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draining {
		return false
	}
	e.draining = true
	return true
}

func (e *Engine) endDrain() {
	e.mu.Lock()
	e.draining = false
	e.mu.Unlock()
}

// emitEvent delivers an event to the handler without blocking the drain
// loop.
func (e *Engine) emitEvent(event Event) {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()

	if handler == nil {
		return
	}
	go handler.OnSyncEvent(event)
}

func (e *Engine) emitDrainCompleted(result DrainResult) {
	e.emitEvent(Event{Type: EventDrainCompleted, Data: map[string]interface{}{
		"processed":         result.Processed,
		"skipped":           result.Skipped,
		"retried":           result.Retried,
		"failed":            result.Failed,
		"remaining":         result.Remaining,
		"connectivity_lost": result.ConnectivityLost,
	}})
}

func (e *Engine) emitOperationFailed(op *models.Operation, err error) {
	e.emitEvent(Event{Type: EventOperationFailed, Data: map[string]interface{}{
		"operation_id": op.ID.String(),
		"type":         string(op.Type),
		"error":        err.Error(),
	}})
}
