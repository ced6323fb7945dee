// Package sync provides the offline-first synchronization engine.
package sync

import (
	"context"
	"encoding/json"

	"github.com/kimhsiao/fieldlog/internal/models"
	"github.com/kimhsiao/fieldlog/internal/network"
)

// EngineInterface defines the sync engine surface consumed by the API layer.
// It allows mocking in tests and alternative implementations.
type EngineInterface interface {
	// Enqueue durably persists one pending operation and, when the network
	// is usable, triggers an asynchronous drain. It never blocks on network
	// I/O and fails only if durable persistence fails.
	Enqueue(opType models.OperationType, payload json.RawMessage) (*models.Operation, error)

	// ForceDrain runs a drain synchronously, with the same single-drain
	// guard as the automatic triggers.
	ForceDrain(ctx context.Context) DrainResult

	// OnNetworkReachable is the trigger callback for reachability
	// transitions.
	OnNetworkReachable()

	// OnForeground is the trigger callback for foreground transitions.
	OnForeground()

	// QueueStats returns a read-only snapshot of queue counts.
	QueueStats() (QueueStats, error)

	// ListFailed returns operations that exhausted their retry budget, for
	// user-visible inspection.
	ListFailed() ([]*models.Operation, error)

	// RetryFailed re-arms operations that exhausted their retry budget.
	RetryFailed() (int, error)

	// IsOnline reports whether the network is currently usable for sync.
	IsOnline() bool

	// NetworkState returns the current network state snapshot.
	NetworkState() network.State

	// SetEventHandler sets the handler receiving sync event notifications.
	SetEventHandler(handler EventHandler)
}
