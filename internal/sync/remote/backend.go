// Package remote translates queued operations into idempotent backend calls.
package remote

import (
	"context"
	"errors"
)

// Collection names on the remote backend.
const (
	CollectionObservations = "observations"
	CollectionNotes        = "notes"
)

// ErrAssetFacilityUnavailable is reported by a Backend when its asset
// storage facility is not provisioned (billing tier, feature flag). It is
// distinct from a failed call: retrying cannot ever succeed.
var ErrAssetFacilityUnavailable = errors.New("asset storage facility is not provisioned")

// Backend is the remote document store consumed by the executor. All writes
// are idempotent: repeating an upsert with the same input produces the same
// end state, and deleting an absent id succeeds silently.
type Backend interface {
	// Upsert creates or replaces the document with the given id.
	Upsert(ctx context.Context, collection, id string, doc map[string]interface{}) error

	// Delete removes the document with the given id. Deleting an id that
	// does not exist is not an error.
	Delete(ctx context.Context, collection, id string) error

	// UploadAsset stores a binary asset descriptor. Returns
	// ErrAssetFacilityUnavailable when asset storage is not provisioned.
	UploadAsset(ctx context.Context, id string, doc map[string]interface{}) error
}
