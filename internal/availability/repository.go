package availability

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrConcurrencyConflict means another writer committed the contested
	// version first. Retryable: refetch the aggregate and reissue the command.
	ErrConcurrencyConflict = errors.New("event version conflict, refetch and retry")
)

// EventStore is the append-only, per-user ordered event log the write side
// depends on. The core relies only on these two operations and their
// guarantees, not on any particular storage engine.
type EventStore interface {
	// Fetch returns the full event history for a user ascending by version,
	// assembling any storage-level pagination into one contiguous sequence.
	Fetch(ctx context.Context, userID string) ([]Event, error)

	// Append writes a batch of events as one atomic conditional write. If
	// any (user_id, version) pair already exists, nothing is written and
	// ErrConcurrencyConflict is returned.
	Append(ctx context.Context, events []Event) error
}

// ReadModel is the query-optimized materialization of the current slot set,
// maintained exclusively by the projector.
type ReadModel interface {
	// Fetch returns slots with available_at in [start, end), optionally
	// filtered by user. An empty userID matches all users.
	Fetch(ctx context.Context, userID string, start, end time.Time) ([]Slot, error)

	// Upsert writes the row for (user_id, available_at), overwriting any
	// previous image. Last writer wins, so redelivery is absorbed.
	Upsert(ctx context.Context, slot Slot) error

	// Delete removes the row for (user_id, available_at). Deleting an
	// absent row is a no-op.
	Delete(ctx context.Context, userID string, availableAt time.Time) error
}

// Publisher emits committed events onto the change feed for the projector.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
