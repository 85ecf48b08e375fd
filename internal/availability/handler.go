package availability

import (
	"context"
	"fmt"
	"log"
)

// CommandHandler executes one command as a unit of work: fetch the full
// history, replay it, run the command against the aggregate, then append the
// staged events with version checks. Any error before the append discards
// the staged events; the caller sees append-or-discard, never a partial
// commit (the batch append itself is a single transaction).
//
// A version collision surfaces as ErrConcurrencyConflict. The handler never
// retries; retry-with-refetch is the caller's call.
type CommandHandler struct {
	store EventStore
	feed  Publisher
}

// NewCommandHandler wires the handler to its event store and, optionally, a
// change feed publisher. A nil feed disables publishing, which is how tests
// and read-only tooling run.
func NewCommandHandler(store EventStore, feed Publisher) *CommandHandler {
	return &CommandHandler{store: store, feed: feed}
}

// Load replays a user's aggregate without mutating anything.
func (h *CommandHandler) Load(ctx context.Context, userID string) (*Aggregate, error) {
	events, err := h.store.Fetch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch history for user %s: %w", userID, err)
	}
	return NewAggregate(userID, events), nil
}

// Execute runs fn against a freshly replayed aggregate and commits whatever
// it staged. The staged events get versions baseVersion+1.. in staging order
// and are appended as one atomic batch.
func (h *CommandHandler) Execute(ctx context.Context, userID string, fn func(*Aggregate) error) (*Aggregate, error) {
	agg, err := h.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	base := agg.Version

	if err := fn(agg); err != nil {
		return nil, err
	}

	staged := agg.Uncommitted()
	if len(staged) == 0 {
		return agg, nil
	}
	for i := range staged {
		staged[i].Version = base + int64(i) + 1
	}

	if err := h.store.Append(ctx, staged); err != nil {
		return nil, err
	}
	agg.commit(staged)

	h.publish(ctx, staged)
	return agg, nil
}

func (h *CommandHandler) Create(ctx context.Context, cmd CreateAvailability) (*Aggregate, error) {
	return h.Execute(ctx, cmd.UserID, func(a *Aggregate) error { return a.Create(cmd) })
}

func (h *CommandHandler) Delete(ctx context.Context, cmd DeleteAvailability) (*Aggregate, error) {
	return h.Execute(ctx, cmd.UserID, func(a *Aggregate) error { return a.Delete(cmd) })
}

func (h *CommandHandler) AddAppointment(ctx context.Context, cmd AddAppointment) (*Aggregate, error) {
	return h.Execute(ctx, cmd.UserID, func(a *Aggregate) error { return a.AddAppointment(cmd) })
}

func (h *CommandHandler) RemoveAppointment(ctx context.Context, cmd RemoveAppointment) (*Aggregate, error) {
	return h.Execute(ctx, cmd.UserID, func(a *Aggregate) error { return a.RemoveAppointment(cmd) })
}

// publish pushes committed events onto the change feed. A publish failure is
// logged, not surfaced: the events are durable in the store and the read
// model is eventually consistent by contract.
func (h *CommandHandler) publish(ctx context.Context, events []Event) {
	if h.feed == nil {
		return
	}
	for _, ev := range events {
		if err := h.feed.Publish(ctx, ev); err != nil {
			log.Printf("failed to publish event %s (user=%s version=%d): %v", ev.EventID, ev.UserID, ev.Version, err)
		}
	}
}
