package availability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryEventStore is the in-process EventStore used by tests and local
// tooling. It preserves the production guarantees: per-user version
// uniqueness and all-or-nothing batch appends.
type MemoryEventStore struct {
	mu     sync.Mutex
	events map[string][]Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{events: make(map[string][]Event)}
}

func (s *MemoryEventStore) Fetch(_ context.Context, userID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.events[userID]
	out := make([]Event, len(history))
	copy(out, history)
	return out, nil
}

func (s *MemoryEventStore) Append(_ context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check the whole batch before writing anything so a collision on the
	// k-th event never leaves events 1..k-1 behind.
	for _, ev := range events {
		for _, existing := range s.events[ev.UserID] {
			if existing.Version == ev.Version {
				return ErrConcurrencyConflict
			}
		}
	}

	for _, ev := range events {
		s.events[ev.UserID] = append(s.events[ev.UserID], ev)
	}
	return nil
}

// MemoryReadModel is the in-process ReadModel counterpart.
type MemoryReadModel struct {
	mu   sync.Mutex
	rows map[string]map[int64]Slot // user_id -> available_at -> slot
}

func NewMemoryReadModel() *MemoryReadModel {
	return &MemoryReadModel{rows: make(map[string]map[int64]Slot)}
}

func (r *MemoryReadModel) Fetch(_ context.Context, userID string, start, end time.Time) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var slots []Slot
	for uid, byTime := range r.rows {
		if userID != "" && uid != userID {
			continue
		}
		for _, s := range byTime {
			if !s.AvailableAt.Before(start) && s.AvailableAt.Before(end) {
				slots = append(slots, s)
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].AvailableAt.Equal(slots[j].AvailableAt) {
			return slots[i].AvailableAt.Before(slots[j].AvailableAt)
		}
		return slots[i].UserID < slots[j].UserID
	})
	return slots, nil
}

func (r *MemoryReadModel) Upsert(_ context.Context, slot Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byTime := r.rows[slot.UserID]
	if byTime == nil {
		byTime = make(map[int64]Slot)
		r.rows[slot.UserID] = byTime
	}
	byTime[slotKey(slot.AvailableAt)] = slot
	return nil
}

func (r *MemoryReadModel) Delete(_ context.Context, userID string, availableAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rows[userID], slotKey(availableAt))
	return nil
}
