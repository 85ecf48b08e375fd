package availability

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAvailabilityExists   = errors.New("availability already exists at that time")
	ErrAvailabilityNotFound = errors.New("availability does not exist at that time")
)

// Aggregate is the consistency boundary for one user's availability. It is
// rebuilt from the full event history at the start of every unit of work and
// discarded afterwards; it is never shared across requests.
//
// Command methods validate against the derived slot set and stage events on
// an uncommitted buffer. Staged events flow through the same apply path as
// replayed history, so re-replaying a committed history always reproduces
// the state the command methods produced in memory.
type Aggregate struct {
	UserID  string
	Version int64

	history     []Event
	uncommitted []Event
	slots       map[int64]Slot // keyed by AvailableAt.UnixNano()
}

// NewAggregate replays an ordered event history into a fresh aggregate.
// Replay is pure: it reads the history and derives state, nothing else.
func NewAggregate(userID string, history []Event) *Aggregate {
	a := &Aggregate{
		UserID: userID,
		slots:  make(map[int64]Slot),
	}

	events := make([]Event, len(history))
	copy(events, history)
	sort.Slice(events, func(i, j int) bool { return events[i].Version < events[j].Version })

	for _, ev := range events {
		a.apply(ev)
		a.history = append(a.history, ev)
		if ev.Version > a.Version {
			a.Version = ev.Version
		}
	}

	return a
}

// Create stages a Created event for a new slot. A non-nil appointment ID
// stages a follow-up AppointmentAdded event as well, so a booked slot is
// always represented by the same two-event sequence.
func (a *Aggregate) Create(cmd CreateAvailability) error {
	if _, ok := a.Slot(cmd.AvailableAt); ok {
		return ErrAvailabilityExists
	}

	a.stage(EventCreated, cmd.CorrelationID, Payload{
		UserID:        a.UserID,
		AvailableAt:   cmd.AvailableAt,
		AppointmentID: cmd.AppointmentID,
	})

	if cmd.AppointmentID != nil {
		return a.AddAppointment(AddAppointment{
			CorrelationID: cmd.CorrelationID,
			UserID:        cmd.UserID,
			AvailableAt:   cmd.AvailableAt,
			AppointmentID: *cmd.AppointmentID,
		})
	}
	return nil
}

// Delete stages a Deleted event. The slot may be free or booked; either way
// it is removed and can later be recreated as a fresh slot.
func (a *Aggregate) Delete(cmd DeleteAvailability) error {
	if _, ok := a.Slot(cmd.AvailableAt); !ok {
		return ErrAvailabilityNotFound
	}

	a.stage(EventDeleted, cmd.CorrelationID, Payload{
		UserID:      a.UserID,
		AvailableAt: cmd.AvailableAt,
	})
	return nil
}

// AddAppointment stages an AppointmentAdded event binding the slot to an
// appointment.
func (a *Aggregate) AddAppointment(cmd AddAppointment) error {
	if _, ok := a.Slot(cmd.AvailableAt); !ok {
		return ErrAvailabilityNotFound
	}

	appointmentID := cmd.AppointmentID
	a.stage(EventAppointmentAdded, cmd.CorrelationID, Payload{
		UserID:        a.UserID,
		AvailableAt:   cmd.AvailableAt,
		AppointmentID: &appointmentID,
	})
	return nil
}

// RemoveAppointment stages an AppointmentRemoved event clearing the slot's
// appointment binding.
func (a *Aggregate) RemoveAppointment(cmd RemoveAppointment) error {
	if _, ok := a.Slot(cmd.AvailableAt); !ok {
		return ErrAvailabilityNotFound
	}

	a.stage(EventAppointmentRemoved, cmd.CorrelationID, Payload{
		UserID:      a.UserID,
		AvailableAt: cmd.AvailableAt,
	})
	return nil
}

// Slot returns the derived slot at the given time, if present.
func (a *Aggregate) Slot(at time.Time) (Slot, bool) {
	s, ok := a.slots[slotKey(at)]
	return s, ok
}

// Slots returns the derived slot set ordered by available_at.
func (a *Aggregate) Slots() []Slot {
	out := make([]Slot, 0, len(a.slots))
	for _, s := range a.slots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AvailableAt.Before(out[j].AvailableAt) })
	return out
}

// History returns the committed events the aggregate was replayed from.
func (a *Aggregate) History() []Event {
	out := make([]Event, len(a.history))
	copy(out, a.history)
	return out
}

// Uncommitted returns a copy of the staged events in staging order.
func (a *Aggregate) Uncommitted() []Event {
	out := make([]Event, len(a.uncommitted))
	copy(out, a.uncommitted)
	return out
}

// commit folds durably appended events into the history and clears the
// uncommitted buffer. Called by the command handler once the append stuck.
func (a *Aggregate) commit(appended []Event) {
	a.history = append(a.history, appended...)
	if n := len(appended); n > 0 {
		a.Version = appended[n-1].Version
	}
	a.uncommitted = nil
}

func (a *Aggregate) stage(t EventType, correlationID string, payload Payload) {
	ev := Event{
		EventID:       uuid.NewString(),
		UserID:        a.UserID,
		Created:       time.Now().UTC(),
		EventType:     t,
		Payload:       payload,
		CorrelationID: correlationID,
	}
	a.apply(ev)
	a.uncommitted = append(a.uncommitted, ev)
}

// apply folds one event into the derived slot set. It carries no
// validation: each payload is a full slot image, so application is a
// last-writer-wins upsert or delete keyed by available_at.
func (a *Aggregate) apply(ev Event) {
	key := slotKey(ev.Payload.AvailableAt)

	switch ev.EventType {
	case EventCreated, EventAppointmentAdded, EventAppointmentRemoved:
		a.slots[key] = Slot{
			UserID:        ev.Payload.UserID,
			AvailableAt:   ev.Payload.AvailableAt,
			AppointmentID: ev.Payload.AppointmentID,
		}
	case EventDeleted:
		delete(a.slots, key)
	}
}

// slotKey normalizes a timestamp for identity comparisons. UnixNano sidesteps
// monotonic clock readings and location differences in time.Time equality.
func slotKey(t time.Time) int64 {
	return t.UnixNano()
}
