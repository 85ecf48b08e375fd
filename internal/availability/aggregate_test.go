package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func at(hour int) time.Time {
	return time.Date(2026, time.September, 1, hour, 0, 0, 0, time.UTC)
}

func TestAggregateCreate(t *testing.T) {
	agg := NewAggregate("abc123", nil)

	err := agg.Create(CreateAvailability{
		CorrelationID: "corr-1",
		UserID:        "abc123",
		AvailableAt:   at(10),
	})
	require.NoError(t, err)

	slots := agg.Slots()
	require.Len(t, slots, 1)
	assert.Equal(t, "abc123", slots[0].UserID)
	assert.True(t, slots[0].AvailableAt.Equal(at(10)))
	assert.Nil(t, slots[0].AppointmentID)

	staged := agg.Uncommitted()
	require.Len(t, staged, 1)
	assert.Equal(t, EventCreated, staged[0].EventType)
	assert.Equal(t, "corr-1", staged[0].CorrelationID)
	assert.NotEmpty(t, staged[0].EventID)
}

func TestAggregateCreateDuplicateFails(t *testing.T) {
	agg := NewAggregate("abc123", nil)

	require.NoError(t, agg.Create(CreateAvailability{
		CorrelationID: "corr-1", UserID: "abc123", AvailableAt: at(10),
	}))

	err := agg.Create(CreateAvailability{
		CorrelationID: "corr-2", UserID: "abc123", AvailableAt: at(10),
	})
	assert.ErrorIs(t, err, ErrAvailabilityExists)
	assert.Len(t, agg.Uncommitted(), 1, "failed create must stage nothing")
}

func TestAggregateCreateWithAppointmentStagesTwoEvents(t *testing.T) {
	agg := NewAggregate("abc123", nil)

	err := agg.Create(CreateAvailability{
		CorrelationID: "corr-1",
		UserID:        "abc123",
		AvailableAt:   at(10),
		AppointmentID: ptr("appt-X"),
	})
	require.NoError(t, err)

	staged := agg.Uncommitted()
	require.Len(t, staged, 2)
	assert.Equal(t, EventCreated, staged[0].EventType)
	assert.Equal(t, EventAppointmentAdded, staged[1].EventType)

	slot, ok := agg.Slot(at(10))
	require.True(t, ok)
	require.NotNil(t, slot.AppointmentID)
	assert.Equal(t, "appt-X", *slot.AppointmentID)
}

func TestAggregateAppointmentRoundTrip(t *testing.T) {
	agg := NewAggregate("abc123", nil)

	require.NoError(t, agg.Create(CreateAvailability{
		CorrelationID: "c1", UserID: "abc123", AvailableAt: at(10),
	}))
	require.NoError(t, agg.AddAppointment(AddAppointment{
		CorrelationID: "c2", UserID: "abc123", AvailableAt: at(10), AppointmentID: "X",
	}))

	slot, ok := agg.Slot(at(10))
	require.True(t, ok)
	require.NotNil(t, slot.AppointmentID)
	assert.Equal(t, "X", *slot.AppointmentID)

	require.NoError(t, agg.RemoveAppointment(RemoveAppointment{
		CorrelationID: "c3", UserID: "abc123", AvailableAt: at(10),
	}))

	slot, ok = agg.Slot(at(10))
	require.True(t, ok)
	assert.Nil(t, slot.AppointmentID)
}

func TestAggregateMutateMissingSlotFails(t *testing.T) {
	agg := NewAggregate("abc123", nil)

	assert.ErrorIs(t, agg.Delete(DeleteAvailability{
		CorrelationID: "c1", UserID: "abc123", AvailableAt: at(10),
	}), ErrAvailabilityNotFound)

	assert.ErrorIs(t, agg.AddAppointment(AddAppointment{
		CorrelationID: "c2", UserID: "abc123", AvailableAt: at(10), AppointmentID: "X",
	}), ErrAvailabilityNotFound)

	assert.ErrorIs(t, agg.RemoveAppointment(RemoveAppointment{
		CorrelationID: "c3", UserID: "abc123", AvailableAt: at(10),
	}), ErrAvailabilityNotFound)
}

func TestAggregateDeleteAllowsRecreate(t *testing.T) {
	agg := NewAggregate("abc123", nil)

	require.NoError(t, agg.Create(CreateAvailability{
		CorrelationID: "c1", UserID: "abc123", AvailableAt: at(10), AppointmentID: ptr("X"),
	}))
	require.NoError(t, agg.Delete(DeleteAvailability{
		CorrelationID: "c2", UserID: "abc123", AvailableAt: at(10),
	}))
	assert.Empty(t, agg.Slots())

	// a deleted slot can come back as a fresh one
	require.NoError(t, agg.Create(CreateAvailability{
		CorrelationID: "c3", UserID: "abc123", AvailableAt: at(10),
	}))

	slot, ok := agg.Slot(at(10))
	require.True(t, ok)
	assert.Nil(t, slot.AppointmentID)
}

// Replaying the committed history must reproduce exactly the state the
// command methods derived in memory.
func TestAggregateReplayMatchesCommandPath(t *testing.T) {
	agg := NewAggregate("abc123", nil)

	require.NoError(t, agg.Create(CreateAvailability{
		CorrelationID: "c1", UserID: "abc123", AvailableAt: at(10),
	}))
	require.NoError(t, agg.Create(CreateAvailability{
		CorrelationID: "c2", UserID: "abc123", AvailableAt: at(11), AppointmentID: ptr("X"),
	}))
	require.NoError(t, agg.AddAppointment(AddAppointment{
		CorrelationID: "c3", UserID: "abc123", AvailableAt: at(10), AppointmentID: "Y",
	}))
	require.NoError(t, agg.Delete(DeleteAvailability{
		CorrelationID: "c4", UserID: "abc123", AvailableAt: at(11),
	}))

	history := agg.Uncommitted()
	for i := range history {
		history[i].Version = int64(i) + 1
	}

	replayed := NewAggregate("abc123", history)

	assert.Equal(t, agg.Slots(), replayed.Slots())
	assert.Equal(t, int64(len(history)), replayed.Version)
	assert.Empty(t, replayed.Uncommitted(), "replay must not stage events")
}

func TestAggregateReplayOrdersByVersion(t *testing.T) {
	appointmentID := "X"
	history := []Event{
		{
			EventID: "e2", UserID: "abc123", EventType: EventAppointmentAdded, Version: 2,
			Payload: Payload{UserID: "abc123", AvailableAt: at(10), AppointmentID: &appointmentID},
		},
		{
			EventID: "e1", UserID: "abc123", EventType: EventCreated, Version: 1,
			Payload: Payload{UserID: "abc123", AvailableAt: at(10)},
		},
	}

	agg := NewAggregate("abc123", history)

	require.Equal(t, int64(2), agg.Version)
	slot, ok := agg.Slot(at(10))
	require.True(t, ok)
	require.NotNil(t, slot.AppointmentID)
	assert.Equal(t, "X", *slot.AppointmentID)
}
