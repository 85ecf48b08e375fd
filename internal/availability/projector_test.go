package availability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createdEvent(version int64, appointmentID *string) Event {
	return Event{
		EventID:   "e1",
		UserID:    "abc123",
		EventType: EventCreated,
		Version:   version,
		Payload:   Payload{UserID: "abc123", AvailableAt: at(10), AppointmentID: appointmentID},
	}
}

func TestProjectorCreatedInsertsRow(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryReadModel()
	p := NewProjector(rm)

	require.NoError(t, p.Apply(ctx, createdEvent(1, nil)))

	slots, err := rm.Fetch(ctx, "abc123", at(0), at(23))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Nil(t, slots[0].AppointmentID)
}

func TestProjectorDuplicateDeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryReadModel()
	p := NewProjector(rm)

	ev := createdEvent(1, ptr("X"))
	require.NoError(t, p.Apply(ctx, ev))

	before, err := rm.Fetch(ctx, "abc123", at(0), at(23))
	require.NoError(t, err)

	// same record delivered again
	require.NoError(t, p.Apply(ctx, ev))

	after, err := rm.Fetch(ctx, "abc123", at(0), at(23))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	require.Len(t, after, 1)
}

func TestProjectorAppointmentLifecycle(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryReadModel()
	p := NewProjector(rm)

	require.NoError(t, p.Apply(ctx, createdEvent(1, nil)))

	appointmentID := "X"
	require.NoError(t, p.Apply(ctx, Event{
		EventID: "e2", UserID: "abc123", EventType: EventAppointmentAdded, Version: 2,
		Payload: Payload{UserID: "abc123", AvailableAt: at(10), AppointmentID: &appointmentID},
	}))

	slots, err := rm.Fetch(ctx, "abc123", at(0), at(23))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.NotNil(t, slots[0].AppointmentID)
	assert.Equal(t, "X", *slots[0].AppointmentID)

	require.NoError(t, p.Apply(ctx, Event{
		EventID: "e3", UserID: "abc123", EventType: EventAppointmentRemoved, Version: 3,
		Payload: Payload{UserID: "abc123", AvailableAt: at(10)},
	}))

	slots, err = rm.Fetch(ctx, "abc123", at(0), at(23))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Nil(t, slots[0].AppointmentID)
}

func TestProjectorDeletedRemovesRow(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryReadModel()
	p := NewProjector(rm)

	require.NoError(t, p.Apply(ctx, createdEvent(1, nil)))
	require.NoError(t, p.Apply(ctx, Event{
		EventID: "e2", UserID: "abc123", EventType: EventDeleted, Version: 2,
		Payload: Payload{UserID: "abc123", AvailableAt: at(10)},
	}))

	slots, err := rm.Fetch(ctx, "abc123", at(0), at(23))
	require.NoError(t, err)
	assert.Empty(t, slots)

	// deleting twice (redelivery) is still fine
	require.NoError(t, p.Apply(ctx, Event{
		EventID: "e2", UserID: "abc123", EventType: EventDeleted, Version: 2,
		Payload: Payload{UserID: "abc123", AvailableAt: at(10)},
	}))
}

func TestProjectorSkipsUnknownEventType(t *testing.T) {
	ctx := context.Background()
	rm := NewMemoryReadModel()
	p := NewProjector(rm)

	err := p.Apply(ctx, Event{
		EventID: "e9", UserID: "abc123", EventType: "SomethingNew", Version: 1,
		Payload: Payload{UserID: "abc123", AvailableAt: at(10)},
	})
	require.NoError(t, err, "unknown event types must never fail the consumer")

	slots, err := rm.Fetch(ctx, "abc123", at(0), at(23))
	require.NoError(t, err)
	assert.Empty(t, slots)
}
