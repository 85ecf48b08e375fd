package availability

import (
	"context"
	"time"
)

// QueryService answers range queries from the read model. It never touches
// the event store.
type QueryService struct {
	readModel    ReadModel
	pastWindow   time.Duration
	futureWindow time.Duration
	now          func() time.Time
}

func NewQueryService(readModel ReadModel, pastWindow, futureWindow time.Duration) *QueryService {
	return &QueryService{
		readModel:    readModel,
		pastWindow:   pastWindow,
		futureWindow: futureWindow,
		now:          time.Now,
	}
}

// Window resolves unspecified bounds to the default query window around the
// current clock: [now-past, now+future).
func (s *QueryService) Window(start, end time.Time) (time.Time, time.Time) {
	if start.IsZero() {
		start = s.now().Add(-s.pastWindow)
	}
	if end.IsZero() {
		end = s.now().Add(s.futureWindow)
	}
	return start, end
}

// Fetch returns slots with available_at in [start, end), optionally filtered
// by user. Zero start/end fall back to the default window.
func (s *QueryService) Fetch(ctx context.Context, userID string, start, end time.Time) ([]Slot, error) {
	start, end = s.Window(start, end)
	return s.readModel.Fetch(ctx, userID, start, end)
}
