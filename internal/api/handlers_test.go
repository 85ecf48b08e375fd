package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/availability-service/internal/availability"
)

type testEnv struct {
	router    http.Handler
	store     *availability.MemoryEventStore
	readModel *availability.MemoryReadModel
	projector *availability.Projector
}

// projectingPublisher applies committed events straight to the read model,
// standing in for the stream consumer so tests see a caught-up projection.
type projectingPublisher struct {
	projector *availability.Projector
}

func (p *projectingPublisher) Publish(ctx context.Context, ev availability.Event) error {
	return p.projector.Apply(ctx, ev)
}

func newTestEnv() *testEnv {
	store := availability.NewMemoryEventStore()
	readModel := availability.NewMemoryReadModel()
	projector := availability.NewProjector(readModel)

	commands := availability.NewCommandHandler(store, &projectingPublisher{projector: projector})
	queries := availability.NewQueryService(readModel, 24*time.Hour, 7*24*time.Hour)

	return &testEnv{
		router: NewRouter(RouterConfig{
			Commands: commands,
			Queries:  queries,
			Env:      "test",
			Version:  "test",
		}),
		store:     store,
		readModel: readModel,
		projector: projector,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.UserID)
	assert.Nil(t, resp.AppointmentID)

	// correlation header is echoed back
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestCreateAvailabilityDuplicateConflicts(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "availability_exists", resp.Error)
}

func TestUpdateAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	// book the slot
	rec = env.do(t, http.MethodPut, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z", "appointment_id": "appt-X"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.AppointmentID)
	assert.Equal(t, "appt-X", *resp.AppointmentID)

	// free it again
	rec = env.do(t, http.MethodPut, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.AppointmentID)

	// freeing a free slot changes nothing: bad request
	rec = env.do(t, http.MethodPut, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateMissingSlotNotFound(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPut, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z", "appointment_id": "appt-X"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	path := "/users/abc123/availability/" + url.PathEscape("2026-09-01T10:00:00Z")
	rec = env.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	// deleting again: the slot is gone
	rec = env.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv()

	now := time.Now().UTC().Truncate(time.Hour)
	availableAt := now.Add(2 * time.Hour).Format(time.RFC3339)

	rec := env.do(t, http.MethodPost, "/users/abc123/availability",
		`{"available_at": "`+availableAt+`", "appointment_id": "appt-X"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/availability?user_id=abc123", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AvailabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Availability, 1)
	require.NotNil(t, resp.Availability[0].AppointmentID)
	assert.Equal(t, "appt-X", *resp.Availability[0].AppointmentID)
	assert.False(t, resp.Start.IsZero())
	assert.False(t, resp.End.IsZero())
}

func TestGetAggregateEndpoint(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/users/abc123/availability",
		`{"available_at": "2026-09-01T10:00:00Z", "appointment_id": "appt-X"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/abc123/aggregate", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AggregateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abc123", resp.UserID)
	assert.Equal(t, int64(2), resp.Version, "create with appointment commits two events")
	require.Len(t, resp.Availability, 1)
	require.Len(t, resp.Events, 2)
}

func TestCreateAvailabilityBadRequests(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/users/abc123/availability", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/users/abc123/availability", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
