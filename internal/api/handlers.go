package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/availability-service/internal/availability"
)

var errUnsupportedUpdate = errors.New("unsupported availability update")

func getAvailabilityHandler(svc *availability.QueryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		start, err := parseOptionalTime(q.Get("start"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be RFC 3339")
			return
		}
		end, err := parseOptionalTime(q.Get("end"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be RFC 3339")
			return
		}

		start, end = svc.Window(start, end)
		slots, err := svc.Fetch(r.Context(), q.Get("user_id"), start, end)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if slots == nil {
			slots = []availability.Slot{}
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Start:        start,
			End:          end,
			Availability: slots,
		})
	}
}

func createAvailabilityHandler(h *availability.CommandHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		var req AvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.AvailableAt.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_available_at", "available_at is required")
			return
		}

		agg, err := h.Create(r.Context(), availability.CreateAvailability{
			CorrelationID: GetCorrelationID(r.Context()),
			UserID:        userID,
			AvailableAt:   req.AvailableAt,
			AppointmentID: req.AppointmentID,
		})
		if err != nil {
			handleCommandError(w, err)
			return
		}

		slot, _ := agg.Slot(req.AvailableAt)
		writeJSON(w, http.StatusCreated, SlotResponse{
			UserID:        slot.UserID,
			AvailableAt:   slot.AvailableAt,
			AppointmentID: slot.AppointmentID,
		})
	}
}

// updateAvailabilityHandler flips the appointment binding: a request with an
// appointment ID books a free slot, a request without one frees a booked
// slot. Anything else is a bad request.
func updateAvailabilityHandler(h *availability.CommandHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		var req AvailabilityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.AvailableAt.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_available_at", "available_at is required")
			return
		}

		correlationID := GetCorrelationID(r.Context())

		agg, err := h.Execute(r.Context(), userID, func(a *availability.Aggregate) error {
			slot, ok := a.Slot(req.AvailableAt)
			if !ok {
				return availability.ErrAvailabilityNotFound
			}

			switch {
			case slot.AppointmentID == nil && req.AppointmentID != nil:
				return a.AddAppointment(availability.AddAppointment{
					CorrelationID: correlationID,
					UserID:        userID,
					AvailableAt:   req.AvailableAt,
					AppointmentID: *req.AppointmentID,
				})
			case slot.AppointmentID != nil && req.AppointmentID == nil:
				return a.RemoveAppointment(availability.RemoveAppointment{
					CorrelationID: correlationID,
					UserID:        userID,
					AvailableAt:   req.AvailableAt,
				})
			default:
				return errUnsupportedUpdate
			}
		})
		if err != nil {
			handleCommandError(w, err)
			return
		}

		slot, _ := agg.Slot(req.AvailableAt)
		writeJSON(w, http.StatusOK, SlotResponse{
			UserID:        slot.UserID,
			AvailableAt:   slot.AvailableAt,
			AppointmentID: slot.AppointmentID,
		})
	}
}

func deleteAvailabilityHandler(h *availability.CommandHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		availableAt, err := time.Parse(time.RFC3339, chi.URLParam(r, "availableAt"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_available_at", "available_at must be RFC 3339")
			return
		}

		_, err = h.Delete(r.Context(), availability.DeleteAvailability{
			CorrelationID: GetCorrelationID(r.Context()),
			UserID:        userID,
			AvailableAt:   availableAt,
		})
		if err != nil {
			handleCommandError(w, err)
			return
		}

		writeJSON(w, http.StatusNoContent, nil)
	}
}

func getAggregateHandler(h *availability.CommandHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")

		agg, err := h.Load(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, AggregateResponse{
			UserID:       agg.UserID,
			Version:      agg.Version,
			Availability: agg.Slots(),
			Events:       agg.History(),
		})
	}
}

func handleCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, availability.ErrAvailabilityExists):
		writeError(w, http.StatusConflict, "availability_exists", err.Error())
	case errors.Is(err, availability.ErrAvailabilityNotFound):
		writeError(w, http.StatusNotFound, "availability_not_found", err.Error())
	case errors.Is(err, availability.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "concurrency_conflict", "another writer committed first, refetch and retry")
	case errors.Is(err, errUnsupportedUpdate):
		writeError(w, http.StatusBadRequest, "unsupported_update", "request does not change the appointment binding")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
