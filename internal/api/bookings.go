package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func createBookingHandler(svc SchedulingService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		booking, err := svc.Reserve(r.Context(), p.ID, slotID, req.Notes)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(*booking))
	}
}

func listBookingsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		includePast := r.URL.Query().Get("show_past") == "true"

		details, err := svc.ListBookings(r.Context(), p, includePast)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		out := make([]BookingResponse, 0, len(details))
		for _, det := range details {
			out = append(out, toBookingDetailResponse(det))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getBookingHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		det, err := svc.GetBooking(r.Context(), p, id)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingDetailResponse(*det))
	}
}
