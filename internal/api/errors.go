package api

import (
	"errors"
	"net/http"

	"github.com/medisched/hospital-booking/internal/scheduling"
)

// writeSchedulingError maps the core error taxonomy onto HTTP statuses:
// validation 400, conflicts (including lost races and lock contention) 409,
// missing or unowned entities 404, everything else 500.
func writeSchedulingError(w http.ResponseWriter, err error) {
	var vErr *scheduling.ValidationError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())

	case errors.Is(err, scheduling.ErrDoctorNotFound),
		errors.Is(err, scheduling.ErrPatientNotFound),
		errors.Is(err, scheduling.ErrSlotNotFound),
		errors.Is(err, scheduling.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, scheduling.ErrDuplicateSlot):
		writeError(w, http.StatusConflict, "slot_exists", "a slot already exists at this time")

	case errors.Is(err, scheduling.ErrSlotReserved):
		writeError(w, http.StatusConflict, "slot_reserved", "slot is no longer available")

	case errors.Is(err, scheduling.ErrSlotContended):
		writeError(w, http.StatusConflict, "slot_contended", "slot is currently being booked, please retry")

	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
