package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medisched/hospital-booking/internal/scheduling"
)

func createSlotHandler(svc SchedulingService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		in, err := slotInputFromWire(req.Date, req.StartTime, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		slot, err := svc.CreateSlot(r.Context(), p.ID, in)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toSlotResponse(*slot))
	}
}

func bulkCreateSlotsHandler(svc SchedulingService, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		var req BulkCreateSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if err := validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}

		// Items are independent: a malformed one becomes a per-item error
		// while the rest still go through. indexMap carries the original
		// positions of the parseable items so service-side errors report the
		// slot number the caller sent.
		items := make([]scheduling.SlotInput, 0, len(req.Slots))
		indexMap := make([]int, 0, len(req.Slots))
		var itemErrs []scheduling.BatchError
		for i, item := range req.Slots {
			in, err := slotInputFromWire(req.Date, item.StartTime, item.EndTime)
			if err != nil {
				itemErrs = append(itemErrs, scheduling.BatchError{Index: i, Message: err.Error()})
				continue
			}
			items = append(items, in)
			indexMap = append(indexMap, i)
		}

		created, batchErrs, err := svc.CreateSlotBatch(r.Context(), p.ID, items)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		for _, be := range batchErrs {
			be.Index = indexMap[be.Index]
			itemErrs = append(itemErrs, be)
		}
		sort.Slice(itemErrs, func(i, j int) bool { return itemErrs[i].Index < itemErrs[j].Index })

		resp := BulkCreateSlotsResponse{
			Created: toSlotResponses(created),
			Errors:  make([]string, 0, len(itemErrs)),
		}
		for _, be := range itemErrs {
			resp.Errors = append(resp.Errors, formatBatchError(be))
		}

		status := http.StatusCreated
		if len(created) == 0 {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, resp)
	}
}

func listSlotsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		q := scheduling.SlotQuery{
			ShowReserved: r.URL.Query().Get("show_reserved") == "true",
		}

		if v := r.URL.Query().Get("doctor_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			q.DoctorID = &id
		}

		var err error
		if q.DateFrom, err = parseDateParam(r, "date_from"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		if q.DateTo, err = parseDateParam(r, "date_to"); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		slots, err := svc.ListSlots(r.Context(), p, q)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func doctorSlotsHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		from, err := parseDateParam(r, "date_from")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}
		to, err := parseDateParam(r, "date_to")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		doctor, slots, err := svc.ListDoctorAvailableSlots(r.Context(), doctorID, from, to)
		if err != nil {
			writeSchedulingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, DoctorSlotsResponse{
			Doctor: DoctorResponse{
				ID:        doctor.ID,
				Name:      doctor.Name,
				Specialty: doctor.Specialty,
			},
			Slots: toSlotResponses(slots),
		})
	}
}

func cancelSlotHandler(svc SchedulingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())

		slotID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "id must be a valid UUID")
			return
		}

		if err := svc.CancelSlot(r.Context(), p.ID, slotID); err != nil {
			writeSchedulingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func slotInputFromWire(date, start, end string) (scheduling.SlotInput, error) {
	startAt, err := combineDateTime(date, start)
	if err != nil {
		return scheduling.SlotInput{}, err
	}
	endAt, err := combineDateTime(date, end)
	if err != nil {
		return scheduling.SlotInput{}, err
	}
	return scheduling.SlotInput{Start: startAt, End: endAt}, nil
}

func formatBatchError(be scheduling.BatchError) string {
	return "slot " + strconv.Itoa(be.Index+1) + ": " + be.Message
}

func parseDateParam(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
