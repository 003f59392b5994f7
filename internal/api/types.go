package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/hospital-booking/internal/scheduling"
)

type CreateSlotRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"required,datetime=15:04"`
}

// BulkSlotItem carries no validate tags: item-level problems become per-item
// errors in the response, never a rejection of the whole request.
type BulkSlotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type BulkCreateSlotsRequest struct {
	Date  string         `json:"date" validate:"required,datetime=2006-01-02"`
	Slots []BulkSlotItem `json:"slots" validate:"required,min=1,max=20"`
}

type CreateBookingRequest struct {
	SlotID string `json:"slot_id" validate:"required,uuid"`
	Notes  string `json:"notes" validate:"max=2000"`
}

type SlotResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	EndTime         string    `json:"end_time"`
	Reserved        bool      `json:"reserved"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

type BulkCreateSlotsResponse struct {
	Created []SlotResponse `json:"created"`
	Errors  []string       `json:"errors"`
}

type DoctorResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
}

type DoctorSlotsResponse struct {
	Doctor DoctorResponse `json:"doctor"`
	Slots  []SlotResponse `json:"slots"`
}

type BookingResponse struct {
	ID              uuid.UUID `json:"id"`
	SlotID          uuid.UUID `json:"slot_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	Notes           string    `json:"notes,omitempty"`
	Date            string    `json:"date,omitempty"`
	StartTime       string    `json:"start_time,omitempty"`
	EndTime         string    `json:"end_time,omitempty"`
	PatientName     string    `json:"patient_name,omitempty"`
	DoctorName      string    `json:"doctor_name,omitempty"`
	CalendarEventID *string   `json:"calendar_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toSlotResponse(s scheduling.AvailabilitySlot) SlotResponse {
	return SlotResponse{
		ID:              s.ID,
		DoctorID:        s.DoctorID,
		Date:            s.Date.Format("2006-01-02"),
		StartTime:       s.StartTime.Format("15:04"),
		EndTime:         s.EndTime.Format("15:04"),
		Reserved:        s.Reserved,
		DurationMinutes: s.DurationMinutes(),
		CreatedAt:       s.CreatedAt,
	}
}

func toSlotResponses(slots []scheduling.AvailabilitySlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotResponse(s))
	}
	return out
}

func toBookingResponse(b scheduling.Booking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		SlotID:          b.SlotID,
		PatientID:       b.PatientID,
		DoctorID:        b.DoctorID,
		Notes:           b.Notes,
		CalendarEventID: b.CalendarEventID,
		CreatedAt:       b.CreatedAt,
	}
}

func toBookingDetailResponse(det scheduling.BookingDetail) BookingResponse {
	resp := toBookingResponse(det.Booking)
	if det.Slot != nil {
		resp.Date = det.Slot.Date.Format("2006-01-02")
		resp.StartTime = det.Slot.StartTime.Format("15:04")
		resp.EndTime = det.Slot.EndTime.Format("15:04")
	}
	if det.Patient != nil {
		resp.PatientName = det.Patient.Name
	}
	if det.Doctor != nil {
		resp.DoctorName = det.Doctor.Name
	}
	return resp
}

// combineDateTime builds a UTC instant from the wire format's separate date
// and clock fields.
func combineDateTime(date, clock string) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	c, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", clock)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, time.UTC), nil
}
