// Package events carries post-commit booking events over a Redis stream.
// Producers append after the reservation transaction commits; consumers are
// best-effort collaborators (notifications, calendar mirroring) whose
// failures never reach the booking caller.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const TypeBookingCreated = "BOOKING_CREATED"

type BookingCreated struct {
	BookingID uuid.UUID `json:"booking_id"`
	SlotID    uuid.UUID `json:"slot_id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Notes     string    `json:"notes,omitempty"`
}

// Message is one raw stream entry.
type Message struct {
	ID      string
	Type    string
	Payload []byte
}

func DecodeBookingCreated(m Message) (BookingCreated, error) {
	if m.Type != TypeBookingCreated {
		return BookingCreated{}, fmt.Errorf("unexpected event type %q", m.Type)
	}
	var ev BookingCreated
	if err := json.Unmarshal(m.Payload, &ev); err != nil {
		return BookingCreated{}, fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return ev, nil
}
