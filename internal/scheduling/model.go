package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDoctor  Role = "DOCTOR"
	RolePatient Role = "PATIENT"
)

// Principal is the authenticated actor as supplied by the identity
// collaborator. The core trusts the role as given and never consults any
// ambient session state.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot duration bounds, matching the clinic's scheduling policy.
const (
	MinSlotDuration = 15 * time.Minute
	MaxSlotDuration = 4 * time.Hour
)

// AvailabilitySlot is a doctor-declared time window open for booking.
// Start and end are UTC instants; Date is the calendar day they fall on and
// is part of the per-doctor uniqueness key.
type AvailabilitySlot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time
	StartTime time.Time
	EndTime   time.Time
	Reserved  bool
	CreatedAt time.Time
}

func (s *AvailabilitySlot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

func (s *AvailabilitySlot) DurationMinutes() int {
	return int(s.Duration() / time.Minute)
}

// IsPast reports whether the slot's start instant has already passed.
func (s *AvailabilitySlot) IsPast(now time.Time) bool {
	return s.StartTime.Before(now)
}

// Booking is the durable record of a confirmed appointment. The doctor is a
// denormalized copy of the slot's owner at booking time. CalendarEventID is
// set later by the calendar-mirroring collaborator, if one is configured.
type Booking struct {
	ID              uuid.UUID
	SlotID          uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	Notes           string
	CalendarEventID *string
	CreatedAt       time.Time
}

// BookingDetail is a booking hydrated with its slot and both participants.
type BookingDetail struct {
	Booking
	Slot    *AvailabilitySlot
	Patient *Patient
	Doctor  *Doctor
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
