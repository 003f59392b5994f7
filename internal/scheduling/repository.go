package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")

	// ErrDuplicateSlot means the doctor already has a slot starting at the
	// same instant.
	ErrDuplicateSlot = errors.New("slot already exists at this time")

	// ErrSlotReserved means the slot already carries a booking.
	ErrSlotReserved = errors.New("slot already reserved")

	// ErrSlotContended means the slot row is locked by a concurrent request.
	// Retryable; the row was not touched.
	ErrSlotContended = errors.New("slot is currently being booked")

	// ErrSlotInPast means the slot's start instant has passed.
	ErrSlotInPast = errors.New("slot is in the past")
)

// SlotFilter narrows ListSlots. Zero time values mean "unbounded"; a nil
// DoctorID means all doctors.
type SlotFilter struct {
	DoctorID        *uuid.UUID
	DateFrom        time.Time
	DateTo          time.Time
	IncludeReserved bool
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	CreateSlot(ctx context.Context, slot AvailabilitySlot) (*AvailabilitySlot, error)
	GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error)
	ListSlots(ctx context.Context, f SlotFilter) ([]AvailabilitySlot, error)

	// DeleteSlot removes an unreserved, future slot owned by doctorID. It
	// takes the row lock non-blocking so it cannot race a reservation.
	DeleteSlot(ctx context.Context, slotID, doctorID uuid.UUID, now time.Time) error

	// ReserveSlot performs the indivisible unit of the reservation protocol:
	// lock the slot row without waiting, re-check its state, flip the
	// reserved flag and insert the booking in one transaction.
	ReserveSlot(ctx context.Context, slotID, patientID uuid.UUID, notes string, now time.Time) (*Booking, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*BookingDetail, error)
	ListBookingsForUser(ctx context.Context, userID uuid.UUID, role Role, includePast bool, now time.Time) ([]BookingDetail, error)
	SetBookingCalendarEventID(ctx context.Context, bookingID uuid.UUID, eventID string) error

	InsertEvent(ctx context.Context, ev EventLog) error
}
