package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medisched/hospital-booking/internal/events"
	redisclient "github.com/medisched/hospital-booking/internal/redis"
)

const (
	EventBookingCreated = "BOOKING_CREATED"
	EventSlotCancelled  = "SLOT_CANCELLED"
)

// ValidationError marks malformed or out-of-policy input. Callers map it to
// a 400; everything retryable is a sentinel conflict error instead.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// EventPublisher receives post-commit booking events. Publishing is best
// effort: the reservation result never depends on it.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, ev events.BookingCreated) error
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	pub    EventPublisher
	log    *logrus.Logger
	now    func() time.Time
}

// NewService wires the scheduling core. pub may be nil when no event stream
// is configured.
func NewService(repo Repository, locker redisclient.Locker, pub EventPublisher, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		repo:   repo,
		locker: locker,
		pub:    pub,
		log:    log,
		now:    time.Now,
	}
}

// SlotInput is one requested availability window. Start and End are UTC
// instants on the same calendar day.
type SlotInput struct {
	Start time.Time
	End   time.Time
}

// BatchError describes one failed item of a bulk slot creation.
type BatchError struct {
	Index   int
	Message string
}

func (s *Service) validateSlotTimes(in SlotInput) error {
	start := in.Start.UTC()
	end := in.End.UTC()

	if !end.After(start) {
		return validationError("end_time must be after start_time")
	}
	d := end.Sub(start)
	if d < MinSlotDuration {
		return validationError("slot must be at least 15 minutes long")
	}
	if d > MaxSlotDuration {
		return validationError("slot cannot exceed 4 hours")
	}

	if dayOf(start).Before(dayOf(s.now().UTC())) {
		return validationError("cannot create slots in the past")
	}
	return nil
}

// CreateSlot creates a single availability window for the doctor.
func (s *Service) CreateSlot(ctx context.Context, doctorID uuid.UUID, in SlotInput) (*AvailabilitySlot, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	if err := s.validateSlotTimes(in); err != nil {
		return nil, err
	}

	slot, err := s.repo.CreateSlot(ctx, AvailabilitySlot{
		DoctorID:  doctorID,
		Date:      dayOf(in.Start.UTC()),
		StartTime: in.Start.UTC(),
		EndTime:   in.End.UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"slot_id":   slot.ID,
		"doctor_id": doctorID,
		"start":     slot.StartTime,
	}).Info("slot created")

	return slot, nil
}

// CreateSlotBatch attempts every item independently. One failing item never
// aborts the others; the caller gets the created slots plus per-item errors.
func (s *Service) CreateSlotBatch(ctx context.Context, doctorID uuid.UUID, items []SlotInput) ([]AvailabilitySlot, []BatchError, error) {
	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("load doctor: %w", err)
	}

	var created []AvailabilitySlot
	var batchErrs []BatchError

	for i, in := range items {
		if err := s.validateSlotTimes(in); err != nil {
			batchErrs = append(batchErrs, BatchError{Index: i, Message: err.Error()})
			continue
		}
		slot, err := s.repo.CreateSlot(ctx, AvailabilitySlot{
			DoctorID:  doctorID,
			Date:      dayOf(in.Start.UTC()),
			StartTime: in.Start.UTC(),
			EndTime:   in.End.UTC(),
		})
		if err != nil {
			batchErrs = append(batchErrs, BatchError{Index: i, Message: err.Error()})
			continue
		}
		created = append(created, *slot)
	}

	return created, batchErrs, nil
}

// SlotQuery narrows slot listings from the caller's point of view.
type SlotQuery struct {
	DoctorID     *uuid.UUID
	DateFrom     time.Time
	DateTo       time.Time
	ShowReserved bool
}

// ListSlots returns slots visible to the principal: doctors see their own
// (reserved ones only on request), patients see unreserved future slots from
// any doctor.
func (s *Service) ListSlots(ctx context.Context, p Principal, q SlotQuery) ([]AvailabilitySlot, error) {
	f := SlotFilter{
		DateFrom: q.DateFrom,
		DateTo:   q.DateTo,
	}
	if f.DateFrom.IsZero() {
		// Past filtering is by calendar day: a slot earlier today stays
		// listed and is rejected at reservation time instead.
		f.DateFrom = dayOf(s.now().UTC())
	}

	switch p.Role {
	case RoleDoctor:
		own := p.ID
		f.DoctorID = &own
		f.IncludeReserved = q.ShowReserved
	default:
		f.DoctorID = q.DoctorID
		f.IncludeReserved = false
	}

	return s.repo.ListSlots(ctx, f)
}

// ListDoctorAvailableSlots returns a doctor's open slots in the window,
// defaulting to the next 30 days.
func (s *Service) ListDoctorAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*Doctor, []AvailabilitySlot, error) {
	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}

	if from.IsZero() {
		from = dayOf(s.now().UTC())
	}
	if to.IsZero() {
		to = from.Add(30 * 24 * time.Hour)
	}

	slots, err := s.repo.ListSlots(ctx, SlotFilter{
		DoctorID: &doctorID,
		DateFrom: from,
		DateTo:   to,
	})
	if err != nil {
		return nil, nil, err
	}
	return doctor, slots, nil
}

// CancelSlot deletes an unreserved future slot owned by the doctor. It takes
// the same per-slot lock as Reserve so cancellation can never interleave
// with a reservation in flight.
func (s *Service) CancelSlot(ctx context.Context, doctorID, slotID uuid.UUID) error {
	err := s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		return s.repo.DeleteSlot(lockCtx, slotID, doctorID, s.now().UTC())
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return ErrSlotContended
		}
		if errors.Is(err, ErrSlotInPast) {
			return validationError("cannot cancel past slots")
		}
		return err
	}

	s.log.WithFields(logrus.Fields{
		"slot_id":   slotID,
		"doctor_id": doctorID,
	}).Info("slot cancelled")

	s.logEvent(ctx, nil, EventSlotCancelled, map[string]any{
		"slot_id":   slotID.String(),
		"doctor_id": doctorID.String(),
	})

	return nil
}

// Reserve atomically converts an unreserved slot into a booking for the
// patient. Among any number of concurrent calls on one slot exactly one
// succeeds; the rest observe a conflict immediately, without queueing.
func (s *Service) Reserve(ctx context.Context, patientID, slotID uuid.UUID, notes string) (*Booking, error) {
	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	// Fast path before taking the lock. The authoritative checks run again
	// inside the reservation transaction.
	slot, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Reserved {
		return nil, ErrSlotReserved
	}
	if slot.IsPast(s.now().UTC()) {
		return nil, validationError("cannot book a slot in the past")
	}

	var booking *Booking
	err = s.locker.WithSlotLock(ctx, slotID, func(lockCtx context.Context) error {
		b, err := s.repo.ReserveSlot(lockCtx, slotID, patientID, notes, s.now().UTC())
		if err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		if errors.Is(err, ErrSlotInPast) {
			return nil, validationError("cannot book a slot in the past")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"slot_id":    slotID,
		"patient_id": patientID,
		"doctor_id":  booking.DoctorID,
	}).Info("booking created")

	// Post-commit side effects. Failures here are logged and swallowed; the
	// booking is already durable.
	s.logEvent(ctx, &booking.ID, EventBookingCreated, map[string]any{
		"slot_id":    slotID.String(),
		"patient_id": patientID.String(),
		"doctor_id":  booking.DoctorID.String(),
	})
	s.publishBookingCreated(ctx, booking, slot)

	return booking, nil
}

// ListBookings returns the principal's bookings, as patient or doctor per
// their role, ordered by slot date and time.
func (s *Service) ListBookings(ctx context.Context, p Principal, includePast bool) ([]BookingDetail, error) {
	return s.repo.ListBookingsForUser(ctx, p.ID, p.Role, includePast, s.now().UTC())
}

// GetBooking returns a booking only to its patient or doctor. Anyone else
// gets not-found, not forbidden, so booking ids cannot be probed.
func (s *Service) GetBooking(ctx context.Context, p Principal, id uuid.UUID) (*BookingDetail, error) {
	det, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if det.PatientID != p.ID && det.DoctorID != p.ID {
		return nil, ErrBookingNotFound
	}
	return det, nil
}

func (s *Service) publishBookingCreated(ctx context.Context, b *Booking, slot *AvailabilitySlot) {
	if s.pub == nil {
		return
	}
	ev := events.BookingCreated{
		BookingID: b.ID,
		SlotID:    b.SlotID,
		PatientID: b.PatientID,
		DoctorID:  b.DoctorID,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Notes:     b.Notes,
	}
	if err := s.pub.PublishBookingCreated(ctx, ev); err != nil {
		s.log.WithError(err).WithField("booking_id", b.ID).Warn("failed to publish booking event")
	}
}

func (s *Service) logEvent(ctx context.Context, bookingID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.WithError(err).WithField("event_type", eventType).Warn("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		BookingID: bookingID,
		Payload:   data,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event_type", eventType).Warn("failed to insert event log")
	}
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
