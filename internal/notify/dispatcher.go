package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medisched/hospital-booking/internal/events"
	"github.com/medisched/hospital-booking/internal/scheduling"
)

// Directory is the slice of the scheduling repository the dispatcher needs.
type Directory interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*scheduling.Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*scheduling.Patient, error)
	SetBookingCalendarEventID(ctx context.Context, bookingID uuid.UUID, eventID string) error
}

// Dispatcher turns post-commit booking events into notifications and
// calendar entries. Every failure is logged and dropped: the booking has
// already committed and must never be reported as failed because of us.
type Dispatcher struct {
	dir      Directory
	notifier Notifier
	mirror   Mirror // nil when no calendar service is configured
	log      *logrus.Logger
}

func NewDispatcher(dir Directory, notifier Notifier, mirror Mirror, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		dir:      dir,
		notifier: notifier,
		mirror:   mirror,
		log:      log,
	}
}

func (d *Dispatcher) HandleBookingCreated(ctx context.Context, ev events.BookingCreated) {
	log := d.log.WithField("booking_id", ev.BookingID)

	patient, err := d.dir.GetPatientByID(ctx, ev.PatientID)
	if err != nil {
		log.WithError(err).Warn("failed to load patient for notification")
		return
	}
	doctor, err := d.dir.GetDoctorByID(ctx, ev.DoctorID)
	if err != nil {
		log.WithError(err).Warn("failed to load doctor for notification")
		return
	}

	data := map[string]string{
		"patient_name": patient.Name,
		"doctor":       doctor.Name,
		"date":         ev.StartTime.Format("2006-01-02"),
		"time":         ev.StartTime.Format("15:04"),
	}

	if patient.Email != nil {
		err := d.notifier.Send(ctx, Notification{
			Action:    ActionBookingConfirmation,
			Recipient: *patient.Email,
			Data:      data,
		})
		if err != nil {
			log.WithError(err).Warn("failed to send booking confirmation")
		}
	}

	if doctor.Email != nil {
		err := d.notifier.Send(ctx, Notification{
			Action:    ActionNewBooking,
			Recipient: *doctor.Email,
			Data:      data,
		})
		if err != nil {
			log.WithError(err).Warn("failed to notify doctor")
		}
	}

	d.mirrorBooking(ctx, ev, patient, log)
}

func (d *Dispatcher) mirrorBooking(ctx context.Context, ev events.BookingCreated, patient *scheduling.Patient, log *logrus.Entry) {
	if d.mirror == nil {
		return
	}

	cal := CalendarEvent{
		Summary:     fmt.Sprintf("Appointment with %s", patient.Name),
		Description: ev.Notes,
		Start:       ev.StartTime,
		End:         ev.EndTime,
	}
	if patient.Email != nil {
		cal.Attendees = []string{*patient.Email}
	}

	eventID, err := d.mirror.CreateEvent(ctx, cal)
	if err != nil {
		log.WithError(err).Warn("failed to mirror booking to calendar")
		return
	}

	if err := d.dir.SetBookingCalendarEventID(ctx, ev.BookingID, eventID); err != nil {
		log.WithError(err).Warn("failed to store calendar event id")
		return
	}

	log.WithField("calendar_event_id", eventID).Info("booking mirrored to calendar")
}
