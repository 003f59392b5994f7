package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes the reservation protocol depends on.
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.Email,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanSlot(row pgx.Row) (*AvailabilitySlot, error) {
	var s AvailabilitySlot
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.Reserved,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.PatientID,
		&b.DoctorID,
		&b.Notes,
		&b.CalendarEventID,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, email, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) CreateSlot(ctx context.Context, slot AvailabilitySlot) (*AvailabilitySlot, error) {
	id := slot.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO availability_slots (id, doctor_id, slot_date, start_time, end_time, reserved, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, now())
		RETURNING id, doctor_id, slot_date, start_time, end_time, reserved, created_at
	`, id, slot.DoctorID, slot.Date, slot.StartTime, slot.EndTime)

	created, err := scanSlot(row)
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*AvailabilitySlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, slot_date, start_time, end_time, reserved, created_at
		FROM availability_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, f SlotFilter) ([]AvailabilitySlot, error) {
	query := `
		SELECT id, doctor_id, slot_date, start_time, end_time, reserved, created_at
		FROM availability_slots
		WHERE 1=1`
	args := []any{}

	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		query += fmt.Sprintf(" AND doctor_id = $%d", len(args))
	}
	if !f.DateFrom.IsZero() {
		args = append(args, f.DateFrom)
		query += fmt.Sprintf(" AND slot_date >= $%d", len(args))
	}
	if !f.DateTo.IsZero() {
		args = append(args, f.DateTo)
		query += fmt.Sprintf(" AND slot_date <= $%d", len(args))
	}
	if !f.IncludeReserved {
		query += " AND NOT reserved"
	}
	query += " ORDER BY slot_date, start_time"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AvailabilitySlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, slotID, doctorID uuid.UUID, now time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete slot: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, doctor_id, slot_date, start_time, end_time, reserved, created_at
		FROM availability_slots
		WHERE id = $1 AND doctor_id = $2
		FOR UPDATE NOWAIT
	`, slotID, doctorID)

	slot, err := scanSlot(row)
	if err != nil {
		if pgErrCode(err) == pgLockNotAvailable {
			return ErrSlotContended
		}
		return err
	}

	if slot.Reserved {
		return ErrSlotReserved
	}
	if slot.IsPast(now) {
		return ErrSlotInPast
	}

	if _, err := tx.Exec(ctx, `DELETE FROM availability_slots WHERE id = $1`, slotID); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	return tx.Commit(ctx)
}

// ReserveSlot is the indivisible unit of the reservation protocol. The row
// lock is taken with NOWAIT so a contended slot fails immediately instead of
// tying a request worker up behind another transaction.
func (r *PgRepository) ReserveSlot(ctx context.Context, slotID, patientID uuid.UUID, notes string, now time.Time) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT id, doctor_id, slot_date, start_time, end_time, reserved, created_at
		FROM availability_slots
		WHERE id = $1
		FOR UPDATE NOWAIT
	`, slotID)

	slot, err := scanSlot(row)
	if err != nil {
		if pgErrCode(err) == pgLockNotAvailable {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	// Re-check under the lock: the slot may have changed between the
	// caller's initial read and lock acquisition.
	if slot.Reserved {
		return nil, ErrSlotReserved
	}
	if slot.IsPast(now) {
		return nil, ErrSlotInPast
	}

	tag, err := tx.Exec(ctx, `
		UPDATE availability_slots
		SET reserved = TRUE
		WHERE id = $1 AND NOT reserved
	`, slotID)
	if err != nil {
		return nil, fmt.Errorf("mark slot reserved: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return nil, ErrSlotReserved
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO bookings (id, slot_id, patient_id, doctor_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, slot_id, patient_id, doctor_id, notes, calendar_event_id, created_at
	`, uuid.New(), slotID, patientID, slot.DoctorID, notes)

	booking, err := scanBooking(row)
	if err != nil {
		if pgErrCode(err) == pgUniqueViolation {
			return nil, ErrSlotReserved
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}

	return booking, nil
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	rows, err := r.pool.Query(ctx, bookingDetailQuery+` WHERE b.id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	details, err := collectBookingDetails(rows)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, ErrBookingNotFound
	}
	return &details[0], nil
}

func (r *PgRepository) ListBookingsForUser(ctx context.Context, userID uuid.UUID, role Role, includePast bool, now time.Time) ([]BookingDetail, error) {
	column := "b.patient_id"
	if role == RoleDoctor {
		column = "b.doctor_id"
	}

	query := bookingDetailQuery + fmt.Sprintf(` WHERE %s = $1`, column)
	args := []any{userID}

	if !includePast {
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		args = append(args, today)
		query += fmt.Sprintf(" AND s.slot_date >= $%d", len(args))
	}
	query += " ORDER BY s.slot_date, s.start_time"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookingDetails(rows)
}

func (r *PgRepository) SetBookingCalendarEventID(ctx context.Context, bookingID uuid.UUID, eventID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET calendar_event_id = $2
		WHERE id = $1
	`, bookingID, eventID)
	if err != nil {
		return fmt.Errorf("set calendar event id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBookingNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

const bookingDetailQuery = `
	SELECT b.id, b.slot_id, b.patient_id, b.doctor_id, b.notes, b.calendar_event_id, b.created_at,
	       s.id, s.doctor_id, s.slot_date, s.start_time, s.end_time, s.reserved, s.created_at,
	       p.id, p.name, p.email, p.created_at, p.updated_at,
	       d.id, d.name, d.specialty, d.email, d.created_at, d.updated_at
	FROM bookings b
	JOIN availability_slots s ON s.id = b.slot_id
	JOIN patients p ON p.id = b.patient_id
	JOIN doctors d ON d.id = b.doctor_id`

func collectBookingDetails(rows pgx.Rows) ([]BookingDetail, error) {
	var result []BookingDetail
	for rows.Next() {
		var det BookingDetail
		var slot AvailabilitySlot
		var patient Patient
		var doctor Doctor

		err := rows.Scan(
			&det.ID, &det.SlotID, &det.PatientID, &det.DoctorID, &det.Notes, &det.CalendarEventID, &det.CreatedAt,
			&slot.ID, &slot.DoctorID, &slot.Date, &slot.StartTime, &slot.EndTime, &slot.Reserved, &slot.CreatedAt,
			&patient.ID, &patient.Name, &patient.Email, &patient.CreatedAt, &patient.UpdatedAt,
			&doctor.ID, &doctor.Name, &doctor.Specialty, &doctor.Email, &doctor.CreatedAt, &doctor.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		det.Slot = &slot
		det.Patient = &patient
		det.Doctor = &doctor
		result = append(result, det)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
