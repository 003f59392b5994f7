package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL is idempotent so it can run on every startup when
// MIGRATE_ON_START is set.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS doctors (
	id          uuid PRIMARY KEY,
	name        text NOT NULL,
	specialty   text,
	email       text,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS patients (
	id          uuid PRIMARY KEY,
	name        text NOT NULL,
	email       text,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS availability_slots (
	id          uuid PRIMARY KEY,
	doctor_id   uuid NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
	slot_date   date NOT NULL,
	start_time  timestamptz NOT NULL,
	end_time    timestamptz NOT NULL,
	reserved    boolean NOT NULL DEFAULT FALSE,
	created_at  timestamptz NOT NULL DEFAULT now(),
	CONSTRAINT slot_time_order CHECK (end_time > start_time),
	CONSTRAINT slot_unique_start UNIQUE (doctor_id, start_time)
);

CREATE INDEX IF NOT EXISTS idx_slots_doctor_date ON availability_slots (doctor_id, slot_date, reserved);
CREATE INDEX IF NOT EXISTS idx_slots_date_reserved ON availability_slots (slot_date, reserved);

CREATE TABLE IF NOT EXISTS bookings (
	id                uuid PRIMARY KEY,
	slot_id           uuid NOT NULL UNIQUE REFERENCES availability_slots(id) ON DELETE CASCADE,
	patient_id        uuid NOT NULL REFERENCES patients(id) ON DELETE CASCADE,
	doctor_id         uuid NOT NULL REFERENCES doctors(id) ON DELETE CASCADE,
	notes             text NOT NULL DEFAULT '',
	calendar_event_id text,
	created_at        timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bookings_patient ON bookings (patient_id, created_at);
CREATE INDEX IF NOT EXISTS idx_bookings_doctor ON bookings (doctor_id, created_at);

CREATE TABLE IF NOT EXISTS event_logs (
	id          bigserial PRIMARY KEY,
	event_type  text NOT NULL,
	booking_id  uuid,
	payload     jsonb,
	created_at  timestamptz NOT NULL DEFAULT now()
);
`

// EnsureSchema creates all tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
