package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/medisched/hospital-booking/internal/scheduling"
)

// SchedulingService is what the handlers need from the core.
type SchedulingService interface {
	CreateSlot(ctx context.Context, doctorID uuid.UUID, in scheduling.SlotInput) (*scheduling.AvailabilitySlot, error)
	CreateSlotBatch(ctx context.Context, doctorID uuid.UUID, items []scheduling.SlotInput) ([]scheduling.AvailabilitySlot, []scheduling.BatchError, error)
	ListSlots(ctx context.Context, p scheduling.Principal, q scheduling.SlotQuery) ([]scheduling.AvailabilitySlot, error)
	ListDoctorAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) (*scheduling.Doctor, []scheduling.AvailabilitySlot, error)
	CancelSlot(ctx context.Context, doctorID, slotID uuid.UUID) error
	Reserve(ctx context.Context, patientID, slotID uuid.UUID, notes string) (*scheduling.Booking, error)
	ListBookings(ctx context.Context, p scheduling.Principal, includePast bool) ([]scheduling.BookingDetail, error)
	GetBooking(ctx context.Context, p scheduling.Principal, id uuid.UUID) (*scheduling.BookingDetail, error)
}

type RouterConfig struct {
	Service SchedulingService
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Log     *logrus.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	validate := validator.New()

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(PrincipalMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Slot endpoints
	r.Group(func(r chi.Router) {
		r.Use(RequireRole(scheduling.RoleDoctor))
		r.Post("/slots", createSlotHandler(cfg.Service, validate))
		r.Post("/slots/bulk", bulkCreateSlotsHandler(cfg.Service, validate))
		r.Delete("/slots/{id}", cancelSlotHandler(cfg.Service))
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireRole(""))
		r.Get("/slots", listSlotsHandler(cfg.Service))
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireRole(scheduling.RolePatient))
		r.Get("/doctors/{id}/slots", doctorSlotsHandler(cfg.Service))
		r.Post("/bookings", createBookingHandler(cfg.Service, validate))
	})

	// Booking reads, both roles
	r.Group(func(r chi.Router) {
		r.Use(RequireRole(""))
		r.Get("/bookings", listBookingsHandler(cfg.Service))
		r.Get("/bookings/{id}", getBookingHandler(cfg.Service))
	})

	return r
}
