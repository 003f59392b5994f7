package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medisched/hospital-booking/internal/scheduling"
)

// stubService returns canned results per method. Unset funcs fail the test
// if called.
type stubService struct {
	t *testing.T

	createSlot      func(doctorID uuid.UUID, in scheduling.SlotInput) (*scheduling.AvailabilitySlot, error)
	createSlotBatch func(doctorID uuid.UUID, items []scheduling.SlotInput) ([]scheduling.AvailabilitySlot, []scheduling.BatchError, error)
	listSlots       func(p scheduling.Principal, q scheduling.SlotQuery) ([]scheduling.AvailabilitySlot, error)
	doctorSlots     func(doctorID uuid.UUID, from, to time.Time) (*scheduling.Doctor, []scheduling.AvailabilitySlot, error)
	cancelSlot      func(doctorID, slotID uuid.UUID) error
	reserve         func(patientID, slotID uuid.UUID, notes string) (*scheduling.Booking, error)
	listBookings    func(p scheduling.Principal, includePast bool) ([]scheduling.BookingDetail, error)
	getBooking      func(p scheduling.Principal, id uuid.UUID) (*scheduling.BookingDetail, error)
}

func (s *stubService) CreateSlot(_ context.Context, doctorID uuid.UUID, in scheduling.SlotInput) (*scheduling.AvailabilitySlot, error) {
	if s.createSlot == nil {
		s.t.Fatal("unexpected CreateSlot call")
	}
	return s.createSlot(doctorID, in)
}

func (s *stubService) CreateSlotBatch(_ context.Context, doctorID uuid.UUID, items []scheduling.SlotInput) ([]scheduling.AvailabilitySlot, []scheduling.BatchError, error) {
	if s.createSlotBatch == nil {
		s.t.Fatal("unexpected CreateSlotBatch call")
	}
	return s.createSlotBatch(doctorID, items)
}

func (s *stubService) ListSlots(_ context.Context, p scheduling.Principal, q scheduling.SlotQuery) ([]scheduling.AvailabilitySlot, error) {
	if s.listSlots == nil {
		s.t.Fatal("unexpected ListSlots call")
	}
	return s.listSlots(p, q)
}

func (s *stubService) ListDoctorAvailableSlots(_ context.Context, doctorID uuid.UUID, from, to time.Time) (*scheduling.Doctor, []scheduling.AvailabilitySlot, error) {
	if s.doctorSlots == nil {
		s.t.Fatal("unexpected ListDoctorAvailableSlots call")
	}
	return s.doctorSlots(doctorID, from, to)
}

func (s *stubService) CancelSlot(_ context.Context, doctorID, slotID uuid.UUID) error {
	if s.cancelSlot == nil {
		s.t.Fatal("unexpected CancelSlot call")
	}
	return s.cancelSlot(doctorID, slotID)
}

func (s *stubService) Reserve(_ context.Context, patientID, slotID uuid.UUID, notes string) (*scheduling.Booking, error) {
	if s.reserve == nil {
		s.t.Fatal("unexpected Reserve call")
	}
	return s.reserve(patientID, slotID, notes)
}

func (s *stubService) ListBookings(_ context.Context, p scheduling.Principal, includePast bool) ([]scheduling.BookingDetail, error) {
	if s.listBookings == nil {
		s.t.Fatal("unexpected ListBookings call")
	}
	return s.listBookings(p, includePast)
}

func (s *stubService) GetBooking(_ context.Context, p scheduling.Principal, id uuid.UUID) (*scheduling.BookingDetail, error) {
	if s.getBooking == nil {
		s.t.Fatal("unexpected GetBooking call")
	}
	return s.getBooking(p, id)
}

func testRouter(t *testing.T, svc *stubService) http.Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewRouter(RouterConfig{
		Service: svc,
		Log:     log,
		Env:     "test",
		Version: "test",
	})
}

func doRequest(t *testing.T, h http.Handler, method, path string, body string, userID uuid.UUID, role string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != uuid.Nil {
		req.Header.Set("X-User-ID", userID.String())
		req.Header.Set("X-User-Role", role)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestAuthRequired(t *testing.T) {
	h := testRouter(t, &stubService{t: t})

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/slots"},
		{http.MethodGet, "/slots"},
		{http.MethodPost, "/bookings"},
		{http.MethodGet, "/bookings"},
	}
	for _, tc := range cases {
		rec := doRequest(t, h, tc.method, tc.path, "", uuid.Nil, "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without principal: status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestInvalidPrincipal(t *testing.T) {
	h := testRouter(t, &stubService{t: t})

	req := httptest.NewRequest(http.MethodGet, "/slots", nil)
	req.Header.Set("X-User-ID", "not-a-uuid")
	req.Header.Set("X-User-Role", "PATIENT")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad uuid: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/slots", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-User-Role", "ADMIN")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad role: status = %d, want 401", rec.Code)
	}
}

func TestRoleEnforcement(t *testing.T) {
	h := testRouter(t, &stubService{t: t})

	// Patients cannot create slots.
	rec := doRequest(t, h, http.MethodPost, "/slots", `{}`, uuid.New(), "PATIENT")
	if rec.Code != http.StatusForbidden {
		t.Errorf("patient POST /slots: status = %d, want 403", rec.Code)
	}

	// Doctors cannot book.
	rec = doRequest(t, h, http.MethodPost, "/bookings", `{}`, uuid.New(), "DOCTOR")
	if rec.Code != http.StatusForbidden {
		t.Errorf("doctor POST /bookings: status = %d, want 403", rec.Code)
	}
}

func TestCreateSlotEndpoint(t *testing.T) {
	doctorID := uuid.New()
	slotID := uuid.New()
	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)

	svc := &stubService{t: t}
	svc.createSlot = func(gotDoctor uuid.UUID, in scheduling.SlotInput) (*scheduling.AvailabilitySlot, error) {
		if gotDoctor != doctorID {
			t.Errorf("doctor id = %s, want %s", gotDoctor, doctorID)
		}
		if !in.Start.Equal(start) || !in.End.Equal(start.Add(time.Hour)) {
			t.Errorf("slot input = %v..%v", in.Start, in.End)
		}
		return &scheduling.AvailabilitySlot{
			ID:        slotID,
			DoctorID:  gotDoctor,
			Date:      time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
			StartTime: in.Start,
			EndTime:   in.End,
		}, nil
	}
	h := testRouter(t, svc)

	body := `{"date":"2026-03-03","start_time":"09:00","end_time":"10:00"}`
	rec := doRequest(t, h, http.MethodPost, "/slots", body, doctorID, "DOCTOR")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp SlotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != slotID || resp.StartTime != "09:00" || resp.EndTime != "10:00" || resp.DurationMinutes != 60 {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateSlotBadInput(t *testing.T) {
	h := testRouter(t, &stubService{t: t})
	doctorID := uuid.New()

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing fields", `{"date":"2026-03-03"}`},
		{"bad date format", `{"date":"03/03/2026","start_time":"09:00","end_time":"10:00"}`},
		{"bad time format", `{"date":"2026-03-03","start_time":"9am","end_time":"10:00"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, "/slots", tc.body, doctorID, "DOCTOR")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestBulkCreateSlotsEndpoint(t *testing.T) {
	doctorID := uuid.New()

	svc := &stubService{t: t}
	svc.createSlotBatch = func(_ uuid.UUID, items []scheduling.SlotInput) ([]scheduling.AvailabilitySlot, []scheduling.BatchError, error) {
		if len(items) != 2 {
			t.Fatalf("items = %d, want 2", len(items))
		}
		created := []scheduling.AvailabilitySlot{{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			Date:      time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
			StartTime: items[0].Start,
			EndTime:   items[0].End,
		}}
		errs := []scheduling.BatchError{{Index: 1, Message: "slot already exists at this time"}}
		return created, errs, nil
	}
	h := testRouter(t, svc)

	body := `{"date":"2026-03-03","slots":[
		{"start_time":"09:00","end_time":"10:00"},
		{"start_time":"10:00","end_time":"11:00"}
	]}`
	rec := doRequest(t, h, http.MethodPost, "/slots/bulk", body, doctorID, "DOCTOR")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp BulkCreateSlotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Created) != 1 || len(resp.Errors) != 1 {
		t.Fatalf("created = %d errors = %d, want 1 and 1", len(resp.Created), len(resp.Errors))
	}
	if resp.Errors[0] != "slot 2: slot already exists at this time" {
		t.Errorf("error = %q", resp.Errors[0])
	}
}

func TestBulkCreateSlotsMalformedItemIsIsolated(t *testing.T) {
	doctorID := uuid.New()

	svc := &stubService{t: t}
	svc.createSlotBatch = func(_ uuid.UUID, items []scheduling.SlotInput) ([]scheduling.AvailabilitySlot, []scheduling.BatchError, error) {
		if len(items) != 1 {
			t.Fatalf("items = %d, want only the parseable one", len(items))
		}
		created := []scheduling.AvailabilitySlot{{
			ID:        uuid.New(),
			DoctorID:  doctorID,
			Date:      time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
			StartTime: items[0].Start,
			EndTime:   items[0].End,
		}}
		return created, nil, nil
	}
	h := testRouter(t, svc)

	body := `{"date":"2026-03-03","slots":[
		{"start_time":"09:00","end_time":"10:00"},
		{"start_time":"9am","end_time":"10:00"}
	]}`
	rec := doRequest(t, h, http.MethodPost, "/slots/bulk", body, doctorID, "DOCTOR")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp BulkCreateSlotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(resp.Created))
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(resp.Errors))
	}
	if resp.Errors[0] != `slot 2: invalid time "9am"` {
		t.Errorf("error = %q", resp.Errors[0])
	}
}

func TestBulkCreateSlotsErrorIndexesMatchRequest(t *testing.T) {
	svc := &stubService{t: t}
	svc.createSlotBatch = func(_ uuid.UUID, items []scheduling.SlotInput) ([]scheduling.AvailabilitySlot, []scheduling.BatchError, error) {
		if len(items) != 2 {
			t.Fatalf("items = %d, want 2", len(items))
		}
		// Second parseable item (third in the request) fails at the store.
		created := []scheduling.AvailabilitySlot{{
			ID:        uuid.New(),
			Date:      time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC),
			StartTime: items[0].Start,
			EndTime:   items[0].End,
		}}
		errs := []scheduling.BatchError{{Index: 1, Message: "slot already exists at this time"}}
		return created, errs, nil
	}
	h := testRouter(t, svc)

	body := `{"date":"2026-03-03","slots":[
		{"start_time":"09:00","end_time":"10:00"},
		{"start_time":"bad","end_time":"11:00"},
		{"start_time":"11:00","end_time":"12:00"}
	]}`
	rec := doRequest(t, h, http.MethodPost, "/slots/bulk", body, uuid.New(), "DOCTOR")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp BulkCreateSlotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Errors) != 2 {
		t.Fatalf("errors = %v, want 2", resp.Errors)
	}
	if resp.Errors[0] != `slot 2: invalid time "bad"` {
		t.Errorf("errors[0] = %q", resp.Errors[0])
	}
	if resp.Errors[1] != "slot 3: slot already exists at this time" {
		t.Errorf("errors[1] = %q", resp.Errors[1])
	}
}

func TestBulkCreateSlotsAllFailed(t *testing.T) {
	svc := &stubService{t: t}
	svc.createSlotBatch = func(_ uuid.UUID, items []scheduling.SlotInput) ([]scheduling.AvailabilitySlot, []scheduling.BatchError, error) {
		return nil, []scheduling.BatchError{{Index: 0, Message: "end_time must be after start_time"}}, nil
	}
	h := testRouter(t, svc)

	body := `{"date":"2026-03-03","slots":[{"start_time":"10:00","end_time":"09:00"}]}`
	rec := doRequest(t, h, http.MethodPost, "/slots/bulk", body, uuid.New(), "DOCTOR")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 when nothing was created", rec.Code)
	}
}

func TestListSlotsEndpoint(t *testing.T) {
	patientID := uuid.New()
	filterDoctor := uuid.New()

	svc := &stubService{t: t}
	svc.listSlots = func(p scheduling.Principal, q scheduling.SlotQuery) ([]scheduling.AvailabilitySlot, error) {
		if p.ID != patientID || p.Role != scheduling.RolePatient {
			t.Errorf("principal = %+v", p)
		}
		if q.DoctorID == nil || *q.DoctorID != filterDoctor {
			t.Errorf("doctor filter = %v, want %s", q.DoctorID, filterDoctor)
		}
		if q.DateFrom.Format("2006-01-02") != "2026-03-03" {
			t.Errorf("date_from = %v", q.DateFrom)
		}
		return nil, nil
	}
	h := testRouter(t, svc)

	rec := doRequest(t, h, http.MethodGet,
		"/slots?doctor_id="+filterDoctor.String()+"&date_from=2026-03-03",
		"", patientID, "PATIENT")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/slots?doctor_id=nope", "", patientID, "PATIENT")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad doctor_id: status = %d, want 400", rec.Code)
	}
}

func TestCreateBookingEndpoint(t *testing.T) {
	patientID := uuid.New()
	slotID := uuid.New()
	bookingID := uuid.New()

	svc := &stubService{t: t}
	svc.reserve = func(gotPatient, gotSlot uuid.UUID, notes string) (*scheduling.Booking, error) {
		if gotPatient != patientID || gotSlot != slotID {
			t.Errorf("reserve(%s, %s)", gotPatient, gotSlot)
		}
		if notes != "follow-up" {
			t.Errorf("notes = %q", notes)
		}
		return &scheduling.Booking{
			ID:        bookingID,
			SlotID:    gotSlot,
			PatientID: gotPatient,
			DoctorID:  uuid.New(),
			Notes:     notes,
		}, nil
	}
	h := testRouter(t, svc)

	body := `{"slot_id":"` + slotID.String() + `","notes":"follow-up"}`
	rec := doRequest(t, h, http.MethodPost, "/bookings", body, patientID, "PATIENT")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}

	var resp BookingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != bookingID {
		t.Errorf("booking id = %s, want %s", resp.ID, bookingID)
	}
}

func TestCreateBookingConflicts(t *testing.T) {
	slotID := uuid.New()

	cases := []struct {
		name     string
		err      error
		status   int
		wantCode string
	}{
		{"already reserved", scheduling.ErrSlotReserved, http.StatusConflict, "slot_reserved"},
		{"contended", scheduling.ErrSlotContended, http.StatusConflict, "slot_contended"},
		{"slot missing", scheduling.ErrSlotNotFound, http.StatusNotFound, "not_found"},
		{"patient missing", scheduling.ErrPatientNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{t: t}
			svc.reserve = func(_, _ uuid.UUID, _ string) (*scheduling.Booking, error) {
				return nil, tc.err
			}
			h := testRouter(t, svc)

			body := `{"slot_id":"` + slotID.String() + `"}`
			rec := doRequest(t, h, http.MethodPost, "/bookings", body, uuid.New(), "PATIENT")
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			if code := errorCode(t, rec); code != tc.wantCode {
				t.Errorf("error code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestCancelSlotEndpoint(t *testing.T) {
	doctorID := uuid.New()
	slotID := uuid.New()

	svc := &stubService{t: t}
	svc.cancelSlot = func(gotDoctor, gotSlot uuid.UUID) error {
		if gotDoctor != doctorID || gotSlot != slotID {
			t.Errorf("cancel(%s, %s)", gotDoctor, gotSlot)
		}
		return nil
	}
	h := testRouter(t, svc)

	rec := doRequest(t, h, http.MethodDelete, "/slots/"+slotID.String(), "", doctorID, "DOCTOR")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestGetBookingEndpoint(t *testing.T) {
	patientID := uuid.New()
	bookingID := uuid.New()

	svc := &stubService{t: t}
	svc.getBooking = func(p scheduling.Principal, id uuid.UUID) (*scheduling.BookingDetail, error) {
		if id != bookingID {
			t.Errorf("booking id = %s", id)
		}
		return nil, scheduling.ErrBookingNotFound
	}
	h := testRouter(t, svc)

	rec := doRequest(t, h, http.MethodGet, "/bookings/"+bookingID.String(), "", patientID, "PATIENT")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	svc := &stubService{t: t}
	svc.listSlots = func(scheduling.Principal, scheduling.SlotQuery) ([]scheduling.AvailabilitySlot, error) {
		return nil, nil
	}
	h := testRouter(t, svc)

	rec := doRequest(t, h, http.MethodGet, "/slots", "", uuid.New(), "PATIENT")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing from response")
	}

	req := httptest.NewRequest(http.MethodGet, "/slots", nil)
	req.Header.Set("X-User-ID", uuid.NewString())
	req.Header.Set("X-User-Role", "PATIENT")
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "req-42" {
		t.Errorf("X-Request-ID = %q, want passthrough of req-42", got)
	}
}

func TestCombineDateTime(t *testing.T) {
	got, err := combineDateTime("2026-03-03", "09:30")
	if err != nil {
		t.Fatalf("combineDateTime: %v", err)
	}
	want := time.Date(2026, 3, 3, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := combineDateTime("bad", "09:30"); err == nil {
		t.Error("want error for bad date")
	}
	if _, err := combineDateTime("2026-03-03", "25:00"); err == nil {
		t.Error("want error for bad clock")
	}
}
