package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"visits-service/api"
	"visits-service/internal/models"
	"visits-service/internal/notify"
	"visits-service/internal/schedule"
	"visits-service/pkg/response"
)

// --- fakes ---

type fakeTx struct{}

func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }

type fakeLocker struct {
	busy map[string]bool
	held map[string]bool
}

func (l *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.busy[key] || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

type fakeNotifier struct {
	events []notify.EventKind
	fail   bool
}

func (n *fakeNotifier) Notify(_ context.Context, _ *models.Appointment, _ *models.StaffMember, kind notify.EventKind) error {
	if n.fail {
		return errors.New("smtp down")
	}
	n.events = append(n.events, kind)
	return nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time           { return c.now }
func (c fixedClock) Location() *time.Location { return time.UTC }

type fakeStore struct {
	stages  map[string]*models.SchoolStage
	courses map[string][]*models.Course
	staff   map[string]*models.StaffMember
	slots   map[string]*models.AvailabilitySlot
	appts   map[string]*models.Appointment

	nextID int

	// countdown of transient failures injected into CreateAppointment
	createApptFailures int

	// invoked before the first slot insert, to interleave work with an
	// in-flight expansion
	onCreateSlot func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		stages:  make(map[string]*models.SchoolStage),
		courses: make(map[string][]*models.Course),
		staff:   make(map[string]*models.StaffMember),
		slots:   make(map[string]*models.AvailabilitySlot),
		appts:   make(map[string]*models.Appointment),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) BeginTx(context.Context) (Tx, error) { return &fakeTx{}, nil }

func (f *fakeStore) ListStages(context.Context) ([]*models.SchoolStage, error) {
	var out []*models.SchoolStage
	for _, st := range f.stages {
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeStore) GetStage(_ context.Context, id string) (*models.SchoolStage, error) {
	st, ok := f.stages[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	return st, nil
}

func (f *fakeStore) ListCourses(_ context.Context, stageID string) ([]*models.Course, error) {
	return f.courses[stageID], nil
}

func (f *fakeStore) GetCourse(_ context.Context, id string) (*models.Course, error) {
	for _, cs := range f.courses {
		for _, c := range cs {
			if c.ID == id {
				return c, nil
			}
		}
	}
	return nil, response.ErrNotFound
}

func (f *fakeStore) ListStaffByStage(_ context.Context, stageID string) ([]*models.StaffMember, error) {
	var out []*models.StaffMember
	for _, m := range f.staff {
		if m.Allowed(stageID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) GetStaffMember(_ context.Context, id string) (*models.StaffMember, error) {
	m, ok := f.staff[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) GetSlot(_ context.Context, id string) (*models.AvailabilitySlot, error) {
	s, ok := f.slots[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) CreateSlot(_ context.Context, _ Tx, slot *models.AvailabilitySlot) (string, error) {
	if f.onCreateSlot != nil {
		hook := f.onCreateSlot
		f.onCreateSlot = nil
		hook()
	}
	id := f.id("slot")
	cp := *slot
	cp.ID = id
	f.slots[id] = &cp
	return id, nil
}

func (f *fakeStore) ListActiveSlots(_ context.Context, staffID *string, from schedule.Date) ([]*models.AvailabilitySlot, error) {
	var out []*models.AvailabilitySlot
	for _, s := range f.slots {
		if !s.IsActive || s.Date.Before(from) {
			continue
		}
		if staffID != nil && s.StaffID != *staffID {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStore) ListSlotsOn(_ context.Context, staffID string, date schedule.Date) ([]*models.AvailabilitySlot, error) {
	var out []*models.AvailabilitySlot
	for _, s := range f.slots {
		if s.IsActive && s.StaffID == staffID && s.Date.Equal(date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListStageSlots(_ context.Context, stageID string, date schedule.Date) ([]*models.AvailabilitySlot, error) {
	var out []*models.AvailabilitySlot
	for _, s := range f.slots {
		if s.IsActive && s.StageID == stageID && s.Date.Equal(date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListStageDates(_ context.Context, stageID string, from, to schedule.Date) ([]schedule.Date, error) {
	seen := make(map[schedule.Date]bool)
	var out []schedule.Date
	for _, s := range f.slots {
		if !s.IsActive || s.StageID != stageID || s.Date.Before(from) || to.Before(s.Date) || seen[s.Date] {
			continue
		}
		seen[s.Date] = true
		out = append(out, s.Date)
	}
	return out, nil
}

func (f *fakeStore) DeleteSlotGroup(_ context.Context, staffID string, date schedule.Date, window schedule.Interval) (int64, error) {
	var n int64
	for id, s := range f.slots {
		if s.StaffID == staffID && s.Date.Equal(date) && s.StartTime == window.Start && s.EndTime == window.End {
			delete(f.slots, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteOverlappingSlots(_ context.Context, _ Tx, staffID string, date schedule.Date, window schedule.Interval) (int64, error) {
	var n int64
	for id, s := range f.slots {
		if s.StaffID == staffID && s.Date.Equal(date) && schedule.Overlaps(s.Window(), window) {
			delete(f.slots, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteExpiredSlots(_ context.Context, before schedule.Date) (int64, error) {
	var n int64
	for id, s := range f.slots {
		if s.Date.Before(before) {
			delete(f.slots, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateAppointment(_ context.Context, _ Tx, appt *models.Appointment) (string, error) {
	if f.createApptFailures > 0 {
		f.createApptFailures--
		return "", errors.New("connection reset")
	}
	id := f.id("appt")
	cp := *appt
	cp.ID = id
	f.appts[id] = &cp
	return id, nil
}

func (f *fakeStore) GetAppointment(_ context.Context, id string) (*models.Appointment, error) {
	a, ok := f.appts[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetAppointmentByToken(_ context.Context, token string) (*models.Appointment, error) {
	for _, a := range f.appts {
		if a.CancelToken == token {
			cp := *a
			return &cp, nil
		}
	}
	return nil, response.ErrNotFound
}

func (f *fakeStore) ListAppointments(_ context.Context, staffID *string, filters *api.AppointmentFilters) ([]*models.Appointment, error) {
	var out []*models.Appointment
	for _, a := range f.appts {
		if staffID != nil && a.StaffID != *staffID {
			continue
		}
		if filters != nil && filters.Status != "" && string(a.Status) != filters.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) ListAppointmentsOn(_ context.Context, staffID string, date schedule.Date) ([]*models.Appointment, error) {
	var out []*models.Appointment
	for _, a := range f.appts {
		if a.StaffID == staffID && a.Day(time.UTC).Equal(date) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAppointmentsForUpdate(ctx context.Context, _ Tx, staffID string, date schedule.Date) ([]*models.Appointment, error) {
	return f.ListAppointmentsOn(ctx, staffID, date)
}

func (f *fakeStore) UpdateAppointment(_ context.Context, _ Tx, appt *models.Appointment) error {
	if _, ok := f.appts[appt.ID]; !ok {
		return response.ErrNotFound
	}
	cp := *appt
	f.appts[appt.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateAppointmentStatus(_ context.Context, id string, status models.AppointmentStatus) error {
	a, ok := f.appts[id]
	if !ok {
		return response.ErrNotFound
	}
	a.Status = status
	return nil
}

func (f *fakeStore) DeleteAppointment(_ context.Context, id string) error {
	if _, ok := f.appts[id]; !ok {
		return response.ErrNotFound
	}
	delete(f.appts, id)
	return nil
}

func (f *fakeStore) ListReminderAppointments(_ context.Context, date schedule.Date) ([]*models.Appointment, error) {
	var out []*models.Appointment
	for _, a := range f.appts {
		if a.Day(time.UTC).Equal(date) && a.Status == models.AppointmentPending && !a.ReminderSent {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id string) error {
	a, ok := f.appts[id]
	if !ok {
		return response.ErrNotFound
	}
	a.ReminderSent = true
	return nil
}

func (f *fakeStore) DeleteStaffMember(_ context.Context, _ Tx, staffID string) error {
	delete(f.staff, staffID)
	return nil
}

func (f *fakeStore) DeleteStaffAppointments(_ context.Context, _ Tx, staffID string) error {
	for id, a := range f.appts {
		if a.StaffID == staffID {
			delete(f.appts, id)
		}
	}
	return nil
}

func (f *fakeStore) DeleteStaffSlots(_ context.Context, _ Tx, staffID string) error {
	for id, s := range f.slots {
		if s.StaffID == staffID {
			delete(f.slots, id)
		}
	}
	return nil
}

func (f *fakeStore) DeleteStage(_ context.Context, _ Tx, stageID string) error {
	delete(f.stages, stageID)
	return nil
}

func (f *fakeStore) DeleteStageAppointments(_ context.Context, _ Tx, stageID string) error {
	for id, a := range f.appts {
		if a.StageID == stageID {
			delete(f.appts, id)
		}
	}
	return nil
}

func (f *fakeStore) DeleteStageSlots(_ context.Context, _ Tx, stageID string) error {
	for id, s := range f.slots {
		if s.StageID == stageID {
			delete(f.slots, id)
		}
	}
	return nil
}

func (f *fakeStore) DeleteStageCourses(_ context.Context, _ Tx, stageID string) error {
	delete(f.courses, stageID)
	return nil
}

// --- fixture ---

var testNow = time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *fakeStore
	locker   *fakeLocker
	notifier *fakeNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := newFakeStore()
	store.stages["stage1"] = &models.SchoolStage{ID: "stage1", Name: "Infantil"}
	store.stages["stage2"] = &models.SchoolStage{ID: "stage2", Name: "Primaria"}
	store.courses["stage2"] = []*models.Course{
		{ID: "course1", StageID: "stage2", Name: "1st grade"},
	}
	store.staff["staff1"] = &models.StaffMember{
		ID: "staff1", Name: "Ana", Email: "ana@school.test",
		AllowedStageIDs:      []string{"stage1", "stage2"},
		NotifyNewAppointment: true, NotifyReminder: true,
	}
	store.staff["staff2"] = &models.StaffMember{
		ID: "staff2", Name: "Luis", Email: "luis@school.test",
		AllowedStageIDs: []string{"stage1"},
	}

	locker := &fakeLocker{busy: make(map[string]bool), held: make(map[string]bool)}
	notifier := &fakeNotifier{}

	svc := NewService(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		store, locker, notifier,
		fixedClock{now: testNow},
		Rules{
			OpeningTime:      mustClock(t, "08:00"),
			ClosingTime:      mustClock(t, "20:00"),
			AllowedDurations: []int{15, 30, 45, 60},
			BookingHorizon:   90,
		},
	)

	return &fixture{svc: svc, store: store, locker: locker, notifier: notifier}
}

func mustClock(t *testing.T, s string) schedule.TimeOfDay {
	t.Helper()
	v, err := schedule.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func (f *fixture) addSlot(staffID, stageID, date, start, end string, duration int) *models.AvailabilitySlot {
	d, _ := schedule.ParseDate(date)
	s, _ := schedule.ParseTimeOfDay(start)
	e, _ := schedule.ParseTimeOfDay(end)
	id := f.store.id("slot")
	slot := &models.AvailabilitySlot{
		ID: id, StaffID: staffID, StageID: stageID,
		Date: d, StartTime: s, EndTime: e,
		DurationMinutes: duration, IsActive: true,
	}
	f.store.slots[id] = slot
	return slot
}

func bookingReq(date string, duration int) *api.BookingRequest {
	return &api.BookingRequest{
		StageID:      "stage1",
		StaffID:      "staff1",
		VisitorName:  "Maria Garcia",
		VisitorEmail: "maria@example.com",
		VisitorPhone: "612345678",
		Date:         date,
		Duration:     duration,
	}
}

// --- booking ---

func TestBookCreatesAppointment(t *testing.T) {
	f := newFixture(t)
	f.addSlot("staff1", "stage1", "2026-06-15", "09:00", "09:30", 30)

	resp, warning, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if warning != "" {
		t.Errorf("unexpected warning %q", warning)
	}
	if resp.Status != string(models.AppointmentPending) {
		t.Errorf("status = %q, want pending", resp.Status)
	}
	if resp.CancelToken == "" {
		t.Error("cancel token is empty")
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0] != notify.EventConfirmation {
		t.Errorf("notifications = %v, want one confirmation", f.notifier.events)
	}
	if len(f.store.appts) != 1 {
		t.Fatalf("stored appointments = %d, want 1", len(f.store.appts))
	}
}

func TestBookRetiresOverlappingSlots(t *testing.T) {
	f := newFixture(t)
	f.addSlot("staff1", "stage1", "2026-06-15", "09:00", "09:30", 30)
	f.addSlot("staff1", "stage1", "2026-06-15", "09:15", "09:45", 30)
	touching := f.addSlot("staff1", "stage1", "2026-06-15", "09:30", "10:00", 30)

	_, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if len(f.store.slots) != 1 {
		t.Fatalf("remaining slots = %d, want 1", len(f.store.slots))
	}
	if _, ok := f.store.slots[touching.ID]; !ok {
		t.Error("touching slot 09:30-10:00 was retired, want kept")
	}
}

func TestBookOverlapAndBoundary(t *testing.T) {
	f := newFixture(t)

	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30)); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:15", 30))
	if !errors.Is(err, response.ErrOverlap) {
		t.Fatalf("09:15 booking error = %v, want overlap", err)
	}
	var overlapErr *response.OverlapError
	if !errors.As(err, &overlapErr) {
		t.Fatal("overlap error does not carry conflict details")
	}
	if overlapErr.VisitorName != "Maria Garcia" {
		t.Errorf("conflicting visitor = %q", overlapErr.VisitorName)
	}

	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:30", 30)); err != nil {
		t.Fatalf("09:30 booking error = %v, want success (touching is not overlapping)", err)
	}
}

func TestBookPhoneValidation(t *testing.T) {
	cases := []struct {
		phone string
		ok    bool
	}{
		{"612345678", true},
		{"61234567", false},
		{"6123456789", false},
		{"61234567a", false},
		{"", false},
	}

	for _, tc := range cases {
		t.Run(tc.phone, func(t *testing.T) {
			f := newFixture(t)
			req := bookingReq("2026-06-15T09:00", 30)
			req.VisitorPhone = tc.phone

			_, _, err := f.svc.Book(context.Background(), req)
			if tc.ok && err != nil {
				t.Fatalf("Book: %v", err)
			}
			if !tc.ok && !errors.Is(err, response.ErrValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
		})
	}
}

func TestBookDurationMustBeAllowed(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 25))
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestBookStaffMustServeStage(t *testing.T) {
	f := newFixture(t)
	req := bookingReq("2026-06-15T09:00", 30)
	req.StageID = "stage2"
	req.StaffID = "staff2" // staff2 serves stage1 only
	req.CourseID = "course1"

	_, _, err := f.svc.Book(context.Background(), req)
	if !errors.Is(err, response.ErrForbidden) {
		t.Fatalf("error = %v, want forbidden", err)
	}
}

func TestBookCourseRules(t *testing.T) {
	t.Run("course required when stage has courses", func(t *testing.T) {
		f := newFixture(t)
		req := bookingReq("2026-06-15T09:00", 30)
		req.StageID = "stage2"

		_, _, err := f.svc.Book(context.Background(), req)
		if !errors.Is(err, response.ErrValidation) {
			t.Fatalf("error = %v, want validation", err)
		}
	})

	t.Run("course must belong to stage", func(t *testing.T) {
		f := newFixture(t)
		req := bookingReq("2026-06-15T09:00", 30)
		req.CourseID = "course1" // belongs to stage2, request is for stage1

		_, _, err := f.svc.Book(context.Background(), req)
		if !errors.Is(err, response.ErrValidation) {
			t.Fatalf("error = %v, want validation", err)
		}
	})

	t.Run("matching course accepted", func(t *testing.T) {
		f := newFixture(t)
		req := bookingReq("2026-06-15T09:00", 30)
		req.StageID = "stage2"
		req.CourseID = "course1"

		resp, _, err := f.svc.Book(context.Background(), req)
		if err != nil {
			t.Fatalf("Book: %v", err)
		}
		if resp.CourseID != "course1" {
			t.Errorf("course = %q, want course1", resp.CourseID)
		}
	})
}

func TestBookRejectsPastAndOutOfHours(t *testing.T) {
	cases := []struct {
		name string
		date string
	}{
		{"past instant", "2026-05-20T10:00"},
		{"before opening", "2026-06-15T07:30"},
		{"ends after closing", "2026-06-15T19:45"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, _, err := f.svc.Book(context.Background(), bookingReq(tc.date, 30))
			if !errors.Is(err, response.ErrValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
		})
	}
}

func TestBookLockedCalendar(t *testing.T) {
	f := newFixture(t)
	f.locker.busy["staff:staff1:2026-06-15"] = true

	_, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if !errors.Is(err, response.ErrLocked) {
		t.Fatalf("error = %v, want locked", err)
	}
}

func TestBookIgnoresCancelledAppointments(t *testing.T) {
	f := newFixture(t)

	resp, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	f.store.appts[resp.ID].Status = models.AppointmentCancelled

	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:15", 30)); err != nil {
		t.Fatalf("booking over cancelled appointment: %v", err)
	}
}

func TestBookRetriesTransientFailure(t *testing.T) {
	f := newFixture(t)
	f.store.createApptFailures = 1

	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30)); err != nil {
		t.Fatalf("Book after one transient failure: %v", err)
	}

	f = newFixture(t)
	f.store.createApptFailures = 2

	_, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if !errors.Is(err, response.ErrService) {
		t.Fatalf("error = %v, want service error after retry", err)
	}
}

func TestBookNotificationFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	f.notifier.fail = true

	resp, warning, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if warning == "" {
		t.Error("expected a warning about the failed notification")
	}
	if resp == nil || resp.ID == "" {
		t.Error("booking should succeed despite notification failure")
	}
}

// --- availability ---

func availabilityReq() *api.AvailabilityRequest {
	return &api.AvailabilityRequest{
		RepeatType: "once",
		Date:       "2026-06-15",
		StartTime:  "09:00",
		EndTime:    "10:00",
		Duration:   30,
	}
}

func TestCreateAvailabilityExpandsPerStage(t *testing.T) {
	f := newFixture(t)
	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}

	groups, err := f.svc.CreateAvailability(context.Background(), actor, availabilityReq())
	if err != nil {
		t.Fatalf("CreateAvailability: %v", err)
	}

	// 09:00, 09:15 and 09:30 starts, each group serving both stages.
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	for _, g := range groups {
		if len(g.Stages) != 2 {
			t.Errorf("group %s-%s stages = %v, want 2", g.Start, g.End, g.Stages)
		}
	}
	if len(f.store.slots) != 6 {
		t.Errorf("stored slots = %d, want 6", len(f.store.slots))
	}

	wantStarts := map[string]bool{"09:00": true, "09:15": true, "09:30": true}
	for _, g := range groups {
		if !wantStarts[g.Start] {
			t.Errorf("unexpected group start %s", g.Start)
		}
	}
}

func TestCreateAvailabilityOwnerCannotImpersonate(t *testing.T) {
	f := newFixture(t)
	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff2"}
	req := availabilityReq()
	req.StaffID = "staff1"

	_, err := f.svc.CreateAvailability(context.Background(), actor, req)
	if !errors.Is(err, response.ErrForbidden) {
		t.Fatalf("error = %v, want forbidden", err)
	}
}

func TestCreateAvailabilitySupervisorOverride(t *testing.T) {
	f := newFixture(t)
	actor := models.Actor{Role: models.RoleSupervisor}
	req := availabilityReq()
	req.StaffID = "staff2"

	groups, err := f.svc.CreateAvailability(context.Background(), actor, req)
	if err != nil {
		t.Fatalf("CreateAvailability: %v", err)
	}
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	for _, s := range f.store.slots {
		if s.StaffID != "staff2" {
			t.Errorf("slot created for %s, want staff2", s.StaffID)
		}
	}
}

func TestCreateAvailabilityRejectsAppointmentConflict(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:30", 30)); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	_, err := f.svc.CreateAvailability(context.Background(), actor, availabilityReq())
	if !errors.Is(err, response.ErrOverlap) {
		t.Fatalf("error = %v, want overlap", err)
	}
	if len(f.store.slots) != 0 {
		t.Errorf("slots created despite conflict: %d", len(f.store.slots))
	}
}

func TestCreateAvailabilityRejectsSlotConflict(t *testing.T) {
	f := newFixture(t)
	f.addSlot("staff1", "stage1", "2026-06-15", "09:30", "10:00", 30)

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	_, err := f.svc.CreateAvailability(context.Background(), actor, availabilityReq())
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestCreateAvailabilityContendsOnBookingKeys(t *testing.T) {
	f := newFixture(t)
	f.locker.busy["staff:staff1:2026-06-15"] = true

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	_, err := f.svc.CreateAvailability(context.Background(), actor, availabilityReq())
	if !errors.Is(err, response.ErrLocked) {
		t.Fatalf("error = %v, want locked", err)
	}
}

func TestCreateAvailabilityBlocksConcurrentBooking(t *testing.T) {
	f := newFixture(t)

	// A booking arriving mid-expansion for the same staff and day must
	// find the day key held; otherwise it could commit an appointment
	// the expansion's overlap check never saw, leaving live slots over
	// the booked window.
	var bookErr error
	f.store.onCreateSlot = func() {
		_, _, bookErr = f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	}

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	if _, err := f.svc.CreateAvailability(context.Background(), actor, availabilityReq()); err != nil {
		t.Fatalf("CreateAvailability: %v", err)
	}

	if !errors.Is(bookErr, response.ErrLocked) {
		t.Fatalf("interleaved booking error = %v, want locked", bookErr)
	}
	if len(f.store.appts) != 0 {
		t.Fatalf("interleaved booking committed %d appointments", len(f.store.appts))
	}
	for _, s := range f.store.slots {
		if !s.IsActive {
			t.Errorf("slot %s created inactive", s.ID)
		}
	}
}

func TestCreateAvailabilityWeeklyRejectsConflictingOccurrence(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-09T09:30", 30)); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	req := availabilityReq()
	req.RepeatType = "weekly"
	req.Date = ""
	req.Month = 6
	req.Weekday = 2 // Tuesdays; the booking sits on June 9th

	_, err := f.svc.CreateAvailability(context.Background(), actor, req)
	if !errors.Is(err, response.ErrOverlap) {
		t.Fatalf("error = %v, want overlap", err)
	}
	if !strings.Contains(err.Error(), "2026-06-09") {
		t.Errorf("error %q does not name the conflicting date", err)
	}
	if len(f.store.slots) != 0 {
		t.Errorf("slots persisted despite rejection: %d", len(f.store.slots))
	}
}

func TestCreateAvailabilityTemplateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*api.AvailabilityRequest)
	}{
		{"end before start", func(r *api.AvailabilityRequest) { r.StartTime = "10:00"; r.EndTime = "09:00" }},
		{"outside operating hours", func(r *api.AvailabilityRequest) { r.StartTime = "07:00" }},
		{"past date", func(r *api.AvailabilityRequest) { r.Date = "2026-05-01" }},
		{"weekly past month", func(r *api.AvailabilityRequest) { r.RepeatType = "weekly"; r.Month = 3; r.Weekday = 2 }},
		{"weekly bad weekday", func(r *api.AvailabilityRequest) { r.RepeatType = "weekly"; r.Month = 6; r.Weekday = 9 }},
		{"zero duration", func(r *api.AvailabilityRequest) { r.Duration = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			req := availabilityReq()
			tc.mutate(req)

			actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
			_, err := f.svc.CreateAvailability(context.Background(), actor, req)
			if !errors.Is(err, response.ErrValidation) {
				t.Fatalf("error = %v, want validation", err)
			}
		})
	}
}

func TestCreateAvailabilityWeekly(t *testing.T) {
	f := newFixture(t)
	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff2"}
	req := availabilityReq()
	req.RepeatType = "weekly"
	req.Date = ""
	req.Month = 6
	req.Weekday = 2 // Tuesdays of June 2026: 2, 9, 16, 23, 30

	groups, err := f.svc.CreateAvailability(context.Background(), actor, req)
	if err != nil {
		t.Fatalf("CreateAvailability: %v", err)
	}

	dates := make(map[string]bool)
	for _, g := range groups {
		dates[g.Date] = true
	}
	want := []string{"2026-06-02", "2026-06-09", "2026-06-16", "2026-06-23", "2026-06-30"}
	for _, d := range want {
		if !dates[d] {
			t.Errorf("missing occurrence on %s", d)
		}
	}
	if len(dates) != len(want) {
		t.Errorf("dates = %v, want %v", dates, want)
	}
}

func TestWithdrawSlot(t *testing.T) {
	t.Run("owner withdraws whole group", func(t *testing.T) {
		f := newFixture(t)
		slot := f.addSlot("staff1", "stage1", "2026-06-15", "09:00", "09:30", 30)
		f.addSlot("staff1", "stage2", "2026-06-15", "09:00", "09:30", 30)
		other := f.addSlot("staff1", "stage1", "2026-06-15", "09:00", "09:15", 15)

		actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
		removed, err := f.svc.WithdrawSlot(context.Background(), actor, slot.ID)
		if err != nil {
			t.Fatalf("WithdrawSlot: %v", err)
		}
		if removed != 2 {
			t.Errorf("removed = %d, want 2", removed)
		}
		// only the exact (date, start, end) tuple goes; a different
		// window sharing the start survives
		if _, ok := f.store.slots[other.ID]; !ok {
			t.Error("slot with a different window was removed")
		}
	})

	t.Run("other owner forbidden", func(t *testing.T) {
		f := newFixture(t)
		slot := f.addSlot("staff1", "stage1", "2026-06-15", "09:00", "09:30", 30)

		actor := models.Actor{Role: models.RoleOwner, StaffID: "staff2"}
		if _, err := f.svc.WithdrawSlot(context.Background(), actor, slot.ID); !errors.Is(err, response.ErrForbidden) {
			t.Fatalf("error = %v, want forbidden", err)
		}
	})

	t.Run("booked window conflicts", func(t *testing.T) {
		f := newFixture(t)
		if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-16T09:00", 30)); err != nil {
			t.Fatalf("seed booking: %v", err)
		}
		overlapping := f.addSlot("staff1", "stage1", "2026-06-16", "09:15", "09:45", 30)
		touching := f.addSlot("staff1", "stage1", "2026-06-16", "09:30", "10:00", 30)

		actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
		if _, err := f.svc.WithdrawSlot(context.Background(), actor, overlapping.ID); !errors.Is(err, response.ErrConflict) {
			t.Fatalf("error = %v, want conflict", err)
		}
		if _, err := f.svc.WithdrawSlot(context.Background(), actor, touching.ID); err != nil {
			t.Fatalf("withdraw touching slot: %v", err)
		}
	})
}

func TestCleanupExpiredSlots(t *testing.T) {
	f := newFixture(t)
	f.addSlot("staff1", "stage1", "2026-05-20", "09:00", "09:30", 30)
	f.addSlot("staff1", "stage1", "2026-06-15", "09:00", "09:30", 30)

	count, err := f.svc.CleanupExpiredSlots(context.Background())
	if err != nil {
		t.Fatalf("CleanupExpiredSlots: %v", err)
	}
	if count != 1 {
		t.Errorf("removed = %d, want 1", count)
	}
	if len(f.store.slots) != 1 {
		t.Errorf("remaining slots = %d, want 1", len(f.store.slots))
	}
}

// --- lifecycle ---

func TestUpdateAppointmentStatusMachine(t *testing.T) {
	f := newFixture(t)
	resp, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}

	completed := string(models.AppointmentCompleted)
	if _, _, err := f.svc.UpdateAppointment(context.Background(), actor, resp.ID, &api.AppointmentUpdateRequest{Status: &completed}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	cancelled := string(models.AppointmentCancelled)
	_, _, err = f.svc.UpdateAppointment(context.Background(), actor, resp.ID, &api.AppointmentUpdateRequest{Status: &cancelled})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("completed -> cancelled error = %v, want validation", err)
	}
}

func TestRescheduleExcludesSelf(t *testing.T) {
	f := newFixture(t)
	resp, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	newDate := "2026-06-15T09:15"
	updated, _, err := f.svc.UpdateAppointment(context.Background(), actor, resp.ID, &api.AppointmentUpdateRequest{Date: &newDate})
	if err != nil {
		t.Fatalf("reschedule onto own window: %v", err)
	}
	if updated.Date != "2026-06-15T09:15:00Z" {
		t.Errorf("date = %q", updated.Date)
	}
}

func TestRescheduleConflictsWithOthers(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30)); err != nil {
		t.Fatalf("first booking: %v", err)
	}

	second, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T10:00", 30))
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	newDate := "2026-06-15T09:15"
	_, _, err = f.svc.UpdateAppointment(context.Background(), actor, second.ID, &api.AppointmentUpdateRequest{Date: &newDate})
	if !errors.Is(err, response.ErrOverlap) {
		t.Fatalf("error = %v, want overlap", err)
	}
}

func TestUpdateAppointmentForbiddenForOtherOwner(t *testing.T) {
	f := newFixture(t)
	resp, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	actor := models.Actor{Role: models.RoleOwner, StaffID: "staff2"}
	notes := "saw the family"
	_, _, err = f.svc.UpdateAppointment(context.Background(), actor, resp.ID, &api.AppointmentUpdateRequest{Notes: &notes})
	if !errors.Is(err, response.ErrForbidden) {
		t.Fatalf("error = %v, want forbidden", err)
	}
}

func TestCancelByToken(t *testing.T) {
	f := newFixture(t)
	resp, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30))
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	cancelled, _, err := f.svc.CancelByToken(context.Background(), resp.CancelToken)
	if err != nil {
		t.Fatalf("CancelByToken: %v", err)
	}
	if cancelled.Status != string(models.AppointmentCancelled) {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}

	if _, _, err := f.svc.CancelByToken(context.Background(), resp.CancelToken); !errors.Is(err, response.ErrConflict) {
		t.Fatalf("second cancel error = %v, want conflict", err)
	}

	if _, _, err := f.svc.CancelByToken(context.Background(), "no-such-token"); !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("unknown token error = %v, want not found", err)
	}
}

func TestListAppointmentsScope(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30)); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	req2 := bookingReq("2026-06-15T09:00", 30)
	req2.StaffID = "staff2"
	if _, _, err := f.svc.Book(context.Background(), req2); err != nil {
		t.Fatalf("seed booking 2: %v", err)
	}

	owner := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	got, err := f.svc.ListAppointments(context.Background(), owner, &api.AppointmentFilters{})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(got) != 1 || got[0].StaffID != "staff1" {
		t.Errorf("owner sees %d appointments, want only their own", len(got))
	}

	supervisor := models.Actor{Role: models.RoleSupervisor}
	got, err = f.svc.ListAppointments(context.Background(), supervisor, &api.AppointmentFilters{})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("supervisor sees %d appointments, want 2", len(got))
	}

	if _, err := f.svc.ListAppointments(context.Background(), owner, &api.AppointmentFilters{StaffID: "staff2"}); !errors.Is(err, response.ErrForbidden) {
		t.Fatalf("error = %v, want forbidden", err)
	}
}

func TestSendReminders(t *testing.T) {
	f := newFixture(t)

	// testNow is June 1st; reminders target June 2nd.
	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-02T09:00", 30)); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-03T09:00", 30)); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	f.notifier.events = nil

	sent, err := f.svc.SendReminders(context.Background())
	if err != nil {
		t.Fatalf("SendReminders: %v", err)
	}
	if sent != 1 {
		t.Fatalf("sent = %d, want 1", sent)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0] != notify.EventReminder {
		t.Errorf("notifications = %v, want one reminder", f.notifier.events)
	}

	// marked, so a second sweep sends nothing
	sent, err = f.svc.SendReminders(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if sent != 0 {
		t.Errorf("second sweep sent = %d, want 0", sent)
	}
}

// --- admin ---

func TestDeleteStaffMemberCascade(t *testing.T) {
	f := newFixture(t)
	f.addSlot("staff1", "stage1", "2026-06-15", "11:00", "11:30", 30)
	if _, _, err := f.svc.Book(context.Background(), bookingReq("2026-06-15T09:00", 30)); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	owner := models.Actor{Role: models.RoleOwner, StaffID: "staff1"}
	if err := f.svc.DeleteStaffMember(context.Background(), owner, "staff1"); !errors.Is(err, response.ErrForbidden) {
		t.Fatalf("owner delete error = %v, want forbidden", err)
	}

	supervisor := models.Actor{Role: models.RoleSupervisor}
	if err := f.svc.DeleteStaffMember(context.Background(), supervisor, "staff1"); err != nil {
		t.Fatalf("DeleteStaffMember: %v", err)
	}

	if _, ok := f.store.staff["staff1"]; ok {
		t.Error("staff member still present")
	}
	if len(f.store.appts) != 0 {
		t.Errorf("appointments remaining = %d, want 0", len(f.store.appts))
	}
	if len(f.store.slots) != 0 {
		t.Errorf("slots remaining = %d, want 0", len(f.store.slots))
	}
}

func TestStageAvailability(t *testing.T) {
	f := newFixture(t)
	f.addSlot("staff1", "stage1", "2026-06-15", "09:00", "09:30", 30)
	f.addSlot("staff2", "stage1", "2026-06-16", "10:00", "10:30", 30)

	slots, days, err := f.svc.StageAvailability(context.Background(), "stage1", "2026-06-15")
	if err != nil {
		t.Fatalf("StageAvailability: %v", err)
	}
	if days != nil {
		t.Error("expected no day summary for a dated query")
	}
	if len(slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(slots))
	}

	slots, days, err = f.svc.StageAvailability(context.Background(), "stage1", "")
	if err != nil {
		t.Fatalf("StageAvailability horizon: %v", err)
	}
	if slots != nil {
		t.Error("expected no slot list for a horizon query")
	}
	if len(days) != 2 {
		t.Fatalf("days = %d, want 2", len(days))
	}

	if _, _, err := f.svc.StageAvailability(context.Background(), "nope", ""); !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
}
