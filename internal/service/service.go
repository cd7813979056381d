package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"visits-service/api"
	"visits-service/internal/lock"
	"visits-service/internal/models"
	"visits-service/internal/notify"
	"visits-service/internal/schedule"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

type Service struct {
	store    Store
	locker   lock.Locker
	notifier notify.Notifier
	clock    Clock
	rules    Rules
	log      *slog.Logger
}

func NewService(log *slog.Logger, store Store, locker lock.Locker, notifier notify.Notifier, clock Clock, rules Rules) *Service {
	return &Service{
		store:    store,
		locker:   locker,
		notifier: notifier,
		clock:    clock,
		rules:    rules,
		log:      log,
	}
}

// Clock supplies the current instant and the institutional timezone.
// Injected so scheduling decisions are deterministic under test.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// Rules are the institution-wide booking constraints from config.
type Rules struct {
	OpeningTime      schedule.TimeOfDay
	ClosingTime      schedule.TimeOfDay
	AllowedDurations []int
	BookingHorizon   int // days ahead shown in capacity summaries
}

func (r Rules) Hours() schedule.Interval {
	return schedule.Interval{Start: r.OpeningTime, End: r.ClosingTime}
}

func (r Rules) DurationAllowed(minutes int) bool {
	for _, d := range r.AllowedDurations {
		if d == minutes {
			return true
		}
	}
	return false
}

// Tx is the transactional handle storage hands back; postgres returns
// its *sql.Tx.
type Tx interface {
	Commit() error
	Rollback() error
}

type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	// Reference data
	ListStages(ctx context.Context) ([]*models.SchoolStage, error)
	GetStage(ctx context.Context, id string) (*models.SchoolStage, error)
	ListCourses(ctx context.Context, stageID string) ([]*models.Course, error)
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListStaffByStage(ctx context.Context, stageID string) ([]*models.StaffMember, error)
	GetStaffMember(ctx context.Context, id string) (*models.StaffMember, error)

	// Slots
	GetSlot(ctx context.Context, id string) (*models.AvailabilitySlot, error)
	CreateSlot(ctx context.Context, tx Tx, slot *models.AvailabilitySlot) (string, error)
	ListActiveSlots(ctx context.Context, staffID *string, from schedule.Date) ([]*models.AvailabilitySlot, error)
	ListSlotsOn(ctx context.Context, staffID string, date schedule.Date) ([]*models.AvailabilitySlot, error)
	ListStageSlots(ctx context.Context, stageID string, date schedule.Date) ([]*models.AvailabilitySlot, error)
	ListStageDates(ctx context.Context, stageID string, from, to schedule.Date) ([]schedule.Date, error)
	DeleteSlotGroup(ctx context.Context, staffID string, date schedule.Date, window schedule.Interval) (int64, error)
	DeleteOverlappingSlots(ctx context.Context, tx Tx, staffID string, date schedule.Date, window schedule.Interval) (int64, error)
	DeleteExpiredSlots(ctx context.Context, before schedule.Date) (int64, error)

	// Appointments
	CreateAppointment(ctx context.Context, tx Tx, appt *models.Appointment) (string, error)
	GetAppointment(ctx context.Context, id string) (*models.Appointment, error)
	GetAppointmentByToken(ctx context.Context, token string) (*models.Appointment, error)
	ListAppointments(ctx context.Context, staffID *string, filters *api.AppointmentFilters) ([]*models.Appointment, error)
	ListAppointmentsOn(ctx context.Context, staffID string, date schedule.Date) ([]*models.Appointment, error)
	ListAppointmentsForUpdate(ctx context.Context, tx Tx, staffID string, date schedule.Date) ([]*models.Appointment, error)
	UpdateAppointment(ctx context.Context, tx Tx, appt *models.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error
	DeleteAppointment(ctx context.Context, id string) error
	ListReminderAppointments(ctx context.Context, date schedule.Date) ([]*models.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) error

	// Explicit cascades
	DeleteStaffMember(ctx context.Context, tx Tx, staffID string) error
	DeleteStaffAppointments(ctx context.Context, tx Tx, staffID string) error
	DeleteStaffSlots(ctx context.Context, tx Tx, staffID string) error
	DeleteStage(ctx context.Context, tx Tx, stageID string) error
	DeleteStageAppointments(ctx context.Context, tx Tx, stageID string) error
	DeleteStageSlots(ctx context.Context, tx Tx, stageID string) error
	DeleteStageCourses(ctx context.Context, tx Tx, stageID string) error
}

func (s *Service) today() schedule.Date {
	return schedule.DateOf(s.clock.Now().In(s.clock.Location()))
}

// withRetry runs fn and retries it once after a short backoff when it
// fails with a transient storage error. Domain errors pass through.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	err := fn()
	if err == nil || isDomainError(err) {
		return err
	}

	s.log.Warn("Transient storage failure, retrying", slog.String("op", op), sl.Err(err))

	select {
	case <-time.After(200 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err = fn(); err != nil && !isDomainError(err) {
		s.log.Error("Storage failure after retry", slog.String("op", op), sl.Err(err))
		return errors.Join(response.ErrService, err)
	}

	return err
}

func isDomainError(err error) bool {
	return errors.Is(err, response.ErrNotFound) ||
		errors.Is(err, response.ErrValidation) ||
		errors.Is(err, response.ErrOverlap) ||
		errors.Is(err, response.ErrForbidden) ||
		errors.Is(err, response.ErrConflict) ||
		errors.Is(err, response.ErrLocked) ||
		errors.Is(err, response.ErrBadRequest)
}

// notifyAsync fires a notification after a successful commit. Failures
// are logged and returned as a human-readable warning, never as an
// error.
func (s *Service) notifyAsync(ctx context.Context, appt *models.Appointment, staff *models.StaffMember, kind notify.EventKind) string {
	if err := s.notifier.Notify(ctx, appt, staff, kind); err != nil {
		s.log.Warn("Notification failed",
			slog.String("appointment_id", appt.ID),
			slog.String("kind", string(kind)),
			sl.Err(err),
		)
		return "appointment saved, but the notification email could not be sent"
	}
	return ""
}

func (s *Service) appointmentResponse(a *models.Appointment) *api.AppointmentResponse {
	resp := &api.AppointmentResponse{
		ID:           a.ID,
		StageID:      a.StageID,
		StageName:    a.StageName,
		StaffID:      a.StaffID,
		StaffName:    a.StaffName,
		VisitorName:  a.VisitorName,
		VisitorEmail: a.VisitorEmail,
		VisitorPhone: a.VisitorPhone,
		Date:         a.Date.In(s.clock.Location()).Format(time.RFC3339),
		Duration:     a.DurationMinutes,
		Status:       string(a.Status),
		Comments:     a.Comments,
		Notes:        a.Notes,
		CancelToken:  a.CancelToken,
	}
	if a.CourseID != nil {
		resp.CourseID = *a.CourseID
	}
	if a.FollowUpDate != nil {
		resp.FollowUpDate = a.FollowUpDate.String()
	}
	return resp
}

func slotResponse(s *models.AvailabilitySlot) *api.SlotResponse {
	return &api.SlotResponse{
		ID:        s.ID,
		StaffID:   s.StaffID,
		StaffName: s.StaffName,
		StageID:   s.StageID,
		Date:      s.Date.String(),
		Start:     s.StartTime.String(),
		End:       s.EndTime.String(),
		Duration:  s.DurationMinutes,
	}
}

// groupSlots folds per-stage slot rows into (date, window) groups, the
// shape the staff availability screen consumes.
func groupSlots(slots []*models.AvailabilitySlot) []*api.SlotGroup {
	type key struct {
		date  schedule.Date
		start schedule.TimeOfDay
		end   schedule.TimeOfDay
	}

	index := make(map[key]*api.SlotGroup)
	var out []*api.SlotGroup

	for _, slot := range slots {
		k := key{date: slot.Date, start: slot.StartTime, end: slot.EndTime}
		if g, ok := index[k]; ok {
			g.Stages = append(g.Stages, slot.StageName)
			continue
		}
		g := &api.SlotGroup{
			ID:       slot.ID,
			Date:     slot.Date.String(),
			Start:    slot.StartTime.String(),
			End:      slot.EndTime.String(),
			Duration: slot.DurationMinutes,
			Stages:   []string{slot.StageName},
		}
		index[k] = g
		out = append(out, g)
	}

	return out
}
