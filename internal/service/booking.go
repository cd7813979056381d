package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"visits-service/api"
	"visits-service/internal/models"
	"visits-service/internal/notify"
	"visits-service/internal/schedule"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

// Book validates and commits a visitor booking. The overlap check and
// the retirement of consumed slots happen in one transaction, with the
// staff member's same-day appointments row-locked, so two visitors
// racing for overlapping windows cannot both succeed.
func (s *Service) Book(ctx context.Context, req *api.BookingRequest) (*api.AppointmentResponse, string, error) {
	const op = "service.Book"

	if err := validatePhone(req.VisitorPhone); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if !s.rules.DurationAllowed(req.Duration) {
		return nil, "", fmt.Errorf("%s: %w", op, &response.FieldError{
			Field:   "duration",
			Message: fmt.Sprintf("duration must be one of %v minutes", s.rules.AllowedDurations),
		})
	}

	staff, err := s.store.GetStaffMember(ctx, req.StaffID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if !staff.Allowed(req.StageID) {
		return nil, "", fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	courseID, err := s.resolveCourse(ctx, req.StageID, req.CourseID)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	when, day, window, err := s.parseBookingTime(req.Date, req.Duration)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	lockKey := fmt.Sprintf("staff:%s:%s", req.StaffID, day)
	locked, err := s.locker.Lock(ctx, lockKey, 10*time.Second)
	if err != nil {
		return nil, "", fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, "", fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	appt := &models.Appointment{
		StageID:         req.StageID,
		CourseID:        courseID,
		StaffID:         req.StaffID,
		VisitorName:     req.VisitorName,
		VisitorEmail:    req.VisitorEmail,
		VisitorPhone:    req.VisitorPhone,
		Date:            when,
		DurationMinutes: req.Duration,
		Status:          models.AppointmentPending,
		Comments:        req.Comments,
		CreatedAt:       s.clock.Now(),
		CancelToken:     uuid.NewString(),
		StaffName:       staff.Name,
	}

	err = s.withRetry(ctx, op, func() error {
		return s.commitBooking(ctx, appt, day, window, "")
	})
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	warning := s.notifyAsync(ctx, appt, staff, notify.EventConfirmation)

	return s.appointmentResponse(appt), warning, nil
}

// commitBooking runs the serialized section: lock the staff's same-day
// appointment rows, test every one against the requested window, then
// insert (or update) the appointment and retire overlapping slots.
// excludeID skips the appointment being rescheduled.
func (s *Service) commitBooking(ctx context.Context, appt *models.Appointment, day schedule.Date, window schedule.Interval, excludeID string) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	existing, err := s.store.ListAppointmentsForUpdate(ctx, tx, appt.StaffID, day)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}

	for _, other := range existing {
		if other.ID == excludeID || other.Status == models.AppointmentCancelled {
			continue
		}
		w := other.Window(s.clock.Location())
		if schedule.Overlaps(window, w) {
			return &response.OverlapError{VisitorName: other.VisitorName, Date: day, Window: w}
		}
	}

	if excludeID == "" {
		id, err := s.store.CreateAppointment(ctx, tx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		appt.ID = id
	} else {
		if err := s.store.UpdateAppointment(ctx, tx, appt); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
	}

	if _, err := s.store.DeleteOverlappingSlots(ctx, tx, appt.StaffID, day, window); err != nil {
		return fmt.Errorf("retire slots: %w", err)
	}

	return tx.Commit()
}

// UpdateAppointment applies a partial update. Date or duration changes
// re-run the overlap check excluding the appointment itself and retire
// slots for the new window. Slots consumed by the old window are not
// restored.
func (s *Service) UpdateAppointment(ctx context.Context, actor models.Actor, id string, req *api.AppointmentUpdateRequest) (*api.AppointmentResponse, string, error) {
	const op = "service.UpdateAppointment"

	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	if !actor.CanActOn(appt.StaffID) {
		return nil, "", fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if req.Status != nil {
		next := models.AppointmentStatus(*req.Status)
		if !next.Valid() {
			return nil, "", fmt.Errorf("%s: %w", op, &response.FieldError{Field: "status", Message: "unknown status"})
		}
		if next != appt.Status && !appt.Status.CanTransitionTo(next) {
			return nil, "", fmt.Errorf("%s: %w", op, &response.FieldError{
				Field:   "status",
				Message: fmt.Sprintf("cannot change a %s appointment to %s", appt.Status, next),
			})
		}
		appt.Status = next
	}
	if req.Notes != nil {
		appt.Notes = *req.Notes
	}
	if req.FollowUpDate != nil {
		if *req.FollowUpDate == "" {
			appt.FollowUpDate = nil
		} else {
			d, err := schedule.ParseDate(*req.FollowUpDate)
			if err != nil {
				return nil, "", fmt.Errorf("%s: %w", op, &response.FieldError{Field: "follow_up_date", Message: "invalid date, expected YYYY-MM-DD"})
			}
			appt.FollowUpDate = &d
		}
	}

	rescheduled := req.Date != nil || req.Duration != nil

	if req.Duration != nil {
		if !s.rules.DurationAllowed(*req.Duration) {
			return nil, "", fmt.Errorf("%s: %w", op, &response.FieldError{
				Field:   "duration",
				Message: fmt.Sprintf("duration must be one of %v minutes", s.rules.AllowedDurations),
			})
		}
		appt.DurationMinutes = *req.Duration
	}

	if rescheduled {
		dateStr := appt.Date.In(s.clock.Location()).Format(time.RFC3339)
		if req.Date != nil {
			dateStr = *req.Date
		}
		when, day, window, err := s.parseBookingTime(dateStr, appt.DurationMinutes)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
		appt.Date = when

		lockKey := fmt.Sprintf("staff:%s:%s", appt.StaffID, day)
		locked, err := s.locker.Lock(ctx, lockKey, 10*time.Second)
		if err != nil {
			return nil, "", fmt.Errorf("%s: lock error: %w", op, err)
		}
		if !locked {
			return nil, "", fmt.Errorf("%s: %w", op, response.ErrLocked)
		}
		defer func() {
			_ = s.locker.Unlock(ctx, lockKey)
		}()

		err = s.withRetry(ctx, op, func() error {
			return s.commitBooking(ctx, appt, day, window, appt.ID)
		})
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
	} else {
		err = s.withRetry(ctx, op, func() error {
			tx, err := s.store.BeginTx(ctx)
			if err != nil {
				return fmt.Errorf("begin tx: %w", err)
			}
			defer func() {
				_ = tx.Rollback()
			}()
			if err := s.store.UpdateAppointment(ctx, tx, appt); err != nil {
				return err
			}
			return tx.Commit()
		})
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
	}

	var warning string
	staff, err := s.store.GetStaffMember(ctx, appt.StaffID)
	if err == nil {
		kind := notify.EventModification
		if appt.Status == models.AppointmentCancelled {
			kind = notify.EventCancellation
		}
		warning = s.notifyAsync(ctx, appt, staff, kind)
	}

	return s.appointmentResponse(appt), warning, nil
}

// CancelByToken is the visitor self-service cancellation reached from
// the link in the confirmation email. Slots the booking consumed stay
// retired.
func (s *Service) CancelByToken(ctx context.Context, token string) (*api.AppointmentResponse, string, error) {
	const op = "service.CancelByToken"

	appt, err := s.store.GetAppointmentByToken(ctx, token)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	if !appt.Status.CanTransitionTo(models.AppointmentCancelled) {
		return nil, "", fmt.Errorf("%s: %w", op, response.ErrConflict)
	}

	if err := s.store.UpdateAppointmentStatus(ctx, appt.ID, models.AppointmentCancelled); err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	appt.Status = models.AppointmentCancelled

	var warning string
	if staff, err := s.store.GetStaffMember(ctx, appt.StaffID); err == nil {
		warning = s.notifyAsync(ctx, appt, staff, notify.EventCancellation)
	}

	return s.appointmentResponse(appt), warning, nil
}

// GetAppointment returns one appointment, owner-scoped.
func (s *Service) GetAppointment(ctx context.Context, actor models.Actor, id string) (*api.AppointmentResponse, error) {
	const op = "service.GetAppointment"

	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !actor.CanActOn(appt.StaffID) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	return s.appointmentResponse(appt), nil
}

func (s *Service) ListAppointments(ctx context.Context, actor models.Actor, filters *api.AppointmentFilters) ([]*api.AppointmentResponse, error) {
	const op = "service.ListAppointments"

	if filters.StaffID != "" && !actor.CanActOn(filters.StaffID) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	appts, err := s.store.ListAppointments(ctx, actor.Scope(filters.StaffID), filters)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.AppointmentResponse, 0, len(appts))
	for _, appt := range appts {
		result = append(result, s.appointmentResponse(appt))
	}

	return result, nil
}

// DeleteAppointment removes an appointment outright. Previously
// retired slots are not resurrected.
func (s *Service) DeleteAppointment(ctx context.Context, actor models.Actor, id string) error {
	const op = "service.DeleteAppointment"

	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if !actor.CanActOn(appt.StaffID) {
		return fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if err := s.store.DeleteAppointment(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SendReminders notifies visitors of tomorrow's pending appointments
// and flips the reminder flag. Staff get a copy only when they opted
// in. Invoked by the daily cron job.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	const op = "service.SendReminders"

	tomorrow := s.today().AddDays(1)

	appts, err := s.store.ListReminderAppointments(ctx, tomorrow)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	sent := 0
	for _, appt := range appts {
		staff, err := s.store.GetStaffMember(ctx, appt.StaffID)
		if err != nil {
			s.log.Warn("Skipping reminder, staff lookup failed", slog.String("appointment_id", appt.ID), sl.Err(err))
			continue
		}

		if warn := s.notifyAsync(ctx, appt, staff, notify.EventReminder); warn != "" {
			continue
		}

		if err := s.store.MarkReminderSent(ctx, appt.ID); err != nil {
			s.log.Warn("Failed to mark reminder sent", slog.String("appointment_id", appt.ID), sl.Err(err))
			continue
		}
		sent++
	}

	return sent, nil
}

func validatePhone(phone string) error {
	if len(phone) != 9 {
		return &response.FieldError{Field: "visitor_phone", Message: "phone must contain exactly 9 digits"}
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return &response.FieldError{Field: "visitor_phone", Message: "phone must contain exactly 9 digits"}
		}
	}
	return nil
}

// resolveCourse enforces the course rules: a supplied course must
// belong to the stage, and stages that define courses require one.
func (s *Service) resolveCourse(ctx context.Context, stageID, courseID string) (*string, error) {
	courses, err := s.store.ListCourses(ctx, stageID)
	if err != nil {
		return nil, err
	}

	if courseID == "" {
		if len(courses) > 0 {
			return nil, &response.FieldError{Field: "course_id", Message: "a course selection is required for this stage"}
		}
		return nil, nil
	}

	for _, c := range courses {
		if c.ID == courseID {
			id := courseID
			return &id, nil
		}
	}

	return nil, &response.FieldError{Field: "course_id", Message: "course does not belong to the selected stage"}
}

// parseBookingTime interprets the requested instant in the
// institutional timezone and validates it against operating hours and
// the past.
func (s *Service) parseBookingTime(dateStr string, durationMinutes int) (time.Time, schedule.Date, schedule.Interval, error) {
	loc := s.clock.Location()

	when, err := time.ParseInLocation(time.RFC3339, dateStr, loc)
	if err != nil {
		when, err = time.ParseInLocation("2006-01-02T15:04", dateStr, loc)
		if err != nil {
			return time.Time{}, schedule.Date{}, schedule.Interval{}, &response.FieldError{
				Field: "date", Message: "invalid date, expected ISO 8601",
			}
		}
	}
	when = when.In(loc)

	if when.Before(s.clock.Now().In(loc)) {
		return time.Time{}, schedule.Date{}, schedule.Interval{}, &response.FieldError{
			Field: "date", Message: "cannot book in the past",
		}
	}

	day := schedule.DateOf(when)
	start := schedule.TimeOfDay(when.Hour()*60 + when.Minute())
	window := schedule.NewInterval(start, durationMinutes)

	hours := s.rules.Hours()
	if window.Start < hours.Start || window.End > hours.End {
		return time.Time{}, schedule.Date{}, schedule.Interval{}, &response.FieldError{
			Field:   "date",
			Message: fmt.Sprintf("appointments must be between %s and %s", hours.Start, hours.End),
		}
	}

	return when, day, window, nil
}
