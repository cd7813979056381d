package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visits-service/api"
	"visits-service/internal/models"
	"visits-service/internal/schedule"
	"visits-service/pkg/response"
)

// CreateAvailability validates an availability template and expands it
// into concrete slots, one set per stage the staff member serves. A
// weekly template is all-or-nothing: a conflict on any occurrence
// rejects the whole template with the conflicting date in the error.
func (s *Service) CreateAvailability(ctx context.Context, actor models.Actor, req *api.AvailabilityRequest) ([]*api.SlotGroup, error) {
	const op = "service.CreateAvailability"

	staffID := actor.StaffID
	if req.StaffID != "" && req.StaffID != actor.StaffID {
		if !actor.IsSupervisor() {
			return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
		}
		staffID = req.StaffID
	}

	staff, err := s.store.GetStaffMember(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(staff.AllowedStageIDs) == 0 {
		return nil, fmt.Errorf("%s: %w", op, &response.FieldError{
			Field: "staff_id", Message: "staff member has no allowed stages",
		})
	}

	tpl, err := s.parseTemplate(staffID, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dates, err := s.templateDates(tpl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Contend on the same per-staff-day keys Book takes, one per
	// expansion date, so the pre-expansion overlap check stays valid
	// until commit. Dates are in ascending order, so concurrent
	// expansions acquire in the same order.
	var lockKeys []string
	defer func() {
		for _, key := range lockKeys {
			_ = s.locker.Unlock(ctx, key)
		}
	}()
	for _, d := range dates {
		key := fmt.Sprintf("staff:%s:%s", staffID, d)
		locked, err := s.locker.Lock(ctx, key, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("%s: lock error: %w", op, err)
		}
		if !locked {
			return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
		}
		lockKeys = append(lockKeys, key)
	}

	busyByDate := make(map[schedule.Date][]schedule.Interval, len(dates))
	for _, d := range dates {
		if err := s.checkTemplateDate(ctx, staff, tpl, d, busyByDate); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	stageNames := make(map[string]string, len(staff.AllowedStageIDs))
	for _, stageID := range staff.AllowedStageIDs {
		stage, err := s.store.GetStage(ctx, stageID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		stageNames[stageID] = stage.Name
	}

	var created []*models.AvailabilitySlot

	err = s.withRetry(ctx, op, func() error {
		tx, err := s.store.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		created = created[:0]

		for _, stageID := range staff.AllowedStageIDs {
			for _, d := range dates {
				busy := busyByDate[d]
				windows := schedule.ExpandDay(d, tpl.StartTime, tpl.EndTime, tpl.DurationMinutes, func(_ schedule.Date, w schedule.Interval) bool {
					for _, b := range busy {
						if schedule.Overlaps(w, b) {
							return true
						}
					}
					return false
				})

				for _, w := range windows {
					slot := &models.AvailabilitySlot{
						StaffID:         staffID,
						StageID:         stageID,
						Date:            d,
						StartTime:       w.Start,
						EndTime:         w.End,
						DurationMinutes: tpl.DurationMinutes,
						IsActive:        true,
						Comments:        tpl.Comments,
						StageName:       stageNames[stageID],
					}
					id, err := s.store.CreateSlot(ctx, tx, slot)
					if err != nil {
						return fmt.Errorf("create slot: %w", err)
					}
					slot.ID = id
					created = append(created, slot)
				}
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return groupSlots(created), nil
}

func (s *Service) parseTemplate(staffID string, req *api.AvailabilityRequest) (*models.AvailabilityTemplate, error) {
	start, err := schedule.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, &response.FieldError{Field: "start_time", Message: "invalid time, expected HH:MM"}
	}
	end, err := schedule.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, &response.FieldError{Field: "end_time", Message: "invalid time, expected HH:MM"}
	}
	if end <= start {
		return nil, &response.FieldError{Field: "end_time", Message: "end time must be after start time"}
	}
	hours := s.rules.Hours()
	if start < hours.Start || end > hours.End {
		return nil, &response.FieldError{
			Field:   "start_time",
			Message: fmt.Sprintf("times must be between %s and %s", hours.Start, hours.End),
		}
	}
	if req.Duration <= 0 {
		return nil, &response.FieldError{Field: "duration", Message: "duration must be positive"}
	}

	tpl := &models.AvailabilityTemplate{
		StaffID:         staffID,
		Repeat:          models.RepeatType(req.RepeatType),
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: req.Duration,
		Comments:        req.Comments,
	}

	now := s.clock.Now().In(s.clock.Location())

	switch tpl.Repeat {
	case models.RepeatOnce:
		if req.Date == "" {
			return nil, &response.FieldError{Field: "date", Message: "date is required for one-off availability"}
		}
		d, err := schedule.ParseDate(req.Date)
		if err != nil {
			return nil, &response.FieldError{Field: "date", Message: "invalid date, expected YYYY-MM-DD"}
		}
		if d.Before(schedule.DateOf(now)) {
			return nil, &response.FieldError{Field: "date", Message: "cannot create availability for past dates"}
		}
		tpl.Date = d
	case models.RepeatWeekly:
		if req.Month < 1 || req.Month > 12 {
			return nil, &response.FieldError{Field: "month", Message: "month is required for weekly availability"}
		}
		if req.Weekday < 0 || req.Weekday > 6 {
			return nil, &response.FieldError{Field: "weekday", Message: "weekday must be between 0 (Sunday) and 6 (Saturday)"}
		}
		if time.Month(req.Month) < now.Month() {
			return nil, &response.FieldError{Field: "month", Message: "cannot create availability for past months"}
		}
		tpl.Month = time.Month(req.Month)
		tpl.Weekday = time.Weekday(req.Weekday)
	default:
		return nil, &response.FieldError{Field: "repeat_type", Message: "repeat_type must be once or weekly"}
	}

	return tpl, nil
}

// templateDates resolves the concrete dates a template expands on.
// Weekly templates walk the month-calendar grid of the current year.
func (s *Service) templateDates(tpl *models.AvailabilityTemplate) ([]schedule.Date, error) {
	if tpl.Repeat == models.RepeatOnce {
		return []schedule.Date{tpl.Date}, nil
	}

	dates := schedule.MonthDates(s.clock.Now().In(s.clock.Location()).Year(), tpl.Month, tpl.Weekday, s.today())
	if len(dates) == 0 {
		return nil, &response.FieldError{Field: "month", Message: "no remaining occurrences of that weekday in the month"}
	}
	return dates, nil
}

// checkTemplateDate rejects the template when its window collides with
// the staff member's existing active slots or appointments on d, and
// records the day's appointment windows for the per-slot skip check.
func (s *Service) checkTemplateDate(ctx context.Context, staff *models.StaffMember, tpl *models.AvailabilityTemplate, d schedule.Date, busyByDate map[schedule.Date][]schedule.Interval) error {
	window := tpl.Window()

	slots, err := s.store.ListSlotsOn(ctx, staff.ID, d)
	if err != nil {
		return err
	}
	for _, slot := range slots {
		if schedule.Overlaps(window, slot.Window()) {
			return &response.FieldError{
				Field:   "date",
				Message: fmt.Sprintf("availability already exists on %s between %s", d, slot.Window()),
			}
		}
	}

	appts, err := s.store.ListAppointmentsOn(ctx, staff.ID, d)
	if err != nil {
		return err
	}
	for _, appt := range appts {
		if appt.Status == models.AppointmentCancelled {
			continue
		}
		w := appt.Window(s.clock.Location())
		busyByDate[d] = append(busyByDate[d], w)
		if schedule.Overlaps(window, w) {
			return &response.OverlapError{VisitorName: appt.VisitorName, Date: d, Window: w}
		}
	}

	return nil
}

// ListAvailability returns the actor's active future slots grouped by
// window. Supervisors may pass a staff id to scope the list, or none
// for the global view.
func (s *Service) ListAvailability(ctx context.Context, actor models.Actor, requestedStaff string) ([]*api.SlotGroup, error) {
	const op = "service.ListAvailability"

	if requestedStaff != "" && !actor.CanActOn(requestedStaff) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	slots, err := s.store.ListActiveSlots(ctx, actor.Scope(requestedStaff), s.today())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hours := s.rules.Hours()
	filtered := make([]*models.AvailabilitySlot, 0, len(slots))
	for _, slot := range slots {
		if slot.StartTime >= hours.Start && slot.EndTime <= hours.End {
			filtered = append(filtered, slot)
		}
	}

	return groupSlots(filtered), nil
}

// WithdrawSlot removes a whole slot group, refusing while any
// appointment intersects its window.
func (s *Service) WithdrawSlot(ctx context.Context, actor models.Actor, slotID string) (int64, error) {
	const op = "service.WithdrawSlot"

	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return 0, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if !actor.CanActOn(slot.StaffID) {
		return 0, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	appts, err := s.store.ListAppointmentsOn(ctx, slot.StaffID, slot.Date)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	for _, appt := range appts {
		if appt.Status == models.AppointmentCancelled {
			continue
		}
		if schedule.Overlaps(slot.Window(), appt.Window(s.clock.Location())) {
			return 0, fmt.Errorf("%s: %w", op, response.ErrConflict)
		}
	}

	count, err := s.store.DeleteSlotGroup(ctx, slot.StaffID, slot.Date, slot.Window())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// StageAvailability is the public view: open slots for a stage on a
// date, or a capacity summary over the booking horizon when no date is
// given.
func (s *Service) StageAvailability(ctx context.Context, stageID, dateStr string) ([]*api.SlotResponse, []*api.DayCapacity, error) {
	const op = "service.StageAvailability"

	if _, err := s.store.GetStage(ctx, stageID); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if dateStr != "" {
		date, err := schedule.ParseDate(dateStr)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, &response.FieldError{Field: "date", Message: "invalid date, expected YYYY-MM-DD"})
		}

		slots, err := s.store.ListStageSlots(ctx, stageID, date)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		hours := s.rules.Hours()
		result := make([]*api.SlotResponse, 0, len(slots))
		for _, slot := range slots {
			if slot.StartTime >= hours.Start && slot.EndTime <= hours.End {
				result = append(result, slotResponse(slot))
			}
		}
		return result, nil, nil
	}

	from := s.today()
	to := from.AddDays(s.rules.BookingHorizon)

	dates, err := s.store.ListStageDates(ctx, stageID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	days := make([]*api.DayCapacity, 0, len(dates))
	for _, d := range dates {
		days = append(days, &api.DayCapacity{Date: d.String(), Available: true})
	}
	return nil, days, nil
}

// CleanupExpiredSlots deletes strictly-past slots that have no
// appointment on their date. Safe to run concurrently with bookings.
func (s *Service) CleanupExpiredSlots(ctx context.Context) (int64, error) {
	const op = "service.CleanupExpiredSlots"

	count, err := s.store.DeleteExpiredSlots(ctx, s.today())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}
