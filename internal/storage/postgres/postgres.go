package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"visits-service/api"
	"visits-service/internal/models"
	"visits-service/internal/schedule"
	"visits-service/internal/service"
	"visits-service/pkg/response"
)

//go:embed schema.sql
var schema string

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Init creates the schema if it does not exist yet.
func (s *Storage) Init(ctx context.Context) error {
	const op = "storage.postgres.Init"

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Storage) BeginTx(ctx context.Context) (service.Tx, error) {
	const op = "storage.postgres.BeginTx"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return tx, nil
}

func sqlTx(tx service.Tx) *sql.Tx {
	return tx.(*sql.Tx)
}

// #### stages / courses / staff ####

func (s *Storage) ListStages(ctx context.Context) ([]*models.SchoolStage, error) {
	const op = "storage.postgres.ListStages"

	rows, err := s.db.QueryContext(ctx,
		`SELECT stage_id, name, description FROM school_stages ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var stages []*models.SchoolStage
	for rows.Next() {
		var st models.SchoolStage
		if err := rows.Scan(&st.ID, &st.Name, &st.Description); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		stages = append(stages, &st)
	}
	return stages, rows.Err()
}

func (s *Storage) GetStage(ctx context.Context, id string) (*models.SchoolStage, error) {
	const op = "storage.postgres.GetStage"

	var st models.SchoolStage
	err := s.db.QueryRowContext(ctx,
		`SELECT stage_id, name, description FROM school_stages WHERE stage_id = $1`, id).
		Scan(&st.ID, &st.Name, &st.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &st, nil
}

func (s *Storage) ListCourses(ctx context.Context, stageID string) ([]*models.Course, error) {
	const op = "storage.postgres.ListCourses"

	rows, err := s.db.QueryContext(ctx,
		`SELECT course_id, stage_id, name, display_order
		 FROM courses WHERE stage_id = $1 ORDER BY display_order, name`, stageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.StageID, &c.Name, &c.DisplayOrder); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		courses = append(courses, &c)
	}
	return courses, rows.Err()
}

func (s *Storage) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	const op = "storage.postgres.GetCourse"

	var c models.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT course_id, stage_id, name, display_order FROM courses WHERE course_id = $1`, id).
		Scan(&c.ID, &c.StageID, &c.Name, &c.DisplayOrder)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}

func (s *Storage) ListStaffByStage(ctx context.Context, stageID string) ([]*models.StaffMember, error) {
	const op = "storage.postgres.ListStaffByStage"

	rows, err := s.db.QueryContext(ctx,
		`SELECT staff_id, name, email, allowed_stage_ids, notify_new_appointment, notify_reminder
		 FROM staff_members WHERE $1 = ANY(allowed_stage_ids) ORDER BY name`, stageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var members []*models.StaffMember
	for rows.Next() {
		m, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Storage) GetStaffMember(ctx context.Context, id string) (*models.StaffMember, error) {
	const op = "storage.postgres.GetStaffMember"

	row := s.db.QueryRowContext(ctx,
		`SELECT staff_id, name, email, allowed_stage_ids, notify_new_appointment, notify_reminder
		 FROM staff_members WHERE staff_id = $1`, id)

	m, err := scanStaff(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return m, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStaff(row scanner) (*models.StaffMember, error) {
	var m models.StaffMember
	err := row.Scan(&m.ID, &m.Name, &m.Email, pq.Array(&m.AllowedStageIDs),
		&m.NotifyNewAppointment, &m.NotifyReminder)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// #### slots ####

const slotColumns = `s.slot_id, s.staff_id, s.stage_id, s.date, s.start_time, s.end_time,
	s.duration_minutes, s.is_active, s.comments, st.name, m.name`

const slotJoins = `FROM availability_slots s
	JOIN school_stages st ON st.stage_id = s.stage_id
	JOIN staff_members m ON m.staff_id = s.staff_id`

func scanSlot(row scanner) (*models.AvailabilitySlot, error) {
	var (
		slot       models.AvailabilitySlot
		date       time.Time
		start, end int
	)
	err := row.Scan(&slot.ID, &slot.StaffID, &slot.StageID, &date, &start, &end,
		&slot.DurationMinutes, &slot.IsActive, &slot.Comments, &slot.StageName, &slot.StaffName)
	if err != nil {
		return nil, err
	}
	slot.Date = schedule.DateOf(date)
	slot.StartTime = schedule.TimeOfDay(start)
	slot.EndTime = schedule.TimeOfDay(end)
	return &slot, nil
}

func (s *Storage) GetSlot(ctx context.Context, id string) (*models.AvailabilitySlot, error) {
	const op = "storage.postgres.GetSlot"

	row := s.db.QueryRowContext(ctx,
		`SELECT `+slotColumns+` `+slotJoins+` WHERE s.slot_id = $1`, id)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return slot, nil
}

func (s *Storage) CreateSlot(ctx context.Context, tx service.Tx, slot *models.AvailabilitySlot) (string, error) {
	const op = "storage.postgres.CreateSlot"

	var id string
	err := sqlTx(tx).QueryRowContext(ctx,
		`INSERT INTO availability_slots
			(staff_id, stage_id, date, start_time, end_time, duration_minutes, is_active, comments)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		 RETURNING slot_id`,
		slot.StaffID, slot.StageID, slot.Date.String(),
		int(slot.StartTime), int(slot.EndTime), slot.DurationMinutes, slot.Comments).
		Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if pqErr.Code == "23505" {
				return "", fmt.Errorf("%s: %w", op, response.ErrConflict)
			}
			if pqErr.Code == "23503" {
				return "", fmt.Errorf("%s: %w", op, response.ErrBadRequest)
			}
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func (s *Storage) ListActiveSlots(ctx context.Context, staffID *string, from schedule.Date) ([]*models.AvailabilitySlot, error) {
	const op = "storage.postgres.ListActiveSlots"

	query := `SELECT ` + slotColumns + ` ` + slotJoins + `
		WHERE s.is_active AND s.date >= $1`
	args := []any{from.String()}
	if staffID != nil {
		query += ` AND s.staff_id = $2`
		args = append(args, *staffID)
	}
	query += ` ORDER BY s.date, s.start_time`

	return s.querySlots(ctx, op, query, args...)
}

func (s *Storage) ListSlotsOn(ctx context.Context, staffID string, date schedule.Date) ([]*models.AvailabilitySlot, error) {
	const op = "storage.postgres.ListSlotsOn"

	return s.querySlots(ctx, op,
		`SELECT `+slotColumns+` `+slotJoins+`
		 WHERE s.staff_id = $1 AND s.date = $2 AND s.is_active
		 ORDER BY s.start_time`,
		staffID, date.String())
}

func (s *Storage) ListStageSlots(ctx context.Context, stageID string, date schedule.Date) ([]*models.AvailabilitySlot, error) {
	const op = "storage.postgres.ListStageSlots"

	return s.querySlots(ctx, op,
		`SELECT `+slotColumns+` `+slotJoins+`
		 WHERE s.stage_id = $1 AND s.date = $2 AND s.is_active
		 ORDER BY s.start_time, m.name`,
		stageID, date.String())
}

func (s *Storage) querySlots(ctx context.Context, op, query string, args ...any) ([]*models.AvailabilitySlot, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var slots []*models.AvailabilitySlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (s *Storage) ListStageDates(ctx context.Context, stageID string, from, to schedule.Date) ([]schedule.Date, error) {
	const op = "storage.postgres.ListStageDates"

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT date FROM availability_slots
		 WHERE stage_id = $1 AND is_active AND date >= $2 AND date <= $3
		 ORDER BY date`,
		stageID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var dates []schedule.Date
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		dates = append(dates, schedule.DateOf(d))
	}
	return dates, rows.Err()
}

// DeleteSlotGroup removes every slot sharing the exact
// (staff, date, start, end) tuple — the per-stage copies one template
// expansion created for that window.
func (s *Storage) DeleteSlotGroup(ctx context.Context, staffID string, date schedule.Date, window schedule.Interval) (int64, error) {
	const op = "storage.postgres.DeleteSlotGroup"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM availability_slots
		 WHERE staff_id = $1 AND date = $2 AND start_time = $3 AND end_time = $4`,
		staffID, date.String(), int(window.Start), int(window.End))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// DeleteOverlappingSlots retires every slot whose window intersects the
// booked one. Touching windows survive.
func (s *Storage) DeleteOverlappingSlots(ctx context.Context, tx service.Tx, staffID string, date schedule.Date, window schedule.Interval) (int64, error) {
	const op = "storage.postgres.DeleteOverlappingSlots"

	res, err := sqlTx(tx).ExecContext(ctx,
		`DELETE FROM availability_slots
		 WHERE staff_id = $1 AND date = $2 AND start_time < $3 AND end_time > $4`,
		staffID, date.String(), int(window.End), int(window.Start))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *Storage) DeleteExpiredSlots(ctx context.Context, before schedule.Date) (int64, error) {
	const op = "storage.postgres.DeleteExpiredSlots"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM availability_slots s
		 WHERE s.date < $1
		   AND NOT EXISTS (
			SELECT 1 FROM appointments a
			WHERE a.staff_id = s.staff_id AND a.day = s.date
		 )`,
		before.String())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

// #### appointments ####

const apptColumns = `a.appointment_id, a.stage_id, a.course_id, a.staff_id,
	a.visitor_name, a.visitor_email, a.visitor_phone, a.date, a.duration_minutes,
	a.status, a.comments, a.notes, a.follow_up_date, a.created_at, a.reminder_sent,
	a.cancel_token, st.name, m.name`

const apptJoins = `FROM appointments a
	JOIN school_stages st ON st.stage_id = a.stage_id
	JOIN staff_members m ON m.staff_id = a.staff_id`

func scanAppointment(row scanner) (*models.Appointment, error) {
	var (
		a        models.Appointment
		courseID sql.NullString
		followUp sql.NullTime
	)
	err := row.Scan(&a.ID, &a.StageID, &courseID, &a.StaffID,
		&a.VisitorName, &a.VisitorEmail, &a.VisitorPhone, &a.Date, &a.DurationMinutes,
		&a.Status, &a.Comments, &a.Notes, &followUp, &a.CreatedAt, &a.ReminderSent,
		&a.CancelToken, &a.StageName, &a.StaffName)
	if err != nil {
		return nil, err
	}
	if courseID.Valid {
		a.CourseID = &courseID.String
	}
	if followUp.Valid {
		d := schedule.DateOf(followUp.Time)
		a.FollowUpDate = &d
	}
	return &a, nil
}

func (s *Storage) CreateAppointment(ctx context.Context, tx service.Tx, appt *models.Appointment) (string, error) {
	const op = "storage.postgres.CreateAppointment"

	var id string
	err := sqlTx(tx).QueryRowContext(ctx,
		`INSERT INTO appointments
			(stage_id, course_id, staff_id, visitor_name, visitor_email, visitor_phone,
			 date, day, duration_minutes, status, comments, cancel_token)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING appointment_id`,
		appt.StageID, nullable(appt.CourseID), appt.StaffID,
		appt.VisitorName, appt.VisitorEmail, appt.VisitorPhone,
		appt.Date, appt.Date.Format("2006-01-02"), appt.DurationMinutes,
		string(appt.Status), appt.Comments, appt.CancelToken).
		Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			if pqErr.Code == "23505" {
				return "", fmt.Errorf("%s: %w", op, response.ErrConflict)
			}
			if pqErr.Code == "23503" {
				return "", fmt.Errorf("%s: %w", op, response.ErrNotFound)
			}
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (s *Storage) GetAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	const op = "storage.postgres.GetAppointment"

	row := s.db.QueryRowContext(ctx,
		`SELECT `+apptColumns+` `+apptJoins+` WHERE a.appointment_id = $1`, id)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return appt, nil
}

func (s *Storage) GetAppointmentByToken(ctx context.Context, token string) (*models.Appointment, error) {
	const op = "storage.postgres.GetAppointmentByToken"

	row := s.db.QueryRowContext(ctx,
		`SELECT `+apptColumns+` `+apptJoins+` WHERE a.cancel_token = $1`, token)

	appt, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return appt, nil
}

func (s *Storage) ListAppointments(ctx context.Context, staffID *string, filters *api.AppointmentFilters) ([]*models.Appointment, error) {
	const op = "storage.postgres.ListAppointments"

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if staffID != nil {
		add("a.staff_id = $%d", *staffID)
	}
	if filters != nil {
		if filters.StageID != "" {
			add("a.stage_id = $%d", filters.StageID)
		}
		if filters.Date != "" {
			add("a.day = $%d", filters.Date)
		}
		if filters.Status != "" {
			add("a.status = $%d", filters.Status)
		}
	}

	query := `SELECT ` + apptColumns + ` ` + apptJoins
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY a.date`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func (s *Storage) ListAppointmentsOn(ctx context.Context, staffID string, date schedule.Date) ([]*models.Appointment, error) {
	const op = "storage.postgres.ListAppointmentsOn"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apptColumns+` `+apptJoins+`
		 WHERE a.staff_id = $1 AND a.day = $2
		 ORDER BY a.date`,
		staffID, date.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

// ListAppointmentsForUpdate row-locks the staff member's appointments
// for the day so concurrent bookings serialize on them.
func (s *Storage) ListAppointmentsForUpdate(ctx context.Context, tx service.Tx, staffID string, date schedule.Date) ([]*models.Appointment, error) {
	const op = "storage.postgres.ListAppointmentsForUpdate"

	rows, err := sqlTx(tx).QueryContext(ctx,
		`SELECT appointment_id, stage_id, course_id, staff_id,
			visitor_name, visitor_email, visitor_phone, date, duration_minutes,
			status, comments, notes, follow_up_date, created_at, reminder_sent, cancel_token
		 FROM appointments
		 WHERE staff_id = $1 AND day = $2
		 ORDER BY date
		 FOR UPDATE`,
		staffID, date.String())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		var (
			a        models.Appointment
			courseID sql.NullString
			followUp sql.NullTime
		)
		err := rows.Scan(&a.ID, &a.StageID, &courseID, &a.StaffID,
			&a.VisitorName, &a.VisitorEmail, &a.VisitorPhone, &a.Date, &a.DurationMinutes,
			&a.Status, &a.Comments, &a.Notes, &followUp, &a.CreatedAt, &a.ReminderSent, &a.CancelToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if courseID.Valid {
			a.CourseID = &courseID.String
		}
		if followUp.Valid {
			d := schedule.DateOf(followUp.Time)
			a.FollowUpDate = &d
		}
		appts = append(appts, &a)
	}
	return appts, rows.Err()
}

func (s *Storage) UpdateAppointment(ctx context.Context, tx service.Tx, appt *models.Appointment) error {
	const op = "storage.postgres.UpdateAppointment"

	var followUp any
	if appt.FollowUpDate != nil {
		followUp = appt.FollowUpDate.String()
	}

	res, err := sqlTx(tx).ExecContext(ctx,
		`UPDATE appointments
		 SET date = $2, day = $3, duration_minutes = $4, status = $5,
			 notes = $6, follow_up_date = $7, reminder_sent = $8
		 WHERE appointment_id = $1`,
		appt.ID, appt.Date, appt.Date.Format("2006-01-02"), appt.DurationMinutes,
		string(appt.Status), appt.Notes, followUp, appt.ReminderSent)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	return nil
}

func (s *Storage) UpdateAppointmentStatus(ctx context.Context, id string, status models.AppointmentStatus) error {
	const op = "storage.postgres.UpdateAppointmentStatus"

	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET status = $2 WHERE appointment_id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	return nil
}

func (s *Storage) DeleteAppointment(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteAppointment"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM appointments WHERE appointment_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	return nil
}

func (s *Storage) ListReminderAppointments(ctx context.Context, date schedule.Date) ([]*models.Appointment, error) {
	const op = "storage.postgres.ListReminderAppointments"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+apptColumns+` `+apptJoins+`
		 WHERE a.day = $1 AND a.status = $2 AND NOT a.reminder_sent
		 ORDER BY a.date`,
		date.String(), string(models.AppointmentPending))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func (s *Storage) MarkReminderSent(ctx context.Context, id string) error {
	const op = "storage.postgres.MarkReminderSent"

	_, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET reminder_sent = TRUE WHERE appointment_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// #### cascades ####

func (s *Storage) DeleteStaffMember(ctx context.Context, tx service.Tx, staffID string) error {
	return execTx(ctx, tx, "storage.postgres.DeleteStaffMember",
		`DELETE FROM staff_members WHERE staff_id = $1`, staffID)
}

func (s *Storage) DeleteStaffAppointments(ctx context.Context, tx service.Tx, staffID string) error {
	return execTx(ctx, tx, "storage.postgres.DeleteStaffAppointments",
		`DELETE FROM appointments WHERE staff_id = $1`, staffID)
}

func (s *Storage) DeleteStaffSlots(ctx context.Context, tx service.Tx, staffID string) error {
	return execTx(ctx, tx, "storage.postgres.DeleteStaffSlots",
		`DELETE FROM availability_slots WHERE staff_id = $1`, staffID)
}

func (s *Storage) DeleteStage(ctx context.Context, tx service.Tx, stageID string) error {
	return execTx(ctx, tx, "storage.postgres.DeleteStage",
		`DELETE FROM school_stages WHERE stage_id = $1`, stageID)
}

func (s *Storage) DeleteStageAppointments(ctx context.Context, tx service.Tx, stageID string) error {
	return execTx(ctx, tx, "storage.postgres.DeleteStageAppointments",
		`DELETE FROM appointments WHERE stage_id = $1`, stageID)
}

func (s *Storage) DeleteStageSlots(ctx context.Context, tx service.Tx, stageID string) error {
	return execTx(ctx, tx, "storage.postgres.DeleteStageSlots",
		`DELETE FROM availability_slots WHERE stage_id = $1`, stageID)
}

func (s *Storage) DeleteStageCourses(ctx context.Context, tx service.Tx, stageID string) error {
	return execTx(ctx, tx, "storage.postgres.DeleteStageCourses",
		`DELETE FROM courses WHERE stage_id = $1`, stageID)
}

func execTx(ctx context.Context, tx service.Tx, op, query string, args ...any) error {
	if _, err := sqlTx(tx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
