package models

import (
	"time"

	"visits-service/internal/schedule"
)

// SchoolStage is immutable reference data; courses hang off it.
type SchoolStage struct {
	ID          string `db:"stage_id"`
	Name        string `db:"name"`
	Description string `db:"description"`
}

type Course struct {
	ID           string `db:"course_id"`
	StageID      string `db:"stage_id"`
	Name         string `db:"name"`
	DisplayOrder int    `db:"display_order"`
}

type StaffMember struct {
	ID                   string   `db:"staff_id"`
	Name                 string   `db:"name"`
	Email                string   `db:"email"`
	AllowedStageIDs      []string `db:"allowed_stage_ids"`
	NotifyNewAppointment bool     `db:"notify_new_appointment"`
	NotifyReminder       bool     `db:"notify_reminder"`
}

// Allowed reports whether the staff member may serve the stage.
func (m *StaffMember) Allowed(stageID string) bool {
	for _, id := range m.AllowedStageIDs {
		if id == stageID {
			return true
		}
	}
	return false
}

type RepeatType string

const (
	RepeatOnce   RepeatType = "once"
	RepeatWeekly RepeatType = "weekly"
)

// AvailabilityTemplate is a staff-declared availability rule. It is
// never persisted as such: saving one expands it into concrete slots,
// one set per stage the owner is allowed to serve.
type AvailabilityTemplate struct {
	StaffID         string
	Repeat          RepeatType
	Date            schedule.Date // once mode
	Month           time.Month    // weekly mode
	Weekday         time.Weekday  // weekly mode
	StartTime       schedule.TimeOfDay
	EndTime         schedule.TimeOfDay
	DurationMinutes int
	Comments        string
}

func (t *AvailabilityTemplate) Window() schedule.Interval {
	return schedule.Interval{Start: t.StartTime, End: t.EndTime}
}

// AvailabilitySlot is one concrete bookable window generated from a
// template. StageName and StaffName are join-filled by list queries.
type AvailabilitySlot struct {
	ID              string             `db:"slot_id"`
	StaffID         string             `db:"staff_id"`
	StageID         string             `db:"stage_id"`
	Date            schedule.Date      `db:"date"`
	StartTime       schedule.TimeOfDay `db:"start_time"`
	EndTime         schedule.TimeOfDay `db:"end_time"`
	DurationMinutes int                `db:"duration_minutes"`
	IsActive        bool               `db:"is_active"`
	Comments        string             `db:"comments"`

	StageName string `db:"stage_name"`
	StaffName string `db:"staff_name"`
}

func (s *AvailabilitySlot) Window() schedule.Interval {
	return schedule.Interval{Start: s.StartTime, End: s.EndTime}
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// CanTransitionTo encodes the status machine: pending may complete or
// cancel, both of which are terminal.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	if s != AppointmentPending {
		return false
	}
	return next == AppointmentCompleted || next == AppointmentCancelled
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

type Appointment struct {
	ID              string            `db:"appointment_id"`
	StageID         string            `db:"stage_id"`
	CourseID        *string           `db:"course_id"`
	StaffID         string            `db:"staff_id"`
	VisitorName     string            `db:"visitor_name"`
	VisitorEmail    string            `db:"visitor_email"`
	VisitorPhone    string            `db:"visitor_phone"`
	Date            time.Time         `db:"date"` // instant in the institutional timezone
	DurationMinutes int               `db:"duration_minutes"`
	Status          AppointmentStatus `db:"status"`
	Comments        string            `db:"comments"`
	Notes           string            `db:"notes"`
	FollowUpDate    *schedule.Date    `db:"follow_up_date"`
	CreatedAt       time.Time         `db:"created_at"`
	ReminderSent    bool              `db:"reminder_sent"`
	CancelToken     string            `db:"cancel_token"`

	StageName string `db:"stage_name"`
	StaffName string `db:"staff_name"`
}

// Day returns the civil date of the appointment in loc.
func (a *Appointment) Day(loc *time.Location) schedule.Date {
	return schedule.DateOf(a.Date.In(loc))
}

// Window returns the appointment's wall-clock span in loc.
func (a *Appointment) Window(loc *time.Location) schedule.Interval {
	local := a.Date.In(loc)
	start := schedule.TimeOfDay(local.Hour()*60 + local.Minute())
	return schedule.NewInterval(start, a.DurationMinutes)
}

type Role string

const (
	RoleOwner      Role = "owner"
	RoleSupervisor Role = "supervisor"
)

// Actor is the acting identity every scheduler and slot-store entry
// point receives. Owners are hard-scoped to their own staff id;
// supervisors see everything unless they ask for a specific staff.
type Actor struct {
	Role    Role
	StaffID string
}

func (a Actor) IsSupervisor() bool {
	return a.Role == RoleSupervisor
}

// CanActOn reports whether the actor may read or mutate entities owned
// by the given staff member.
func (a Actor) CanActOn(staffID string) bool {
	return a.Role == RoleSupervisor || a.StaffID == staffID
}

// Scope resolves the staff filter for list queries: owners always get
// their own id; supervisors get the requested id, or none for the
// global view.
func (a Actor) Scope(requested string) *string {
	if a.Role == RoleSupervisor {
		if requested == "" {
			return nil
		}
		return &requested
	}
	id := a.StaffID
	return &id
}
