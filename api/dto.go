package api

// Availability

type AvailabilityRequest struct {
	StaffID    string `json:"staff_id,omitempty"` // supervisors only, defaults to the acting staff
	RepeatType string `json:"repeat_type" validate:"required,oneof=once weekly"`
	Date       string `json:"date,omitempty"`    // once: YYYY-MM-DD
	Month      int    `json:"month,omitempty"`   // weekly: 1-12
	Weekday    int    `json:"weekday,omitempty"` // weekly: 0=Sunday .. 6=Saturday
	StartTime  string `json:"start_time" validate:"required"`
	EndTime    string `json:"end_time" validate:"required"`
	Duration   int    `json:"duration" validate:"required,gt=0"`
	Comments   string `json:"comments,omitempty"`
}

// SlotGroup is one template-expansion event: the same window served
// for every stage the staff member is allowed to attend.
type SlotGroup struct {
	ID       string   `json:"id"`
	Date     string   `json:"date"`
	Start    string   `json:"start_time"`
	End      string   `json:"end_time"`
	Duration int      `json:"duration"`
	Stages   []string `json:"stages"`
}

type SlotResponse struct {
	ID        string `json:"id"`
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name,omitempty"`
	StageID   string `json:"stage_id"`
	Date      string `json:"date"`
	Start     string `json:"start_time"`
	End       string `json:"end_time"`
	Duration  int    `json:"duration"`
}

type DayCapacity struct {
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

// Appointments

type BookingRequest struct {
	StageID      string `json:"stage_id" validate:"required"`
	CourseID     string `json:"course_id,omitempty"`
	StaffID      string `json:"staff_id" validate:"required"`
	VisitorName  string `json:"visitor_name" validate:"required,max=200"`
	VisitorEmail string `json:"visitor_email" validate:"required,email"`
	VisitorPhone string `json:"visitor_phone" validate:"required"`
	Date         string `json:"date" validate:"required"` // ISO 8601, institutional local time
	Duration     int    `json:"duration" validate:"required"`
	Comments     string `json:"comments,omitempty"`
}

type AppointmentUpdateRequest struct {
	Date         *string `json:"date,omitempty"`
	Duration     *int    `json:"duration,omitempty"`
	Status       *string `json:"status,omitempty"`
	Notes        *string `json:"notes,omitempty"`
	FollowUpDate *string `json:"follow_up_date,omitempty"`
}

type AppointmentResponse struct {
	ID           string `json:"id"`
	StageID      string `json:"stage_id"`
	StageName    string `json:"stage_name,omitempty"`
	CourseID     string `json:"course_id,omitempty"`
	StaffID      string `json:"staff_id"`
	StaffName    string `json:"staff_name,omitempty"`
	VisitorName  string `json:"visitor_name"`
	VisitorEmail string `json:"visitor_email"`
	VisitorPhone string `json:"visitor_phone"`
	Date         string `json:"date"`
	Duration     int    `json:"duration"`
	Status       string `json:"status"`
	Comments     string `json:"comments,omitempty"`
	Notes        string `json:"notes,omitempty"`
	FollowUpDate string `json:"follow_up_date,omitempty"`
	CancelToken  string `json:"cancel_token,omitempty"`
}

type AppointmentFilters struct {
	StaffID string
	StageID string
	Date    string
	Status  string
}

// Stages

type CourseResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"display_order"`
}

type StageResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Courses     []CourseResponse `json:"courses,omitempty"`
	Staff       []StaffResponse  `json:"staff,omitempty"`
}

type StaffResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
