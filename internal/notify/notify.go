package notify

import (
	"context"

	"visits-service/internal/models"
)

type EventKind string

const (
	EventConfirmation EventKind = "confirmation"
	EventReminder     EventKind = "reminder"
	EventCancellation EventKind = "cancellation"
	EventModification EventKind = "modification"
)

// Notifier delivers appointment emails. The scheduler treats it as a
// side-effecting collaborator: a failed notification never rolls back
// the booking it belongs to.
//
// The visitor is always addressed. Staff receive a copy depending on
// their notification preferences (new-appointment for confirmations,
// reminder for reminders; cancellations and modifications always go
// to both parties).
type Notifier interface {
	Notify(ctx context.Context, appt *models.Appointment, staff *models.StaffMember, kind EventKind) error
}

func staffWants(staff *models.StaffMember, kind EventKind) bool {
	switch kind {
	case EventConfirmation:
		return staff.NotifyNewAppointment
	case EventReminder:
		return staff.NotifyReminder
	default:
		return true
	}
}
