package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"visits-service/internal/config"
	"visits-service/internal/models"
)

// EmailNotifier sends transactional mail through an HTTP email API
// (Brevo-compatible payload shape).
type EmailNotifier struct {
	cfg    config.Email
	loc    *time.Location
	client *http.Client
	log    *slog.Logger
}

func NewEmailNotifier(cfg config.Email, loc *time.Location, log *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		loc:    loc,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

type emailPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

func (n *EmailNotifier) Notify(ctx context.Context, appt *models.Appointment, staff *models.StaffMember, kind EventKind) error {
	const op = "notify.EmailNotifier.Notify"

	when := appt.Date.In(n.loc).Format("Monday, 2 January 2006 at 15:04")

	subject, body := visitorMessage(appt, staff, kind, when)
	if err := n.send(ctx, appt.VisitorEmail, appt.VisitorName, subject, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if staff.Email == "" || !staffWants(staff, kind) {
		return nil
	}
	subject, body = staffMessage(appt, kind, when)
	if err := n.send(ctx, staff.Email, staff.Name, subject, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (n *EmailNotifier) send(ctx context.Context, toEmail, toName, subject, html string) error {
	payload := emailPayload{
		Sender:      map[string]string{"name": n.cfg.SenderName, "email": n.cfg.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": toName}},
		Subject:     subject,
		HTMLContent: html,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", n.cfg.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		n.log.Error("email api rejected message",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(respBody)),
		)
		return fmt.Errorf("email api status %d", resp.StatusCode)
	}
	return nil
}

func visitorMessage(appt *models.Appointment, staff *models.StaffMember, kind EventKind, when string) (subject, body string) {
	switch kind {
	case EventReminder:
		subject = fmt.Sprintf("Reminder: school visit tomorrow - %s", appt.StageName)
		body = fmt.Sprintf(
			"<p>Dear %s,</p><p>This is a reminder of your visit to %s on %s with %s.</p>",
			appt.VisitorName, appt.StageName, when, staff.Name,
		)
	case EventCancellation:
		subject = fmt.Sprintf("Visit cancelled - %s", appt.StageName)
		body = fmt.Sprintf(
			"<p>Dear %s,</p><p>Your visit to %s scheduled for %s has been cancelled.</p>",
			appt.VisitorName, appt.StageName, when,
		)
	case EventModification:
		subject = fmt.Sprintf("Visit updated - %s", appt.StageName)
		body = fmt.Sprintf(
			"<p>Dear %s,</p><p>Your visit to %s has been updated. It is now scheduled for %s with %s.</p>",
			appt.VisitorName, appt.StageName, when, staff.Name,
		)
	default:
		subject = fmt.Sprintf("Visit confirmation - %s", appt.StageName)
		body = fmt.Sprintf(
			"<p>Dear %s,</p><p>Your visit to %s is confirmed for %s with %s.</p>"+
				"<p>If you need to cancel, use your cancellation code: %s</p>",
			appt.VisitorName, appt.StageName, when, staff.Name, appt.CancelToken,
		)
	}
	return subject, body
}

func staffMessage(appt *models.Appointment, kind EventKind, when string) (subject, body string) {
	switch kind {
	case EventReminder:
		subject = fmt.Sprintf("Reminder: visit tomorrow - %s", appt.StageName)
	case EventCancellation:
		subject = fmt.Sprintf("Visit cancelled - %s", appt.StageName)
	case EventModification:
		subject = fmt.Sprintf("Visit updated - %s", appt.StageName)
	default:
		subject = fmt.Sprintf("New visit scheduled - %s", appt.StageName)
	}
	body = fmt.Sprintf(
		"<p>%s: %s on %s.</p><p>Visitor: %s (%s, %s).</p>",
		subject, appt.StageName, when,
		appt.VisitorName, appt.VisitorEmail, appt.VisitorPhone,
	)
	return subject, body
}

// LogNotifier is the fallback used when no email API is configured. It
// records the event and succeeds.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, appt *models.Appointment, staff *models.StaffMember, kind EventKind) error {
	n.log.Info("notification skipped, email not configured",
		slog.String("kind", string(kind)),
		slog.String("appointment_id", appt.ID),
		slog.String("visitor_email", appt.VisitorEmail),
	)
	return nil
}
