package update

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"visits-service/api"
	"visits-service/internal/models"
	"visits-service/pkg/middleware/identity"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

type AppointmentUpdater interface {
	UpdateAppointment(ctx context.Context, actor models.Actor, id string, req *api.AppointmentUpdateRequest) (*api.AppointmentResponse, string, error)
}

type Request struct {
	api.AppointmentUpdateRequest
}

type Response struct {
	response.Response
	Appointment *api.AppointmentResponse `json:"appointment,omitempty"`
}

func New(log *slog.Logger, updater AppointmentUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.update.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "appointmentID")

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		actor := identity.FromContext(r.Context())

		appt, warning, err := updater.UpdateAppointment(r.Context(), actor, id, &req.AppointmentUpdateRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Update rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_ERROR), err.Error()))
			return
		}

		if errors.Is(err, response.ErrOverlap) {
			log.Error("New time overlaps an appointment", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.OVERLAP), err.Error()))
			return
		}

		if errors.Is(err, response.ErrConflict) {
			log.Error("Status transition rejected", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "appointment is already completed or cancelled"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Not permitted", slog.String("appointment_id", id))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "not permitted"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("Calendar is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "calendar is busy, retry"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Appointment not found", slog.String("appointment_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "appointment not found"))
			return
		}

		if err != nil {
			log.Error("Failed to update appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to update appointment"))
			return
		}

		log.Info("Appointment updated", slog.String("appointment_id", id))

		render.JSON(w, r, Response{
			Response:    response.Response{Warning: warning},
			Appointment: appt,
		})
	}
}
