package get

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

type AppointmentProvider interface {
	GetAppointment(ctx context.Context, actor models.Actor, id string) (*api.AppointmentResponse, error)
	ListAppointments(ctx context.Context, actor models.Actor, filters *api.AppointmentFilters) ([]*api.AppointmentResponse, error)
}

type Response struct {
	response.Response
	Appointment *api.AppointmentResponse `json:"appointment,omitempty"`
}

type ListResponse struct {
	response.Response
	Appointments []*api.AppointmentResponse `json:"appointments"`
}

func New(log *slog.Logger, provider AppointmentProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "appointmentID")
		actor := identity.FromContext(r.Context())

		appt, err := provider.GetAppointment(r.Context(), actor, id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Appointment not found", slog.String("appointment_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "appointment not found"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Not permitted", slog.String("appointment_id", id))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "not permitted"))
			return
		}

		if err != nil {
			log.Error("Failed to get appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get appointment"))
			return
		}

		render.JSON(w, r, Response{Appointment: appt})
	}
}

// List returns the actor-visible appointments, optionally narrowed by
// staff, stage, date or status query parameters.
func List(log *slog.Logger, provider AppointmentProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.get.List"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor := identity.FromContext(r.Context())

		filters := &api.AppointmentFilters{
			StaffID: r.URL.Query().Get("staff_id"),
			StageID: r.URL.Query().Get("stage_id"),
			Date:    r.URL.Query().Get("date"),
			Status:  r.URL.Query().Get("status"),
		}

		appts, err := provider.ListAppointments(r.Context(), actor, filters)

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Not permitted")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "not permitted"))
			return
		}

		if err != nil {
			log.Error("Failed to list appointments", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list appointments"))
			return
		}

		if appts == nil {
			appts = []*api.AppointmentResponse{}
		}

		render.JSON(w, r, ListResponse{Appointments: appts})
	}
}
