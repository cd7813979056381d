package delete

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"visits-service/internal/models"
	"visits-service/pkg/middleware/identity"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

type AppointmentDeleter interface {
	DeleteAppointment(ctx context.Context, actor models.Actor, id string) error
}

func New(log *slog.Logger, deleter AppointmentDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.delete.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "appointmentID")
		actor := identity.FromContext(r.Context())

		err := deleter.DeleteAppointment(r.Context(), actor, id)

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
			log.Error("Failed to delete appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete appointment"))
			return
		}

		log.Info("Appointment deleted", slog.String("appointment_id", id))

		render.JSON(w, r, response.Response{})
	}
}
