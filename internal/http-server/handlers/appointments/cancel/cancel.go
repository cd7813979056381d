package cancel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"visits-service/api"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

type TokenCanceller interface {
	CancelByToken(ctx context.Context, token string) (*api.AppointmentResponse, string, error)
}

type Response struct {
	response.Response
	Appointment *api.AppointmentResponse `json:"appointment,omitempty"`
}

// New cancels an appointment with the cancellation token from the
// confirmation email. Public endpoint, no identity required.
func New(log *slog.Logger, canceller TokenCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.cancel.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := chi.URLParam(r, "token")
		if token == "" {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "token is required"))
			return
		}

		appt, warning, err := canceller.CancelByToken(r.Context(), token)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Unknown cancellation token")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "appointment not found"))
			return
		}

		if errors.Is(err, response.ErrConflict) {
			log.Error("Appointment already finalized")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "appointment is already completed or cancelled"))
			return
		}

		if err != nil {
			log.Error("Failed to cancel appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to cancel appointment"))
			return
		}

		log.Info("Appointment cancelled", slog.String("appointment_id", appt.ID))

		render.JSON(w, r, Response{
			Response:    response.Response{Warning: warning},
			Appointment: appt,
		})
	}
}
