package create

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"visits-service/api"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

type AppointmentBooker interface {
	Book(ctx context.Context, req *api.BookingRequest) (*api.AppointmentResponse, string, error)
}

type Request struct {
	api.BookingRequest
}

type Response struct {
	response.Response
	Appointment *api.AppointmentResponse `json:"appointment,omitempty"`
}

// New books a visit. Public endpoint: conflict responses never name the
// visitor holding the window.
func New(log *slog.Logger, booker AppointmentBooker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.appointments.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if err := validator.New().Struct(req.BookingRequest); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		appt, warning, err := booker.Book(r.Context(), &req.BookingRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Booking rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_ERROR), err.Error()))
			return
		}

		if errors.Is(err, response.ErrOverlap) || errors.Is(err, response.ErrConflict) {
			log.Error("Time not available", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "the requested time is not available"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Staff does not serve the stage")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "staff member does not serve this stage"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("Calendar is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "calendar is busy, retry"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Referenced entity not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "stage, course or staff member not found"))
			return
		}

		if err != nil {
			log.Error("Failed to book appointment", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to book appointment"))
			return
		}

		log.Info("Appointment booked", slog.String("appointment_id", appt.ID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Response:    response.Response{Warning: warning},
			Appointment: appt,
		})
	}
}
