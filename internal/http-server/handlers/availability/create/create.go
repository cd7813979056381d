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
	"visits-service/internal/models"
	"visits-service/pkg/middleware/identity"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

type AvailabilityCreator interface {
	CreateAvailability(ctx context.Context, actor models.Actor, req *api.AvailabilityRequest) ([]*api.SlotGroup, error)
}

type Request struct {
	api.AvailabilityRequest
}

type Response struct {
	response.Response
	Slots []*api.SlotGroup `json:"slots,omitempty"`
}

func New(log *slog.Logger, creator AvailabilityCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.create.New"

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

		if err := validator.New().Struct(req.AvailabilityRequest); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		actor := identity.FromContext(r.Context())

		groups, err := creator.CreateAvailability(r.Context(), actor, &req.AvailabilityRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Template rejected", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_ERROR), err.Error()))
			return
		}

		if errors.Is(err, response.ErrOverlap) {
			log.Error("Template overlaps an appointment", sl.Err(err))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.OVERLAP), err.Error()))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Not permitted")
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
			log.Error("Staff member not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "staff member not found"))
			return
		}

		if err != nil {
			log.Error("Failed to create availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create availability"))
			return
		}

		log.Info("Availability created", slog.Int("groups", len(groups)))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{Slots: groups})
	}
}
