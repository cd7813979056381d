package availability

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

type StageAvailabilityProvider interface {
	StageAvailability(ctx context.Context, stageID, dateStr string) ([]*api.SlotResponse, []*api.DayCapacity, error)
}

// Response carries slots when a date is given, and the day capacity
// summary for the booking horizon otherwise.
type Response struct {
	response.Response
	Slots []*api.SlotResponse `json:"slots,omitempty"`
	Days  []*api.DayCapacity  `json:"days,omitempty"`
}

func New(log *slog.Logger, provider StageAvailabilityProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.stages.availability.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		stageID := chi.URLParam(r, "stageID")
		date := r.URL.Query().Get("date")

		slots, days, err := provider.StageAvailability(r.Context(), stageID, date)

		if errors.Is(err, response.ErrValidation) {
			log.Error("Invalid date", slog.String("date", date))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_ERROR), err.Error()))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Stage not found", slog.String("stage_id", stageID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "stage not found"))
			return
		}

		if err != nil {
			log.Error("Failed to get stage availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get availability"))
			return
		}

		if date != "" && slots == nil {
			slots = []*api.SlotResponse{}
		}

		render.JSON(w, r, Response{Slots: slots, Days: days})
	}
}
