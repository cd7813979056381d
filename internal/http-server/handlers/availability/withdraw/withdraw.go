package withdraw

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

type SlotWithdrawer interface {
	WithdrawSlot(ctx context.Context, actor models.Actor, slotID string) (int64, error)
}

type Response struct {
	response.Response
	Removed int64 `json:"removed"`
}

// New withdraws the whole slot group the referenced slot belongs to.
func New(log *slog.Logger, withdrawer SlotWithdrawer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.withdraw.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		slotID := chi.URLParam(r, "slotID")
		if slotID == "" {
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "slot id is required"))
			return
		}

		actor := identity.FromContext(r.Context())

		removed, err := withdrawer.WithdrawSlot(r.Context(), actor, slotID)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Slot not found", slog.String("slot_id", slotID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "slot not found"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Not permitted", slog.String("slot_id", slotID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "not permitted"))
			return
		}

		if errors.Is(err, response.ErrConflict) {
			log.Error("Window already booked", slog.String("slot_id", slotID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "an appointment exists in this window"))
			return
		}

		if err != nil {
			log.Error("Failed to withdraw slot", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to withdraw slot"))
			return
		}

		log.Info("Slot group withdrawn", slog.String("slot_id", slotID), slog.Int64("removed", removed))

		render.JSON(w, r, Response{Removed: removed})
	}
}
