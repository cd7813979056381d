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

type StageDeleter interface {
	DeleteStage(ctx context.Context, actor models.Actor, stageID string) error
}

// New removes a stage with all its courses, slots and appointments.
// Supervisors only.
func New(log *slog.Logger, deleter StageDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.stages.delete.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		stageID := chi.URLParam(r, "stageID")
		actor := identity.FromContext(r.Context())

		err := deleter.DeleteStage(r.Context(), actor, stageID)

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Not permitted")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "supervisors only"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Stage not found", slog.String("stage_id", stageID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "stage not found"))
			return
		}

		if err != nil {
			log.Error("Failed to delete stage", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete stage"))
			return
		}

		log.Info("Stage deleted", slog.String("stage_id", stageID))

		render.JSON(w, r, response.Response{})
	}
}
