package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"visits-service/api"
	"visits-service/internal/models"
	"visits-service/pkg/middleware/identity"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

type AvailabilityProvider interface {
	ListAvailability(ctx context.Context, actor models.Actor, requestedStaff string) ([]*api.SlotGroup, error)
}

type Response struct {
	response.Response
	Slots []*api.SlotGroup `json:"slots"`
}

func New(log *slog.Logger, provider AvailabilityProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		actor := identity.FromContext(r.Context())
		requested := r.URL.Query().Get("staff_id")

		groups, err := provider.ListAvailability(r.Context(), actor, requested)

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Not permitted")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "not permitted"))
			return
		}

		if err != nil {
			log.Error("Failed to list availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list availability"))
			return
		}

		if groups == nil {
			groups = []*api.SlotGroup{}
		}

		render.JSON(w, r, Response{Slots: groups})
	}
}
