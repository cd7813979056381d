package get

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"visits-service/api"
	"visits-service/pkg/response"
	"visits-service/pkg/sl"
)

type StageProvider interface {
	ListStages(ctx context.Context) ([]*api.StageResponse, error)
}

type Response struct {
	response.Response
	Stages []*api.StageResponse `json:"stages"`
}

func New(log *slog.Logger, provider StageProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.stages.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		stages, err := provider.ListStages(r.Context())
		if err != nil {
			log.Error("Failed to list stages", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list stages"))
			return
		}

		if stages == nil {
			stages = []*api.StageResponse{}
		}

		render.JSON(w, r, Response{Stages: stages})
	}
}
