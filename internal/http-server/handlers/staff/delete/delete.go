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

type StaffDeleter interface {
	DeleteStaffMember(ctx context.Context, actor models.Actor, staffID string) error
}

// New removes a staff member with all their slots and appointments.
// Supervisors only.
func New(log *slog.Logger, deleter StaffDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.staff.delete.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		staffID := chi.URLParam(r, "staffID")
		actor := identity.FromContext(r.Context())

		err := deleter.DeleteStaffMember(r.Context(), actor, staffID)

		if errors.Is(err, response.ErrForbidden) {
			log.Error("Not permitted")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "supervisors only"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("Staff member not found", slog.String("staff_id", staffID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "staff member not found"))
			return
		}

		if err != nil {
			log.Error("Failed to delete staff member", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete staff member"))
			return
		}

		log.Info("Staff member deleted", slog.String("staff_id", staffID))

		render.JSON(w, r, response.Response{})
	}
}
