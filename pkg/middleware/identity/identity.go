package identity

import (
	"context"
	"net/http"

	"github.com/go-chi/render"

	"visits-service/internal/models"
	"visits-service/pkg/response"
)

type ctxKey struct{}

// Authentication happens upstream; the gateway forwards the verified
// identity in these headers.
const (
	HeaderStaffID = "X-Staff-ID"
	HeaderRole    = "X-Role"
)

// Require extracts the acting identity and rejects requests without
// one. Mount it on staff-facing routes only; public booking endpoints
// stay open.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		staffID := r.Header.Get(HeaderStaffID)
		role := models.Role(r.Header.Get(HeaderRole))

		if role != models.RoleOwner && role != models.RoleSupervisor {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "missing or unknown role"))
			return
		}
		if role == models.RoleOwner && staffID == "" {
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "missing staff id"))
			return
		}

		actor := models.Actor{Role: role, StaffID: staffID}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, actor)))
	})
}

// FromContext returns the actor placed by Require. The zero actor is
// returned on routes mounted without it.
func FromContext(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(ctxKey{}).(models.Actor)
	return actor
}
