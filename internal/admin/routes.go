package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/middleware"
)

// SetupRoutes mounts the member-management endpoints. Every route needs a
// live session and the admin role.
func SetupRoutes(h *Handler, sessions middleware.SessionValidator, roles middleware.RoleFetcher, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions, logger))
		r.Use(middleware.AdminMiddleware(roles, logger))

		r.Post("/members", h.CreateMember)
		r.Get("/members", h.ListMembers)
		r.Get("/members/{id}", h.GetMember)
		r.Patch("/members/{id}/role", h.UpdateRole)
		r.Patch("/members/{id}/status", h.UpdateStatus)
	})

	return r
}
