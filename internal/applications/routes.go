package applications

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/middleware"
)

// SetupRoutes mounts submission for anyone, throttled by limit, and the
// review endpoints for admins.
func SetupRoutes(h *Handler, sessions middleware.SessionValidator, roles middleware.RoleFetcher, limit func(http.Handler) http.Handler, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/individual", h.SubmitIndividual)
		r.Post("/firm", h.SubmitFirm)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessions, logger))
		r.Use(middleware.AdminMiddleware(roles, logger))

		for _, kind := range []Kind{KindIndividual, KindFirm} {
			base := "/" + string(kind)
			r.Get(base, h.List(kind))
			r.Get(base+"/{id}", h.Get(kind))
			r.Patch(base+"/{id}/status", h.UpdateStatus(kind))
			r.Put(base+"/{id}/status", h.UpdateStatus(kind))
		}
	})

	return r
}
