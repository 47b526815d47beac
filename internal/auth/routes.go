package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/middleware"
)

// SetupRoutes mounts the auth endpoints. limit throttles the unauthenticated
// endpoints that send mail or check passwords.
func SetupRoutes(h *Handler, tokens middleware.SessionValidator, limit func(http.Handler) http.Handler, logger logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/forgot-password", h.ForgotPassword)
		r.Post("/resend-otp", h.ResendOTP)
		r.Post("/reset-password", h.ResetPassword)
	})

	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(tokens, logger))
		r.Get("/profile", h.Profile)
	})

	return r
}
