package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lacpa/lacpa-backend/internal/admin"
	"github.com/lacpa/lacpa-backend/internal/applications"
	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/config"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/mail"
	"github.com/lacpa/lacpa-backend/internal/middleware"
	"github.com/lacpa/lacpa-backend/internal/utils"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Config *config.Config
	Stores auth.Stores
	// Applications backs /api/applications. Nil leaves it unmounted.
	Applications applications.Store
	Mailer mail.Mailer
	Logger logging.Logger
	// Ready reports backend health for /health. Nil means always ready.
	Ready func(r *http.Request) error
	// Now is the auth clock. Nil means time.Now.
	Now func() time.Time
}

// NewRouter wires the services and returns the root handler with the auth
// API under /api/auth, the admin API under /api/admin and membership
// applications under /api/applications.
func NewRouter(d Deps) (http.Handler, error) {
	opts := auth.OptionsFromConfig(d.Config)
	opts.Now = d.Now
	svc, err := auth.NewService(d.Stores, d.Mailer, d.Logger, opts)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	authHandler := auth.NewHandler(svc, d.Logger)

	adminSvc := admin.NewService(svc.Accounts(), svc.Tokens(), svc, d.Logger)
	adminHandler := admin.NewHandler(adminSvc, d.Logger)
	roles := auth.RoleInfo{Accounts: svc.Accounts()}

	limiter := middleware.NewRateLimiter(d.Config.RateLimitRPS, d.Config.RateLimitBurst)
	proxies, err := d.Config.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.ClientIP(proxies))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(d.Config.AllowedOrigins))

	r.Get("/health", health(d.Ready, d.Logger))

	r.Mount("/api/auth", auth.SetupRoutes(authHandler, svc.Tokens(), limiter.Middleware, d.Logger))
	r.Mount("/api/admin", admin.SetupRoutes(adminHandler, svc.Tokens(), roles, d.Logger))
	if d.Applications != nil {
		appHandler := applications.NewHandler(applications.NewService(d.Applications, d.Logger), d.Logger)
		r.Mount("/api/applications", applications.SetupRoutes(appHandler, svc.Tokens(), roles, limiter.Middleware, d.Logger))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, http.StatusNotFound, "not_found", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	return r, nil
}

func health(ready func(*http.Request) error, logger logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r); err != nil {
				logger.Warn(r.Context(), "health check failed", "error", err)
				utils.WriteError(w, http.StatusServiceUnavailable, "unavailable", "Service unavailable")
				return
			}
		}
		utils.WriteSuccess(w, http.StatusOK, "Server is up!", nil)
	}
}
