package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/utils"
)

// ErrRoleNotFound is what a RoleFetcher returns for an unknown account.
var ErrRoleNotFound = errors.New("account not found")

type SessionValidator interface {
	Validate(ctx context.Context, token string) (utils.Identity, error)
}

type RoleFetcher interface {
	FindRoleByAccountID(ctx context.Context, accountID string) (string, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
}

// SessionMiddleware rejects requests without a valid bearer token. Missing,
// malformed, expired and revoked tokens all get the same 401 body; the
// reason only goes to the log.
func SessionMiddleware(validator SessionValidator, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				logger.Info(r.Context(), "request rejected", "path", r.URL.Path, "reason", "missing_token")
				unauthorized(w)
				return
			}

			id, err := validator.Validate(r.Context(), token)
			if err != nil {
				var temp interface{ Temporary() bool }
				if errors.As(err, &temp) && temp.Temporary() {
					logger.Error(r.Context(), "session lookup failed", "path", r.URL.Path, "error", err)
					utils.WriteError(w, http.StatusServiceUnavailable, "transient_store_error", "Service temporarily unavailable, please retry")
					return
				}
				logger.Info(r.Context(), "request rejected", "path", r.URL.Path, "reason", err.Error())
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithIdentity(r.Context(), id)))
		})
	}
}

// AdminMiddleware lets through only accounts whose stored role is admin.
// The role is re-read on each request so a demotion applies immediately,
// even to tokens minted before it.
func AdminMiddleware(fetcher RoleFetcher, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := utils.GetUserIDFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}

			role, err := fetcher.FindRoleByAccountID(r.Context(), userID)
			if errors.Is(err, ErrRoleNotFound) {
				unauthorized(w)
				return
			}
			if err != nil {
				logger.Error(r.Context(), "role lookup failed", "account_id", userID, "error", err)
				utils.WriteError(w, http.StatusServiceUnavailable, "transient_store_error", "Service temporarily unavailable, please retry")
				return
			}

			if role != "admin" {
				logger.Warn(r.Context(), "admin access denied", "account_id", userID, "path", r.URL.Path)
				utils.WriteError(w, http.StatusForbidden, "forbidden", "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
