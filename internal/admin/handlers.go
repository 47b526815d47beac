package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/utils"
)

type Handler struct {
	svc    *Service
	logger logging.Logger
}

func NewHandler(svc *Service, logger logging.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With("component", "admin_http")}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.WriteError(w, http.StatusBadRequest, "validation_failed", "Invalid input", ve.Fields...)
	case errors.Is(err, auth.ErrDuplicateEmail):
		utils.WriteError(w, http.StatusConflict, "email_taken", "An account with this email already exists")
	case errors.Is(err, auth.ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "not_found", "Member not found")
	case errors.Is(err, ErrSelfChange):
		utils.WriteError(w, http.StatusConflict, "self_change", "You cannot demote or deactivate your own account")
	case errors.Is(err, auth.ErrTransient):
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "transient_store_error", "Service temporarily unavailable, please retry")
	default:
		h.logger.Error(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "internal_error", "Something went wrong")
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "validation_failed", "Invalid input",
			utils.FieldError{Field: "body", Message: "must be a valid JSON object"})
		return false
	}
	return true
}

type createdResponse struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	LACPAID string    `json:"lacpa_id"`
	Role    auth.Role `json:"role"`
}

// CreateMember handles POST /members.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var body CreateMemberInput
	if !decode(w, r, &body) {
		return
	}

	actor, _ := utils.GetUserIDFromContext(r.Context())
	acc, err := h.svc.CreateMember(r.Context(), actor, body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Account created", createdResponse{
		ID: acc.ID, Email: acc.Email, LACPAID: acc.LACPAID, Role: acc.Role,
	})
}

// ListMembers handles GET /members?page=&page_size=&q=&role=
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	page, size := utils.ParsePagination(r)
	q := auth.ListQuery{
		Page:     page,
		PageSize: size,
		Search:   strings.TrimSpace(r.URL.Query().Get("q")),
		Role:     auth.Role(r.URL.Query().Get("role")),
	}

	members, total, err := h.svc.ListMembers(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WritePage(w, members, utils.NewPagination(page, size, total))
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.GetMember(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "", acc.View())
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role auth.Role `json:"role"`
	}
	if !decode(w, r, &body) {
		return
	}

	actor, _ := utils.GetUserIDFromContext(r.Context())
	acc, err := h.svc.SetRole(r.Context(), actor, chi.URLParam(r, "id"), body.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Role updated", acc.View())
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active *bool `json:"active"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Active == nil {
		utils.WriteError(w, http.StatusBadRequest, "validation_failed", "Invalid input",
			utils.FieldError{Field: "active", Message: "is required"})
		return
	}

	actor, _ := utils.GetUserIDFromContext(r.Context())
	acc, err := h.svc.SetActive(r.Context(), actor, chi.URLParam(r, "id"), *body.Active)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	msg := "Member activated"
	if !*body.Active {
		msg = "Member deactivated"
	}
	utils.WriteSuccess(w, http.StatusOK, msg, acc.View())
}
