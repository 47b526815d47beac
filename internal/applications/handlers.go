package applications

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
	return &Handler{svc: svc, logger: logger.With("component", "applications_http")}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *auth.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.WriteError(w, http.StatusBadRequest, "validation_failed", "Invalid input", ve.Fields...)
	case errors.Is(err, ErrNotFound):
		utils.WriteError(w, http.StatusNotFound, "not_found", "Application not found")
	case errors.Is(err, ErrOpenApplication):
		utils.WriteError(w, http.StatusConflict, "application_open", "An application for this email is already under review")
	case errors.Is(err, ErrInvalidTransition):
		utils.WriteError(w, http.StatusConflict, "invalid_transition", "The application cannot move to that status")
	case errors.Is(err, auth.ErrTransient):
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusServiceUnavailable, "transient_store_error", "Service temporarily unavailable, please retry")
	default:
		h.logger.Error(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "internal_error", "Something went wrong")
	}
}

// Applications carry document links, not files, so 256 KiB is plenty.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<18)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "validation_failed", "Invalid input",
			utils.FieldError{Field: "body", Message: "must be a valid JSON object"})
		return false
	}
	return true
}

const submittedMessage = "Your application has been received and is under review."

func (h *Handler) SubmitIndividual(w http.ResponseWriter, r *http.Request) {
	var a IndividualApplication
	if !decode(w, r, &a) {
		return
	}
	if err := h.svc.SubmitIndividual(r.Context(), &a); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, submittedMessage, a)
}

func (h *Handler) SubmitFirm(w http.ResponseWriter, r *http.Request) {
	var a FirmApplication
	if !decode(w, r, &a) {
		return
	}
	if err := h.svc.SubmitFirm(r.Context(), &a); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, submittedMessage, a)
}

// List handles GET /{kind}?status=&q=&page=&page_size=
func (h *Handler) List(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, size := utils.ParsePagination(r)
		rows, total, err := h.svc.List(r.Context(), kind, ListQuery{
			Page:     page,
			PageSize: size,
			Status:   Status(r.URL.Query().Get("status")),
			Search:   strings.TrimSpace(r.URL.Query().Get("q")),
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		utils.WritePage(w, rows, utils.NewPagination(page, size, total))
	}
}

func (h *Handler) Get(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := h.svc.Get(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "", a)
	}
}

// UpdateStatus handles PATCH and PUT /{kind}/{id}/status. The reviewer is the
// signed-in admin.
func (h *Handler) UpdateStatus(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status      Status `json:"status"`
			ReviewNotes string `json:"review_notes"`
		}
		if !decode(w, r, &body) {
			return
		}

		reviewer, _ := utils.GetUserIDFromContext(r.Context())
		a, err := h.svc.Decide(r.Context(), kind, chi.URLParam(r, "id"), reviewer, body.Status, body.ReviewNotes)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "Application status updated", a)
	}
}
