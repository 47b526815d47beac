package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/middleware"
	"github.com/lacpa/lacpa-backend/internal/utils"
)

const maxBodyBytes = 1 << 20

const codeSentMessage = "If the email exists, a verification code has been sent"

type Handler struct {
	svc    *Service
	logger logging.Logger
}

func NewHandler(svc *Service, logger logging.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.With("component", "auth_http")}
}

// errorStatus maps service errors to responses. Order matters: the first
// match wins. Messages never carry internal detail.
var errorStatus = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	{ErrValidation, http.StatusBadRequest, "validation_failed", "Invalid input"},
	{ErrDuplicateEmail, http.StatusConflict, "email_taken", "An account with this email already exists"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials"},
	{ErrUnverified, http.StatusForbidden, "unverified", "Account not verified. Please verify your email first"},
	{ErrAccountDisabled, http.StatusForbidden, "account_disabled", "Account is deactivated. Please contact support"},
	{ErrInvalidCode, http.StatusBadRequest, "invalid_code", "Invalid verification code"},
	{ErrExpired, http.StatusGone, "code_expired", "Verification code has expired"},
	{ErrAlreadyConsumed, http.StatusConflict, "code_already_used", "Verification code has already been used"},
	{ErrInvalidOrExpiredToken, http.StatusBadRequest, "invalid_or_expired_token", "Invalid or expired reset token"},
	{ErrInvalidToken, http.StatusUnauthorized, "unauthorized", "Unauthorized"},
	{ErrNotFound, http.StatusNotFound, "not_found", "Not found"},
	{ErrTransient, http.StatusServiceUnavailable, "transient_store_error", "Service temporarily unavailable, please retry"},
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorStatus {
		if !errors.Is(err, e.err) {
			continue
		}
		var fields []utils.FieldError
		var ve *ValidationError
		if errors.As(err, &ve) {
			fields = ve.Fields
		}
		if e.status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		}
		utils.WriteError(w, e.status, e.code, e.msg, fields...)
		return
	}

	h.logger.Error(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
	utils.WriteError(w, http.StatusInternalServerError, "internal_error", "Something went wrong")
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fieldError("body", "must be a valid JSON object")
	}
	return nil
}

func sessionMeta(r *http.Request) SessionMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return SessionMeta{UserAgent: r.UserAgent(), IP: ip}
}

type signupResponse struct {
	Email   string `json:"email"`
	LACPAID string `json:"lacpa_id"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in SignupInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	acc, err := h.svc.Signup(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusCreated,
		"Account created. Please check your email for the verification code",
		signupResponse{Email: acc.Email, LACPAID: acc.LACPAID})
}

type loginResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"token_type"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      AccountView `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Login(r.Context(), in, sessionMeta(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Login successful", loginResponse{
		Token:     res.Token,
		TokenType: "Bearer",
		ExpiresAt: res.ExpiresAt,
		User:      res.Account.View(),
	})
}

type verifyResponse struct {
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in VerifyInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.VerifyCode(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "Verification successful",
		verifyResponse{ResetToken: res.ResetToken, ExpiresAt: res.ExpiresAt})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in EmailInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, codeSentMessage, nil)
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var in EmailInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.ResendCode(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, codeSentMessage, nil)
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in ResetInput
	if err := decode(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.svc.ResetPassword(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Password reset successful. Please log in with your new password", nil)
}

// Logout is not behind the session gateway: a token whose session already
// ended still gets a 200.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	err := h.svc.Logout(r.Context(), token)
	switch {
	case errors.Is(err, ErrSessionNotActive):
		utils.WriteSuccess(w, http.StatusOK, "Session already ended", nil)
	case err != nil:
		h.logger.Info(r.Context(), "logout rejected", "error", err)
		h.writeError(w, r, err)
	default:
		utils.WriteSuccess(w, http.StatusOK, "Logged out successfully", nil)
	}
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, ok := utils.IdentityFromContext(r.Context())
	if !ok {
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	acc, err := h.svc.Profile(r.Context(), id.AccountID)
	if errors.Is(err, ErrNotFound) {
		// The session outlived its account.
		utils.WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	utils.WriteSuccess(w, http.StatusOK, "", acc.View())
}
