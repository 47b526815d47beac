package auth

import (
	"errors"

	"github.com/lacpa/lacpa-backend/internal/utils"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrDuplicateLACPAID      = errors.New("lacpa id already taken")
	ErrNotFound              = errors.New("not found")
	ErrUnverified            = errors.New("account not verified")
	ErrAccountDisabled       = errors.New("account disabled")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrExpired               = errors.New("verification code expired")
	ErrAlreadyConsumed       = errors.New("verification code already used")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired reset token")
	ErrInvalidToken          = errors.New("unauthorized")
	ErrSessionNotActive      = errors.New("session not active")
	ErrTransient             = errors.New("transient store error")
)

// ValidationError carries per-field messages. errors.Is(err, ErrValidation)
// holds for it.
type ValidationError struct {
	Fields []utils.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + e.Fields[0].Field + " " + e.Fields[0].Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: []utils.FieldError{{Field: field, Message: msg}}}
}

// Reasons a bearer token is rejected. They go to logs only; callers see
// ErrInvalidToken.
const (
	ReasonMalformed = "malformed"
	ReasonExpired   = "expired"
	ReasonRevoked   = "revoked"
	ReasonUnknown   = "unknown_session"
	ReasonBackend   = "backend"
)

type TokenError struct {
	Reason string
	Err    error
}

func (e *TokenError) Error() string {
	if e.Err != nil {
		return "invalid token (" + e.Reason + "): " + e.Err.Error()
	}
	return "invalid token (" + e.Reason + ")"
}

func (e *TokenError) Is(target error) bool { return target == ErrInvalidToken }

func (e *TokenError) Unwrap() error { return e.Err }

// Temporary is true when the session store, not the token, failed.
func (e *TokenError) Temporary() bool { return e.Reason == ReasonBackend }
