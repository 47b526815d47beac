package utils

import (
	"context"
)

type contextKey string

const (
	ContextUserIDKey   contextKey = "userID"
	ContextIdentityKey contextKey = "identity"
)

// Identity is what the session gateway attaches to an authenticated request.
type Identity struct {
	AccountID string
	LACPAID   string
	Role      string
	SessionID string
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	ctx = context.WithValue(ctx, ContextIdentityKey, id)
	return context.WithValue(ctx, ContextUserIDKey, id.AccountID)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ContextIdentityKey).(Identity)
	return id, ok
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID := ctx.Value(ContextUserIDKey)
	userIDStr, ok := userID.(string)
	return userIDStr, ok && userIDStr != ""
}
