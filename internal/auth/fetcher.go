package auth

import (
	"context"
	"errors"

	"github.com/lacpa/lacpa-backend/internal/middleware"
)

// RoleInfo serves middleware.AdminMiddleware from the credential store.
type RoleInfo struct {
	Accounts AccountStore
}

func (ri RoleInfo) FindRoleByAccountID(ctx context.Context, accountID string) (string, error) {
	acc, err := ri.Accounts.FindByID(ctx, accountID)
	if errors.Is(err, ErrNotFound) {
		return "", middleware.ErrRoleNotFound
	}
	if err != nil {
		return "", err
	}
	if !acc.IsActive {
		// A deactivated admin loses admin access too.
		return string(RoleMember), nil
	}
	return string(acc.Role), nil
}
