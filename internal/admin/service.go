// Package admin is the member-management API for LACPA staff: creating and
// listing accounts, changing roles and activating or deactivating them.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/utils"
)

// ErrSelfChange is returned when an admin tries to demote or deactivate
// their own account.
var ErrSelfChange = errors.New("cannot change own role or status")

// SessionRevoker ends every session of an account. *auth.TokenIssuer
// implements it.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, accountID string) (int64, error)
}

// Provisioner creates verified accounts without the code flow.
// *auth.Service implements it.
type Provisioner interface {
	ProvisionAccount(ctx context.Context, in auth.ProvisionInput) (*auth.Account, error)
}

type Service struct {
	accounts    auth.AccountStore
	sessions    SessionRevoker
	provisioner Provisioner
	logger      logging.Logger
}

func NewService(accounts auth.AccountStore, sessions SessionRevoker, provisioner Provisioner, logger logging.Logger) *Service {
	return &Service{
		accounts:    accounts,
		sessions:    sessions,
		provisioner: provisioner,
		logger:      logger.With("component", "admin"),
	}
}

type CreateMemberInput struct {
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

// CreateMember opens a verified, active account. The role defaults to
// admin, since staff accounts are the reason this exists; members normally
// sign up themselves.
func (s *Service) CreateMember(ctx context.Context, actorID string, in CreateMemberInput) (*auth.Account, error) {
	if in.Role == "" {
		in.Role = auth.RoleAdmin
	}
	acc, err := s.provisioner.ProvisionAccount(ctx, auth.ProvisionInput{
		FullName: in.FullName,
		Email:    in.Email,
		Password: in.Password,
		Role:     in.Role,
		Verified: true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account created by admin", "actor_id", actorID, "account_id", acc.ID, "role", acc.Role)
	return acc, nil
}

func (s *Service) ListMembers(ctx context.Context, q auth.ListQuery) ([]auth.AccountView, int64, error) {
	if q.Role != "" && !q.Role.Valid() {
		return nil, 0, &auth.ValidationError{Fields: roleField()}
	}
	rows, total, err := s.accounts.List(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list members: %w", err)
	}
	out := make([]auth.AccountView, len(rows))
	for i := range rows {
		out[i] = rows[i].View()
	}
	return out, total, nil
}

func (s *Service) GetMember(ctx context.Context, id string) (*auth.Account, error) {
	return s.accounts.FindByID(ctx, id)
}

func (s *Service) SetRole(ctx context.Context, actorID, id string, role auth.Role) (*auth.Account, error) {
	if !role.Valid() {
		return nil, &auth.ValidationError{Fields: roleField()}
	}
	if actorID == id && role != auth.RoleAdmin {
		return nil, ErrSelfChange
	}

	acc, err := s.accounts.UpdateRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "member role changed", "actor_id", actorID, "account_id", id, "role", role)
	return acc, nil
}

// SetActive toggles the account. Deactivation also ends every session, so
// the member is signed out everywhere at once.
func (s *Service) SetActive(ctx context.Context, actorID, id string, active bool) (*auth.Account, error) {
	if actorID == id && !active {
		return nil, ErrSelfChange
	}

	acc, err := s.accounts.SetActive(ctx, id, active)
	if err != nil {
		return nil, err
	}

	var revoked int64
	if !active {
		revoked, err = s.sessions.RevokeAll(ctx, id)
		if err != nil {
			return nil, err
		}
	}
	s.logger.Info(ctx, "member status changed", "actor_id", actorID, "account_id", id, "active", active, "sessions_revoked", revoked)
	return acc, nil
}

func roleField() []utils.FieldError {
	return []utils.FieldError{{Field: "role", Message: "must be member or admin"}}
}
