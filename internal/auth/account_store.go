package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lacpa/lacpa-backend/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	emailIndex   = "idx_accounts_email_lower"
	lacpaIDIndex = "idx_accounts_lacpa_id"
)

// translateError maps driver errors onto the package sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case emailIndex:
			return ErrDuplicateEmail
		case lacpaIDIndex:
			return ErrDuplicateLACPAID
		}
		return fmt.Errorf("unique violation on %s: %w", constraint, err)
	}
	if db.IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}

type GormAccountStore struct {
	db *gorm.DB
}

func NewGormAccountStore(d *gorm.DB) *GormAccountStore {
	return &GormAccountStore{db: d}
}

func (s *GormAccountStore) Create(ctx context.Context, a *Account) error {
	return translateError(s.db.WithContext(ctx).Create(a).Error)
}

func (s *GormAccountStore) FindByID(ctx context.Context, id string) (*Account, error) {
	var a Account
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

func (s *GormAccountStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	var a Account
	if err := s.db.WithContext(ctx).First(&a, "LOWER(email) = LOWER(?)", email).Error; err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

func (s *GormAccountStore) FindByLoginID(ctx context.Context, loginID string) (*Account, error) {
	if strings.Contains(loginID, "@") {
		return s.FindByEmail(ctx, loginID)
	}
	var a Account
	if err := s.db.WithContext(ctx).First(&a, "UPPER(lacpa_id) = UPPER(?)", loginID).Error; err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

func (s *GormAccountStore) MarkVerified(ctx context.Context, email string) error {
	return s.updateByEmail(ctx, email, map[string]any{"is_verified": true})
}

func (s *GormAccountStore) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	return s.updateByEmail(ctx, email, map[string]any{"password_hash": hash})
}

func (s *GormAccountStore) updateByEmail(ctx context.Context, email string, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	res := s.db.WithContext(ctx).Model(&Account{}).Where("LOWER(email) = LOWER(?)", email).Updates(fields)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormAccountStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&Account{}).Where("id = ?", id).
		Updates(map[string]any{"last_login_at": at, "updated_at": at})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormAccountStore) List(ctx context.Context, q ListQuery) ([]Account, int64, error) {
	query := s.db.WithContext(ctx).Model(&Account{})
	if q.Search != "" {
		like := "%" + strings.ToLower(q.Search) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(lacpa_id) LIKE ?", like, like, like)
	}
	if q.Role != "" {
		query = query.Where("role = ?", q.Role)
	}
	// Count and Find share the filters.
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var accounts []Account
	err := query.Order("created_at DESC").Offset(q.Offset()).Limit(q.PageSize).Find(&accounts).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return accounts, total, nil
}

func (s *GormAccountStore) UpdateRole(ctx context.Context, id string, role Role) (*Account, error) {
	return s.updateReturning(ctx, id, map[string]any{"role": role})
}

func (s *GormAccountStore) SetActive(ctx context.Context, id string, active bool) (*Account, error) {
	return s.updateReturning(ctx, id, map[string]any{"is_active": active})
}

func (s *GormAccountStore) updateReturning(ctx context.Context, id string, fields map[string]any) (*Account, error) {
	fields["updated_at"] = time.Now()
	var rows []Account
	res := s.db.WithContext(ctx).Model(&rows).Clauses(clause.Returning{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return nil, translateError(res.Error)
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}
