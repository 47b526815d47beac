package auth

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormResetTokenStore struct {
	db *gorm.DB
}

func NewGormResetTokenStore(d *gorm.DB) *GormResetTokenStore {
	return &GormResetTokenStore{db: d}
}

func (s *GormResetTokenStore) Create(ctx context.Context, t *ResetToken) error {
	return translateError(s.db.WithContext(ctx).Create(t).Error)
}

func (s *GormResetTokenStore) Consume(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error) {
	var rows []ResetToken
	res := s.db.WithContext(ctx).Model(&rows).
		Clauses(clause.Returning{}).
		Where("token_hash = ? AND consumed_at IS NULL AND expires_at > ?", tokenHash, now).
		Update("consumed_at", now)
	if res.Error != nil {
		return nil, translateError(res.Error)
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *GormResetTokenStore) ConsumeOutstanding(ctx context.Context, email string, purpose Purpose, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&ResetToken{}).
		Where("email = ? AND purpose = ? AND consumed_at IS NULL AND expires_at > ?", email, purpose, now).
		Update("consumed_at", now)
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}
