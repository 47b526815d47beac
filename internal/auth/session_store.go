package auth

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type GormSessionStore struct {
	db *gorm.DB
}

func NewGormSessionStore(d *gorm.DB) *GormSessionStore {
	return &GormSessionStore{db: d}
}

func (s *GormSessionStore) Create(ctx context.Context, sess *Session) error {
	return translateError(s.db.WithContext(ctx).Create(sess).Error)
}

func (s *GormSessionStore) Find(ctx context.Context, id string) (*Session, error) {
	var sess Session
	if err := s.db.WithContext(ctx).First(&sess, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &sess, nil
}

func (s *GormSessionStore) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL AND expires_at > ?", id, at).
		Update("revoked_at", at)
	if res.Error != nil {
		return false, translateError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormSessionStore) RevokeAll(ctx context.Context, accountID string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("account_id = ? AND revoked_at IS NULL AND expires_at > ?", accountID, at).
		Update("revoked_at", at)
	if res.Error != nil {
		return 0, translateError(res.Error)
	}
	return res.RowsAffected, nil
}

// NewGormStores wires every store to the same pool.
func NewGormStores(d *gorm.DB) Stores {
	return Stores{
		Accounts:   NewGormAccountStore(d),
		Challenges: NewGormChallengeStore(d),
		Resets:     NewGormResetTokenStore(d),
		Sessions:   NewGormSessionStore(d),
	}
}
