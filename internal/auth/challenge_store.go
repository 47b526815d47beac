package auth

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type GormChallengeStore struct {
	db *gorm.DB
}

func NewGormChallengeStore(d *gorm.DB) *GormChallengeStore {
	return &GormChallengeStore{db: d}
}

const (
	activeChallenge = "consumed_at IS NULL AND superseded_at IS NULL AND expires_at > ?"
	openChallenge   = "consumed_at IS NULL AND superseded_at IS NULL"
)

// Replace holds a transaction-scoped advisory lock on (email, purpose), so
// concurrent issues for the same pair run one after the other. Expired
// challenges are closed too: idx_challenges_one_open allows a single open
// row per pair.
func (s *GormChallengeStore) Replace(ctx context.Context, c *VerificationChallenge, now time.Time) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", challengeLockKey(c.Email, c.Purpose)).Error; err != nil {
			return err
		}
		err := tx.Model(&VerificationChallenge{}).
			Where("email = ? AND purpose = ?", c.Email, c.Purpose).
			Where(openChallenge).
			Update("superseded_at", now).Error
		if err != nil {
			return err
		}
		return tx.Create(c).Error
	})
	return translateError(err)
}

func challengeLockKey(email string, purpose Purpose) string {
	return "challenge:" + email + ":" + string(purpose)
}

func (s *GormChallengeStore) Recent(ctx context.Context, email string, limit int) ([]VerificationChallenge, error) {
	var out []VerificationChallenge
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

// Consume is the serialization point for concurrent verifies: the
// conditional update succeeds for exactly one caller. A loser re-reads the
// row to tell a superseded challenge from a consumed one.
func (s *GormChallengeStore) Consume(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&VerificationChallenge{}).
		Where("id = ?", id).
		Where(openChallenge).
		Update("consumed_at", at)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var row VerificationChallenge
	err := s.db.WithContext(ctx).Select("consumed_at", "superseded_at").Where("id = ?", id).Take(&row).Error
	if err != nil {
		return translateError(err)
	}
	if row.ConsumedAt == nil && row.SupersededAt != nil {
		return ErrInvalidCode
	}
	return ErrAlreadyConsumed
}

func (s *GormChallengeStore) RecordFailure(ctx context.Context, email string, max int, now time.Time) (bool, error) {
	var burned int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&VerificationChallenge{}).
			Where("email = ?", email).
			Where(activeChallenge, now).
			Update("attempts", gorm.Expr("attempts + 1")).Error
		if err != nil {
			return err
		}
		res := tx.Model(&VerificationChallenge{}).
			Where("email = ? AND attempts >= ?", email, max).
			Where(activeChallenge, now).
			Update("superseded_at", now)
		burned = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, translateError(err)
	}
	return burned > 0, nil
}
