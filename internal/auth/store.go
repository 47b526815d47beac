package auth

import (
	"context"
	"time"
)

// AccountStore is the credential store. It is the authority for email and
// LACPA id uniqueness: Create reports ErrDuplicateEmail or
// ErrDuplicateLACPAID from the unique indexes, never from a pre-check.
type AccountStore interface {
	Create(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	// FindByLoginID accepts a LACPA id or, when it contains "@", an email.
	FindByLoginID(ctx context.Context, loginID string) (*Account, error)
	MarkVerified(ctx context.Context, email string) error
	UpdatePasswordHash(ctx context.Context, email, hash string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, q ListQuery) ([]Account, int64, error)
	UpdateRole(ctx context.Context, id string, role Role) (*Account, error)
	SetActive(ctx context.Context, id string, active bool) (*Account, error)
}

type ListQuery struct {
	Page     int
	PageSize int
	// Search matches name, email or LACPA id, case-insensitively.
	Search string
	Role   Role
}

func (q ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

type ChallengeStore interface {
	// Replace supersedes every active challenge for (email, purpose) and
	// inserts c, atomically.
	Replace(ctx context.Context, c *VerificationChallenge, now time.Time) error
	// Recent returns up to limit challenges for email, newest first.
	Recent(ctx context.Context, email string, limit int) ([]VerificationChallenge, error)
	// Consume marks the challenge used. ErrAlreadyConsumed when another
	// caller got there first.
	Consume(ctx context.Context, id string, at time.Time) error
	// RecordFailure bumps the attempt counter of the active challenges for
	// email and supersedes those that reached max. It reports whether any
	// challenge was burned.
	RecordFailure(ctx context.Context, email string, max int, now time.Time) (bool, error)
}

type ResetTokenStore interface {
	Create(ctx context.Context, t *ResetToken) error
	// Consume atomically marks an unexpired, unconsumed token as used and
	// returns it. ErrNotFound otherwise.
	Consume(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error)
	// ConsumeOutstanding burns every live token of purpose for email.
	ConsumeOutstanding(ctx context.Context, email string, purpose Purpose, now time.Time) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, id string) (*Session, error)
	// Revoke ends an active session. It returns false when the session was
	// already revoked or expired.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAll(ctx context.Context, accountID string, at time.Time) (int64, error)
}

// Stores bundles one backend's implementations.
type Stores struct {
	Accounts   AccountStore
	Challenges ChallengeStore
	Resets     ResetTokenStore
	Sessions   SessionStore
}
