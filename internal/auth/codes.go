package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// recentWindow bounds how many past challenges Verify compares against.
// Anything older than that is reported as an invalid code.
const recentWindow = 10

// CodeIssuer issues and checks one-time numeric codes per (email, purpose).
type CodeIssuer struct {
	store       ChallengeStore
	ttl         time.Duration
	maxAttempts int
	random      io.Reader
	now         func() time.Time
}

func NewCodeIssuer(store ChallengeStore, ttl time.Duration, maxAttempts int) *CodeIssuer {
	return &CodeIssuer{
		store:       store,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		random:      rand.Reader,
		now:         time.Now,
	}
}

// Issue creates a fresh code for (email, purpose), invalidating any code
// still active for that pair. The plaintext code is returned once and not
// stored.
func (ci *CodeIssuer) Issue(ctx context.Context, email string, purpose Purpose) (string, time.Time, error) {
	code, err := generateCode(ci.random)
	if err != nil {
		return "", time.Time{}, err
	}

	now := ci.now()
	ch := &VerificationChallenge{
		ID:        uuid.NewString(),
		Email:     email,
		Purpose:   purpose,
		CodeHash:  hashSecret(code),
		ExpiresAt: now.Add(ci.ttl),
		CreatedAt: now,
	}
	if err := ci.store.Replace(ctx, ch, now); err != nil {
		return "", time.Time{}, err
	}
	return code, ch.ExpiresAt, nil
}

// Verify checks code against the recent challenges of email.
//
// A code that matches nothing, or only a superseded challenge, is
// ErrInvalidCode. A consumed match is ErrAlreadyConsumed and an expired one
// ErrExpired. A live match is consumed exactly once.
func (ci *CodeIssuer) Verify(ctx context.Context, email, code string) (*VerificationChallenge, error) {
	if !isNumericCode(code) {
		return nil, ErrInvalidCode
	}

	recent, err := ci.store.Recent(ctx, email, recentWindow)
	if err != nil {
		return nil, err
	}

	now := ci.now()
	var match *VerificationChallenge
	for i := range recent {
		// Compare every candidate so timing does not depend on position.
		if secretMatches(recent[i].CodeHash, code) && match == nil {
			match = &recent[i]
		}
	}

	switch {
	case match == nil:
		if _, err := ci.store.RecordFailure(ctx, email, ci.maxAttempts, now); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCode
	case match.ConsumedAt != nil:
		return nil, ErrAlreadyConsumed
	case match.SupersededAt != nil:
		return nil, ErrInvalidCode
	case !now.Before(match.ExpiresAt):
		return nil, ErrExpired
	}

	// Between Recent and Consume another caller may have consumed the
	// challenge or a resend may have superseded it; Consume says which.
	if err := ci.store.Consume(ctx, match.ID, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	match.ConsumedAt = &now
	return match, nil
}

// LatestPurpose returns the purpose of the newest challenge for email.
func (ci *CodeIssuer) LatestPurpose(ctx context.Context, email string) (Purpose, bool, error) {
	recent, err := ci.store.Recent(ctx, email, 1)
	if err != nil {
		return "", false, err
	}
	if len(recent) == 0 {
		return "", false, nil
	}
	return recent[0].Purpose, true, nil
}
