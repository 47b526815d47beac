package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// retry runs fn under the store timeout and retries it once after a short
// backoff when it fails with ErrTransient. Only idempotent calls go through
// retry; state-changing calls that must not repeat use once.
func retry[T any](ctx context.Context, s *Service, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.logger.Warn(ctx, "retrying store call", "op", op, "error", err)
			select {
			case <-ctx.Done():
				return out, fmt.Errorf("%s: %w", op, ErrTransient)
			case <-time.After(s.opts.RetryBackoff):
			}
		}
		out, err = once(ctx, s, fn)
		if err == nil || !errors.Is(err, ErrTransient) {
			return out, err
		}
	}
	s.logger.Error(ctx, "store call failed", "op", op, "error", err)
	return out, err
}

func retryErr(ctx context.Context, s *Service, op string, fn func(context.Context) error) error {
	_, err := retry(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// once runs fn a single time under the store timeout.
func once[T any](ctx context.Context, s *Service, fn func(context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return fn(cctx)
}

// retryingChallenges applies the retry policy per store call, so a failure
// late in CodeIssuer.Verify never replays the steps before it. Consume and
// RecordFailure change state on success and run once.
type retryingChallenges struct {
	inner ChallengeStore
	s     *Service
}

func (r retryingChallenges) Replace(ctx context.Context, c *VerificationChallenge, now time.Time) error {
	return retryErr(ctx, r.s, "challenges.replace", func(ctx context.Context) error {
		return r.inner.Replace(ctx, c, now)
	})
}

func (r retryingChallenges) Recent(ctx context.Context, email string, limit int) ([]VerificationChallenge, error) {
	return retry(ctx, r.s, "challenges.recent", func(ctx context.Context) ([]VerificationChallenge, error) {
		return r.inner.Recent(ctx, email, limit)
	})
}

func (r retryingChallenges) Consume(ctx context.Context, id string, at time.Time) error {
	_, err := once(ctx, r.s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.Consume(ctx, id, at)
	})
	return err
}

func (r retryingChallenges) RecordFailure(ctx context.Context, email string, max int, now time.Time) (bool, error) {
	return once(ctx, r.s, func(ctx context.Context) (bool, error) {
		return r.inner.RecordFailure(ctx, email, max, now)
	})
}
