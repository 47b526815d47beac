package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSessionStore keeps one hash per session (TTL = remaining lifetime)
// and a set of session ids per account for RevokeAll.
type RedisSessionStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisSessionStore(rdb redis.UniversalClient, prefix string) *RedisSessionStore {
	if prefix == "" {
		prefix = "lacpa"
	}
	return &RedisSessionStore{rdb: rdb, prefix: prefix}
}

func (s *RedisSessionStore) sessionKey(id string) string {
	return s.prefix + ":session:" + id
}

func (s *RedisSessionStore) accountKey(accountID string) string {
	return s.prefix + ":account_sessions:" + accountID
}

// revokeSessionLua sets revoked_at only if the session exists, is not yet
// revoked and has not expired.
// KEYS[1] = session key
// ARGV[1] = revocation unix nanos
// Returns 1 on revoke, 0 otherwise.
var revokeSessionLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local revoked = redis.call('HGET', KEYS[1], 'revoked_at')
if revoked and revoked ~= '' then
  return 0
end
local expires = tonumber(redis.call('HGET', KEYS[1], 'expires_at'))
if expires and expires <= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'revoked_at', ARGV[1])
return 1
`)

func (s *RedisSessionStore) Create(ctx context.Context, sess *Session) error {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.ID)
	}

	key := s.sessionKey(sess.ID)
	accKey := s.accountKey(sess.AccountID)

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"account_id", sess.AccountID,
			"expires_at", strconv.FormatInt(sess.ExpiresAt.UnixNano(), 10),
			"created_at", strconv.FormatInt(sess.CreatedAt.UnixNano(), 10),
			"revoked_at", "",
			"user_agent", sess.UserAgent,
			"ip", sess.IP,
		)
		p.Expire(ctx, key, ttl)
		p.SAdd(ctx, accKey, sess.ID)
		p.Expire(ctx, accKey, ttl)
		return nil
	})
	return redisError(err)
}

func (s *RedisSessionStore) Find(ctx context.Context, id string) (*Session, error) {
	m, err := s.rdb.HGetAll(ctx, s.sessionKey(id)).Result()
	if err != nil {
		return nil, redisError(err)
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}

	sess := &Session{
		ID:        id,
		AccountID: m["account_id"],
		UserAgent: m["user_agent"],
		IP:        m["ip"],
	}
	if sess.ExpiresAt, err = parseNanos(m["expires_at"]); err != nil {
		return nil, fmt.Errorf("session %s expires_at: %w", id, err)
	}
	if sess.CreatedAt, err = parseNanos(m["created_at"]); err != nil {
		return nil, fmt.Errorf("session %s created_at: %w", id, err)
	}
	if v := m["revoked_at"]; v != "" {
		at, err := parseNanos(v)
		if err != nil {
			return nil, fmt.Errorf("session %s revoked_at: %w", id, err)
		}
		sess.RevokedAt = &at
	}
	return sess, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	n, err := revokeSessionLua.Run(ctx, s.rdb, []string{s.sessionKey(id)}, strconv.FormatInt(at.UnixNano(), 10)).Int()
	if err != nil {
		return false, redisError(err)
	}
	return n == 1, nil
}

func (s *RedisSessionStore) RevokeAll(ctx context.Context, accountID string, at time.Time) (int64, error) {
	ids, err := s.rdb.SMembers(ctx, s.accountKey(accountID)).Result()
	if err != nil {
		return 0, redisError(err)
	}

	var revoked int64
	for _, id := range ids {
		ok, err := s.Revoke(ctx, id, at)
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}
	return revoked, nil
}

func parseNanos(v string) (time.Time, error) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n), nil
}

func redisError(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
