package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lacpa/lacpa-backend/internal/utils"
)

// Claims is the payload of a session token. The registered jti claim is the
// id of the server-side session record.
type Claims struct {
	LACPAID string `json:"lacpa_id"`
	Role    Role   `json:"role"`
	jwt.RegisteredClaims
}

// SessionMeta describes the client a session was issued to.
type SessionMeta struct {
	UserAgent string
	IP        string
}

// TokenIssuer mints, validates and revokes bearer tokens. A token is only
// valid while its signature checks out, it has not expired, and its session
// record is active.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	sessions SessionStore
	now      func() time.Time
}

func NewTokenIssuer(secret, issuer string, ttl time.Duration, sessions SessionStore) *TokenIssuer {
	return &TokenIssuer{
		secret:   []byte(secret),
		issuer:   issuer,
		ttl:      ttl,
		sessions: sessions,
		now:      time.Now,
	}
}

func (ti *TokenIssuer) Issue(ctx context.Context, a *Account, meta SessionMeta) (string, time.Time, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)
	sid := uuid.NewString()

	sess := &Session{
		ID:        sid,
		AccountID: a.ID,
		ExpiresAt: exp,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
		CreatedAt: now,
	}
	if err := ti.sessions.Create(ctx, sess); err != nil {
		return "", time.Time{}, fmt.Errorf("create session: %w", err)
	}

	claims := Claims{
		LACPAID: a.LACPAID,
		Role:    a.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sid,
			Subject:   a.ID,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (ti *TokenIssuer) keyFunc(*jwt.Token) (any, error) { return ti.secret, nil }

func (ti *TokenIssuer) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithTimeFunc(ti.now),
	)
	claims := &Claims{}
	if _, err := jwt.ParseWithClaims(token, claims, ti.keyFunc, opts...); err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("token missing jti or sub")
	}
	return claims, nil
}

// Validate returns the identity behind token. Every failure satisfies
// errors.Is(err, ErrInvalidToken); the *TokenError reason is for logs.
func (ti *TokenIssuer) Validate(ctx context.Context, token string) (utils.Identity, error) {
	claims, err := ti.parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return utils.Identity{}, &TokenError{Reason: ReasonExpired, Err: err}
		}
		return utils.Identity{}, &TokenError{Reason: ReasonMalformed, Err: err}
	}

	sess, err := ti.sessions.Find(ctx, claims.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return utils.Identity{}, &TokenError{Reason: ReasonUnknown}
	case err != nil:
		return utils.Identity{}, &TokenError{Reason: ReasonBackend, Err: err}
	case sess.AccountID != claims.Subject:
		return utils.Identity{}, &TokenError{Reason: ReasonUnknown}
	case sess.RevokedAt != nil:
		return utils.Identity{}, &TokenError{Reason: ReasonRevoked}
	case !ti.now().Before(sess.ExpiresAt):
		return utils.Identity{}, &TokenError{Reason: ReasonExpired}
	}

	return utils.Identity{
		AccountID: claims.Subject,
		LACPAID:   claims.LACPAID,
		Role:      string(claims.Role),
		SessionID: claims.ID,
	}, nil
}

// Revoke ends the session behind token. A correctly signed token whose
// session is already revoked or expired yields ErrSessionNotActive; a forged
// or garbled token yields a *TokenError.
func (ti *TokenIssuer) Revoke(ctx context.Context, token string) error {
	claims, err := ti.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return &TokenError{Reason: ReasonMalformed, Err: err}
	}

	ok, err := ti.sessions.Revoke(ctx, claims.ID, ti.now())
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if !ok {
		return ErrSessionNotActive
	}
	return nil
}

// RevokeAll ends every active session of the account.
func (ti *TokenIssuer) RevokeAll(ctx context.Context, accountID string) (int64, error) {
	n, err := ti.sessions.RevokeAll(ctx, accountID, ti.now())
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	return n, nil
}
