// Package authtest provides in-memory auth stores with the same semantics as
// the postgres ones, for tests that should not need a database.
package authtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lacpa/lacpa-backend/internal/auth"
)

// Stores returns a fresh set of in-memory stores.
func Stores() auth.Stores {
	return auth.Stores{
		Accounts:   NewAccounts(),
		Challenges: NewChallenges(),
		Resets:     NewResets(),
		Sessions:   NewSessions(),
	}
}

type Accounts struct {
	mu   sync.Mutex
	byID map[string]auth.Account

	// Err, when set, is returned from every call.
	Err error
}

func NewAccounts() *Accounts { return &Accounts{byID: map[string]auth.Account{}} }

func (s *Accounts) Create(_ context.Context, a *auth.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.byID {
		if strings.EqualFold(existing.Email, a.Email) {
			return auth.ErrDuplicateEmail
		}
		if existing.LACPAID == a.LACPAID {
			return auth.ErrDuplicateLACPAID
		}
	}
	s.byID[a.ID] = *a
	return nil
}

func (s *Accounts) find(match func(a auth.Account) bool) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, a := range s.byID {
		if match(a) {
			out := a
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *Accounts) FindByID(_ context.Context, id string) (*auth.Account, error) {
	return s.find(func(a auth.Account) bool { return a.ID == id })
}

func (s *Accounts) FindByEmail(_ context.Context, email string) (*auth.Account, error) {
	return s.find(func(a auth.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (s *Accounts) FindByLoginID(ctx context.Context, loginID string) (*auth.Account, error) {
	if strings.Contains(loginID, "@") {
		return s.FindByEmail(ctx, loginID)
	}
	return s.find(func(a auth.Account) bool { return strings.EqualFold(a.LACPAID, loginID) })
}

func (s *Accounts) update(match func(a auth.Account) bool, fn func(a *auth.Account)) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for id, a := range s.byID {
		if match(a) {
			fn(&a)
			a.UpdatedAt = time.Now()
			s.byID[id] = a
			out := a
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func byEmail(email string) func(auth.Account) bool {
	return func(a auth.Account) bool { return strings.EqualFold(a.Email, email) }
}

func byID(id string) func(auth.Account) bool {
	return func(a auth.Account) bool { return a.ID == id }
}

func (s *Accounts) MarkVerified(_ context.Context, email string) error {
	_, err := s.update(byEmail(email), func(a *auth.Account) { a.IsVerified = true })
	return err
}

func (s *Accounts) UpdatePasswordHash(_ context.Context, email, hash string) error {
	_, err := s.update(byEmail(email), func(a *auth.Account) { a.PasswordHash = hash })
	return err
}

func (s *Accounts) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	_, err := s.update(byID(id), func(a *auth.Account) { a.LastLoginAt = &at })
	return err
}

func (s *Accounts) UpdateRole(_ context.Context, id string, role auth.Role) (*auth.Account, error) {
	return s.update(byID(id), func(a *auth.Account) { a.Role = role })
}

func (s *Accounts) SetActive(_ context.Context, id string, active bool) (*auth.Account, error) {
	return s.update(byID(id), func(a *auth.Account) { a.IsActive = active })
}

func (s *Accounts) List(_ context.Context, q auth.ListQuery) ([]auth.Account, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}

	search := strings.ToLower(q.Search)
	var all []auth.Account
	for _, a := range s.byID {
		if q.Role != "" && a.Role != q.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(a.FullName), search) &&
			!strings.Contains(strings.ToLower(a.Email), search) &&
			!strings.Contains(strings.ToLower(a.LACPAID), search) {
			continue
		}
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := q.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + q.PageSize
	if q.PageSize <= 0 || end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

type Challenges struct {
	mu   sync.Mutex
	rows []auth.VerificationChallenge
}

func NewChallenges() *Challenges { return &Challenges{} }

func (s *Challenges) Replace(_ context.Context, c *auth.VerificationChallenge, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		r := &s.rows[i]
		if r.Email == c.Email && r.Purpose == c.Purpose && r.ConsumedAt == nil && r.SupersededAt == nil {
			at := now
			r.SupersededAt = &at
		}
	}
	s.rows = append(s.rows, *c)
	return nil
}

func (s *Challenges) Recent(_ context.Context, email string, limit int) ([]auth.VerificationChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.VerificationChallenge
	// rows are appended in issue order, so walk backwards for newest first.
	for i := len(s.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if s.rows[i].Email == email {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *Challenges) Consume(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		r := &s.rows[i]
		if r.ID != id {
			continue
		}
		if r.ConsumedAt != nil {
			return auth.ErrAlreadyConsumed
		}
		if r.SupersededAt != nil {
			return auth.ErrInvalidCode
		}
		r.ConsumedAt = &at
		return nil
	}
	return auth.ErrNotFound
}

func (s *Challenges) RecordFailure(_ context.Context, email string, max int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	burned := false
	for i := range s.rows {
		r := &s.rows[i]
		if r.Email != email || !r.Active(now) {
			continue
		}
		r.Attempts++
		if r.Attempts >= max {
			at := now
			r.SupersededAt = &at
			burned = true
		}
	}
	return burned, nil
}

type Resets struct {
	mu   sync.Mutex
	rows []auth.ResetToken
}

func NewResets() *Resets { return &Resets{} }

func (s *Resets) Create(_ context.Context, t *auth.ResetToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, *t)
	return nil
}

func (s *Resets) Consume(_ context.Context, tokenHash string, now time.Time) (*auth.ResetToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		r := &s.rows[i]
		if r.TokenHash == tokenHash && r.ConsumedAt == nil && now.Before(r.ExpiresAt) {
			at := now
			r.ConsumedAt = &at
			out := *r
			return &out, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (s *Resets) ConsumeOutstanding(_ context.Context, email string, purpose auth.Purpose, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.rows {
		r := &s.rows[i]
		if r.Email == email && r.Purpose == purpose && r.ConsumedAt == nil && now.Before(r.ExpiresAt) {
			at := now
			r.ConsumedAt = &at
			n++
		}
	}
	return n, nil
}

type Sessions struct {
	mu   sync.Mutex
	byID map[string]auth.Session

	// Err, when set, is returned from every call.
	Err error
}

func NewSessions() *Sessions { return &Sessions{byID: map[string]auth.Session{}} }

func (s *Sessions) Create(_ context.Context, sess *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.byID[sess.ID] = *sess
	return nil
}

func (s *Sessions) Find(_ context.Context, id string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	sess, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &sess, nil
}

func (s *Sessions) Revoke(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	sess, ok := s.byID[id]
	if !ok || !sess.Active(at) {
		return false, nil
	}
	sess.RevokedAt = &at
	s.byID[id] = sess
	return true, nil
}

func (s *Sessions) RevokeAll(_ context.Context, accountID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for id, sess := range s.byID {
		if sess.AccountID == accountID && sess.Active(at) {
			sess.RevokedAt = &at
			s.byID[id] = sess
			n++
		}
	}
	return n, nil
}

// ActiveCount reports how many live sessions the account has.
func (s *Sessions) ActiveCount(accountID string, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.byID {
		if sess.AccountID == accountID && sess.Active(now) {
			n++
		}
	}
	return n
}
