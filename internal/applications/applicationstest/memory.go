// Package applicationstest provides an in-memory applications.Store with
// the same semantics as the postgres one.
package applicationstest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/lacpa/lacpa-backend/internal/applications"
)

type Store struct {
	mu          sync.Mutex
	individuals map[string]applications.IndividualApplication
	firms       map[string]applications.FirmApplication

	// Err, when set, is returned from every call.
	Err error
}

func NewStore() *Store {
	return &Store{
		individuals: map[string]applications.IndividualApplication{},
		firms:       map[string]applications.FirmApplication{},
	}
}

func (s *Store) CreateIndividual(_ context.Context, a *applications.IndividualApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.individuals {
		if existing.Status.Open() && strings.EqualFold(existing.Email, a.Email) {
			return applications.ErrOpenApplication
		}
	}
	s.individuals[a.ID] = *a
	return nil
}

func (s *Store) CreateFirm(_ context.Context, a *applications.FirmApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, existing := range s.firms {
		if existing.Status.Open() && strings.EqualFold(existing.Email, a.Email) {
			return applications.ErrOpenApplication
		}
	}
	s.firms[a.ID] = *a
	return nil
}

func (s *Store) GetIndividual(_ context.Context, id string) (*applications.IndividualApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	a, ok := s.individuals[id]
	if !ok {
		return nil, applications.ErrNotFound
	}
	return &a, nil
}

func (s *Store) GetFirm(_ context.Context, id string) (*applications.FirmApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	a, ok := s.firms[id]
	if !ok {
		return nil, applications.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListIndividual(_ context.Context, q applications.ListQuery) ([]applications.IndividualApplication, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	rows := make([]applications.IndividualApplication, 0, len(s.individuals))
	for _, a := range s.individuals {
		if matches(q, a.Review, a.FirstName+" "+a.LastName, a.Email) {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SubmittedAt.After(rows[j].SubmittedAt) })
	return page(rows, q)
}

func (s *Store) ListFirm(_ context.Context, q applications.ListQuery) ([]applications.FirmApplication, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	rows := make([]applications.FirmApplication, 0, len(s.firms))
	for _, a := range s.firms {
		if matches(q, a.Review, a.FirmName, a.Email) {
			rows = append(rows, a)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SubmittedAt.After(rows[j].SubmittedAt) })
	return page(rows, q)
}

func (s *Store) Decide(_ context.Context, kind applications.Kind, id string, from applications.Status, d applications.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	switch kind {
	case applications.KindIndividual:
		a, ok := s.individuals[id]
		if !ok || a.Status != from {
			return applications.ErrInvalidTransition
		}
		apply(&a.Review, d)
		a.UpdatedAt = d.At
		s.individuals[id] = a
	case applications.KindFirm:
		a, ok := s.firms[id]
		if !ok || a.Status != from {
			return applications.ErrInvalidTransition
		}
		apply(&a.Review, d)
		a.UpdatedAt = d.At
		s.firms[id] = a
	default:
		return applications.ErrNotFound
	}
	return nil
}

func apply(r *applications.Review, d applications.Decision) {
	at, by := d.At, d.ReviewerID
	r.Status = d.Status
	r.ReviewNotes = d.Notes
	r.ReviewedAt = &at
	r.ReviewedBy = &by
}

func matches(q applications.ListQuery, r applications.Review, name, email string) bool {
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), term) || strings.Contains(strings.ToLower(email), term)
}

func page[T any](rows []T, q applications.ListQuery) ([]T, int64, error) {
	total := int64(len(rows))
	start := q.Offset()
	if start > len(rows) {
		start = len(rows)
	}
	end := start + q.PageSize
	if q.PageSize <= 0 || end > len(rows) {
		end = len(rows)
	}
	return rows[start:end], total, nil
}
