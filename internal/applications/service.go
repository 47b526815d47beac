package applications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/utils"
)

const maxNotesLen = 2000

type Service struct {
	store  Store
	logger logging.Logger
	now    func() time.Time
}

func NewService(store Store, logger logging.Logger) *Service {
	return &Service{store: store, logger: logger.With("component", "applications"), now: time.Now}
}

// SubmitIndividual files a new individual application. Workflow fields
// sent by the client are ignored.
func (s *Service) SubmitIndividual(ctx context.Context, a *IndividualApplication) error {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.MiddleName = strings.TrimSpace(a.MiddleName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Email = auth.NormalizeEmail(a.Email)
	if err := auth.ValidateStruct(a); err != nil {
		return err
	}

	a.ID, a.Review, a.CreatedAt, a.UpdatedAt = s.stamp()
	if err := s.store.CreateIndividual(ctx, a); err != nil {
		return err
	}
	s.logger.Info(ctx, "application submitted", "kind", KindIndividual, "application_id", a.ID)
	return nil
}

func (s *Service) SubmitFirm(ctx context.Context, a *FirmApplication) error {
	a.FirmName = strings.TrimSpace(a.FirmName)
	a.RepresentativeName = strings.TrimSpace(a.RepresentativeName)
	a.Email = auth.NormalizeEmail(a.Email)
	if a.RepresentativeEmail != "" {
		a.RepresentativeEmail = auth.NormalizeEmail(a.RepresentativeEmail)
	}
	if err := auth.ValidateStruct(a); err != nil {
		return err
	}

	a.ID, a.Review, a.CreatedAt, a.UpdatedAt = s.stamp()
	if err := s.store.CreateFirm(ctx, a); err != nil {
		return err
	}
	s.logger.Info(ctx, "application submitted", "kind", KindFirm, "application_id", a.ID)
	return nil
}

func (s *Service) stamp() (string, Review, time.Time, time.Time) {
	now := s.now()
	return uuid.NewString(), Review{Status: StatusPending, SubmittedAt: now}, now, now
}

// List returns a page of applications of kind, newest first.
func (s *Service) List(ctx context.Context, kind Kind, q ListQuery) (any, int64, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, 0, statusField()
	}
	switch kind {
	case KindIndividual:
		return s.store.ListIndividual(ctx, q)
	case KindFirm:
		return s.store.ListFirm(ctx, q)
	}
	return nil, 0, ErrNotFound
}

func (s *Service) Get(ctx context.Context, kind Kind, id string) (any, error) {
	switch kind {
	case KindIndividual:
		return s.store.GetIndividual(ctx, id)
	case KindFirm:
		return s.store.GetFirm(ctx, id)
	}
	return nil, ErrNotFound
}

func (s *Service) currentStatus(ctx context.Context, kind Kind, id string) (Status, error) {
	switch kind {
	case KindIndividual:
		a, err := s.store.GetIndividual(ctx, id)
		if err != nil {
			return "", err
		}
		return a.Status, nil
	case KindFirm:
		a, err := s.store.GetFirm(ctx, id)
		if err != nil {
			return "", err
		}
		return a.Status, nil
	}
	return "", ErrNotFound
}

// Decide moves an application to status on behalf of reviewerID. Only the
// moves in transitions are allowed; two reviewers racing on the same
// application cannot both win.
func (s *Service) Decide(ctx context.Context, kind Kind, id, reviewerID string, status Status, notes string) (any, error) {
	if !status.Valid() {
		return nil, statusField()
	}
	notes = strings.TrimSpace(notes)
	if len(notes) > maxNotesLen {
		return nil, &auth.ValidationError{Fields: []utils.FieldError{{Field: "review_notes", Message: "must be at most 2000 characters"}}}
	}

	current, err := s.currentStatus(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if !current.CanMoveTo(status) {
		return nil, ErrInvalidTransition
	}

	err = s.store.Decide(ctx, kind, id, current, Decision{Status: status, Notes: notes, ReviewerID: reviewerID, At: s.now()})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "application reviewed", "kind", kind, "application_id", id, "reviewer_id", reviewerID, "from", current, "to", status)
	return s.Get(ctx, kind, id)
}

func statusField() error {
	return &auth.ValidationError{Fields: []utils.FieldError{{Field: "status", Message: "must be one of: pending, under_review, approved, rejected"}}}
}
