package applications

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("application not found")
	// ErrOpenApplication means the email already has an undecided
	// application of the same kind.
	ErrOpenApplication = errors.New("an open application already exists for this email")
	// ErrInvalidTransition means the requested status cannot follow the
	// current one, or the status changed while the review was submitted.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Decision is a reviewer's status change.
type Decision struct {
	Status     Status
	Notes      string
	ReviewerID string
	At         time.Time
}

// Store persists both application kinds. Create reports
// ErrOpenApplication from the open-application unique index. Decide applies
// d only while the stored status still equals from, and reports
// ErrInvalidTransition otherwise.
type Store interface {
	CreateIndividual(ctx context.Context, a *IndividualApplication) error
	CreateFirm(ctx context.Context, a *FirmApplication) error
	GetIndividual(ctx context.Context, id string) (*IndividualApplication, error)
	GetFirm(ctx context.Context, id string) (*FirmApplication, error)
	ListIndividual(ctx context.Context, q ListQuery) ([]IndividualApplication, int64, error)
	ListFirm(ctx context.Context, q ListQuery) ([]FirmApplication, int64, error)
	Decide(ctx context.Context, kind Kind, id string, from Status, d Decision) error
}
