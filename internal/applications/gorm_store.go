package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/db"
)

const (
	openIndividualIndex = "idx_individual_applications_open_email"
	openFirmIndex       = "idx_firm_applications_open_email"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if constraint, ok := db.UniqueViolation(err); ok {
		if constraint == openIndividualIndex || constraint == openFirmIndex {
			return ErrOpenApplication
		}
		return fmt.Errorf("unique violation on %s: %w", constraint, err)
	}
	if db.IsTransient(err) {
		return fmt.Errorf("%w: %v", auth.ErrTransient, err)
	}
	return err
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(d *gorm.DB) *GormStore {
	return &GormStore{db: d}
}

func (s *GormStore) CreateIndividual(ctx context.Context, a *IndividualApplication) error {
	return translateError(s.db.WithContext(ctx).Create(a).Error)
}

func (s *GormStore) CreateFirm(ctx context.Context, a *FirmApplication) error {
	return translateError(s.db.WithContext(ctx).Create(a).Error)
}

func (s *GormStore) GetIndividual(ctx context.Context, id string) (*IndividualApplication, error) {
	return get[IndividualApplication](ctx, s.db, id)
}

func (s *GormStore) GetFirm(ctx context.Context, id string) (*FirmApplication, error) {
	return get[FirmApplication](ctx, s.db, id)
}

func (s *GormStore) ListIndividual(ctx context.Context, q ListQuery) ([]IndividualApplication, int64, error) {
	return list[IndividualApplication](ctx, s.db, q, "first_name || ' ' || last_name")
}

func (s *GormStore) ListFirm(ctx context.Context, q ListQuery) ([]FirmApplication, int64, error) {
	return list[FirmApplication](ctx, s.db, q, "firm_name")
}

func (s *GormStore) Decide(ctx context.Context, kind Kind, id string, from Status, d Decision) error {
	var model any
	switch kind {
	case KindIndividual:
		model = &IndividualApplication{}
	case KindFirm:
		model = &FirmApplication{}
	default:
		return ErrNotFound
	}

	res := s.db.WithContext(ctx).Model(model).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":       d.Status,
			"review_notes": d.Notes,
			"reviewed_by":  d.ReviewerID,
			"reviewed_at":  d.At,
			"updated_at":   d.At,
		})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func get[T any](ctx context.Context, d *gorm.DB, id string) (*T, error) {
	var out T
	if err := d.WithContext(ctx).Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, translateError(err)
	}
	return &out, nil
}

// list pages rows of T newest first. nameExpr is the SQL the search term
// is matched against besides the email.
func list[T any](ctx context.Context, d *gorm.DB, q ListQuery, nameExpr string) ([]T, int64, error) {
	query := d.WithContext(ctx).Model(new(T))
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("(LOWER("+nameExpr+") LIKE ? OR LOWER(email) LIKE ?)", like, like)
	}
	// Count and Find share the filters.
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}
	var out []T
	err := query.Order("submitted_at DESC").Offset(q.Offset()).Limit(q.PageSize).Find(&out).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return out, total, nil
}
