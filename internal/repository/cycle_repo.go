package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/medcompli/cme-go-api/internal/models"
)

// CycleRepository stores compliance cycles. Cycles are created once from the
// credit rule in force and are read-only to the engine afterwards.
type CycleRepository interface {
	ListByPractitioner(ctx context.Context, practitionerID string) ([]models.ComplianceCycle, error)
	ListContaining(ctx context.Context, practitionerID string, at time.Time) ([]models.ComplianceCycle, error)
	Create(ctx context.Context, cycle *models.ComplianceCycle) error
}

type cycleRepository struct {
	db *gorm.DB
}

// NewCycleRepository constructs the cycle repository.
func NewCycleRepository(db *gorm.DB) CycleRepository {
	return &cycleRepository{db: db}
}

func (r *cycleRepository) ListByPractitioner(ctx context.Context, practitionerID string) ([]models.ComplianceCycle, error) {
	var cycles []models.ComplianceCycle
	if err := r.db.WithContext(ctx).
		Where("practitioner_id = ?", practitionerID).
		Order("start_date DESC").
		Find(&cycles).Error; err != nil {
		return nil, err
	}
	return cycles, nil
}

func (r *cycleRepository) Create(ctx context.Context, cycle *models.ComplianceCycle) error {
	return r.db.WithContext(ctx).Create(cycle).Error
}

// ListContaining returns cycles whose window contains the given instant,
// newest start first so the caller's tie-break is a simple head pick.
func (r *cycleRepository) ListContaining(ctx context.Context, practitionerID string, at time.Time) ([]models.ComplianceCycle, error) {
	var cycles []models.ComplianceCycle
	if err := r.db.WithContext(ctx).
		Where("practitioner_id = ?", practitionerID).
		Where("start_date <= ?", at).
		Where("end_date >= ?", at).
		Order("start_date DESC").
		Find(&cycles).Error; err != nil {
		return nil, err
	}
	return cycles, nil
}
