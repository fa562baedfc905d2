package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/medcompli/cme-go-api/internal/models"
)

// CreditRuleRepository reads credit rule policies.
type CreditRuleRepository interface {
	List(ctx context.Context) ([]models.CreditRule, error)
	GetInForce(ctx context.Context, at time.Time) (models.CreditRule, error)
}

type creditRuleRepository struct {
	db *gorm.DB
}

// NewCreditRuleRepository constructs the credit rule repository.
func NewCreditRuleRepository(db *gorm.DB) CreditRuleRepository {
	return &creditRuleRepository{db: db}
}

func (r *creditRuleRepository) List(ctx context.Context) ([]models.CreditRule, error) {
	var rules []models.CreditRule
	if err := r.db.WithContext(ctx).Order("effective_from DESC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// GetInForce returns the enabled rule whose effective window contains the
// given instant. When several overlap the most recently effective wins.
func (r *creditRuleRepository) GetInForce(ctx context.Context, at time.Time) (models.CreditRule, error) {
	var rule models.CreditRule
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Where("effective_from <= ?", at).
		Where("effective_to IS NULL OR effective_to >= ?", at).
		Order("effective_from DESC").
		First(&rule).Error; err != nil {
		return models.CreditRule{}, err
	}
	return rule, nil
}
