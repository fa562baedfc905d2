package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	// CycleStatusInProgress marks a cycle whose window contains now and whose
	// requirement is not yet met.
	CycleStatusInProgress = "in_progress"
	// CycleStatusCompleted marks a cycle whose credit requirement is met.
	CycleStatusCompleted = "completed"
	// CycleStatusEndingSoon marks an incomplete cycle close to its end date.
	CycleStatusEndingSoon = "ending_soon"
	// CycleStatusOverdue marks an incomplete cycle whose end date has passed.
	CycleStatusOverdue = "overdue"
)

// ComplianceCycle is a practitioner's multi-year obligation window. Cycles are
// generated from the credit rule in force at cycle start and are read-only to
// the compliance engine.
type ComplianceCycle struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PractitionerID  string          `gorm:"size:64;not null;index" json:"practitioner_id"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         time.Time       `gorm:"not null" json:"end_date"`
	RequiredCredits decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"required_credits"`
	CategoryCaps    datatypes.JSON  `gorm:"type:json" json:"category_caps"`
	CreditRuleID    *uint           `gorm:"index" json:"credit_rule_id"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Contains reports whether the cycle window includes the given instant. Both
// boundaries are inclusive.
func (c ComplianceCycle) Contains(at time.Time) bool {
	return !at.Before(c.StartDate) && !at.After(c.EndDate)
}

// Caps decodes the per-category cap map, validating its shape first. An empty
// column yields an empty map (no caps configured).
func (c ComplianceCycle) Caps() (map[ActivityType]decimal.Decimal, error) {
	return ParseCategoryCaps(c.CategoryCaps)
}

// CreditRule is a system-wide policy describing the total credit requirement
// and per-category caps applied when a cycle is generated.
type CreditRule struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Name            string          `gorm:"size:255;not null" json:"name"`
	RequiredCredits decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"required_credits"`
	CycleYears      int             `gorm:"not null" json:"cycle_years"`
	CategoryCaps    datatypes.JSON  `gorm:"type:json" json:"category_caps"`
	EffectiveFrom   time.Time       `gorm:"not null" json:"effective_from"`
	EffectiveTo     *time.Time      `json:"effective_to"`
	Enabled         bool            `gorm:"not null" json:"enabled"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// InForce reports whether the rule applies at the given instant.
func (r CreditRule) InForce(at time.Time) bool {
	if !r.Enabled {
		return false
	}
	if at.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveTo != nil && at.After(*r.EffectiveTo) {
		return false
	}
	return true
}
