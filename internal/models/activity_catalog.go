package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ActivityType categorises continuing-education activities for cap purposes.
type ActivityType string

const (
	// ActivityTypeCourse covers formal training courses.
	ActivityTypeCourse ActivityType = "course"
	// ActivityTypeConference covers conferences, seminars and workshops.
	ActivityTypeConference ActivityType = "conference"
	// ActivityTypeResearch covers research projects and publications.
	ActivityTypeResearch ActivityType = "research"
	// ActivityTypeReport covers scientific reports and case presentations.
	ActivityTypeReport ActivityType = "report"
)

// KnownActivityTypes lists every recognised activity category.
var KnownActivityTypes = []ActivityType{
	ActivityTypeCourse,
	ActivityTypeConference,
	ActivityTypeResearch,
	ActivityTypeReport,
}

// KnownActivityType reports whether the category is one of the recognised
// activity types.
func KnownActivityType(t ActivityType) bool {
	for _, known := range KnownActivityTypes {
		if known == t {
			return true
		}
	}
	return false
}

const (
	// CatalogStatusActive marks entries usable for new submissions.
	CatalogStatusActive = "active"
	// CatalogStatusInactive marks entries withdrawn by an administrator.
	CatalogStatusInactive = "inactive"
	// CatalogStatusExpired marks entries whose validity window has passed.
	CatalogStatusExpired = "expired"
)

// ActivityCatalogEntry is a reusable rule describing how a class of activity
// converts recorded hours into credits.
type ActivityCatalogEntry struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Name             string           `gorm:"size:255;not null" json:"name"`
	ActivityType     ActivityType     `gorm:"size:32;not null;index" json:"activity_type"`
	Unit             string           `gorm:"size:32" json:"unit"`
	ConversionRatio  decimal.Decimal  `gorm:"type:numeric(10,2);not null" json:"conversion_ratio"`
	MinHours         *decimal.Decimal `gorm:"type:numeric(10,2)" json:"min_hours"`
	MaxHours         *decimal.Decimal `gorm:"type:numeric(10,2)" json:"max_hours"`
	EvidenceRequired bool             `gorm:"not null;default:false" json:"evidence_required"`
	ValidFrom        *time.Time       `json:"valid_from"`
	ValidTo          *time.Time       `json:"valid_to"`
	OwnerUnitID      *uint            `gorm:"index" json:"owner_unit_id"`
	Status           string           `gorm:"size:32;not null;default:active" json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        gorm.DeletedAt   `gorm:"index" json:"-"`
}

// IsUsable reports whether the entry may back a new submission at the given time.
func (e ActivityCatalogEntry) IsUsable(at time.Time) bool {
	if e.Status != CatalogStatusActive {
		return false
	}
	if e.ValidFrom != nil && at.Before(*e.ValidFrom) {
		return false
	}
	if e.ValidTo != nil && at.After(*e.ValidTo) {
		return false
	}
	return true
}
