package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// RecordStatusPending indicates a submission awaiting review.
	RecordStatusPending = "pending"
	// RecordStatusApproved indicates a submission accepted by a reviewer.
	RecordStatusApproved = "approved"
	// RecordStatusRejected indicates a submission declined by a reviewer.
	RecordStatusRejected = "rejected"
	// RecordStatusRevoked indicates a previously approved submission that was
	// withdrawn with a reason. Revoked records no longer count toward compliance.
	RecordStatusRevoked = "revoked"
)

// ActivityRecord is one practitioner's claim of having performed a
// continuing-education activity.
type ActivityRecord struct {
	ID             uint                  `gorm:"primaryKey" json:"id"`
	PractitionerID string                `gorm:"size:64;not null;index" json:"practitioner_id"`
	CatalogEntryID *uint                 `gorm:"index" json:"catalog_entry_id"`
	Hours          *decimal.Decimal      `gorm:"type:numeric(10,2)" json:"hours"`
	Credits        *decimal.Decimal      `gorm:"type:numeric(10,2)" json:"credits"`
	EvidenceURL    *string               `gorm:"size:512" json:"evidence_url"`
	Status         string                `gorm:"size:32;not null;default:pending;index" json:"status"`
	ActivityDate   time.Time             `gorm:"not null;index" json:"activity_date"`
	UnitID         *uint                 `gorm:"index" json:"unit_id"`
	ReviewedBy     *string               `gorm:"size:64" json:"reviewed_by"`
	ReviewedAt     *time.Time            `json:"reviewed_at"`
	ReviewNote     string                `gorm:"type:text" json:"review_note"`
	RevokeReason   string                `gorm:"type:text" json:"revoke_reason"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	CatalogEntry   *ActivityCatalogEntry `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"catalog_entry"`
}

// IsPending reports whether the record can still be edited or deleted by its owner.
func (r ActivityRecord) IsPending() bool {
	return r.Status == RecordStatusPending
}

// IsApproved reports whether the record is in the counting state.
func (r ActivityRecord) IsApproved() bool {
	return r.Status == RecordStatusApproved
}

// CanTransitionTo reports whether the approval state machine permits moving
// the record to the target status. Pending records may be approved or
// rejected; approved records may only be revoked. Rejected and revoked are
// terminal.
func (r ActivityRecord) CanTransitionTo(target string) bool {
	switch r.Status {
	case RecordStatusPending:
		return target == RecordStatusApproved || target == RecordStatusRejected
	case RecordStatusApproved:
		return target == RecordStatusRevoked
	default:
		return false
	}
}
