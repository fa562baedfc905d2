package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/medcompli/cme-go-api/internal/models"
)

// RecordCreateRequest describes the payload for submitting an activity claim.
type RecordCreateRequest struct {
	PractitionerID string           `json:"practitioner_id" validate:"required,uuid4"`
	CatalogEntryID *uint            `json:"catalog_entry_id"`
	Hours          *decimal.Decimal `json:"hours"`
	Credits        *decimal.Decimal `json:"credits"`
	EvidenceURL    *string          `json:"evidence_url" validate:"omitempty,url"`
	ActivityDate   time.Time        `json:"activity_date" validate:"required"`
	UnitID         *uint            `json:"unit_id"`
}

// RecordListRequest defines filters for listing activity records.
type RecordListRequest struct {
	Page           int        `query:"page"`
	PageSize       int        `query:"page_size"`
	PractitionerID string     `query:"practitioner_id" validate:"omitempty,uuid4"`
	ActivityType   string     `query:"activity_type" validate:"omitempty,oneof=course conference research report"`
	Status         string     `query:"status" validate:"omitempty,oneof=pending approved rejected revoked"`
	From           *time.Time `query:"from"`
	To             *time.Time `query:"to"`
}

// ReviewRequest carries an approve or reject decision for one submission.
type ReviewRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Note     string `json:"note" validate:"omitempty,max=2000"`
}

// RevokeRequest withdraws a previously approved submission. The reason is
// mandatory.
type RevokeRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=2000"`
}

// BulkReviewRequest applies one decision to many pending submissions.
type BulkReviewRequest struct {
	IDs      []uint `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Note     string `json:"note" validate:"omitempty,max=2000"`
}

// BulkRevokeRequest withdraws many approved submissions at once.
type BulkRevokeRequest struct {
	IDs    []uint `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
	Reason string `json:"reason" validate:"required,min=3,max=2000"`
}

// BulkReviewResponse reports which submissions were updated. IDs that no
// longer matched the precondition are listed as skipped, not errors.
type BulkReviewResponse struct {
	Updated []uint `json:"updated"`
	Skipped []uint `json:"skipped"`
}

// CatalogLite summarizes a catalog entry in record responses.
type CatalogLite struct {
	ID               uint            `json:"id"`
	Name             string          `json:"name"`
	ActivityType     string          `json:"activity_type"`
	ConversionRatio  decimal.Decimal `json:"conversion_ratio"`
	EvidenceRequired bool            `json:"evidence_required"`
}

// RecordResponse is returned to API clients when viewing submissions. The
// credits field always carries the effective value, never the raw stored one.
type RecordResponse struct {
	ID             uint             `json:"id"`
	PractitionerID string           `json:"practitioner_id"`
	CatalogEntryID *uint            `json:"catalog_entry_id"`
	Hours          *decimal.Decimal `json:"hours"`
	Credits        decimal.Decimal  `json:"credits"`
	StoredCredits  *decimal.Decimal `json:"stored_credits"`
	EvidenceURL    *string          `json:"evidence_url"`
	Status         string           `json:"status"`
	ActivityDate   time.Time        `json:"activity_date"`
	UnitID         *uint            `json:"unit_id"`
	ReviewedBy     *string          `json:"reviewed_by"`
	ReviewedAt     *time.Time       `json:"reviewed_at"`
	ReviewNote     string           `json:"review_note,omitempty"`
	RevokeReason   string           `json:"revoke_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	CatalogEntry   *CatalogLite     `json:"catalog_entry,omitempty"`
}

// RecordListResponse wraps a paginated record response.
type RecordListResponse struct {
	Items      []RecordResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}

// NewRecordResponse converts a record model into a DTO with the given
// effective credit value.
func NewRecordResponse(model models.ActivityRecord, effective decimal.Decimal) RecordResponse {
	response := RecordResponse{
		ID:             model.ID,
		PractitionerID: model.PractitionerID,
		CatalogEntryID: model.CatalogEntryID,
		Hours:          model.Hours,
		Credits:        effective,
		StoredCredits:  model.Credits,
		EvidenceURL:    model.EvidenceURL,
		Status:         model.Status,
		ActivityDate:   model.ActivityDate,
		UnitID:         model.UnitID,
		ReviewedBy:     model.ReviewedBy,
		ReviewedAt:     model.ReviewedAt,
		ReviewNote:     model.ReviewNote,
		RevokeReason:   model.RevokeReason,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if model.CatalogEntry != nil {
		response.CatalogEntry = &CatalogLite{
			ID:               model.CatalogEntry.ID,
			Name:             model.CatalogEntry.Name,
			ActivityType:     string(model.CatalogEntry.ActivityType),
			ConversionRatio:  model.CatalogEntry.ConversionRatio,
			EvidenceRequired: model.CatalogEntry.EvidenceRequired,
		}
	}

	return response
}
