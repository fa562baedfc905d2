package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/medcompli/cme-go-api/internal/models"
)

// CatalogCreateRequest describes the payload for creating a catalog entry.
type CatalogCreateRequest struct {
	Name             string           `json:"name" validate:"required,min=3,max=255"`
	ActivityType     string           `json:"activity_type" validate:"required,oneof=course conference research report"`
	Unit             string           `json:"unit" validate:"omitempty,max=32"`
	ConversionRatio  decimal.Decimal  `json:"conversion_ratio"`
	MinHours         *decimal.Decimal `json:"min_hours"`
	MaxHours         *decimal.Decimal `json:"max_hours"`
	EvidenceRequired bool             `json:"evidence_required"`
	ValidFrom        *time.Time       `json:"valid_from"`
	ValidTo          *time.Time       `json:"valid_to"`
	OwnerUnitID      *uint            `json:"owner_unit_id"`
}

// CatalogUpdateRequest captures partial update payloads for catalog entries.
type CatalogUpdateRequest struct {
	Name             *string          `json:"name" validate:"omitempty,min=3,max=255"`
	Unit             *string          `json:"unit" validate:"omitempty,max=32"`
	ConversionRatio  *decimal.Decimal `json:"conversion_ratio"`
	MinHours         *decimal.Decimal `json:"min_hours"`
	MaxHours         *decimal.Decimal `json:"max_hours"`
	EvidenceRequired *bool            `json:"evidence_required"`
	ValidFrom        *time.Time       `json:"valid_from"`
	ValidTo          *time.Time       `json:"valid_to"`
	Status           *string          `json:"status" validate:"omitempty,oneof=active inactive expired"`
}

// CatalogListRequest defines filters for listing catalog entries.
type CatalogListRequest struct {
	Page           int    `query:"page"`
	PageSize       int    `query:"page_size"`
	ActivityType   string `query:"activity_type" validate:"omitempty,oneof=course conference research report"`
	Status         string `query:"status" validate:"omitempty,oneof=active inactive expired"`
	Search         string `query:"search"`
	IncludeDeleted bool   `query:"include_deleted"`
}

// CatalogResponse serializes a catalog entry for API clients.
type CatalogResponse struct {
	ID               uint             `json:"id"`
	Name             string           `json:"name"`
	ActivityType     string           `json:"activity_type"`
	Unit             string           `json:"unit"`
	ConversionRatio  decimal.Decimal  `json:"conversion_ratio"`
	MinHours         *decimal.Decimal `json:"min_hours"`
	MaxHours         *decimal.Decimal `json:"max_hours"`
	EvidenceRequired bool             `json:"evidence_required"`
	ValidFrom        *time.Time       `json:"valid_from"`
	ValidTo          *time.Time       `json:"valid_to"`
	OwnerUnitID      *uint            `json:"owner_unit_id"`
	Status           string           `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	DeletedAt        *time.Time       `json:"deleted_at,omitempty"`
}

// CatalogListResponse wraps a paginated catalog response.
type CatalogListResponse struct {
	Items      []CatalogResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}

// NewCatalogResponse converts a catalog entry model into a DTO.
func NewCatalogResponse(model models.ActivityCatalogEntry) CatalogResponse {
	response := CatalogResponse{
		ID:               model.ID,
		Name:             model.Name,
		ActivityType:     string(model.ActivityType),
		Unit:             model.Unit,
		ConversionRatio:  model.ConversionRatio,
		MinHours:         model.MinHours,
		MaxHours:         model.MaxHours,
		EvidenceRequired: model.EvidenceRequired,
		ValidFrom:        model.ValidFrom,
		ValidTo:          model.ValidTo,
		OwnerUnitID:      model.OwnerUnitID,
		Status:           model.Status,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
	if model.DeletedAt.Valid {
		deletedAt := model.DeletedAt.Time
		response.DeletedAt = &deletedAt
	}
	return response
}
