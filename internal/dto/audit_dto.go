package dto

import (
	"time"

	"github.com/medcompli/cme-go-api/internal/models"
)

// AuditListRequest defines filters for listing audit entries.
type AuditListRequest struct {
	Page       int    `query:"page"`
	PageSize   int    `query:"page_size"`
	ActorID    string `query:"actor_id"`
	Action     string `query:"action"`
	EntityType string `query:"entity_type"`
}

// AuditResponse serializes an audit log entry.
type AuditResponse struct {
	ID         uint                   `json:"id"`
	ActorID    string                 `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	CreatedAt  time.Time              `json:"created_at"`
}

// AuditListResponse wraps a paginated audit response.
type AuditListResponse struct {
	Items      []AuditResponse `json:"items"`
	Pagination PaginationMeta  `json:"pagination"`
}

// NewAuditResponse converts an audit log model into a DTO.
func NewAuditResponse(model models.AuditLog) AuditResponse {
	return AuditResponse{
		ID:         model.ID,
		ActorID:    model.ActorID,
		ActorRole:  model.ActorRole,
		Action:     model.Action,
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		Metadata:   model.Metadata,
		CreatedAt:  model.CreatedAt,
	}
}
