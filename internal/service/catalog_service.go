package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/models"
	"github.com/medcompli/cme-go-api/internal/repository"
)

// ErrCatalogEntryNotFound indicates the catalog entry was not located.
var ErrCatalogEntryNotFound = errors.New("catalog entry not found")

// ErrNegativeConversionRatio indicates a conversion ratio below zero.
var ErrNegativeConversionRatio = errors.New("conversion ratio must not be negative")

// ErrInvalidHourThresholds indicates min hours above max hours.
var ErrInvalidHourThresholds = errors.New("minimum hours must not exceed maximum hours")

// CatalogService manages the activity catalog.
type CatalogService interface {
	List(ctx context.Context, req dto.CatalogListRequest, unitID *uint) (dto.CatalogListResponse, error)
	Get(ctx context.Context, id uint) (dto.CatalogResponse, error)
	Create(ctx context.Context, payload dto.CatalogCreateRequest, actor AuditActor) (dto.CatalogResponse, error)
	Update(ctx context.Context, id uint, payload dto.CatalogUpdateRequest, actor AuditActor) (dto.CatalogResponse, error)
	Delete(ctx context.Context, id uint, actor AuditActor) error
	Restore(ctx context.Context, id uint, actor AuditActor) (dto.CatalogResponse, error)
}

type catalogService struct {
	repo      repository.CatalogRepository
	validator *validator.Validate
	audit     AuditRecorder
	logger    zerolog.Logger
}

// NewCatalogService constructs the catalog service.
func NewCatalogService(repo repository.CatalogRepository, validator *validator.Validate, audit AuditRecorder, logger zerolog.Logger) CatalogService {
	return &catalogService{
		repo:      repo,
		validator: validator,
		audit:     audit,
		logger:    logger.With().Str("component", "catalog_service").Logger(),
	}
}

func checkConversionRule(entry models.ActivityCatalogEntry) error {
	if entry.ConversionRatio.IsNegative() {
		return ErrNegativeConversionRatio
	}
	if entry.MinHours != nil && entry.MaxHours != nil && entry.MinHours.GreaterThan(*entry.MaxHours) {
		return ErrInvalidHourThresholds
	}
	return nil
}

func (s *catalogService) List(ctx context.Context, req dto.CatalogListRequest, unitID *uint) (dto.CatalogListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CatalogListResponse{}, err
	}

	filter := repository.CatalogFilter{
		Page:           req.Page,
		PageSize:       req.PageSize,
		Status:         req.Status,
		Search:         strings.TrimSpace(req.Search),
		IncludeDeleted: req.IncludeDeleted,
		OwnerUnitID:    unitID,
	}
	if req.ActivityType != "" {
		activityType := models.ActivityType(req.ActivityType)
		filter.ActivityType = &activityType
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.CatalogListResponse{}, err
	}

	items := make([]dto.CatalogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewCatalogResponse(entry))
	}

	return dto.CatalogListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *catalogService) Get(ctx context.Context, id uint) (dto.CatalogResponse, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CatalogResponse{}, ErrCatalogEntryNotFound
		}
		return dto.CatalogResponse{}, err
	}
	return dto.NewCatalogResponse(entry), nil
}

func (s *catalogService) Create(ctx context.Context, payload dto.CatalogCreateRequest, actor AuditActor) (dto.CatalogResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CatalogResponse{}, err
	}

	entry := models.ActivityCatalogEntry{
		Name:             strings.TrimSpace(payload.Name),
		ActivityType:     models.ActivityType(payload.ActivityType),
		Unit:             strings.TrimSpace(payload.Unit),
		ConversionRatio:  payload.ConversionRatio,
		MinHours:         payload.MinHours,
		MaxHours:         payload.MaxHours,
		EvidenceRequired: payload.EvidenceRequired,
		ValidFrom:        payload.ValidFrom,
		ValidTo:          payload.ValidTo,
		OwnerUnitID:      payload.OwnerUnitID,
		Status:           models.CatalogStatusActive,
	}

	if err := checkConversionRule(entry); err != nil {
		return dto.CatalogResponse{}, err
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		return dto.CatalogResponse{}, err
	}

	s.audit.Record(ctx, AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "catalog.created",
		EntityType: "catalog_entry",
		EntityID:   &entry.ID,
		Metadata:   map[string]interface{}{"name": entry.Name, "activity_type": string(entry.ActivityType)},
	})

	return dto.NewCatalogResponse(entry), nil
}

func (s *catalogService) Update(ctx context.Context, id uint, payload dto.CatalogUpdateRequest, actor AuditActor) (dto.CatalogResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CatalogResponse{}, err
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CatalogResponse{}, ErrCatalogEntryNotFound
		}
		return dto.CatalogResponse{}, err
	}

	if payload.Name != nil {
		entry.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Unit != nil {
		entry.Unit = strings.TrimSpace(*payload.Unit)
	}
	if payload.ConversionRatio != nil {
		entry.ConversionRatio = *payload.ConversionRatio
	}
	if payload.MinHours != nil {
		entry.MinHours = payload.MinHours
	}
	if payload.MaxHours != nil {
		entry.MaxHours = payload.MaxHours
	}
	if payload.EvidenceRequired != nil {
		entry.EvidenceRequired = *payload.EvidenceRequired
	}
	if payload.ValidFrom != nil {
		entry.ValidFrom = payload.ValidFrom
	}
	if payload.ValidTo != nil {
		entry.ValidTo = payload.ValidTo
	}
	if payload.Status != nil {
		entry.Status = *payload.Status
	}

	if err := checkConversionRule(entry); err != nil {
		return dto.CatalogResponse{}, err
	}

	if err := s.repo.Update(ctx, &entry); err != nil {
		return dto.CatalogResponse{}, err
	}

	s.audit.Record(ctx, AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "catalog.updated",
		EntityType: "catalog_entry",
		EntityID:   &entry.ID,
	})

	return dto.NewCatalogResponse(entry), nil
}

func (s *catalogService) Delete(ctx context.Context, id uint, actor AuditActor) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCatalogEntryNotFound
		}
		return err
	}

	s.audit.Record(ctx, AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "catalog.deleted",
		EntityType: "catalog_entry",
		EntityID:   &id,
	})

	return nil
}

func (s *catalogService) Restore(ctx context.Context, id uint, actor AuditActor) (dto.CatalogResponse, error) {
	if err := s.repo.Restore(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CatalogResponse{}, ErrCatalogEntryNotFound
		}
		return dto.CatalogResponse{}, err
	}

	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.CatalogResponse{}, err
	}

	s.audit.Record(ctx, AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "catalog.restored",
		EntityType: "catalog_entry",
		EntityID:   &id,
	})

	return dto.NewCatalogResponse(entry), nil
}
