package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/engine"
	"github.com/medcompli/cme-go-api/internal/models"
	"github.com/medcompli/cme-go-api/internal/observability"
	"github.com/medcompli/cme-go-api/internal/repository"
)

// ErrRecordNotFound indicates the submission was not located.
var ErrRecordNotFound = errors.New("activity record not found")

// ErrInvalidTransition indicates the record is no longer in a state the
// requested transition applies to.
var ErrInvalidTransition = errors.New("record is not in the expected status")

// ErrCatalogEntryUnusable indicates the referenced catalog entry is inactive,
// deleted or outside its validity window.
var ErrCatalogEntryUnusable = errors.New("catalog entry is not available for new submissions")

// ErrMissingCreditValue indicates an ad-hoc submission with no credit value.
var ErrMissingCreditValue = errors.New("ad-hoc submissions must supply a credit value")

// RecordService manages the submission lifecycle.
type RecordService interface {
	Create(ctx context.Context, payload dto.RecordCreateRequest, actor AuditActor) (dto.RecordResponse, error)
	List(ctx context.Context, req dto.RecordListRequest) (dto.RecordListResponse, error)
	Get(ctx context.Context, id uint) (dto.RecordResponse, error)
	Delete(ctx context.Context, id uint, practitionerID string) error
	Review(ctx context.Context, id uint, payload dto.ReviewRequest, actor AuditActor) (dto.RecordResponse, error)
	Revoke(ctx context.Context, id uint, payload dto.RevokeRequest, actor AuditActor) (dto.RecordResponse, error)
	BulkReview(ctx context.Context, payload dto.BulkReviewRequest, unitID *uint, actor AuditActor) (dto.BulkReviewResponse, error)
	BulkRevoke(ctx context.Context, payload dto.BulkRevokeRequest, unitID *uint, actor AuditActor) (dto.BulkReviewResponse, error)
}

type recordService struct {
	records   repository.ActivityRecordRepository
	catalog   repository.CatalogRepository
	validator *validator.Validate
	audit     AuditRecorder
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewRecordService constructs the record service.
func NewRecordService(records repository.ActivityRecordRepository, catalog repository.CatalogRepository, validator *validator.Validate, audit AuditRecorder, logger zerolog.Logger) RecordService {
	return &recordService{
		records:   records,
		catalog:   catalog,
		validator: validator,
		audit:     audit,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "record_service").Logger(),
		tracer:    otel.Tracer("github.com/medcompli/cme-go-api/internal/service/record"),
		now:       time.Now,
	}
}

func (s *recordService) Create(ctx context.Context, payload dto.RecordCreateRequest, actor AuditActor) (dto.RecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RecordResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "records.create", trace.WithAttributes(
		attribute.String("record.practitioner_id", payload.PractitionerID),
	))
	defer span.End()

	record := models.ActivityRecord{
		PractitionerID: payload.PractitionerID,
		CatalogEntryID: payload.CatalogEntryID,
		Hours:          payload.Hours,
		Credits:        payload.Credits,
		EvidenceURL:    payload.EvidenceURL,
		Status:         models.RecordStatusPending,
		ActivityDate:   payload.ActivityDate,
		UnitID:         payload.UnitID,
	}

	if payload.CatalogEntryID != nil {
		entry, err := s.catalog.GetByID(ctx, *payload.CatalogEntryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				span.SetStatus(codes.Error, "catalog_entry_not_found")
				return dto.RecordResponse{}, ErrCatalogEntryNotFound
			}
			span.RecordError(err)
			return dto.RecordResponse{}, err
		}
		if entry.DeletedAt.Valid || !entry.IsUsable(payload.ActivityDate) {
			span.SetStatus(codes.Error, "catalog_entry_unusable")
			return dto.RecordResponse{}, ErrCatalogEntryUnusable
		}

		if record.Credits == nil {
			credits := engine.CalculateCredits(&entry, payload.Hours)
			record.Credits = &credits
			observability.CreditComputations().Inc()
		}
	} else if record.Credits == nil {
		span.SetStatus(codes.Error, "missing_credit_value")
		return dto.RecordResponse{}, ErrMissingCreditValue
	}

	if err := s.records.Create(ctx, &record); err != nil {
		span.RecordError(err)
		return dto.RecordResponse{}, err
	}

	s.audit.Record(ctx, AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "record.created",
		EntityType: "activity_record",
		EntityID:   &record.ID,
		Metadata:   map[string]interface{}{"practitioner_id": record.PractitionerID},
	})

	stored, err := s.records.GetByID(ctx, record.ID)
	if err != nil {
		return dto.RecordResponse{}, err
	}
	return s.toResponse(stored), nil
}

func (s *recordService) List(ctx context.Context, req dto.RecordListRequest) (dto.RecordListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RecordListResponse{}, err
	}

	filter := repository.RecordFilter{
		Page:           req.Page,
		PageSize:       req.PageSize,
		PractitionerID: req.PractitionerID,
		Status:         req.Status,
		From:           req.From,
		To:             req.To,
	}
	if req.ActivityType != "" {
		activityType := models.ActivityType(req.ActivityType)
		filter.ActivityType = &activityType
	}

	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return dto.RecordListResponse{}, err
	}

	items := make([]dto.RecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, s.toResponse(record))
	}

	return dto.RecordListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

func (s *recordService) Get(ctx context.Context, id uint) (dto.RecordResponse, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RecordResponse{}, ErrRecordNotFound
		}
		return dto.RecordResponse{}, err
	}
	return s.toResponse(record), nil
}

func (s *recordService) Delete(ctx context.Context, id uint, practitionerID string) error {
	if err := s.records.DeletePending(ctx, id, practitionerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRecordNotFound
		}
		return err
	}
	return nil
}

func (s *recordService) Review(ctx context.Context, id uint, payload dto.ReviewRequest, actor AuditActor) (dto.RecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RecordResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "records.review", trace.WithAttributes(
		attribute.Int64("record.id", int64(id)),
		attribute.String("record.decision", payload.Decision),
	))
	defer span.End()

	record, err := s.records.Transition(ctx, id, repository.StatusTransition{
		FromStatus: models.RecordStatusPending,
		ToStatus:   payload.Decision,
		ReviewedBy: actor.ID,
		ReviewedAt: s.now(),
		ReviewNote: strings.TrimSpace(s.sanitizer.Sanitize(payload.Note)),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "transition_rejected")
			return dto.RecordResponse{}, s.transitionFailure(ctx, id, payload.Decision)
		}
		span.RecordError(err)
		return dto.RecordResponse{}, err
	}

	s.audit.Record(ctx, AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "record." + payload.Decision,
		EntityType: "activity_record",
		EntityID:   &record.ID,
		Metadata:   map[string]interface{}{"practitioner_id": record.PractitionerID},
	})

	return s.toResponse(record), nil
}

func (s *recordService) Revoke(ctx context.Context, id uint, payload dto.RevokeRequest, actor AuditActor) (dto.RecordResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RecordResponse{}, err
	}

	ctx, span := s.tracer.Start(ctx, "records.revoke", trace.WithAttributes(
		attribute.Int64("record.id", int64(id)),
	))
	defer span.End()

	record, err := s.records.Transition(ctx, id, repository.StatusTransition{
		FromStatus:   models.RecordStatusApproved,
		ToStatus:     models.RecordStatusRevoked,
		ReviewedBy:   actor.ID,
		ReviewedAt:   s.now(),
		RevokeReason: strings.TrimSpace(s.sanitizer.Sanitize(payload.Reason)),
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "transition_rejected")
			return dto.RecordResponse{}, s.transitionFailure(ctx, id, models.RecordStatusRevoked)
		}
		span.RecordError(err)
		return dto.RecordResponse{}, err
	}

	s.audit.Record(ctx, AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     "record.revoked",
		EntityType: "activity_record",
		EntityID:   &record.ID,
		Metadata: map[string]interface{}{
			"practitioner_id": record.PractitionerID,
			"reason":          record.RevokeReason,
		},
	})

	return s.toResponse(record), nil
}

// transitionFailure re-reads the record after a rejected conditional update
// to tell a missing record apart from one the state machine forbids moving.
func (s *recordService) transitionFailure(ctx context.Context, id uint, target string) error {
	record, err := s.records.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	if err != nil {
		return err
	}
	if record.CanTransitionTo(target) {
		// The record qualifies on re-read, so the conditional update lost a
		// race with a concurrent reviewer.
		s.logger.Warn().Uint("record_id", id).Str("target_status", target).Msg("transition lost a concurrent review")
	}
	return ErrInvalidTransition
}

func (s *recordService) BulkReview(ctx context.Context, payload dto.BulkReviewRequest, unitID *uint, actor AuditActor) (dto.BulkReviewResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BulkReviewResponse{}, err
	}

	return s.bulkTransition(ctx, payload.IDs, unitID, repository.StatusTransition{
		FromStatus: models.RecordStatusPending,
		ToStatus:   payload.Decision,
		ReviewedBy: actor.ID,
		ReviewedAt: s.now(),
		ReviewNote: strings.TrimSpace(s.sanitizer.Sanitize(payload.Note)),
	}, "record.bulk_"+payload.Decision, actor)
}

func (s *recordService) BulkRevoke(ctx context.Context, payload dto.BulkRevokeRequest, unitID *uint, actor AuditActor) (dto.BulkReviewResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.BulkReviewResponse{}, err
	}

	return s.bulkTransition(ctx, payload.IDs, unitID, repository.StatusTransition{
		FromStatus:   models.RecordStatusApproved,
		ToStatus:     models.RecordStatusRevoked,
		ReviewedBy:   actor.ID,
		ReviewedAt:   s.now(),
		RevokeReason: strings.TrimSpace(s.sanitizer.Sanitize(payload.Reason)),
	}, "record.bulk_revoked", actor)
}

func (s *recordService) bulkTransition(ctx context.Context, ids []uint, unitID *uint, change repository.StatusTransition, action string, actor AuditActor) (dto.BulkReviewResponse, error) {
	ctx, span := s.tracer.Start(ctx, "records.bulk_transition", trace.WithAttributes(
		attribute.Int("record.requested", len(ids)),
		attribute.String("record.to_status", change.ToStatus),
	))
	defer span.End()

	updated, err := s.records.BulkTransition(ctx, ids, unitID, change)
	if err != nil {
		span.RecordError(err)
		return dto.BulkReviewResponse{}, err
	}

	if updated == nil {
		updated = []uint{}
	}
	updatedSet := make(map[uint]struct{}, len(updated))
	for _, id := range updated {
		updatedSet[id] = struct{}{}
	}
	skipped := make([]uint, 0, len(ids)-len(updated))
	for _, id := range ids {
		if _, ok := updatedSet[id]; !ok {
			skipped = append(skipped, id)
		}
	}

	span.SetAttributes(attribute.Int("record.updated", len(updated)))

	s.audit.Record(ctx, AuditEvent{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "activity_record",
		Metadata: map[string]interface{}{
			"updated": len(updated),
			"skipped": len(skipped),
		},
	})

	return dto.BulkReviewResponse{Updated: updated, Skipped: skipped}, nil
}

func (s *recordService) toResponse(record models.ActivityRecord) dto.RecordResponse {
	return dto.NewRecordResponse(record, engine.EffectiveCredits(record, record.CatalogEntry))
}
