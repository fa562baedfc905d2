package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/models"
	"github.com/medcompli/cme-go-api/internal/repository"
)

// AuditActor represents the authenticated actor behind an auditable action.
type AuditActor struct {
	ID   string
	Role string
}

// AuditEvent captures the details required to persist an audit entry.
type AuditEvent struct {
	ActorID    string                 `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id"`
	Metadata   map[string]interface{} `json:"metadata"`
	EmittedAt  time.Time              `json:"emitted_at"`
}

// AuditRecorder emits audit events. Recording is fire-and-forget: failures
// are logged and never block the triggering operation.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent)
}

// AuditService emits audit events onto the bus and runs the worker that
// persists them.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error)
	Start(ctx context.Context)
}

type auditService struct {
	repo    repository.AuditLogRepository
	nats    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewAuditService constructs the audit service. When no NATS connection is
// supplied events are persisted inline on a best-effort basis.
func NewAuditService(repo repository.AuditLogRepository, natsConn *nats.Conn, subject string, logger zerolog.Logger) AuditService {
	if subject == "" {
		subject = "cme.audit"
	}
	return &auditService{
		repo:    repo,
		nats:    natsConn,
		subject: subject,
		logger:  logger.With().Str("component", "audit_service").Logger(),
	}
}

// Start launches the queue worker that consumes audit events and writes them
// to the store. With multiple instances the queue group ensures each event is
// persisted once.
func (s *auditService) Start(ctx context.Context) {
	if s.nats == nil {
		return
	}

	sub, err := s.nats.QueueSubscribe(s.subject, "cme-audit", func(msg *nats.Msg) {
		s.persist(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to audit subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain audit subscription")
		}
	}()
}

func (s *auditService) Record(ctx context.Context, event AuditEvent) {
	if strings.TrimSpace(event.Action) == "" || strings.TrimSpace(event.EntityType) == "" {
		s.logger.Warn().Str("action", event.Action).Str("entity_type", event.EntityType).Msg("dropping audit event with missing fields")
		return
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	if strings.TrimSpace(event.ActorRole) == "" {
		event.ActorRole = "system"
	}

	if s.nats != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to marshal audit event")
			return
		}
		if err := s.nats.Publish(s.subject, payload); err != nil {
			s.logger.Warn().Err(err).Str("action", event.Action).Msg("failed to publish audit event")
		}
		return
	}

	s.store(ctx, event)
}

func (s *auditService) persist(payload []byte) {
	var event AuditEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid audit event payload")
		return
	}
	s.store(context.Background(), event)
}

func (s *auditService) store(ctx context.Context, event AuditEvent) {
	metadata := datatypes.JSONMap{}
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	entry := models.AuditLog{
		ActorID:    event.ActorID,
		ActorRole:  strings.ToLower(strings.TrimSpace(event.ActorRole)),
		Action:     strings.ToLower(strings.TrimSpace(event.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(event.EntityType)),
		EntityID:   event.EntityID,
		Metadata:   metadata,
	}

	if err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.Error().Err(err).Str("action", entry.Action).Msg("failed to persist audit entry")
	}
}

func (s *auditService) List(ctx context.Context, req dto.AuditListRequest) (dto.AuditListResponse, error) {
	filter := repository.AuditLogFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		ActorID:    strings.TrimSpace(req.ActorID),
		Action:     strings.TrimSpace(req.Action),
		EntityType: strings.TrimSpace(req.EntityType),
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditListResponse{}, err
	}

	responses := make([]dto.AuditResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewAuditResponse(entry))
	}

	return dto.AuditListResponse{
		Items:      responses,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}
