package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/engine"
	"github.com/medcompli/cme-go-api/internal/models"
	"github.com/medcompli/cme-go-api/internal/repository"
)

// ErrInvalidWindow indicates a summary window whose start is after its end.
var ErrInvalidWindow = errors.New("window start must not be after end")

// ErrCycleExists indicates the practitioner already has a cycle covering the
// requested start date.
var ErrCycleExists = errors.New("an active cycle already covers this date")

// ErrNoRuleInForce indicates no enabled credit rule covers the requested
// start date.
var ErrNoRuleInForce = errors.New("no credit rule in force at this date")

// activityTypeAdHoc buckets records without a catalog entry in summaries.
const activityTypeAdHoc = "ad_hoc"

// ComplianceService resolves cycles and aggregates effective credits. It is
// stateless: every call reads the store and feeds the rows through the
// engine, so a zero credit value is consistent everywhere it appears.
type ComplianceService interface {
	// GetCurrentCycle returns the practitioner's active cycle, or nil when no
	// cycle window contains now. Absence means no active obligation, not an
	// error.
	GetCurrentCycle(ctx context.Context, practitionerID string) (*dto.CycleResponse, error)
	// StartCycle provisions a new cycle from the credit rule in force at the
	// given start date.
	StartCycle(ctx context.Context, practitionerID string, start time.Time) (*dto.CycleResponse, error)
	GetCreditSummaryByType(ctx context.Context, practitionerID string, start, end time.Time) (dto.CreditSummaryResponse, error)
	GetCreditHistory(ctx context.Context, practitionerID string, start, end time.Time) (dto.CreditHistoryResponse, error)
	ValidateCategoryLimit(ctx context.Context, req dto.CategoryLimitRequest) (dto.CategoryLimitResult, error)
}

type complianceService struct {
	records   repository.ActivityRecordRepository
	catalog   repository.CatalogRepository
	cycles    repository.CycleRepository
	rules     repository.CreditRuleRepository
	validator *validator.Validate
	cfg       engine.ClassificationConfig
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewComplianceService constructs the compliance service.
func NewComplianceService(records repository.ActivityRecordRepository, catalog repository.CatalogRepository, cycles repository.CycleRepository, rules repository.CreditRuleRepository, validator *validator.Validate, cfg engine.ClassificationConfig, logger zerolog.Logger) ComplianceService {
	return &complianceService{
		records:   records,
		catalog:   catalog,
		cycles:    cycles,
		rules:     rules,
		validator: validator,
		cfg:       cfg,
		logger:    logger.With().Str("component", "compliance_service").Logger(),
		tracer:    otel.Tracer("github.com/medcompli/cme-go-api/internal/service/compliance"),
		now:       time.Now,
	}
}

// currentCycle picks the active cycle. When several windows contain now the
// one with the latest start date wins; the repository already orders that way.
func (s *complianceService) currentCycle(ctx context.Context, practitionerID string, now time.Time) (*models.ComplianceCycle, error) {
	cycles, err := s.cycles.ListContaining(ctx, practitionerID, now)
	if err != nil {
		return nil, err
	}
	if len(cycles) == 0 {
		return nil, nil
	}
	cycle := cycles[0]
	return &cycle, nil
}

// resolveEntries batch-loads the catalog entries the records reference. The
// lookup ignores soft deletion, so a withdrawn entry still gates evidence for
// the historical records that cite it.
func (s *complianceService) resolveEntries(ctx context.Context, records []models.ActivityRecord) (map[uint]models.ActivityCatalogEntry, error) {
	ids := make([]uint, 0, len(records))
	seen := make(map[uint]struct{}, len(records))
	for _, record := range records {
		if record.CatalogEntryID == nil {
			continue
		}
		if _, ok := seen[*record.CatalogEntryID]; ok {
			continue
		}
		seen[*record.CatalogEntryID] = struct{}{}
		ids = append(ids, *record.CatalogEntryID)
	}
	return s.catalog.GetByIDs(ctx, ids)
}

// entryFor prefers the store lookup over whatever association the record row
// carried in.
func entryFor(record models.ActivityRecord, entries map[uint]models.ActivityCatalogEntry) *models.ActivityCatalogEntry {
	if record.CatalogEntryID != nil {
		if entry, ok := entries[*record.CatalogEntryID]; ok {
			return &entry
		}
	}
	return record.CatalogEntry
}

func (s *complianceService) earnedInWindow(ctx context.Context, practitionerID string, start, end time.Time) (decimal.Decimal, error) {
	records, err := s.records.ListInWindow(ctx, practitionerID, start, end)
	if err != nil {
		return decimal.Zero, err
	}

	entries, err := s.resolveEntries(ctx, records)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, record := range records {
		total = total.Add(engine.EffectiveCredits(record, entryFor(record, entries)))
	}
	return total, nil
}

func (s *complianceService) GetCurrentCycle(ctx context.Context, practitionerID string) (*dto.CycleResponse, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.current_cycle", trace.WithAttributes(
		attribute.String("compliance.practitioner_id", practitionerID),
	))
	defer span.End()

	now := s.now()
	cycle, err := s.currentCycle(ctx, practitionerID, now)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if cycle == nil {
		span.SetAttributes(attribute.Bool("compliance.cycle_found", false))
		return nil, nil
	}

	earned, err := s.earnedInWindow(ctx, practitionerID, cycle.StartDate, cycle.EndDate)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	caps, err := cycle.Caps()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	capsByName := make(map[string]decimal.Decimal, len(caps))
	for category, cap := range caps {
		capsByName[string(category)] = cap
	}

	response := dto.CycleResponse{
		ID:              cycle.ID,
		PractitionerID:  cycle.PractitionerID,
		StartDate:       cycle.StartDate,
		EndDate:         cycle.EndDate,
		RequiredCredits: cycle.RequiredCredits,
		EarnedCredits:   earned,
		CompletionRatio: engine.CompletionRatio(earned, cycle.RequiredCredits).Round(4),
		DaysRemaining:   engine.DaysRemaining(cycle.EndDate, now),
		Status:          engine.CycleStatus(*cycle, earned, now, s.cfg.EndingSoonDays),
		CategoryCaps:    capsByName,
	}
	return &response, nil
}

func (s *complianceService) StartCycle(ctx context.Context, practitionerID string, start time.Time) (*dto.CycleResponse, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.start_cycle", trace.WithAttributes(
		attribute.String("compliance.practitioner_id", practitionerID),
	))
	defer span.End()

	existing, err := s.cycles.ListContaining(ctx, practitionerID, start)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(existing) > 0 {
		span.SetStatus(codes.Error, "cycle_exists")
		return nil, ErrCycleExists
	}

	rule, err := s.rules.GetInForce(ctx, start)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "no_rule_in_force")
			return nil, ErrNoRuleInForce
		}
		span.RecordError(err)
		return nil, err
	}

	cycle := models.ComplianceCycle{
		PractitionerID:  practitionerID,
		StartDate:       start,
		EndDate:         start.AddDate(rule.CycleYears, 0, 0).Add(-24 * time.Hour),
		RequiredCredits: rule.RequiredCredits,
		CategoryCaps:    rule.CategoryCaps,
		CreditRuleID:    &rule.ID,
	}
	if err := s.cycles.Create(ctx, &cycle); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.logger.Info().
		Str("practitioner_id", practitionerID).
		Uint("credit_rule_id", rule.ID).
		Time("start_date", cycle.StartDate).
		Msg("compliance cycle provisioned")

	caps, err := cycle.Caps()
	if err != nil {
		return nil, err
	}
	capsByName := make(map[string]decimal.Decimal, len(caps))
	for category, cap := range caps {
		capsByName[string(category)] = cap
	}

	return &dto.CycleResponse{
		ID:              cycle.ID,
		PractitionerID:  cycle.PractitionerID,
		StartDate:       cycle.StartDate,
		EndDate:         cycle.EndDate,
		RequiredCredits: cycle.RequiredCredits,
		EarnedCredits:   decimal.Zero,
		CompletionRatio: decimal.Zero,
		DaysRemaining:   engine.DaysRemaining(cycle.EndDate, s.now()),
		Status:          models.CycleStatusInProgress,
		CategoryCaps:    capsByName,
	}, nil
}

func (s *complianceService) GetCreditSummaryByType(ctx context.Context, practitionerID string, start, end time.Time) (dto.CreditSummaryResponse, error) {
	if start.After(end) {
		return dto.CreditSummaryResponse{}, ErrInvalidWindow
	}

	ctx, span := s.tracer.Start(ctx, "compliance.credit_summary", trace.WithAttributes(
		attribute.String("compliance.practitioner_id", practitionerID),
	))
	defer span.End()

	records, err := s.records.ListInWindow(ctx, practitionerID, start, end)
	if err != nil {
		span.RecordError(err)
		return dto.CreditSummaryResponse{}, err
	}

	caps, err := s.capsForWindow(ctx, practitionerID, start, end)
	if err != nil {
		span.RecordError(err)
		return dto.CreditSummaryResponse{}, err
	}

	entries, err := s.resolveEntries(ctx, records)
	if err != nil {
		span.RecordError(err)
		return dto.CreditSummaryResponse{}, err
	}

	type group struct {
		total decimal.Decimal
		count int
	}
	groups := map[string]*group{}
	for _, record := range records {
		entry := entryFor(record, entries)
		category := activityTypeAdHoc
		if entry != nil {
			category = string(entry.ActivityType)
		}
		g, ok := groups[category]
		if !ok {
			g = &group{total: decimal.Zero}
			groups[category] = g
		}
		// Every row counts; only effective credits contribute to the total.
		g.count++
		g.total = g.total.Add(engine.EffectiveCredits(record, entry))
	}

	categories := make([]string, 0, len(groups))
	for category := range groups {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	total := decimal.Zero
	items := make([]dto.CreditSummaryItem, 0, len(categories))
	for _, category := range categories {
		g := groups[category]
		item := dto.CreditSummaryItem{
			ActivityType:  category,
			TotalCredits:  g.total,
			ActivityCount: g.count,
		}
		if cap, ok := caps[models.ActivityType(category)]; ok {
			capValue := cap
			remaining := cap.Sub(g.total)
			if remaining.IsNegative() {
				remaining = decimal.Zero
			}
			item.Cap = &capValue
			item.Remaining = &remaining
		}
		total = total.Add(g.total)
		items = append(items, item)
	}

	return dto.CreditSummaryResponse{
		PractitionerID: practitionerID,
		Start:          start,
		End:            end,
		TotalCredits:   total,
		Items:          items,
	}, nil
}

func (s *complianceService) GetCreditHistory(ctx context.Context, practitionerID string, start, end time.Time) (dto.CreditHistoryResponse, error) {
	if start.After(end) {
		return dto.CreditHistoryResponse{}, ErrInvalidWindow
	}

	ctx, span := s.tracer.Start(ctx, "compliance.credit_history", trace.WithAttributes(
		attribute.String("compliance.practitioner_id", practitionerID),
	))
	defer span.End()

	records, err := s.records.ListInWindow(ctx, practitionerID, start, end)
	if err != nil {
		span.RecordError(err)
		return dto.CreditHistoryResponse{}, err
	}

	entries, err := s.resolveEntries(ctx, records)
	if err != nil {
		span.RecordError(err)
		return dto.CreditHistoryResponse{}, err
	}

	items := make([]dto.RecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewRecordResponse(record, engine.EffectiveCredits(record, entryFor(record, entries))))
	}

	return dto.CreditHistoryResponse{
		PractitionerID: practitionerID,
		Start:          start,
		End:            end,
		Items:          items,
	}, nil
}

// capsForWindow returns the cap map of the cycle enclosing the window, or an
// empty map when the window does not line up with a stored cycle.
func (s *complianceService) capsForWindow(ctx context.Context, practitionerID string, start, end time.Time) (map[models.ActivityType]decimal.Decimal, error) {
	cycles, err := s.cycles.ListByPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	for _, cycle := range cycles {
		if !start.Before(cycle.StartDate) && !end.After(cycle.EndDate) {
			return cycle.Caps()
		}
	}
	return map[models.ActivityType]decimal.Decimal{}, nil
}

// ValidateCategoryLimit pre-checks a proposed credit addition against the
// active cycle's per-category cap. The check is advisory: persisted records
// are never trusted to respect it, reporting always re-derives true totals.
func (s *complianceService) ValidateCategoryLimit(ctx context.Context, req dto.CategoryLimitRequest) (dto.CategoryLimitResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CategoryLimitResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "compliance.category_limit", trace.WithAttributes(
		attribute.String("compliance.practitioner_id", req.PractitionerID),
		attribute.String("compliance.activity_type", req.ActivityType),
	))
	defer span.End()

	cycle, err := s.currentCycle(ctx, req.PractitionerID, s.now())
	if err != nil {
		span.RecordError(err)
		return dto.CategoryLimitResult{}, err
	}
	if cycle == nil {
		// No active obligation, nothing to cap.
		return dto.CategoryLimitResult{Valid: true}, nil
	}

	caps, err := cycle.Caps()
	if err != nil {
		span.RecordError(err)
		return dto.CategoryLimitResult{}, err
	}
	cap, ok := caps[models.ActivityType(req.ActivityType)]
	if !ok {
		return dto.CategoryLimitResult{Valid: true}, nil
	}

	summary, err := s.GetCreditSummaryByType(ctx, req.PractitionerID, cycle.StartDate, cycle.EndDate)
	if err != nil {
		return dto.CategoryLimitResult{}, err
	}

	current := decimal.Zero
	for _, item := range summary.Items {
		if item.ActivityType == req.ActivityType {
			current = item.TotalCredits
			break
		}
	}

	remaining := cap.Sub(current)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	result := dto.CategoryLimitResult{
		Valid:        current.Add(req.ProposedCredits).LessThanOrEqual(cap),
		Cap:          &cap,
		CurrentTotal: &current,
		Remaining:    &remaining,
	}
	span.SetAttributes(attribute.Bool("compliance.limit_valid", result.Valid))
	return result, nil
}
