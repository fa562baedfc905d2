package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/engine"
	"github.com/medcompli/cme-go-api/internal/models"
)

func cycleModel(cycle dto.CycleResponse) models.ComplianceCycle {
	return models.ComplianceCycle{
		StartDate:       cycle.StartDate,
		EndDate:         cycle.EndDate,
		RequiredCredits: cycle.RequiredCredits,
	}
}

// StatisticsService batch-classifies practitioners into compliance buckets.
type StatisticsService interface {
	GetComplianceStatistics(ctx context.Context, practitionerIDs []string) (dto.StatisticsResponse, error)
}

type statisticsService struct {
	compliance ComplianceService
	cache      *redis.Client
	cacheTTL   time.Duration
	cfg        engine.ClassificationConfig
	logger     zerolog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewStatisticsService constructs the statistics service.
func NewStatisticsService(compliance ComplianceService, cache *redis.Client, ttl time.Duration, cfg engine.ClassificationConfig, logger zerolog.Logger) StatisticsService {
	return &statisticsService{
		compliance: compliance,
		cache:      cache,
		cacheTTL:   ttl,
		cfg:        cfg,
		logger:     logger.With().Str("component", "statistics_service").Logger(),
		tracer:     otel.Tracer("github.com/medcompli/cme-go-api/internal/service/statistics"),
		now:        time.Now,
	}
}

func statisticsCacheKey(practitionerIDs []string) string {
	sorted := make([]string, len(practitionerIDs))
	copy(sorted, practitionerIDs)
	sort.Strings(sorted)
	digest := sha256.Sum256([]byte(strings.Join(sorted, ",")))
	return "compliance:statistics:" + hex.EncodeToString(digest[:8])
}

// GetComplianceStatistics resolves each practitioner's current cycle and
// classifies it. Practitioners without a resolvable cycle are excluded from
// classification but still counted in the total. The result is a point-in-time
// snapshot cached briefly; a concurrent approval may or may not be reflected.
func (s *statisticsService) GetComplianceStatistics(ctx context.Context, practitionerIDs []string) (dto.StatisticsResponse, error) {
	cacheKey := statisticsCacheKey(practitionerIDs)
	ctx, span := s.tracer.Start(ctx, "compliance.statistics", trace.WithAttributes(
		attribute.Int("statistics.population", len(practitionerIDs)),
		attribute.String("statistics.cache_key", cacheKey),
	))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var response dto.StatisticsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("statistics.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read statistics cache")
			span.RecordError(err)
		}
	}

	now := s.now()
	response := dto.StatisticsResponse{
		Total:       len(practitionerIDs),
		GeneratedAt: now,
	}

	ratioSum := decimal.Zero
	for _, practitionerID := range practitionerIDs {
		cycle, err := s.compliance.GetCurrentCycle(ctx, practitionerID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cycle_resolution_failed")
			return dto.StatisticsResponse{}, err
		}
		if cycle == nil {
			continue
		}

		response.Classified++
		ratioSum = ratioSum.Add(cycle.CompletionRatio)

		level := engine.Classify(cycleModel(*cycle), cycle.EarnedCredits, now, s.cfg)
		switch level {
		case engine.LevelCompliant:
			response.Compliant++
		case engine.LevelAtRisk:
			response.AtRisk++
		case engine.LevelNonCompliant:
			response.NonCompliant++
		}
	}

	if response.Classified > 0 {
		response.AverageCompletion = ratioSum.
			Div(decimal.NewFromInt(int64(response.Classified))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	span.SetAttributes(
		attribute.Int("statistics.classified", response.Classified),
		attribute.Int("statistics.compliant", response.Compliant),
	)

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store statistics cache")
				span.RecordError(err)
			}
		}
	}

	return response, nil
}
