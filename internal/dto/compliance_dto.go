package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CycleResponse describes a practitioner's current compliance cycle.
type CycleResponse struct {
	ID              uint                       `json:"id"`
	PractitionerID  string                     `json:"practitioner_id"`
	StartDate       time.Time                  `json:"start_date"`
	EndDate         time.Time                  `json:"end_date"`
	RequiredCredits decimal.Decimal            `json:"required_credits"`
	EarnedCredits   decimal.Decimal            `json:"earned_credits"`
	CompletionRatio decimal.Decimal            `json:"completion_ratio"`
	DaysRemaining   int                        `json:"days_remaining"`
	Status          string                     `json:"status"`
	CategoryCaps    map[string]decimal.Decimal `json:"category_caps"`
}

// CreditSummaryItem aggregates effective credits for one activity category
// within a cycle window.
type CreditSummaryItem struct {
	ActivityType  string           `json:"activity_type"`
	TotalCredits  decimal.Decimal  `json:"total_credits"`
	ActivityCount int              `json:"activity_count"`
	Cap           *decimal.Decimal `json:"cap,omitempty"`
	Remaining     *decimal.Decimal `json:"remaining,omitempty"`
}

// CreditSummaryResponse wraps the per-category summary for a window.
type CreditSummaryResponse struct {
	PractitionerID string              `json:"practitioner_id"`
	Start          time.Time           `json:"start"`
	End            time.Time           `json:"end"`
	TotalCredits   decimal.Decimal     `json:"total_credits"`
	Items          []CreditSummaryItem `json:"items"`
}

// CreditHistoryResponse lists per-record detail with effective credit values.
type CreditHistoryResponse struct {
	PractitionerID string           `json:"practitioner_id"`
	Start          time.Time        `json:"start"`
	End            time.Time        `json:"end"`
	Items          []RecordResponse `json:"items"`
}

// CategoryLimitRequest asks whether a proposed credit addition would exceed
// the per-category cap of the practitioner's active cycle.
type CategoryLimitRequest struct {
	PractitionerID  string          `json:"practitioner_id" validate:"required,uuid4"`
	ActivityType    string          `json:"activity_type" validate:"required,oneof=course conference research report"`
	ProposedCredits decimal.Decimal `json:"proposed_credits"`
}

// CategoryLimitResult is the advisory outcome of a cap pre-check. A false
// valid flag is an expected result, not an error.
type CategoryLimitResult struct {
	Valid        bool             `json:"valid"`
	Cap          *decimal.Decimal `json:"cap,omitempty"`
	CurrentTotal *decimal.Decimal `json:"current_total,omitempty"`
	Remaining    *decimal.Decimal `json:"remaining,omitempty"`
}

// StatisticsRequest identifies the practitioners to classify.
type StatisticsRequest struct {
	PractitionerIDs []string `json:"practitioner_ids" validate:"required,min=1,max=2000,dive,uuid4"`
}

// StatisticsResponse summarises compliance across a practitioner cohort.
// Practitioners without a resolvable cycle are excluded from classification;
// the three buckets partition the classified set exactly.
type StatisticsResponse struct {
	Total             int             `json:"total"`
	Classified        int             `json:"classified"`
	Compliant         int             `json:"compliant"`
	AtRisk            int             `json:"at_risk"`
	NonCompliant      int             `json:"non_compliant"`
	AverageCompletion decimal.Decimal `json:"average_completion_percent"`
	GeneratedAt       time.Time       `json:"generated_at"`
	CacheHit          bool            `json:"cache_hit"`
}
