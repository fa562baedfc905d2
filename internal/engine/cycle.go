package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/medcompli/cme-go-api/internal/models"
)

// ComplianceLevel buckets a practitioner's standing within a cycle.
type ComplianceLevel string

const (
	// LevelCompliant means the cycle requirement is already met.
	LevelCompliant ComplianceLevel = "compliant"
	// LevelAtRisk means the requirement is unmet but progress is still plausible.
	LevelAtRisk ComplianceLevel = "at_risk"
	// LevelNonCompliant means the cycle is overdue or progress is far below pace.
	LevelNonCompliant ComplianceLevel = "non_compliant"
)

// ClassificationConfig carries the policy thresholds used to classify cycles
// and practitioners. Callers construct it from configuration; nothing here is
// read ambiently.
type ClassificationConfig struct {
	// EndingSoonDays is the window before cycle end in which an incomplete
	// cycle is flagged as ending soon.
	EndingSoonDays int
	// PaceFloor is the fraction of expected linear pace below which an
	// incomplete cycle counts as non-compliant before its deadline.
	PaceFloor decimal.Decimal
}

// DefaultClassificationConfig returns the standard policy thresholds.
func DefaultClassificationConfig() ClassificationConfig {
	return ClassificationConfig{
		EndingSoonDays: 30,
		PaceFloor:      decimal.NewFromFloat(0.5),
	}
}

// DaysRemaining returns the whole days between now and the cycle end date.
// The value is negative once the cycle is overdue.
func DaysRemaining(end, now time.Time) int {
	return int(end.Sub(now).Hours() / 24)
}

// CycleStatus derives the display status of a cycle from the credits earned
// so far. Completion always wins; an incomplete cycle is overdue after its
// end date and ending-soon within the configured window before it.
func CycleStatus(cycle models.ComplianceCycle, earned decimal.Decimal, now time.Time, endingSoonDays int) string {
	if earned.GreaterThanOrEqual(cycle.RequiredCredits) {
		return models.CycleStatusCompleted
	}
	if now.After(cycle.EndDate) {
		return models.CycleStatusOverdue
	}
	if DaysRemaining(cycle.EndDate, now) <= endingSoonDays {
		return models.CycleStatusEndingSoon
	}
	return models.CycleStatusInProgress
}

// CompletionRatio returns earned/required. A non-positive requirement counts
// as fully complete. Values above 1 are valid: over-completion is allowed.
func CompletionRatio(earned, required decimal.Decimal) decimal.Decimal {
	if required.Sign() <= 0 {
		return decimal.NewFromInt(1)
	}
	if earned.IsNegative() {
		return decimal.Zero
	}
	return earned.Div(required)
}

// ExpectedPace returns the fraction of the cycle window elapsed at the given
// instant, clamped to [0, 1]. It is the linear progress a practitioner would
// show if credits accrued evenly over the cycle.
func ExpectedPace(cycle models.ComplianceCycle, now time.Time) decimal.Decimal {
	total := cycle.EndDate.Sub(cycle.StartDate)
	if total <= 0 {
		return decimal.NewFromInt(1)
	}
	elapsed := now.Sub(cycle.StartDate)
	if elapsed <= 0 {
		return decimal.Zero
	}
	if elapsed >= total {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(elapsed.Seconds() / total.Seconds())
}

// Classify buckets a practitioner's standing in a cycle. The buckets are
// mutually exclusive and exhaustive: compliant when the requirement is met,
// non-compliant when the cycle is overdue or completion has fallen below
// PaceFloor of the expected linear pace, at-risk otherwise.
func Classify(cycle models.ComplianceCycle, earned decimal.Decimal, now time.Time, cfg ClassificationConfig) ComplianceLevel {
	ratio := CompletionRatio(earned, cycle.RequiredCredits)
	if ratio.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return LevelCompliant
	}
	if now.After(cycle.EndDate) {
		return LevelNonCompliant
	}
	floor := ExpectedPace(cycle, now).Mul(cfg.PaceFloor)
	if ratio.LessThan(floor) {
		return LevelNonCompliant
	}
	return LevelAtRisk
}
