// Package engine contains the pure credit-compliance rules: converting
// recorded hours into credits, gating them on evidence and approval status,
// and classifying cycles and practitioners. Functions here hold no state and
// perform no I/O; services feed them rows fetched from the store.
package engine

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/medcompli/cme-go-api/internal/models"
)

// CreditPrecision is the number of decimal places credit values are rounded to.
const CreditPrecision = 2

// CalculateCredits converts recorded hours into a credit value using the
// catalog entry's conversion rule. A nil entry or nil hours yields zero: ad-hoc
// activities do not auto-calculate, their credit value must be supplied
// directly. Hours below the entry minimum do not qualify; hours above the
// entry maximum are clamped before conversion.
func CalculateCredits(entry *models.ActivityCatalogEntry, hours *decimal.Decimal) decimal.Decimal {
	if entry == nil || hours == nil {
		return decimal.Zero
	}

	effective := *hours
	if effective.IsNegative() {
		return decimal.Zero
	}
	if entry.MinHours != nil && effective.LessThan(*entry.MinHours) {
		return decimal.Zero
	}
	if entry.MaxHours != nil && effective.GreaterThan(*entry.MaxHours) {
		effective = *entry.MaxHours
	}

	credits := effective.Mul(entry.ConversionRatio).Round(CreditPrecision)
	if credits.IsNegative() {
		return decimal.Zero
	}
	return credits
}

// EvidenceSatisfied reports whether a submission meets the evidence
// requirement of its catalog entry. When no evidence is required the gate is
// always open; otherwise the reference must be non-empty after trimming.
func EvidenceSatisfied(required bool, evidenceRef *string) bool {
	if !required {
		return true
	}
	return evidenceRef != nil && strings.TrimSpace(*evidenceRef) != ""
}

// EffectiveCredits returns the credit value that actually counts toward
// compliance. It is the single source of truth for "what counts": every
// aggregate and report must route through it rather than reading the stored
// value. Non-approved records and records failing the evidence gate count as
// zero regardless of their stored value.
func EffectiveCredits(record models.ActivityRecord, entry *models.ActivityCatalogEntry) decimal.Decimal {
	if !record.IsApproved() {
		return decimal.Zero
	}

	required := entry != nil && entry.EvidenceRequired
	if !EvidenceSatisfied(required, record.EvidenceURL) {
		return decimal.Zero
	}

	if record.Credits != nil {
		stored := record.Credits.Round(CreditPrecision)
		if stored.IsNegative() {
			return decimal.Zero
		}
		return stored
	}

	if entry != nil {
		return CalculateCredits(entry, record.Hours)
	}

	// Ad-hoc record without a stored value: hours count one-to-one.
	if record.Hours == nil || record.Hours.IsNegative() {
		return decimal.Zero
	}
	return record.Hours.Round(CreditPrecision)
}
