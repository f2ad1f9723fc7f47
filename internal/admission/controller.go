// Package admission decides whether a candidate set of file mutations fits
// inside the session's risk budget.
//
// Decisions are result values, never errors: every violated constraint is
// reported so a caller can surface all reasons at once.
package admission

import (
	"fmt"

	"github.com/remedy-project/remedy/internal/classify"
	"github.com/remedy-project/remedy/pkg/model"
)

// Decision is the per-path admission answer.
type Decision struct {
	Allowed     bool              `json:"allowed"`
	Category    model.Category    `json:"category"`
	RiskTier    model.RiskTier    `json:"risk_tier"`
	FixStrategy model.FixStrategy `json:"fix_strategy"`
	BlockReason string            `json:"block_reason,omitempty"`
}

// FileWeight records one file's contribution to the weighted impact, for
// audit display.
type FileWeight struct {
	Path       string         `json:"path"`
	RiskTier   model.RiskTier `json:"risk_tier"`
	LocChanged int            `json:"loc_changed"`
	Weight     float64        `json:"weight"`
}

// Verdict is the outcome of budget validation.
type Verdict struct {
	Allowed        bool         `json:"allowed"`
	WeightedImpact float64      `json:"weighted_impact"`
	Violations     []string     `json:"violations,omitempty"`
	Breakdown      []FileWeight `json:"breakdown,omitempty"`
}

// ShouldAllowModification classifies a path and decides whether automation
// may touch it at all, independent of any budget.
func ShouldAllowModification(path string) Decision {
	fc := classify.Classify(path)

	d := Decision{
		Category: fc.Category,
		RiskTier: fc.RiskTier,
	}

	switch fc.RiskTier {
	case model.TierCritical:
		d.Allowed = false
		d.FixStrategy = model.StrategyManualReview
		d.BlockReason = fmt.Sprintf(
			"%s is %s-tier (%s): manual review is required before any automated change",
			fc.Path, fc.RiskTier, fc.Category)
	case model.TierHigh, model.TierMedium:
		d.Allowed = true
		d.FixStrategy = model.StrategySafe
	default:
		d.Allowed = true
		d.FixStrategy = model.StrategyRewrite
	}
	return d
}

// FileWeightValue computes one file's risk weight. The weight grows with the
// tier multiplier and with an LOC term that itself scales by tier, so the
// same edit is costlier in riskier files; a file with no LOC estimate
// contributes its base multiplier only. Critical files have no finite
// weight; they are blocked upstream and excluded from sums.
func FileWeightValue(tier model.RiskTier, locChanged int) float64 {
	m := tier.Multiplier()
	if m == 0 {
		return 0
	}
	locFactor := m * (m + 1) / 2 // 1, 3, 6 for low, medium, high
	return m + locFactor*float64(locChanged)/80
}

// CalculateWeightedImpact sums file weights, excluding critical-tier files
// (they are blocked, never budgeted).
func CalculateWeightedImpact(files []model.FileImpact) float64 {
	var total float64
	for _, f := range files {
		if f.RiskTier == model.TierCritical {
			continue
		}
		total += FileWeightValue(f.RiskTier, f.LocChanged)
	}
	return total
}

// ValidateRiskWeightedBudget checks a candidate file set and recipe count
// against the budget. Every violation is emitted independently; an empty
// file list is trivially admitted.
func ValidateRiskWeightedBudget(files []model.FileImpact, recipeCount int, budget model.RiskBudget) Verdict {
	verdict := Verdict{Allowed: true}

	var totalLoc int
	for _, f := range files {
		weight := 0.0
		if f.RiskTier == model.TierCritical {
			verdict.Violations = append(verdict.Violations, fmt.Sprintf(
				"file %s is critical-tier and cannot be modified automatically", f.Path))
		} else {
			weight = FileWeightValue(f.RiskTier, f.LocChanged)
			verdict.WeightedImpact += weight
		}
		totalLoc += f.LocChanged
		verdict.Breakdown = append(verdict.Breakdown, FileWeight{
			Path:       f.Path,
			RiskTier:   f.RiskTier,
			LocChanged: f.LocChanged,
			Weight:     weight,
		})
	}

	if verdict.WeightedImpact > float64(budget.MaxFiles) {
		verdict.Violations = append(verdict.Violations, fmt.Sprintf(
			"weighted impact %.2f exceeds budget of %d files", verdict.WeightedImpact, budget.MaxFiles))
	}
	if totalLoc > budget.MaxLocChanged {
		verdict.Violations = append(verdict.Violations, fmt.Sprintf(
			"total %d lines changed exceeds budget of %d", totalLoc, budget.MaxLocChanged))
	}
	if recipeCount > budget.MaxRecipesPerSession {
		verdict.Violations = append(verdict.Violations, fmt.Sprintf(
			"%d recipes exceeds budget of %d per session", recipeCount, budget.MaxRecipesPerSession))
	}

	verdict.Allowed = len(verdict.Violations) == 0
	return verdict
}
