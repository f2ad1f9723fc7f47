// Package model defines the core data model for the remedy mutation engine.
package model

// HashValue is a hex-encoded SHA-256 hash.
type HashValue string

// RiskTier classifies how dangerous it is to let automation modify a file.
type RiskTier string

const (
	TierCritical RiskTier = "critical"
	TierHigh     RiskTier = "high"
	TierMedium   RiskTier = "medium"
	TierLow      RiskTier = "low"
)

// Rank orders tiers: critical > high > medium > low.
func (t RiskTier) Rank() int {
	switch t {
	case TierCritical:
		return 4
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}

// Multiplier returns the admission weight multiplier for the tier.
// Critical has no finite multiplier; callers must exclude critical files
// from weighted sums and block them instead.
func (t RiskTier) Multiplier() float64 {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	default:
		return 0
	}
}

// Category is the file category inferred from a path.
type Category string

const (
	CategorySource           Category = "source"
	CategoryTest             Category = "test"
	CategoryDocumentation    Category = "documentation"
	CategoryBuildConfig      Category = "buildConfig"
	CategoryCIConfig         Category = "ciConfig"
	CategoryDependencies     Category = "dependencies"
	CategoryConfig           Category = "config"
	CategoryEnv              Category = "env"
	CategorySecretCandidates Category = "secretCandidates"
	CategoryMigrations       Category = "migrations"
	CategoryInfrastructure   Category = "infrastructure"
	CategoryGeneric          Category = "generic"
)

// FixStrategy is how a recipe may be applied to a file of a given tier.
type FixStrategy string

const (
	// StrategyManualReview blocks automated modification entirely.
	StrategyManualReview FixStrategy = "manual-review-required"
	// StrategySafe applies the recipe, verifies, and rolls back on regression.
	StrategySafe FixStrategy = "safe"
	// StrategyRewrite applies without mandatory re-verification, still snapshotted.
	StrategyRewrite FixStrategy = "rewrite"
)

// FileOperation describes what a mutation did to a file.
type FileOperation string

const (
	OpCreated  FileOperation = "created"
	OpModified FileOperation = "modified"
	OpDeleted  FileOperation = "deleted"
)

// FileClassification is the deterministic classification of a single path.
type FileClassification struct {
	Path     string   `json:"path"`
	Category Category `json:"category"`
	RiskTier RiskTier `json:"risk_tier"`
}

// FileImpact is a classified file plus its estimated lines changed,
// the unit the admission controller weighs against the budget.
type FileImpact struct {
	Path       string   `json:"path"`
	RiskTier   RiskTier `json:"risk_tier"`
	LocChanged int      `json:"loc_changed"`
}
