package model

// RiskBudget bounds the blast radius of one session. Supplied once per
// session and never mutated mid-session.
type RiskBudget struct {
	// MaxFiles caps the risk-weighted impact of the session's file set.
	MaxFiles int `json:"max_files" yaml:"max_files"`
	// MaxLocChanged caps the total raw lines changed.
	MaxLocChanged int `json:"max_loc_changed" yaml:"max_loc_changed"`
	// MaxRecipesPerSession caps how many recipes one session may attempt.
	MaxRecipesPerSession int `json:"max_recipes_per_session" yaml:"max_recipes_per_session"`
}

// DefaultBudget returns the stock risk budget.
func DefaultBudget() RiskBudget {
	return RiskBudget{
		MaxFiles:             10,
		MaxLocChanged:        200,
		MaxRecipesPerSession: 5,
	}
}

// ExecutionConstraints re-validate a recipe immediately before disk writes.
type ExecutionConstraints struct {
	MaxLOC   int `json:"max_loc"`
	MaxFiles int `json:"max_files"`
	// ProtectedPaths are glob patterns; any target file matching one causes
	// the whole recipe to be skipped, never partially applied.
	ProtectedPaths []string `json:"protected_paths"`
	// AllowedCategories restricts which file categories a recipe may touch.
	// Empty means all non-blocked categories are allowed.
	AllowedCategories []Category `json:"allowed_categories,omitempty"`
}
