package model

import "time"

// RecipeStatus is the terminal status of one recipe attempt.
type RecipeStatus string

const (
	StatusExecuted   RecipeStatus = "executed"
	StatusSkipped    RecipeStatus = "skipped"
	StatusFailed     RecipeStatus = "failed"
	StatusRolledBack RecipeStatus = "rolled-back"
)

// ExecutionEvidence is produced for every recipe attempt, even skipped or
// failed ones (empty evidence in that case).
type ExecutionEvidence struct {
	FilesModified         []string          `json:"files_modified"`
	LocChanged            int               `json:"loc_changed"`
	Diffs                 map[string]string `json:"diffs,omitempty"`
	RiskReductionEstimate float64           `json:"risk_reduction_estimate"`
	ExecutionTimeMs       int64             `json:"execution_time_ms"`
	Justification         string            `json:"justification,omitempty"`
}

// EmptyEvidence returns evidence for an attempt that touched nothing.
func EmptyEvidence(justification string) ExecutionEvidence {
	return ExecutionEvidence{
		FilesModified: []string{},
		Justification: justification,
	}
}

// VerificationResult compares detector issue counts before and after a mutation.
type VerificationResult struct {
	BeforeIssueCount    int  `json:"before_issue_count"`
	AfterIssueCount     int  `json:"after_issue_count"`
	Improved            bool `json:"improved"`
	NewIssuesIntroduced int  `json:"new_issues_introduced"`
}

// RecipeExecutionResult is the outcome of one recipe attempt.
type RecipeExecutionResult struct {
	RecipeID     string              `json:"recipe_id"`
	Status       RecipeStatus        `json:"status"`
	Reason       string              `json:"reason,omitempty"`
	SnapshotID   SnapshotID          `json:"snapshot_id,omitempty"`
	Evidence     ExecutionEvidence   `json:"evidence"`
	Verification *VerificationResult `json:"verification,omitempty"`
}

// SessionOutcome aggregates the per-recipe outcomes of a session.
type SessionOutcome string

const (
	OutcomeSuccess    SessionOutcome = "success"
	OutcomePartial    SessionOutcome = "partial"
	OutcomeFailed     SessionOutcome = "failed"
	OutcomeRolledBack SessionOutcome = "rolled-back"
)

// AggregateOutcome derives the session outcome from per-recipe results:
// success iff every attempted recipe executed; rolled-back iff at least one
// rolled back and none executed; partial iff a mix of executed and
// rolled-back/failed occurred; failed iff every attempt failed outright.
func AggregateOutcome(results []RecipeExecutionResult) SessionOutcome {
	var executed, rolledBack, failed int
	for _, r := range results {
		switch r.Status {
		case StatusExecuted:
			executed++
		case StatusRolledBack:
			rolledBack++
		case StatusFailed:
			failed++
		}
	}

	switch {
	case executed > 0 && rolledBack == 0 && failed == 0:
		return OutcomeSuccess
	case executed > 0:
		return OutcomePartial
	case rolledBack > 0:
		return OutcomeRolledBack
	case failed > 0:
		return OutcomeFailed
	default:
		// Nothing attempted or everything skipped.
		return OutcomeFailed
	}
}

// SessionResult is returned by the orchestrator for every session; a session
// always completes with a structured outcome and a full evidence trail.
type SessionResult struct {
	SessionID  string                  `json:"session_id"`
	Outcome    SessionOutcome          `json:"outcome"`
	Recipes    []RecipeExecutionResult `json:"recipes"`
	Violations []string                `json:"violations,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
}
