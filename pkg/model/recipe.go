package model

import "context"

// Severity of a detector finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Finding is one issue reported by a detector.
type Finding struct {
	File     string   `json:"file"`
	Line     int      `json:"line"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Category string   `json:"category,omitempty"`
	// Detector names the analyzer that produced the finding, so the
	// verifier can re-run exactly the originating detector.
	Detector string `json:"detector"`
}

// Key identifies a finding for before/after comparison. Line numbers shift
// when content above a finding changes, so the key deliberately excludes them.
func (f Finding) Key() string {
	return f.File + "\x00" + f.Detector + "\x00" + f.Message
}

// Detector re-analyzes a file and reports findings. Implementations are
// supplied by the caller; the engine never inspects their internals.
type Detector interface {
	Name() string
	Analyze(ctx context.Context, path string) ([]Finding, error)
}

// Recipe is a named, opaque transformation from (fileContent, issue) to new
// file content. The engine only calls Apply and measures the resulting diff.
type Recipe interface {
	ID() string
	Match(issue Finding) bool
	Apply(fileContent string, issue Finding) (string, error)
}

// MutationCandidate is a proposed application of one recipe, produced before
// execution and used for admission decisions. Every target file must carry a
// computed risk tier; a critical tier makes the whole candidate inadmissible.
type MutationCandidate struct {
	RecipeID               string       `json:"recipe_id"`
	TargetFiles            []FileImpact `json:"target_files"`
	EstimatedLocChanged    int          `json:"estimated_loc_changed"`
	EstimatedFilesAffected int          `json:"estimated_files_affected"`
	// Findings are the detector issues this candidate intends to fix.
	Findings []Finding `json:"findings,omitempty"`
}
