// Package verify re-runs detectors after a mutation and decides whether the
// change actually helped.
//
// The verifier fails closed: when a detector cannot run, the mutation is
// treated as not improved, which sends the orchestrator down the rollback
// path. A broken analyzer must never launder a bad mutation into a commit.
package verify

import (
	"context"
	"fmt"
	"sort"

	"github.com/remedy-project/remedy/pkg/logging"
	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/pathutil"
)

// Verifier re-validates mutated files with the detectors that originally
// reported the issues.
type Verifier struct {
	detectors map[string]model.Detector
	logger    *logging.Logger
}

// NewVerifier creates a verifier over the given detectors.
func NewVerifier(detectors []model.Detector, logger *logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.Global()
	}
	m := make(map[string]model.Detector, len(detectors))
	for _, d := range detectors {
		m[d.Name()] = d
	}
	return &Verifier{detectors: m, logger: logger}
}

// Register adds or replaces a detector.
func (v *Verifier) Register(d model.Detector) {
	v.detectors[d.Name()] = d
}

// Revalidate re-runs the originating detectors over the modified files and
// compares issue counts. Only detectors named by the original findings run,
// and only over files the mutation touched; unrelated pre-existing issues
// neither help nor hurt the verdict.
func (v *Verifier) Revalidate(ctx context.Context, modifiedFiles []string, original []model.Finding) (model.VerificationResult, error) {
	modified := make(map[string]bool, len(modifiedFiles))
	for _, f := range modifiedFiles {
		modified[pathutil.Normalize(f)] = true
	}

	// Scope the baseline to findings in modified files.
	var before []model.Finding
	detectorNames := make(map[string]bool)
	for _, f := range original {
		if !modified[pathutil.Normalize(f.File)] {
			continue
		}
		before = append(before, f)
		detectorNames[f.Detector] = true
	}

	result := model.VerificationResult{BeforeIssueCount: len(before)}

	var after []model.Finding
	for _, name := range sortedKeys(detectorNames) {
		detector, ok := v.detectors[name]
		if !ok {
			// Unknown detector: nothing can confirm the fix.
			v.logger.Warn("detector not registered, failing closed", map[string]any{
				"detector": name,
			})
			result.AfterIssueCount = result.BeforeIssueCount
			result.Improved = false
			return result, fmt.Errorf("detector %s not registered", name)
		}

		for _, file := range modifiedFiles {
			findings, err := detector.Analyze(ctx, file)
			if err != nil {
				v.logger.Warn("detector failed, failing closed", map[string]any{
					"detector": name,
					"file":     file,
					"error":    err.Error(),
				})
				result.AfterIssueCount = result.BeforeIssueCount
				result.Improved = false
				return result, fmt.Errorf("analyze %s with %s: %w", file, name, err)
			}
			after = append(after, findings...)
		}
	}

	result.AfterIssueCount = len(after)
	result.Improved = result.AfterIssueCount < result.BeforeIssueCount
	result.NewIssuesIntroduced = countNew(before, after)
	return result, nil
}

// countNew counts after-findings whose key did not appear before the
// mutation. Keys ignore line numbers so shifted-but-identical issues do not
// read as new.
func countNew(before, after []model.Finding) int {
	known := make(map[string]bool, len(before))
	for _, f := range before {
		known[f.Key()] = true
	}
	fresh := 0
	for _, f := range after {
		if !known[f.Key()] {
			fresh++
		}
	}
	return fresh
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
