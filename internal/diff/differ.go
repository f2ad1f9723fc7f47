// Package diff computes line-level diffs between file versions.
//
// Diff text is a standard unified diff and line counts come from LCS
// opcodes, so evidence and admission budgets are based on real deltas.
package diff

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Stats summarizes a line-level comparison.
type Stats struct {
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// LocChanged is the total lines touched: added plus removed.
func (s Stats) LocChanged() int {
	return s.LinesAdded + s.LinesRemoved
}

// Changed computes line-level change statistics between two contents using
// an LCS matcher. Identical contents yield zero stats.
func Changed(before, after string) Stats {
	if before == after {
		return Stats{}
	}

	matcher := difflib.NewMatcher(
		difflib.SplitLines(before),
		difflib.SplitLines(after),
	)

	var stats Stats
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'r':
			stats.LinesRemoved += op.I2 - op.I1
			stats.LinesAdded += op.J2 - op.J1
		case 'd':
			stats.LinesRemoved += op.I2 - op.I1
		case 'i':
			stats.LinesAdded += op.J2 - op.J1
		}
	}
	return stats
}

// Unified renders a unified diff of two contents of one file. Returns the
// empty string when contents are identical.
func Unified(path, before, after string) (string, error) {
	if before == after {
		return "", nil
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("unified diff %s: %w", path, err)
	}
	return text, nil
}
