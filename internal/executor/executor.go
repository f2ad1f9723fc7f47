// Package executor applies mutation recipes to the working tree.
//
// A recipe application is all-or-nothing: every target file's new content
// is computed in memory and re-validated against the execution constraints
// before the first byte hits disk. Write failures unwind the files already
// written, so a recipe never leaves the tree half-mutated.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/remedy-project/remedy/internal/classify"
	"github.com/remedy-project/remedy/internal/diff"
	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/fsutil"
	"github.com/remedy-project/remedy/pkg/logging"
	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/pathutil"
)

// ConstraintMatcher is a compiled form of ExecutionConstraints. Building it
// validates every glob up front so a bad pattern fails fast instead of
// silently protecting nothing, and compiles each one once so matching does
// no per-call pattern work.
type ConstraintMatcher struct {
	constraints model.ExecutionConstraints
	protected   []*regexp.Regexp
	allowed     map[model.Category]bool
}

// NewConstraintMatcher validates and compiles constraints.
func NewConstraintMatcher(c model.ExecutionConstraints) (*ConstraintMatcher, error) {
	protected := make([]*regexp.Regexp, 0, len(c.ProtectedPaths))
	for _, pattern := range c.ProtectedPaths {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errclass.ErrPatternInvalid.WithMessagef("protected path pattern %q", pattern)
		}
		protected = append(protected, compileProtectedGlob(pattern))
	}

	var allowed map[model.Category]bool
	if len(c.AllowedCategories) > 0 {
		allowed = make(map[model.Category]bool, len(c.AllowedCategories))
		for _, cat := range c.AllowedCategories {
			allowed[cat] = true
		}
	}
	return &ConstraintMatcher{constraints: c, protected: protected, allowed: allowed}, nil
}

// compileProtectedGlob anchors a glob as a regular expression. Wildcards
// cross path separators, so *.tfvars protects env/prod.tfvars too.
func compileProtectedGlob(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

// IsProtected reports whether path matches any protected glob.
func (m *ConstraintMatcher) IsProtected(path string) bool {
	rel := pathutil.Normalize(path)
	for _, re := range m.protected {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

// CategoryAllowed reports whether a file category may be touched.
func (m *ConstraintMatcher) CategoryAllowed(cat model.Category) bool {
	if m.allowed == nil {
		return true
	}
	return m.allowed[cat]
}

// Executor applies recipes under execution constraints.
type Executor struct {
	root   string
	logger *logging.Logger
}

// New creates an executor rooted at the repo root.
func New(root string, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Global()
	}
	return &Executor{root: root, logger: logger}
}

// pendingWrite is one file's computed mutation, not yet on disk.
type pendingWrite struct {
	path    string // normalized relative path
	abs     string
	before  string
	after   string
	existed bool
}

// ExecuteRecipe applies recipe to the candidate's findings. The returned
// result always carries evidence, even for skipped and failed attempts.
func (e *Executor) ExecuteRecipe(ctx context.Context, recipe model.Recipe, candidate model.MutationCandidate, matcher *ConstraintMatcher) model.RecipeExecutionResult {
	start := time.Now()
	result := model.RecipeExecutionResult{RecipeID: recipe.ID()}

	skip := func(reason string) model.RecipeExecutionResult {
		result.Status = model.StatusSkipped
		result.Reason = reason
		result.Evidence = model.EmptyEvidence(reason)
		return result
	}
	fail := func(reason string) model.RecipeExecutionResult {
		result.Status = model.StatusFailed
		result.Reason = reason
		result.Evidence = model.EmptyEvidence(reason)
		return result
	}

	// Group findings by file, keeping only those this recipe handles.
	byFile := make(map[string][]model.Finding)
	var order []string
	for _, f := range candidate.Findings {
		if !recipe.Match(f) {
			continue
		}
		rel := pathutil.Normalize(f.File)
		if _, seen := byFile[rel]; !seen {
			order = append(order, rel)
		}
		byFile[rel] = append(byFile[rel], f)
	}
	if len(order) == 0 {
		return skip("no findings matched by recipe")
	}

	// A single protected target skips the whole recipe: partial application
	// of a fix is worse than no fix.
	for _, rel := range order {
		if matcher.IsProtected(rel) {
			return skip(fmt.Sprintf("target %s matches a protected path", rel))
		}
		if cls := classify.Classify(rel); !matcher.CategoryAllowed(cls.Category) {
			return skip(fmt.Sprintf("category %s of %s is not allowed", cls.Category, rel))
		}
	}
	if max := matcher.constraints.MaxFiles; max > 0 && len(order) > max {
		return skip(fmt.Sprintf("recipe touches %d files, limit is %d", len(order), max))
	}

	// Compute every mutation in memory first.
	var writes []pendingWrite
	totalLoc := 0
	diffs := make(map[string]string)
	for _, rel := range order {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Sprintf("cancelled: %v", err))
		}

		abs := filepath.Join(e.root, filepath.FromSlash(rel))
		if err := pathutil.ValidatePathSafety(e.root, abs); err != nil {
			return fail(err.Error())
		}

		data, err := os.ReadFile(abs)
		if os.IsNotExist(err) {
			e.logger.Warn("target file missing, skipping", map[string]any{
				"recipe_id": recipe.ID(),
				"path":      rel,
			})
			continue
		}
		if err != nil {
			return fail(fmt.Sprintf("read %s: %v", rel, err))
		}

		content := string(data)
		for _, issue := range byFile[rel] {
			next, err := recipe.Apply(content, issue)
			if err != nil {
				return fail(fmt.Sprintf("apply to %s: %v", rel, err))
			}
			content = next
		}
		if content == string(data) {
			continue
		}

		stats := diff.Changed(string(data), content)
		totalLoc += stats.LocChanged()
		text, err := diff.Unified(rel, string(data), content)
		if err != nil {
			return fail(fmt.Sprintf("diff %s: %v", rel, err))
		}
		diffs[rel] = text
		writes = append(writes, pendingWrite{
			path: rel, abs: abs, before: string(data), after: content, existed: true,
		})
	}

	if len(writes) == 0 {
		return skip("recipe produced no content changes")
	}
	if max := matcher.constraints.MaxLOC; max > 0 && totalLoc > max {
		return skip(fmt.Sprintf("mutation changes %d lines, limit is %d", totalLoc, max))
	}

	// Commit to disk, unwinding on the first failure.
	modified := make([]string, 0, len(writes))
	for i, w := range writes {
		if err := fsutil.AtomicWrite(w.abs, []byte(w.after), 0644); err != nil {
			e.unwind(writes[:i])
			return fail(errclass.ErrExecutionFailed.WithMessagef("write %s: %v", w.path, err).Error())
		}
		modified = append(modified, w.path)
	}

	result.Status = model.StatusExecuted
	result.Evidence = model.ExecutionEvidence{
		FilesModified:         modified,
		LocChanged:            totalLoc,
		Diffs:                 diffs,
		RiskReductionEstimate: riskReduction(candidate, byFile),
		ExecutionTimeMs:       time.Since(start).Milliseconds(),
	}
	return result
}

// unwind rewrites the before-content of files already committed.
func (e *Executor) unwind(written []pendingWrite) {
	for _, w := range written {
		if err := fsutil.AtomicWrite(w.abs, []byte(w.before), 0644); err != nil {
			e.logger.Error("unwind failed, snapshot rollback required", map[string]any{
				"path":  w.path,
				"error": err.Error(),
			})
		}
	}
}

// riskReduction estimates what share of the candidate's findings the recipe
// addressed.
func riskReduction(candidate model.MutationCandidate, byFile map[string][]model.Finding) float64 {
	if len(candidate.Findings) == 0 {
		return 0
	}
	matched := 0
	for _, fs := range byFile {
		matched += len(fs)
	}
	return float64(matched) / float64(len(candidate.Findings))
}
