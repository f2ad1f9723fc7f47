// Package session orchestrates mutation sessions end to end.
//
// A session validates its aggregate risk budget once up front, then drives
// each recipe through snapshot, execution, verification and commit or
// rollback. Every attempt lands in the attestation log, including skipped
// and failed ones, and a session always returns a structured result.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/remedy-project/remedy/internal/admission"
	"github.com/remedy-project/remedy/internal/attest"
	"github.com/remedy-project/remedy/internal/executor"
	"github.com/remedy-project/remedy/internal/lock"
	"github.com/remedy-project/remedy/internal/repo"
	"github.com/remedy-project/remedy/internal/restore"
	"github.com/remedy-project/remedy/internal/snapshot"
	"github.com/remedy-project/remedy/internal/verify"
	"github.com/remedy-project/remedy/pkg/errclass"
	"github.com/remedy-project/remedy/pkg/logging"
	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/pathutil"
	"github.com/remedy-project/remedy/pkg/webhook"
)

// Item pairs a recipe with the candidate describing what it will touch.
type Item struct {
	Recipe    model.Recipe
	Candidate model.MutationCandidate
}

// Request describes one session.
type Request struct {
	Items []Item
	// Budget overrides the configured budget when non-nil.
	Budget *model.RiskBudget
	// Constraints apply to every recipe in the session.
	Constraints model.ExecutionConstraints
	// Tags are attached to every snapshot the session creates.
	Tags []string
}

// Orchestrator runs sessions against one repository.
type Orchestrator struct {
	repo     *repo.Repo
	budget   model.RiskBudget
	store    *snapshot.Store
	executor *executor.Executor
	verifier *verify.Verifier
	restorer *restore.Restorer
	attester *attest.Appender
	locks    *lock.Manager
	hooks    *webhook.Client
	logger   *logging.Logger
}

// Options wires an orchestrator. Nil fields get defaults; Hooks stays nil
// when webhooks are not configured.
type Options struct {
	Budget   model.RiskBudget
	Store    *snapshot.Store
	Verifier *verify.Verifier
	Hooks    *webhook.Client
	Logger   *logging.Logger
	LockTTL  time.Duration
}

// NewOrchestrator assembles a session orchestrator for r.
func NewOrchestrator(r *repo.Repo, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Global()
	}
	store := opts.Store
	if store == nil {
		store = snapshot.NewStore(r, nil, logger)
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = verify.NewVerifier(nil, logger)
	}
	budget := opts.Budget
	if budget == (model.RiskBudget{}) {
		budget = model.DefaultBudget()
	}
	return &Orchestrator{
		repo:     r,
		budget:   budget,
		store:    store,
		executor: executor.New(r.Root, logger),
		verifier: verifier,
		restorer: restore.NewRestorer(r.Root, store, logger),
		attester: attest.NewAppender(r.AttestLogPath()),
		locks:    lock.NewManager(r.LocksDir(), opts.LockTTL),
		hooks:    opts.Hooks,
		logger:   logger,
	}
}

// Run executes one session. Budget violations and recipe failures are
// reported in the result, not as errors; an error return means the session
// could not run at all (lock conflict, bad constraints, broken store).
func (o *Orchestrator) Run(ctx context.Context, req Request) (*model.SessionResult, error) {
	sessionID := uuid.NewString()
	result := &model.SessionResult{
		SessionID: sessionID,
		StartedAt: time.Now().UTC(),
	}

	matcher, err := executor.NewConstraintMatcher(req.Constraints)
	if err != nil {
		return nil, err
	}

	if _, err := o.locks.Acquire(sessionID, "session"); err != nil {
		return nil, err
	}
	defer func() {
		if err := o.locks.Release(sessionID); err != nil {
			o.logger.Warn("release session lock", map[string]any{"error": err.Error()})
		}
	}()

	o.emit(webhook.EventSessionStart, sessionID, "", "", "", nil)

	sm := newMachine()
	if err := sm.advance(StateValidating); err != nil {
		return nil, err
	}

	budget := o.budget
	if req.Budget != nil {
		budget = *req.Budget
	}

	// The whole session's file set is weighed at once; a session that would
	// blow the budget does not get to execute its cheap recipes first.
	verdict := admission.ValidateRiskWeightedBudget(aggregateFiles(req.Items), len(req.Items), budget)
	if !verdict.Allowed {
		if err := sm.advance(StateFailed); err != nil {
			return nil, err
		}
		result.Violations = verdict.Violations
		for _, item := range req.Items {
			result.Recipes = append(result.Recipes, model.RecipeExecutionResult{
				RecipeID: item.Recipe.ID(),
				Status:   model.StatusSkipped,
				Reason:   "session blocked by risk budget",
				Evidence: model.EmptyEvidence("session blocked by risk budget"),
			})
		}
		return o.finish(result, sm)
	}

	if err := sm.advance(StateExecuting); err != nil {
		return nil, err
	}

	aborted := false
	for _, item := range req.Items {
		if aborted {
			result.Recipes = append(result.Recipes, model.RecipeExecutionResult{
				RecipeID: item.Recipe.ID(),
				Status:   model.StatusSkipped,
				Reason:   "session aborted by earlier failure",
				Evidence: model.EmptyEvidence("session aborted by earlier failure"),
			})
			continue
		}

		rr, err := o.runRecipe(ctx, sm, sessionID, item, matcher, req.Tags)
		if err != nil {
			return nil, err
		}
		result.Recipes = append(result.Recipes, rr)

		// One bad recipe ends the session; later recipes may depend on state
		// the failed one was supposed to establish.
		if rr.Status == model.StatusFailed || rr.Status == model.StatusRolledBack {
			aborted = true
		}
	}

	if err := o.settle(sm, result); err != nil {
		return nil, err
	}
	return o.finish(result, sm)
}

// runRecipe drives one recipe through snapshot, execution, verification and
// commit or rollback.
func (o *Orchestrator) runRecipe(ctx context.Context, sm *machine, sessionID string, item Item, matcher *executor.ConstraintMatcher, tags []string) (model.RecipeExecutionResult, error) {
	recipeID := item.Recipe.ID()

	// Per-file gate before anything touches disk. Critical-tier targets make
	// the recipe inadmissible regardless of budget headroom.
	for _, impact := range item.Candidate.TargetFiles {
		decision := admission.ShouldAllowModification(impact.Path)
		if !decision.Allowed {
			rr := model.RecipeExecutionResult{
				RecipeID: recipeID,
				Status:   model.StatusSkipped,
				Reason:   decision.BlockReason,
				Evidence: model.EmptyEvidence(decision.BlockReason),
			}
			o.attestAttempt(sessionID, rr, nil, nil)
			return rr, nil
		}
	}

	files := targetPaths(item.Candidate)
	snapID, err := o.store.Create(recipeID, "", files, tags)
	if err != nil {
		// Nothing was written yet, so an unsnapshottable recipe degrades to a
		// failed result instead of aborting the whole session.
		reason := fmt.Sprintf("snapshot failed: %v", err)
		rr := model.RecipeExecutionResult{
			RecipeID: recipeID,
			Status:   model.StatusFailed,
			Reason:   reason,
			Evidence: model.EmptyEvidence(reason),
		}
		o.emit(webhook.EventRecipeFailed, sessionID, recipeID, "", "", map[string]any{"reason": reason})
		o.attestAttempt(sessionID, rr, nil, nil)
		return rr, nil
	}

	rr := o.executor.ExecuteRecipe(ctx, item.Recipe, item.Candidate, matcher)
	rr.SnapshotID = snapID

	if rr.Status != model.StatusExecuted {
		if rr.Status == model.StatusFailed {
			o.emit(webhook.EventRecipeFailed, sessionID, recipeID, string(snapID), "", map[string]any{"reason": rr.Reason})
		}
		o.attestAttempt(sessionID, rr, nil, nil)
		return rr, nil
	}

	if err := o.store.Update(snapID, rr.Evidence.FilesModified); err != nil {
		// The mutation landed but its after-state could not be recorded. Undo
		// the writes so the tree matches what the log will say about it.
		if _, rerr := o.restorer.Rollback(model.RollbackOptions{SnapshotID: snapID}); rerr != nil {
			return model.RecipeExecutionResult{}, fmt.Errorf("finalize snapshot %s: %w", snapID, err)
		}
		rr.Status = model.StatusFailed
		rr.Reason = fmt.Sprintf("snapshot finalize failed: %v", err)
		o.emit(webhook.EventRecipeFailed, sessionID, recipeID, string(snapID), "", map[string]any{"reason": rr.Reason})
		o.attestAttempt(sessionID, rr, nil, nil)
		return rr, nil
	}

	if err := sm.advance(StateVerifying); err != nil {
		return model.RecipeExecutionResult{}, err
	}

	verification, verr := o.verifier.Revalidate(ctx, rr.Evidence.FilesModified, item.Candidate.Findings)
	rr.Verification = &verification

	before, after := o.contentPair(snapID, rr.Evidence.FilesModified)

	if o.mustRollback(item.Candidate, verification, verr) {
		rollback, err := o.restorer.Rollback(model.RollbackOptions{SnapshotID: snapID})
		if err != nil {
			return model.RecipeExecutionResult{}, fmt.Errorf("rollback %s: %w", snapID, err)
		}
		if !rollback.Success {
			return model.RecipeExecutionResult{}, errclass.ErrRestoreFailed.WithMessagef(
				"rollback of %s left %d files unrestored", snapID, len(rollback.Errors))
		}
		rr.Status = model.StatusRolledBack
		if verr != nil {
			rr.Reason = fmt.Sprintf("verification error: %v", verr)
		} else {
			rr.Reason = fmt.Sprintf("no improvement: %d issues before, %d after, %d new",
				verification.BeforeIssueCount, verification.AfterIssueCount, verification.NewIssuesIntroduced)
		}
		o.emit(webhook.EventRecipeRolledBack, sessionID, recipeID, string(snapID), "", map[string]any{"reason": rr.Reason})
		o.attestAttempt(sessionID, rr, before, after)
		if err := sm.advance(StateExecuting); err != nil {
			return model.RecipeExecutionResult{}, err
		}
		return rr, nil
	}

	o.emit(webhook.EventRecipeCommitted, sessionID, recipeID, string(snapID), "", map[string]any{
		"files_modified": len(rr.Evidence.FilesModified),
		"loc_changed":    rr.Evidence.LocChanged,
	})
	o.attestAttempt(sessionID, rr, before, after)

	if err := sm.advance(StateExecuting); err != nil {
		return model.RecipeExecutionResult{}, err
	}
	return rr, nil
}

// mustRollback is the commit/rollback decision. Low-risk rewrite targets may
// commit without measured improvement, but a verification error or any new
// issue always rolls back.
func (o *Orchestrator) mustRollback(candidate model.MutationCandidate, v model.VerificationResult, verr error) bool {
	if verr != nil {
		return true
	}
	if v.NewIssuesIntroduced > 0 {
		return true
	}
	if requiresImprovement(candidate) {
		return !v.Improved
	}
	return false
}

// requiresImprovement reports whether any target file carries the safe fix
// strategy, which mandates a measured improvement before commit.
func requiresImprovement(candidate model.MutationCandidate) bool {
	for _, impact := range candidate.TargetFiles {
		if admission.ShouldAllowModification(impact.Path).FixStrategy == model.StrategySafe {
			return true
		}
	}
	return false
}

// settle moves the machine into the session's terminal state.
func (o *Orchestrator) settle(sm *machine, result *model.SessionResult) error {
	outcome := model.AggregateOutcome(result.Recipes)
	var terminal State
	switch outcome {
	case model.OutcomeSuccess, model.OutcomePartial:
		terminal = StateCommitted
	case model.OutcomeRolledBack:
		terminal = StateRolledBack
	default:
		terminal = StateFailed
	}
	return sm.advance(terminal)
}

// finish stamps the result, closes the machine and fires the completion hook.
func (o *Orchestrator) finish(result *model.SessionResult, sm *machine) (*model.SessionResult, error) {
	result.Outcome = model.AggregateOutcome(result.Recipes)
	result.FinishedAt = time.Now().UTC()
	if err := sm.advance(StateClosed); err != nil {
		return nil, err
	}

	o.emit(webhook.EventSessionComplete, result.SessionID, "", "", string(result.Outcome), map[string]any{
		"recipes": len(result.Recipes),
	})

	o.logger.Info("session finished", map[string]any{
		"session_id": result.SessionID,
		"outcome":    string(result.Outcome),
		"recipes":    len(result.Recipes),
	})
	return result, nil
}

// attestAttempt appends one attestation record; attestation failures are
// fatal to nothing but never silent.
func (o *Orchestrator) attestAttempt(sessionID string, rr model.RecipeExecutionResult, before, after [][]byte) {
	improved := rr.Verification != nil && rr.Verification.Improved
	_, err := o.attester.Attest(sessionID, rr.RecipeID, rr.Evidence.FilesModified, before, after, improved)
	if err != nil {
		o.logger.Warn("attestation append failed", map[string]any{
			"session_id": sessionID,
			"recipe_id":  rr.RecipeID,
			"error":      err.Error(),
		})
	}
}

// contentPair collects before and after contents of the modified files, in
// order, for attestation digests.
func (o *Orchestrator) contentPair(snapID model.SnapshotID, files []string) ([][]byte, [][]byte) {
	var before, after [][]byte
	for _, f := range files {
		b, err := o.store.FileContent(snapID, f)
		if err != nil {
			b = nil
		}
		before = append(before, b)

		a, err := os.ReadFile(filepath.Join(o.repo.Root, filepath.FromSlash(pathutil.Normalize(f))))
		if err != nil {
			a = nil
		}
		after = append(after, a)
	}
	return before, after
}

// emit sends a webhook event when hooks are configured.
func (o *Orchestrator) emit(event webhook.EventType, sessionID, recipeID, snapshotID, outcome string, meta map[string]any) {
	if o.hooks == nil {
		return
	}
	err := o.hooks.Send(webhook.Event{
		Event:      event,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RepoID:     o.repo.RepoID,
		SessionID:  sessionID,
		RecipeID:   recipeID,
		SnapshotID: snapshotID,
		Outcome:    outcome,
		Metadata:   meta,
	}, true)
	if err != nil {
		o.logger.Warn("webhook send failed", map[string]any{"event": string(event), "error": err.Error()})
	}
}

// aggregateFiles merges every candidate's target files, deduplicating by
// path and keeping the highest LOC estimate for a path shared by recipes.
func aggregateFiles(items []Item) []model.FileImpact {
	byPath := make(map[string]model.FileImpact)
	var order []string
	for _, item := range items {
		for _, impact := range item.Candidate.TargetFiles {
			key := pathutil.Normalize(impact.Path)
			existing, seen := byPath[key]
			if !seen {
				order = append(order, key)
				byPath[key] = impact
				continue
			}
			if impact.LocChanged > existing.LocChanged {
				byPath[key] = impact
			}
		}
	}
	files := make([]model.FileImpact, 0, len(order))
	for _, key := range order {
		files = append(files, byPath[key])
	}
	return files
}

func targetPaths(candidate model.MutationCandidate) []string {
	paths := make([]string, 0, len(candidate.TargetFiles))
	for _, impact := range candidate.TargetFiles {
		paths = append(paths, impact.Path)
	}
	return paths
}
