package remedy_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remedy-project/remedy/internal/session"
	"github.com/remedy-project/remedy/internal/snapshot"
	"github.com/remedy-project/remedy/pkg/model"
	"github.com/remedy-project/remedy/pkg/remedy"
)

type grepDetector struct {
	root   string
	needle string
}

func (d *grepDetector) Name() string { return "grep" }

func (d *grepDetector) Analyze(_ context.Context, path string) ([]model.Finding, error) {
	data, err := os.ReadFile(filepath.Join(d.root, path))
	if err != nil {
		return nil, err
	}
	if !strings.Contains(string(data), d.needle) {
		return nil, nil
	}
	return []model.Finding{{
		File:     path,
		Message:  "deprecated symbol " + d.needle,
		Severity: model.SeverityWarning,
		Detector: "grep",
	}}, nil
}

type swapRecipe struct {
	id       string
	old, new string
}

func (r *swapRecipe) ID() string                     { return r.id }
func (r *swapRecipe) Match(issue model.Finding) bool { return issue.Detector == "grep" }
func (r *swapRecipe) Apply(content string, _ model.Finding) (string, error) {
	return strings.ReplaceAll(content, r.old, r.new), nil
}

func seed(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0644))
}

func candidate(recipeID, path string) model.MutationCandidate {
	return model.MutationCandidate{
		RecipeID: recipeID,
		TargetFiles: []model.FileImpact{
			{Path: path, RiskTier: model.TierMedium, LocChanged: 1},
		},
		Findings: []model.Finding{{
			File:     path,
			Message:  "deprecated symbol oldAPI",
			Severity: model.SeverityWarning,
			Detector: "grep",
		}},
	}
}

func TestInitOpenRoundTrip(t *testing.T) {
	root := t.TempDir()

	client, err := remedy.Init(root, remedy.InitOptions{})
	require.NoError(t, err)
	assert.Equal(t, root, client.RepoRoot())
	assert.NotEmpty(t, client.RepoID())

	reopened, err := remedy.Open(root)
	require.NoError(t, err)
	assert.Equal(t, client.RepoID(), reopened.RepoID())

	// Init twice fails; OpenOrInit does not.
	_, err = remedy.Init(root, remedy.InitOptions{})
	require.Error(t, err)
	_, err = remedy.OpenOrInit(root, remedy.InitOptions{})
	require.NoError(t, err)
}

func TestInitWithBudgetOverride(t *testing.T) {
	root := t.TempDir()
	budget := model.RiskBudget{MaxFiles: 3, MaxLocChanged: 50, MaxRecipesPerSession: 1}

	client, err := remedy.Init(root, remedy.InitOptions{Budget: &budget})
	require.NoError(t, err)
	assert.Equal(t, budget, client.Config().Budget)

	// The override persisted to the config file.
	reopened, err := remedy.Open(root)
	require.NoError(t, err)
	assert.Equal(t, budget, reopened.Config().Budget)
}

func TestRunSessionEndToEnd(t *testing.T) {
	root := t.TempDir()
	seed(t, root, "src/app.go", "use oldAPI here\n")

	client, err := remedy.Init(root, remedy.InitOptions{})
	require.NoError(t, err)
	client.RegisterDetector(&grepDetector{root: root, needle: "oldAPI"})

	result, err := client.RunSession(context.Background(), remedy.SessionOptions{
		Items: []session.Item{{
			Recipe:    &swapRecipe{id: "swap-api", old: "oldAPI", new: "newAPI"},
			Candidate: candidate("swap-api", "src/app.go"),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeSuccess, result.Outcome)

	data, err := os.ReadFile(filepath.Join(root, "src/app.go"))
	require.NoError(t, err)
	assert.Equal(t, "use newAPI here\n", string(data))

	// Snapshot, stats and attestations all reflect the session.
	entries, err := client.Snapshots(context.Background(), snapshot.FilterOptions{RecipeID: "swap-api"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	desc, err := client.Snapshot(context.Background(), entries[0].SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, "swap-api", desc.RecipeID)

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSnapshots)

	n, err := client.VerifyAttestations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	attestations, err := client.Attestations(context.Background())
	require.NoError(t, err)
	require.Len(t, attestations, 1)
	assert.True(t, attestations[0].Improved)
}

func TestRunSessionRespectsConfiguredProtectedPaths(t *testing.T) {
	root := t.TempDir()
	seed(t, root, "src/app.go", "use oldAPI here\n")

	client, err := remedy.Init(root, remedy.InitOptions{})
	require.NoError(t, err)
	client.RegisterDetector(&grepDetector{root: root, needle: "oldAPI"})

	result, err := client.RunSession(context.Background(), remedy.SessionOptions{
		Items: []session.Item{{
			Recipe:    &swapRecipe{id: "swap-api", old: "oldAPI", new: "newAPI"},
			Candidate: candidate("swap-api", "src/app.go"),
		}},
		Constraints: model.ExecutionConstraints{ProtectedPaths: []string{"src/**"}},
	})
	require.NoError(t, err)
	require.Len(t, result.Recipes, 1)
	assert.Equal(t, model.StatusSkipped, result.Recipes[0].Status)
}

func TestRollbackAfterSession(t *testing.T) {
	root := t.TempDir()
	seed(t, root, "src/app.go", "use oldAPI here\n")

	client, err := remedy.Init(root, remedy.InitOptions{})
	require.NoError(t, err)
	client.RegisterDetector(&grepDetector{root: root, needle: "oldAPI"})

	_, err = client.RunSession(context.Background(), remedy.SessionOptions{
		Items: []session.Item{{
			Recipe:    &swapRecipe{id: "swap-api", old: "oldAPI", new: "newAPI"},
			Candidate: candidate("swap-api", "src/app.go"),
		}},
	})
	require.NoError(t, err)

	result, err := client.Rollback(context.Background(), model.RollbackOptions{RecipeID: "swap-api"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	data, err := os.ReadFile(filepath.Join(root, "src/app.go"))
	require.NoError(t, err)
	assert.Equal(t, "use oldAPI here\n", string(data))
}

func TestCleanupDryRun(t *testing.T) {
	root := t.TempDir()
	seed(t, root, "src/app.go", "use oldAPI here\n")

	client, err := remedy.Init(root, remedy.InitOptions{})
	require.NoError(t, err)
	client.RegisterDetector(&grepDetector{root: root, needle: "oldAPI"})

	_, err = client.RunSession(context.Background(), remedy.SessionOptions{
		Items: []session.Item{{
			Recipe:    &swapRecipe{id: "swap-api", old: "oldAPI", new: "newAPI"},
			Candidate: candidate("swap-api", "src/app.go"),
		}},
	})
	require.NoError(t, err)

	// Everything is fresh, so nothing is a cleanup candidate.
	plan, err := client.Cleanup(context.Background(), remedy.CleanupOptions{DryRun: true})
	require.NoError(t, err)
	assert.Empty(t, plan.Candidate)

	result, err := client.Cleanup(context.Background(), remedy.CleanupOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deleted)
}
