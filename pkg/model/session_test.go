package model_test

import (
	"testing"
	"time"

	"github.com/remedy-project/remedy/pkg/model"
	"github.com/stretchr/testify/assert"
)

func result(status model.RecipeStatus) model.RecipeExecutionResult {
	return model.RecipeExecutionResult{RecipeID: "r", Status: status}
}

func TestAggregateOutcome(t *testing.T) {
	tests := []struct {
		name    string
		results []model.RecipeExecutionResult
		want    model.SessionOutcome
	}{
		{
			"all executed",
			[]model.RecipeExecutionResult{result(model.StatusExecuted), result(model.StatusExecuted)},
			model.OutcomeSuccess,
		},
		{
			"executed plus skipped still success",
			[]model.RecipeExecutionResult{result(model.StatusExecuted), result(model.StatusSkipped)},
			model.OutcomeSuccess,
		},
		{
			"mix of executed and rolled back",
			[]model.RecipeExecutionResult{result(model.StatusExecuted), result(model.StatusRolledBack)},
			model.OutcomePartial,
		},
		{
			"mix of executed and failed",
			[]model.RecipeExecutionResult{result(model.StatusExecuted), result(model.StatusFailed)},
			model.OutcomePartial,
		},
		{
			"only rolled back",
			[]model.RecipeExecutionResult{result(model.StatusRolledBack)},
			model.OutcomeRolledBack,
		},
		{
			"rolled back beats failed when none executed",
			[]model.RecipeExecutionResult{result(model.StatusFailed), result(model.StatusRolledBack)},
			model.OutcomeRolledBack,
		},
		{
			"only failed",
			[]model.RecipeExecutionResult{result(model.StatusFailed), result(model.StatusFailed)},
			model.OutcomeFailed,
		},
		{
			"nothing attempted",
			nil,
			model.OutcomeFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.AggregateOutcome(tt.results))
		})
	}
}

func TestNewSnapshotID_Format(t *testing.T) {
	now := time.Now()
	id := model.NewSnapshotID("null-safety", now)
	assert.Len(t, string(id), 13+1+8)
	assert.Equal(t, string(id)[:8], id.ShortID())
}

func TestNewSnapshotID_DistinctRecipes(t *testing.T) {
	now := time.Now()
	a := model.NewSnapshotID("recipe-a", now)
	b := model.NewSnapshotID("recipe-b", now)
	assert.NotEqual(t, a, b)
}

func TestRiskTier_Ordering(t *testing.T) {
	assert.Greater(t, model.TierCritical.Rank(), model.TierHigh.Rank())
	assert.Greater(t, model.TierHigh.Rank(), model.TierMedium.Rank())
	assert.Greater(t, model.TierMedium.Rank(), model.TierLow.Rank())
}

func TestRiskTier_Multiplier(t *testing.T) {
	assert.Equal(t, 3.0, model.TierHigh.Multiplier())
	assert.Equal(t, 2.0, model.TierMedium.Multiplier())
	assert.Equal(t, 1.0, model.TierLow.Multiplier())
	assert.Equal(t, 0.0, model.TierCritical.Multiplier())
}
