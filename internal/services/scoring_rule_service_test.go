package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/events"
	"github.com/ajharbinger/crm-pipeline/internal/models"
)

func TestScoringRuleService_CreatePublishesChange(t *testing.T) {
	f := newFixture()
	rule := techRule()

	created, err := f.services.ScoringRules.Create(context.Background(), models.ScoringRuleForm{
		Name:     "  Tech  ",
		Criteria: rule.Criteria,
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Tech", created.Name)
	assert.True(t, created.IsActive)
	assert.Equal(t, []string{events.ScoringRulesChanged}, f.publisher.types())
	assert.Contains(t, string(f.publisher.events[0].Data), created.ID.String())
}

func TestScoringRuleService_CreateValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name string
		form models.ScoringRuleForm
	}{
		{"no name", models.ScoringRuleForm{Criteria: techRule().Criteria}},
		{"no criteria", models.ScoringRuleForm{Name: "Empty"}},
		{"unknown field", models.ScoringRuleForm{Name: "Bad", Criteria: models.Criteria{
			{Field: "shoe_size", Operator: models.OpEquals, Value: 42, Points: 5},
		}}},
		{"unknown operator", models.ScoringRuleForm{Name: "Bad", Criteria: models.Criteria{
			{Field: "industry", Operator: "regex", Value: ".*", Points: 5},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.services.ScoringRules.Create(ctx, tt.form, nil)
			assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))
		})
	}
	assert.Empty(t, f.publisher.events)
}

func TestScoringRuleService_UpdateAndDelete(t *testing.T) {
	f := newFixture()
	stored := f.store.addRule(techRule())
	ctx := context.Background()
	inactive := false

	updated, err := f.services.ScoringRules.Update(ctx, stored.ID, models.ScoringRuleForm{
		Name:     "Tech v2",
		Criteria: stored.Criteria[:1],
		IsActive: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, "Tech v2", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Len(t, updated.Criteria, 1)

	active, err := f.services.ScoringRules.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := f.services.ScoringRules.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, f.services.ScoringRules.Delete(ctx, stored.ID))
	assert.Len(t, f.publisher.events, 2)
}

func TestScoringRuleService_SeedUpsertsByName(t *testing.T) {
	f := newFixture()
	existing := f.store.addRule(models.ScoringRule{Name: "Tech", IsActive: false, Criteria: techRule().Criteria[:1]})

	res, err := f.services.ScoringRules.Seed(context.Background(), []models.ScoringRule{
		techRule(),
		{Name: "Big budget", IsActive: true, Criteria: models.Criteria{
			{Field: "budget", Operator: models.OpGreaterThan, Value: 10000, Points: 25},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, &SeedResult{Created: 1, Updated: 1}, res)
	rule, err := f.services.ScoringRules.Get(context.Background(), existing.ID)
	require.NoError(t, err)
	assert.True(t, rule.IsActive)
	assert.Len(t, rule.Criteria, 2)
	assert.Equal(t, []string{events.ScoringRulesChanged}, f.publisher.types())
}

func TestScoringRuleService_SeedRejectsInvalidRules(t *testing.T) {
	f := newFixture()
	_, err := f.services.ScoringRules.Seed(context.Background(), []models.ScoringRule{
		{Name: "Bad", IsActive: true, Criteria: models.Criteria{{Field: "nope", Operator: models.OpEquals, Points: 1}}},
	})
	assert.Equal(t, errors.ErrCodeValidationError, errors.Code(err))
	assert.Empty(t, f.store.rules)
}

func TestScoringRuleService_EvaluateDoesNotPersist(t *testing.T) {
	f := newFixture()
	f.store.addRule(techRule())

	res, err := f.services.ScoringRules.Evaluate(context.Background(), &models.Lead{Industry: "Technology", JobTitle: "VP Sales"})
	require.NoError(t, err)
	assert.Equal(t, 35, res.Score)
	assert.Empty(t, f.store.leads)
}
