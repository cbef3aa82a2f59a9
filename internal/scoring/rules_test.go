package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

const seedYAML = `
rules:
  - name: Target industry
    description: Industries we sell into
    criteria:
      - field: industry
        operator: equals
        value: Technology
        points: 20
  - name: Budget
    active: false
    criteria:
      - field: budget
        operator: greater_than
        value: 10000
        points: 15
`

func TestLoadRulesYAML(t *testing.T) {
	rules, err := LoadRulesYAML(strings.NewReader(seedYAML))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "Target industry", rules[0].Name)
	assert.True(t, rules[0].IsActive, "rules default to active")
	assert.False(t, rules[1].IsActive)
	assert.Equal(t, 15, rules[1].Criteria[0].Points)

	require.NoError(t, LeadFields().Validate(rules))

	// Integer values from YAML compare against decimal budgets.
	rules[1].IsActive = true
	assert.Equal(t, 35, NewEngine().Score(techLead(), rules))
}

func TestLoadRulesYAML_Errors(t *testing.T) {
	_, err := LoadRulesYAML(strings.NewReader("rules:\n  - description: nameless\n"))
	assert.Error(t, err)

	_, err = LoadRulesYAML(strings.NewReader("rules:\n  - name: x\n    weight: 3\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func TestDefaultRules_Valid(t *testing.T) {
	require.NoError(t, LeadFields().Validate(DefaultRules()))
	assert.Equal(t, 20+15+10+15, NewEngine().Score(techLead(), DefaultRules()))
}

func TestFieldRegistry_Validate(t *testing.T) {
	rules := []models.ScoringRule{{
		Name: "broken",
		Criteria: models.Criteria{
			{Field: "revenue", Operator: "equals", Value: 1},
			{Field: "industry", Operator: "matches", Value: "x"},
			{Field: "industry", Operator: "equals"},
		},
	}}

	err := LeadFields().Validate(rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "revenue"`)
	assert.Contains(t, err.Error(), `unknown operator "matches"`)
	assert.Contains(t, err.Error(), "value is required")
}

func TestFieldRegistry_Lookup(t *testing.T) {
	fields := LeadFields()
	lead := techLead()

	v, known := fields.Lookup(lead, "industry")
	assert.True(t, known)
	assert.Equal(t, "Technology", v)

	v, known = fields.Lookup(lead, "phone")
	assert.True(t, known)
	assert.Nil(t, v, "empty strings read as absent")

	_, known = fields.Lookup(lead, "nope")
	assert.False(t, known)

	assert.Contains(t, fields.Names(), "budget")
}
