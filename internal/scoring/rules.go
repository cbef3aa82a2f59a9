package scoring

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// ruleFile is the on-disk layout of a rule seed file.
type ruleFile struct {
	Rules []ruleDefinition `yaml:"rules"`
}

type ruleDefinition struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Active      *bool              `yaml:"active"`
	Criteria    []models.Criterion `yaml:"criteria"`
}

// LoadRulesYAML parses scoring rules from YAML. Rules default to active.
func LoadRulesYAML(r io.Reader) ([]models.ScoringRule, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	rules := make([]models.ScoringRule, 0, len(f.Rules))
	for i, def := range f.Rules {
		if def.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		active := true
		if def.Active != nil {
			active = *def.Active
		}
		rules = append(rules, models.ScoringRule{
			Name:        def.Name,
			Description: def.Description,
			Criteria:    models.Criteria(def.Criteria),
			IsActive:    active,
		})
	}
	return rules, nil
}

// DefaultRules returns a starter rule set for a fresh install.
func DefaultRules() []models.ScoringRule {
	return []models.ScoringRule{
		{
			Name:        "Target industry",
			Description: "Leads from industries we sell into most",
			IsActive:    true,
			Criteria: models.Criteria{
				{Field: "industry", Operator: models.OpEquals, Value: "Technology", Points: 20},
				{Field: "industry", Operator: models.OpEquals, Value: "Finance", Points: 15},
				{Field: "industry", Operator: models.OpEquals, Value: "Healthcare", Points: 10},
			},
		},
		{
			Name:        "Budget",
			Description: "Declared budget thresholds",
			IsActive:    true,
			Criteria: models.Criteria{
				{Field: "budget", Operator: models.OpGreaterThan, Value: 10000, Points: 15},
				{Field: "budget", Operator: models.OpGreaterThan, Value: 50000, Points: 10},
			},
		},
		{
			Name:        "Decision maker",
			Description: "Seniority signals in the job title",
			IsActive:    true,
			Criteria: models.Criteria{
				{Field: "job_title", Operator: models.OpContains, Value: "Director", Points: 10},
				{Field: "job_title", Operator: models.OpContains, Value: "VP", Points: 15},
				{Field: "job_title", Operator: models.OpContains, Value: "Chief", Points: 20},
			},
		},
		{
			Name:     "Source quality",
			IsActive: true,
			Criteria: models.Criteria{
				{Field: "source", Operator: models.OpEquals, Value: "Referral", Points: 15},
				{Field: "source", Operator: models.OpEquals, Value: "Website", Points: 5},
			},
		},
		{
			Name:     "Buying timeline",
			IsActive: true,
			Criteria: models.Criteria{
				{Field: "timeline", Operator: models.OpContains, Value: "Immediate", Points: 10},
			},
		},
	}
}
