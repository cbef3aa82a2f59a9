package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/events"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
	"github.com/ajharbinger/crm-pipeline/internal/scoring"
)

// SeedResult reports a rule seeding run.
type SeedResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// scoringRuleServiceImpl implements ScoringRuleService
type scoringRuleServiceImpl struct {
	Dependencies
}

func newScoringRuleService(deps Dependencies) ScoringRuleService {
	return &scoringRuleServiceImpl{Dependencies: deps}
}

// List returns active rules, or every rule when includeInactive is set
func (s *scoringRuleServiceImpl) List(ctx context.Context, includeInactive bool) ([]models.ScoringRule, error) {
	var (
		rules []models.ScoringRule
		err   error
	)
	if includeInactive {
		rules, err = s.Repos.ScoringRules.GetAll(ctx)
	} else {
		rules, err = s.Repos.ScoringRules.GetActive(ctx)
	}
	if err != nil {
		s.Logger.Error("Failed to retrieve scoring rules", err)
		return nil, repoError(err, "scoring rules", "ListScoringRules")
	}
	if rules == nil {
		rules = []models.ScoringRule{}
	}
	return rules, nil
}

// Get retrieves a scoring rule by ID
func (s *scoringRuleServiceImpl) Get(ctx context.Context, id uuid.UUID) (*models.ScoringRule, error) {
	rule, err := s.Repos.ScoringRules.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "scoring rule", "GetScoringRule")
	}
	return rule, nil
}

// Create validates the criteria against the lead field table and stores
// the rule. New rules are active unless is_active is false.
func (s *scoringRuleServiceImpl) Create(ctx context.Context, form models.ScoringRuleForm, actor *uuid.UUID) (*models.ScoringRule, error) {
	rule := &models.ScoringRule{
		Name:        strings.TrimSpace(form.Name),
		Description: form.Description,
		Criteria:    form.Criteria,
		IsActive:    form.IsActive == nil || *form.IsActive,
		CreatedBy:   actor,
	}
	if err := s.validate(rule); err != nil {
		return nil, err.WithOperation("CreateScoringRule")
	}

	if err := s.Repos.ScoringRules.Create(ctx, rule); err != nil {
		return nil, repoError(err, "scoring rule", "CreateScoringRule")
	}
	s.Logger.Info("Scoring rule created", "rule_id", rule.ID, "name", rule.Name, "criteria", len(rule.Criteria))
	s.rulesChanged(ctx, rule.ID)
	return rule, nil
}

// Update replaces a rule's name, description and criteria
func (s *scoringRuleServiceImpl) Update(ctx context.Context, id uuid.UUID, form models.ScoringRuleForm) (*models.ScoringRule, error) {
	rule, err := s.Repos.ScoringRules.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "scoring rule", "UpdateScoringRule")
	}

	rule.Name = strings.TrimSpace(form.Name)
	rule.Description = form.Description
	rule.Criteria = form.Criteria
	if form.IsActive != nil {
		rule.IsActive = *form.IsActive
	}
	if err := s.validate(rule); err != nil {
		return nil, err.WithOperation("UpdateScoringRule")
	}

	if err := s.Repos.ScoringRules.Update(ctx, rule); err != nil {
		return nil, repoError(err, "scoring rule", "UpdateScoringRule")
	}
	s.rulesChanged(ctx, rule.ID)
	return rule, nil
}

// Delete deactivates a rule
func (s *scoringRuleServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.Repos.ScoringRules.Delete(ctx, id); err != nil {
		return repoError(err, "scoring rule", "DeleteScoringRule")
	}
	s.rulesChanged(ctx, id)
	return nil
}

// Seed creates rules that do not exist yet and overwrites those with the
// same name, all in one transaction.
func (s *scoringRuleServiceImpl) Seed(ctx context.Context, rules []models.ScoringRule) (*SeedResult, error) {
	if err := s.Engine.Fields().Validate(rules); err != nil {
		return nil, errors.ValidationError("invalid scoring rules", err).WithDetails(err.Error()).WithOperation("SeedScoringRules")
	}

	result := &SeedResult{}
	err := s.Repos.Tx.WithTransaction(ctx, func(repos *repository.Repositories) error {
		existing, err := repos.ScoringRules.GetAll(ctx)
		if err != nil {
			return repoError(err, "scoring rules", "SeedScoringRules")
		}
		byName := make(map[string]models.ScoringRule, len(existing))
		for _, r := range existing {
			byName[r.Name] = r
		}

		for _, r := range rules {
			rule := r
			if current, ok := byName[rule.Name]; ok {
				rule.ID = current.ID
				rule.CreatedBy = current.CreatedBy
				if err := repos.ScoringRules.Update(ctx, &rule); err != nil {
					return repoError(err, "scoring rule", "SeedScoringRules")
				}
				result.Updated++
				continue
			}
			if err := repos.ScoringRules.Create(ctx, &rule); err != nil {
				return repoError(err, "scoring rule", "SeedScoringRules")
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Scoring rules seeded", "created", result.Created, "updated", result.Updated)
	s.rulesChanged(ctx, uuid.Nil)
	return result, nil
}

// Evaluate scores an unsaved lead against the active rules
func (s *scoringRuleServiceImpl) Evaluate(ctx context.Context, lead *models.Lead) (*scoring.Result, error) {
	rules, err := s.Repos.ScoringRules.GetActive(ctx)
	if err != nil {
		return nil, repoError(err, "scoring rules", "EvaluateLead")
	}
	result := s.Engine.Evaluate(lead, rules)
	return &result, nil
}

func (s *scoringRuleServiceImpl) validate(rule *models.ScoringRule) *errors.AppError {
	if rule.Name == "" {
		return errors.ValidationError("name is required", nil)
	}
	if len(rule.Criteria) == 0 {
		return errors.ValidationError("at least one criterion is required", nil)
	}
	if err := s.Engine.Fields().ValidateCriteria(rule.Name, rule.Criteria); err != nil {
		return errors.ValidationError("invalid criteria", err).WithDetails(err.Error())
	}
	return nil
}

func (s *scoringRuleServiceImpl) rulesChanged(ctx context.Context, ruleID uuid.UUID) {
	var data map[string]interface{}
	if ruleID != uuid.Nil {
		data = map[string]interface{}{"rule_id": ruleID}
	}
	event, err := events.New(events.ScoringRulesChanged, nil, data)
	if err != nil {
		return
	}
	publish(ctx, s.Dependencies, event)
}
