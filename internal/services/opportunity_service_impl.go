package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
)

// stageProbabilities are the default win probabilities per stage.
var stageProbabilities = map[string]int{
	models.StageProspecting:   10,
	models.StageQualification: 25,
	models.StageProposal:      50,
	models.StageNegotiation:   75,
	models.StageClosedWon:     100,
	models.StageClosedLost:    0,
}

// DefaultProbability returns the win probability assumed for stage.
func DefaultProbability(stage string) int {
	return stageProbabilities[stage]
}

// OpportunityPage is one page of an opportunity listing.
type OpportunityPage struct {
	Opportunities []models.Opportunity `json:"opportunities"`
	Total         int                  `json:"total"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
}

// opportunityServiceImpl implements OpportunityService
type opportunityServiceImpl struct {
	Dependencies
}

func newOpportunityService(deps Dependencies) OpportunityService {
	return &opportunityServiceImpl{Dependencies: deps}
}

// Create validates and stores a new opportunity. Probability defaults from
// the stage when not given.
func (s *opportunityServiceImpl) Create(ctx context.Context, in models.OpportunityInput, actor *uuid.UUID) (*models.Opportunity, error) {
	opp := &models.Opportunity{}
	in.Apply(opp)
	if opp.Stage == "" {
		opp.Stage = models.StageProspecting
	}
	if in.Probability == nil {
		opp.Probability = DefaultProbability(opp.Stage)
	}
	if opp.AssignedTo == nil {
		opp.AssignedTo = actor
	}
	if err := validateOpportunity(opp); err != nil {
		return nil, err.WithOperation("CreateOpportunity")
	}
	if models.IsClosedStage(opp.Stage) {
		now := s.Now().UTC()
		opp.ActualCloseDate = &now
	}

	if err := s.Repos.Opportunities.Create(ctx, opp); err != nil {
		return nil, repoError(err, "opportunity", "CreateOpportunity")
	}
	s.Logger.Info("Opportunity created", "opportunity_id", opp.ID, "stage", opp.Stage)
	return opp, nil
}

// Get retrieves an opportunity by ID
func (s *opportunityServiceImpl) Get(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	opp, err := s.Repos.Opportunities.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "opportunity", "GetOpportunity")
	}
	return opp, nil
}

// List retrieves a filtered page of opportunities
func (s *opportunityServiceImpl) List(ctx context.Context, filters models.OpportunityFilters) (*OpportunityPage, error) {
	if filters.Stage != "" && models.StageIndex(filters.Stage) < 0 {
		return nil, errors.InvalidInput("unknown stage: "+filters.Stage, nil).WithOperation("ListOpportunities")
	}
	opps, total, err := s.Repos.Opportunities.List(ctx, filters)
	if err != nil {
		return nil, repoError(err, "opportunities", "ListOpportunities")
	}
	if opps == nil {
		opps = []models.Opportunity{}
	}
	return &OpportunityPage{Opportunities: opps, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// Update applies changes. A stage change logs a completed activity, resets
// probability to the stage default unless one was given, and stamps or
// clears the actual close date.
func (s *opportunityServiceImpl) Update(ctx context.Context, id uuid.UUID, in models.OpportunityInput, actor *uuid.UUID) (*models.Opportunity, error) {
	var opp *models.Opportunity
	err := s.Repos.Tx.WithTransaction(ctx, func(repos *repository.Repositories) error {
		var err error
		opp, err = repos.Opportunities.GetByID(ctx, id)
		if err != nil {
			return repoError(err, "opportunity", "UpdateOpportunity")
		}

		oldStage := opp.Stage
		in.Apply(opp)
		stageChanged := opp.Stage != oldStage
		if stageChanged && in.Probability == nil {
			opp.Probability = DefaultProbability(opp.Stage)
		}
		if err := validateOpportunity(opp); err != nil {
			return err.WithOperation("UpdateOpportunity")
		}

		switch {
		case models.IsClosedStage(opp.Stage) && opp.ActualCloseDate == nil:
			now := s.Now().UTC()
			opp.ActualCloseDate = &now
		case !models.IsClosedStage(opp.Stage):
			opp.ActualCloseDate = nil
		}

		if err := repos.Opportunities.Update(ctx, opp); err != nil {
			return repoError(err, "opportunity", "UpdateOpportunity")
		}
		if !stageChanged {
			return nil
		}

		now := s.Now().UTC()
		activity := &models.Activity{
			Subject:       fmt.Sprintf("Stage Change: %s → %s", oldStage, opp.Stage),
			Type:          models.ActivityTask,
			Status:        models.ActivityCompleted,
			Priority:      defaultActivityPriority,
			Description:   fmt.Sprintf("Opportunity moved from %s to %s", oldStage, opp.Stage),
			CompletedDate: &now,
			OpportunityID: &opp.ID,
			AccountID:     opp.AccountID,
			CreatedBy:     actor,
		}
		if err := repos.Activities.Create(ctx, activity); err != nil {
			return repoError(err, "activity", "UpdateOpportunity")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return opp, nil
}

// Delete removes an opportunity
func (s *opportunityServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.Repos.Opportunities.Delete(ctx, id); err != nil {
		return repoError(err, "opportunity", "DeleteOpportunity")
	}
	return nil
}

func validateOpportunity(opp *models.Opportunity) *errors.AppError {
	if opp.Name == "" {
		return errors.ValidationError("name is required", nil)
	}
	if models.StageIndex(opp.Stage) < 0 {
		return errors.ValidationError("unknown stage: "+opp.Stage, nil)
	}
	if opp.Probability < 0 || opp.Probability > 100 {
		return errors.ValidationError("probability must be between 0 and 100", nil)
	}
	if opp.Amount.Valid && opp.Amount.Decimal.IsNegative() {
		return errors.ValidationError("amount must not be negative", nil)
	}
	return nil
}
