package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ajharbinger/crm-pipeline/internal/analytics"
	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/events"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
	"github.com/ajharbinger/crm-pipeline/internal/scoring"
)

const defaultActivityPriority = "Medium"

// LeadPage is one page of a lead listing.
type LeadPage struct {
	Leads  []models.Lead `json:"leads"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// LeadScore is the outcome of scoring one stored lead.
type LeadScore struct {
	LeadID        uuid.UUID                 `json:"lead_id"`
	Score         int                       `json:"score"`
	PreviousScore int                       `json:"previous_score"`
	Breakdown     []scoring.CriterionResult `json:"breakdown"`
	ScoredAt      time.Time                 `json:"scored_at"`
}

// QualifyRequest marks a lead qualified.
type QualifyRequest struct {
	Notes string     `json:"notes"`
	Actor *uuid.UUID `json:"-"`
}

// NurtureRequest plans a follow-up activity for a lead.
type NurtureRequest struct {
	Subject     string     `json:"subject"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	DelayDays   *int       `json:"delay_days"`
	Actor       *uuid.UUID `json:"-"`
}

// ConvertRequest turns a lead into a customer and optionally an opportunity.
type ConvertRequest struct {
	CreateOpportunity bool             `json:"create_opportunity"`
	OpportunityName   string           `json:"opportunity_name"`
	Amount            *decimal.Decimal `json:"amount"`
	ExpectedCloseDate *time.Time       `json:"expected_close_date"`
	AccountID         *uuid.UUID       `json:"account_id"`
	Description       string           `json:"description"`
	AssignedTo        *uuid.UUID       `json:"assigned_to"`
	Actor             *uuid.UUID       `json:"-"`
}

// ConvertResult is the converted lead and the opportunity created for it.
type ConvertResult struct {
	Lead        *models.Lead        `json:"lead"`
	Opportunity *models.Opportunity `json:"opportunity,omitempty"`
}

// leadServiceImpl implements LeadService
type leadServiceImpl struct {
	Dependencies
}

func newLeadService(deps Dependencies) *leadServiceImpl {
	return &leadServiceImpl{Dependencies: deps}
}

// Create validates, scores and stores a new lead
func (s *leadServiceImpl) Create(ctx context.Context, in models.LeadInput) (*models.Lead, error) {
	lead := &models.Lead{}
	in.Apply(lead)
	if lead.Source == "" {
		lead.Source = models.DefaultLeadSource
	}
	if lead.Status == "" {
		lead.Status = models.LeadStatusNew
	}
	if err := validateLead(lead); err != nil {
		return nil, err.WithOperation("CreateLead")
	}

	_, err := s.Repos.Leads.GetByEmail(ctx, lead.Email)
	switch {
	case err == nil:
		return nil, errors.Conflict("Lead with this email already exists", nil).WithOperation("CreateLead")
	case !stderrors.Is(err, repository.ErrNotFound):
		return nil, repoError(err, "lead", "CreateLead")
	}

	rules, err := s.Repos.ScoringRules.GetActive(ctx)
	if err != nil {
		return nil, repoError(err, "scoring rules", "CreateLead")
	}
	s.applyScore(lead, rules)

	if err := s.Repos.Leads.Create(ctx, lead); err != nil {
		return nil, repoError(err, "lead", "CreateLead")
	}
	s.Logger.Info("Lead created", "lead_id", lead.ID, "score", lead.Score)

	publish(ctx, s.Dependencies, events.ForLead(events.LeadCreated, lead.ID))
	if lead.Website != "" && lead.WebsiteSummary == "" {
		publish(ctx, s.Dependencies, events.ForLead(events.LeadEnrichmentRequested, lead.ID))
	}
	return lead, nil
}

// Get retrieves a lead by ID
func (s *leadServiceImpl) Get(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	lead, err := s.Repos.Leads.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "lead", "GetLead")
	}
	return lead, nil
}

// List retrieves a filtered page of leads
func (s *leadServiceImpl) List(ctx context.Context, filters models.LeadFilters) (*LeadPage, error) {
	if filters.Status != "" && !models.IsValidLeadStatus(filters.Status) {
		return nil, errors.InvalidInput("unknown lead status: "+filters.Status, nil).WithOperation("ListLeads")
	}
	leads, total, err := s.Repos.Leads.List(ctx, filters)
	if err != nil {
		return nil, repoError(err, "leads", "ListLeads")
	}
	if leads == nil {
		leads = []models.Lead{}
	}
	return &LeadPage{Leads: leads, Total: total, Limit: filters.Limit, Offset: filters.Offset}, nil
}

// Update applies the given fields, re-scores and stores the lead
func (s *leadServiceImpl) Update(ctx context.Context, id uuid.UUID, in models.LeadInput) (*models.Lead, error) {
	lead, err := s.Repos.Leads.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "lead", "UpdateLead")
	}

	oldEmail, oldWebsite := lead.Email, lead.Website
	in.Apply(lead)
	if err := validateLead(lead); err != nil {
		return nil, err.WithOperation("UpdateLead")
	}

	if lead.Email != oldEmail {
		if other, err := s.Repos.Leads.GetByEmail(ctx, lead.Email); err == nil && other.ID != lead.ID {
			return nil, errors.Conflict("Lead with this email already exists", nil).WithOperation("UpdateLead")
		}
	}
	if lead.Website != oldWebsite {
		lead.WebsiteSummary = ""
	}

	rules, err := s.Repos.ScoringRules.GetActive(ctx)
	if err != nil {
		return nil, repoError(err, "scoring rules", "UpdateLead")
	}
	s.applyScore(lead, rules)

	if err := s.Repos.Leads.Update(ctx, lead); err != nil {
		return nil, repoError(err, "lead", "UpdateLead")
	}

	publish(ctx, s.Dependencies, events.ForLead(events.LeadUpdated, lead.ID))
	if lead.Website != "" && lead.Website != oldWebsite {
		publish(ctx, s.Dependencies, events.ForLead(events.LeadEnrichmentRequested, lead.ID))
	}
	return lead, nil
}

// Delete removes a lead
func (s *leadServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.Repos.Leads.Delete(ctx, id); err != nil {
		return repoError(err, "lead", "DeleteLead")
	}
	s.Logger.Info("Lead deleted", "lead_id", id)
	return nil
}

// Score evaluates the active rules against a stored lead and writes the
// score back.
func (s *leadServiceImpl) Score(ctx context.Context, id uuid.UUID) (*LeadScore, error) {
	lead, err := s.Repos.Leads.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "lead", "ScoreLead")
	}
	rules, err := s.Repos.ScoringRules.GetActive(ctx)
	if err != nil {
		return nil, repoError(err, "scoring rules", "ScoreLead")
	}

	result := s.Engine.Evaluate(lead, rules)
	now := s.Now().UTC()
	if err := s.Repos.Leads.UpdateScore(ctx, lead.ID, result.Score, now); err != nil {
		return nil, repoError(err, "lead", "ScoreLead")
	}
	s.Recorder.LeadScored()

	return &LeadScore{
		LeadID:        lead.ID,
		Score:         result.Score,
		PreviousScore: lead.Score,
		Breakdown:     result.Breakdown,
		ScoredAt:      now,
	}, nil
}

// rescore writes a fresh score for lead and reports whether it changed.
func (s *leadServiceImpl) rescore(ctx context.Context, lead *models.Lead, rules []models.ScoringRule) (bool, error) {
	score := s.Engine.Score(lead, rules)
	if err := s.Repos.Leads.UpdateScore(ctx, lead.ID, score, s.Now().UTC()); err != nil {
		return false, err
	}
	s.Recorder.LeadScored()
	changed := score != lead.Score
	lead.Score = score
	return changed, nil
}

// applyScore stamps the write time and scores the lead as it will be
// stored, so time rules see the persisted created_at and updated_at.
func (s *leadServiceImpl) applyScore(lead *models.Lead, rules []models.ScoringRule) {
	now := s.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	lead.Score = s.Engine.Score(lead, rules)
	lead.ScoredAt = &now
	s.Recorder.LeadScored()
}

// scoreInTx rescores lead against the active rules read through repos.
func (s *leadServiceImpl) scoreInTx(ctx context.Context, repos *repository.Repositories, lead *models.Lead, operation string) error {
	rules, err := repos.ScoringRules.GetActive(ctx)
	if err != nil {
		return repoError(err, "scoring rules", operation)
	}
	s.applyScore(lead, rules)
	return nil
}

// Qualify sets the lead status to Qualified and logs a completed activity
func (s *leadServiceImpl) Qualify(ctx context.Context, id uuid.UUID, req QualifyRequest) (*models.Lead, error) {
	var lead *models.Lead
	err := s.Repos.Tx.WithTransaction(ctx, func(repos *repository.Repositories) error {
		var err error
		lead, err = repos.Leads.GetByID(ctx, id)
		if err != nil {
			return repoError(err, "lead", "QualifyLead")
		}
		if lead.IsConverted() {
			return errors.InvalidInput("converted leads cannot be qualified", nil).WithOperation("QualifyLead")
		}

		lead.Status = models.LeadStatusQualified
		if req.Notes != "" {
			lead.Notes = req.Notes
		}
		if err := s.scoreInTx(ctx, repos, lead, "QualifyLead"); err != nil {
			return err
		}
		if err := repos.Leads.Update(ctx, lead); err != nil {
			return repoError(err, "lead", "QualifyLead")
		}

		now := s.Now().UTC()
		activity := &models.Activity{
			Subject:       "Lead Qualified: " + lead.FullName(),
			Type:          models.ActivityTask,
			Status:        models.ActivityCompleted,
			Priority:      defaultActivityPriority,
			Description:   fmt.Sprintf("Lead qualified with score: %d", lead.Score),
			CompletedDate: &now,
			LeadID:        &lead.ID,
			CreatedBy:     req.Actor,
		}
		if err := repos.Activities.Create(ctx, activity); err != nil {
			return repoError(err, "activity", "QualifyLead")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Lead qualified", "lead_id", lead.ID, "score", lead.Score)
	publish(ctx, s.Dependencies, events.ForLead(events.LeadQualified, lead.ID))
	if err := s.Notifier.LeadQualified(ctx, lead, s.recipient(ctx, lead.AssignedTo)); err != nil {
		s.Logger.Warn("Failed to send qualification notice", "lead_id", lead.ID, "error", err)
	}
	return lead, nil
}

// Nurture plans a follow-up activity delay_days from now (default 1)
func (s *leadServiceImpl) Nurture(ctx context.Context, id uuid.UUID, req NurtureRequest) (*models.Activity, error) {
	lead, err := s.Repos.Leads.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "lead", "NurtureLead")
	}

	delay := 1
	if req.DelayDays != nil {
		if *req.DelayDays < 0 {
			return nil, errors.InvalidInput("delay_days must not be negative", nil).WithOperation("NurtureLead")
		}
		delay = *req.DelayDays
	}
	subject := req.Subject
	if subject == "" {
		subject = "Lead Nurturing"
	}
	activityType := req.Type
	if activityType == "" {
		activityType = models.ActivityEmail
	}
	if !isActivityType(activityType) {
		return nil, errors.InvalidInput("unknown activity type: "+activityType, nil).WithOperation("NurtureLead")
	}

	due := s.Now().UTC().AddDate(0, 0, delay)
	activity := &models.Activity{
		Subject:     "Nurturing: " + subject,
		Type:        activityType,
		Status:      models.ActivityPlanned,
		Priority:    defaultActivityPriority,
		Description: req.Description,
		DueDate:     &due,
		LeadID:      &lead.ID,
		CreatedBy:   req.Actor,
	}
	if err := s.Repos.Activities.Create(ctx, activity); err != nil {
		return nil, repoError(err, "activity", "NurtureLead")
	}
	return activity, nil
}

// Convert marks the lead Converted, optionally opening an opportunity at
// Prospecting, and logs the conversion.
func (s *leadServiceImpl) Convert(ctx context.Context, id uuid.UUID, req ConvertRequest) (*ConvertResult, error) {
	result := &ConvertResult{}
	err := s.Repos.Tx.WithTransaction(ctx, func(repos *repository.Repositories) error {
		lead, err := repos.Leads.GetByID(ctx, id)
		if err != nil {
			return repoError(err, "lead", "ConvertLead")
		}
		if lead.IsConverted() {
			return errors.Conflict("lead is already converted", nil).WithOperation("ConvertLead")
		}
		if req.CreateOpportunity && req.AccountID != nil {
			if _, err := repos.Accounts.GetByID(ctx, *req.AccountID); err != nil {
				return repoError(err, "account", "ConvertLead")
			}
		}

		lead.Status = models.LeadStatusConverted
		if err := s.scoreInTx(ctx, repos, lead, "ConvertLead"); err != nil {
			return err
		}
		if err := repos.Leads.Update(ctx, lead); err != nil {
			return repoError(err, "lead", "ConvertLead")
		}
		result.Lead = lead

		oppName := "N/A"
		if req.CreateOpportunity {
			opp := &models.Opportunity{
				Name:              req.OpportunityName,
				LeadID:            &lead.ID,
				AccountID:         req.AccountID,
				Stage:             models.StageProspecting,
				Probability:       DefaultProbability(models.StageProspecting),
				ExpectedCloseDate: req.ExpectedCloseDate,
				Source:            lead.Source,
				Description:       req.Description,
				AssignedTo:        req.AssignedTo,
			}
			if opp.Name == "" {
				opp.Name = "Opportunity from " + lead.FullName()
			}
			if req.Amount != nil {
				if req.Amount.IsNegative() {
					return errors.InvalidInput("amount must not be negative", nil).WithOperation("ConvertLead")
				}
				opp.Amount = decimal.NewNullDecimal(*req.Amount)
			}
			if opp.AssignedTo == nil {
				opp.AssignedTo = lead.AssignedTo
			}
			if err := repos.Opportunities.Create(ctx, opp); err != nil {
				return repoError(err, "opportunity", "ConvertLead")
			}
			result.Opportunity = opp
			oppName = opp.Name
		}

		now := s.Now().UTC()
		activity := &models.Activity{
			Subject:       "Lead Converted: " + lead.FullName(),
			Type:          models.ActivityTask,
			Status:        models.ActivityCompleted,
			Priority:      defaultActivityPriority,
			Description:   "Lead converted to opportunity: " + oppName,
			CompletedDate: &now,
			LeadID:        &lead.ID,
			CreatedBy:     req.Actor,
		}
		if result.Opportunity != nil {
			activity.OpportunityID = &result.Opportunity.ID
		}
		if err := repos.Activities.Create(ctx, activity); err != nil {
			return repoError(err, "activity", "ConvertLead")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lead := result.Lead
	s.Logger.Info("Lead converted", "lead_id", lead.ID, "opportunity", result.Opportunity != nil)

	var data map[string]interface{}
	if result.Opportunity != nil {
		data = map[string]interface{}{"opportunity_id": result.Opportunity.ID}
	}
	if event, err := events.New(events.LeadConverted, &lead.ID, data); err == nil {
		publish(ctx, s.Dependencies, event)
	}
	if err := s.Notifier.LeadConverted(ctx, lead, result.Opportunity, s.recipient(ctx, lead.AssignedTo)); err != nil {
		s.Logger.Warn("Failed to send conversion notice", "lead_id", lead.ID, "error", err)
	}
	return result, nil
}

// Enrich fetches the lead's website, stores what it learned and re-scores.
func (s *leadServiceImpl) Enrich(ctx context.Context, id uuid.UUID) (*models.Lead, error) {
	if s.Enricher == nil {
		return nil, errors.ServiceError("website enrichment is disabled", nil).WithOperation("EnrichLead")
	}
	lead, err := s.Repos.Leads.GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "lead", "EnrichLead")
	}
	if lead.Website == "" {
		return nil, errors.InvalidInput("lead has no website", nil).WithOperation("EnrichLead")
	}

	changed, err := s.Enricher.EnrichLead(ctx, lead)
	if err != nil {
		return nil, errors.ServiceError("failed to enrich lead", err).WithOperation("EnrichLead")
	}
	if !changed {
		return lead, nil
	}

	rules, err := s.Repos.ScoringRules.GetActive(ctx)
	if err != nil {
		return nil, repoError(err, "scoring rules", "EnrichLead")
	}
	s.applyScore(lead, rules)
	if err := s.Repos.Leads.Update(ctx, lead); err != nil {
		return nil, repoError(err, "lead", "EnrichLead")
	}
	s.Logger.Info("Lead enriched", "lead_id", lead.ID, "industry", lead.Industry, "score", lead.Score)
	return lead, nil
}

// Report summarizes every lead.
func (s *leadServiceImpl) Report(ctx context.Context) (*analytics.LeadReport, error) {
	leads, err := s.Repos.Leads.ListAll(ctx)
	if err != nil {
		return nil, repoError(err, "leads", "LeadReport")
	}
	report := s.Aggregator.LeadReport(leads)
	return &report, nil
}

// recipient resolves the assigned user's email; "" lets the notifier fall
// back to its default inbox.
func (s *leadServiceImpl) recipient(ctx context.Context, userID *uuid.UUID) string {
	if userID == nil {
		return ""
	}
	user, err := s.Repos.Users.GetByID(ctx, *userID)
	if err != nil {
		return ""
	}
	return user.Email
}

func validateLead(lead *models.Lead) *errors.AppError {
	var missing []string
	if lead.FirstName == "" {
		missing = append(missing, "first_name")
	}
	if lead.LastName == "" {
		missing = append(missing, "last_name")
	}
	if lead.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return errors.ValidationError(strings.Join(missing, ", ")+" is required", nil)
	}
	if !strings.Contains(lead.Email, "@") {
		return errors.ValidationError("email is invalid", nil)
	}
	if !models.IsValidLeadStatus(lead.Status) {
		return errors.ValidationError("unknown lead status: "+lead.Status, nil)
	}
	if lead.Budget.Valid && lead.Budget.Decimal.IsNegative() {
		return errors.ValidationError("budget must not be negative", nil)
	}
	return nil
}

func isActivityType(t string) bool {
	switch t {
	case models.ActivityCall, models.ActivityEmail, models.ActivityMeeting, models.ActivityTask:
		return true
	}
	return false
}
