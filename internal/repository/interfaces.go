package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// LeadRepository defines the interface for lead data access
type LeadRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	GetByEmail(ctx context.Context, email string) (*models.Lead, error)
	Create(ctx context.Context, lead *models.Lead) error
	Update(ctx context.Context, lead *models.Lead) error
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, filters models.LeadFilters) ([]models.Lead, int, error)
	ListAll(ctx context.Context) ([]models.Lead, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]models.Lead, error)
	ListForRescore(ctx context.Context, criteria RescoreCriteria) ([]models.Lead, error)
	UpdateScore(ctx context.Context, id uuid.UUID, score int, scoredAt time.Time) error
}

// OpportunityRepository defines the interface for opportunity data access
type OpportunityRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	Create(ctx context.Context, opp *models.Opportunity) error
	Update(ctx context.Context, opp *models.Opportunity) error
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, filters models.OpportunityFilters) ([]models.Opportunity, int, error)
	ListAll(ctx context.Context) ([]models.Opportunity, error)
}

// ScoringRuleRepository defines the interface for scoring rule data access
type ScoringRuleRepository interface {
	GetActive(ctx context.Context) ([]models.ScoringRule, error)
	GetAll(ctx context.Context) ([]models.ScoringRule, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ScoringRule, error)
	Create(ctx context.Context, rule *models.ScoringRule) error
	Update(ctx context.Context, rule *models.ScoringRule) error
	// Delete deactivates the rule; history stays queryable.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ActivityRepository defines the interface for activity data access
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	ListByLead(ctx context.Context, leadID uuid.UUID) ([]models.Activity, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]models.Activity, error)
}

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	List(ctx context.Context, limit, offset int) ([]models.Account, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// StatsRepository returns headline counts for the dashboard.
type StatsRepository interface {
	Counts(ctx context.Context) (*CRMCounts, error)
}

// TransactionManager defines the interface for database transaction management
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(repos *Repositories) error) error
}

// Repositories groups all repository interfaces
type Repositories struct {
	Leads         LeadRepository
	Opportunities OpportunityRepository
	ScoringRules  ScoringRuleRepository
	Activities    ActivityRepository
	Accounts      AccountRepository
	Users         UserRepository
	Stats         StatsRepository
	Tx            TransactionManager
}

// RescoreCriteria selects leads for batch rescoring. Results are ordered by
// id so AfterID can page through the table.
type RescoreCriteria struct {
	// ScoredBefore picks leads never scored or scored before this time.
	ScoredBefore *time.Time
	// UnscoredOnly restricts to leads with no scored_at.
	UnscoredOnly bool
	AfterID      uuid.UUID
	Limit        int
}

// CRMCounts are headline totals.
type CRMCounts struct {
	TotalLeads         int `json:"total_leads"`
	ActiveLeads        int `json:"active_leads"`
	TotalAccounts      int `json:"total_accounts"`
	TotalOpportunities int `json:"total_opportunities"`
	WonOpportunities   int `json:"won_opportunities"`
	TotalActivities    int `json:"total_activities"`
	PendingActivities  int `json:"pending_activities"`
	ActiveScoringRules int `json:"active_scoring_rules"`
}
