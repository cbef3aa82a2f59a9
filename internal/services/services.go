package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"github.com/ajharbinger/crm-pipeline/internal/analytics"
	"github.com/ajharbinger/crm-pipeline/internal/auth"
	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/events"
	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/notify"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
	"github.com/ajharbinger/crm-pipeline/internal/scoring"
	"github.com/ajharbinger/crm-pipeline/pkg/config"
)

// Services contains all application services
type Services struct {
	Leads         LeadService
	Opportunities OpportunityService
	ScoringRules  ScoringRuleService
	Analytics     AnalyticsService
	Auth          AuthService
	Rescore       *RescorePipeline
}

// LeadService defines the interface for lead business logic
type LeadService interface {
	Create(ctx context.Context, in models.LeadInput) (*models.Lead, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Lead, error)
	List(ctx context.Context, filters models.LeadFilters) (*LeadPage, error)
	Update(ctx context.Context, id uuid.UUID, in models.LeadInput) (*models.Lead, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Score(ctx context.Context, id uuid.UUID) (*LeadScore, error)
	Qualify(ctx context.Context, id uuid.UUID, req QualifyRequest) (*models.Lead, error)
	Nurture(ctx context.Context, id uuid.UUID, req NurtureRequest) (*models.Activity, error)
	Convert(ctx context.Context, id uuid.UUID, req ConvertRequest) (*ConvertResult, error)
	Enrich(ctx context.Context, id uuid.UUID) (*models.Lead, error)

	Import(ctx context.Context, rows []models.LeadInput) (*ImportResult, error)
	Export(ctx context.Context, filters models.LeadFilters, format ExportFormat) ([]byte, error)
	Report(ctx context.Context) (*analytics.LeadReport, error)
}

// OpportunityService defines the interface for opportunity business logic
type OpportunityService interface {
	Create(ctx context.Context, in models.OpportunityInput, actor *uuid.UUID) (*models.Opportunity, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Opportunity, error)
	List(ctx context.Context, filters models.OpportunityFilters) (*OpportunityPage, error)
	Update(ctx context.Context, id uuid.UUID, in models.OpportunityInput, actor *uuid.UUID) (*models.Opportunity, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ScoringRuleService defines the interface for scoring rule management
type ScoringRuleService interface {
	List(ctx context.Context, includeInactive bool) ([]models.ScoringRule, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ScoringRule, error)
	Create(ctx context.Context, form models.ScoringRuleForm, actor *uuid.UUID) (*models.ScoringRule, error)
	Update(ctx context.Context, id uuid.UUID, form models.ScoringRuleForm) (*models.ScoringRule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Seed(ctx context.Context, rules []models.ScoringRule) (*SeedResult, error)
	// Evaluate scores an unsaved lead against the active rules.
	Evaluate(ctx context.Context, lead *models.Lead) (*scoring.Result, error)
}

// AnalyticsService defines the interface for pipeline analytics
type AnalyticsService interface {
	Pipeline(ctx context.Context) ([]analytics.StageBucket, error)
	Conversion(ctx context.Context, days int) (*analytics.ConversionResult, error)
	CustomerLifetimeValue(ctx context.Context) (*analytics.CLVResult, error)
	Forecast(ctx context.Context, months int) (*analytics.ForecastResult, error)
	Report(ctx context.Context, reportType string, days int) (*Report, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
}

// AuthService defines the interface for authentication business logic
type AuthService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
	RefreshToken(ctx context.Context, token string) (*models.TokenResponse, error)
	CreateUser(ctx context.Context, req models.RegisterRequest, role string) (*models.User, error)
}

// Enricher fills lead fields from the lead's website.
type Enricher interface {
	EnrichLead(ctx context.Context, lead *models.Lead) (bool, error)
}

// Recorder receives service-level metrics. *metrics.Manager implements it.
type Recorder interface {
	LeadScored()
	RescoreLead(result string)
	RescoreCycle(finished time.Time)
	EventPublished(eventType string, err error)
}

type nopRecorder struct{}

func (nopRecorder) LeadScored()                  {}
func (nopRecorder) RescoreLead(string)           {}
func (nopRecorder) RescoreCycle(time.Time)       {}
func (nopRecorder) EventPublished(string, error) {}

// Dependencies are the collaborators NewServices wires together. Only Repos
// and Config are required.
type Dependencies struct {
	Repos      *repository.Repositories
	Config     *config.Config
	Engine     *scoring.Engine
	Aggregator *analytics.Aggregator
	JWT        *auth.JWTService
	Publisher  events.Publisher
	Notifier   notify.Notifier
	Enricher   Enricher
	Recorder   Recorder
	Logger     logger.Logger
	Now        func() time.Time
}

func (d *Dependencies) setDefaults() {
	if d.Engine == nil {
		d.Engine = scoring.NewEngine()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Aggregator == nil {
		d.Aggregator = analytics.NewAggregator(analytics.WithClock(d.Now))
	}
	if d.JWT == nil {
		d.JWT = auth.NewJWTService(d.Config.JWTSecret)
	}
	if d.Publisher == nil {
		d.Publisher = events.NopPublisher{}
	}
	if d.Notifier == nil {
		d.Notifier = notify.NopNotifier{}
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
}

// NewServices creates a new Services instance with all dependencies
func NewServices(deps Dependencies) *Services {
	deps.setDefaults()

	leads := newLeadService(deps)
	return &Services{
		Leads:         leads,
		Opportunities: newOpportunityService(deps),
		ScoringRules:  newScoringRuleService(deps),
		Analytics:     newAnalyticsService(deps),
		Auth:          newAuthService(deps),
		Rescore:       NewRescorePipeline(deps, leads),
	}
}

// repoError converts repository sentinels into application errors.
func repoError(err error, what, operation string) error {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound(what+" not found", err).WithOperation(operation)
	case stderrors.Is(err, repository.ErrDuplicate):
		return errors.Conflict(what+" already exists", err).WithOperation(operation)
	default:
		return errors.DatabaseError("failed to access "+what, err).WithOperation(operation)
	}
}

// publish sends an event and never fails the caller; the broker is
// best-effort relative to the database write.
func publish(ctx context.Context, deps Dependencies, event events.Event) {
	err := deps.Publisher.Publish(ctx, event)
	deps.Recorder.EventPublished(event.Type, err)
	if err != nil {
		deps.Logger.Warn("Failed to publish event", "type", event.Type, "event_id", event.ID, "error", err)
	}
}
