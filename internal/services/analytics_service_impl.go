package services

import (
	"context"
	"time"

	"github.com/ajharbinger/crm-pipeline/internal/analytics"
	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/repository"
)

// Report types accepted by AnalyticsService.Report
const (
	ReportAll           = "all"
	ReportLeads         = "leads"
	ReportOpportunities = "opportunities"
	ReportActivities    = "activities"
	ReportSales         = "sales"
)

const (
	maxWindowDays     = 3650
	maxForecastMonths = 60
)

// Report bundles the requested report sections. Sections that were not
// requested are omitted.
type Report struct {
	Type          string                       `json:"type"`
	GeneratedAt   time.Time                    `json:"generated_at"`
	Leads         *analytics.LeadReport        `json:"leads,omitempty"`
	Opportunities *analytics.OpportunityReport `json:"opportunities,omitempty"`
	Activities    *analytics.ActivitySummary   `json:"activities,omitempty"`
	Sales         *analytics.SalesReport       `json:"sales,omitempty"`
}

// Dashboard is the landing-page summary.
type Dashboard struct {
	Counts     *repository.CRMCounts      `json:"counts"`
	Pipeline   []analytics.StageBucket    `json:"pipeline"`
	Conversion analytics.ConversionResult `json:"conversion"`
	Forecast   analytics.ForecastResult   `json:"forecast"`
	CLV        analytics.CLVResult        `json:"customer_lifetime_value"`
}

// analyticsServiceImpl implements AnalyticsService
type analyticsServiceImpl struct {
	Dependencies
}

func newAnalyticsService(deps Dependencies) AnalyticsService {
	return &analyticsServiceImpl{Dependencies: deps}
}

// Pipeline groups every opportunity by stage
func (s *analyticsServiceImpl) Pipeline(ctx context.Context) ([]analytics.StageBucket, error) {
	opps, err := s.Repos.Opportunities.ListAll(ctx)
	if err != nil {
		return nil, repoError(err, "opportunities", "PipelineByStage")
	}
	return s.Aggregator.PipelineByStage(opps), nil
}

// Conversion computes the conversion rate of leads created in the last days
func (s *analyticsServiceImpl) Conversion(ctx context.Context, days int) (*analytics.ConversionResult, error) {
	if days <= 0 || days > maxWindowDays {
		return nil, errors.InvalidInput("days must be between 1 and 3650", nil).WithOperation("LeadConversionRate")
	}
	leads, err := s.Repos.Leads.ListCreatedSince(ctx, s.since(days))
	if err != nil {
		return nil, repoError(err, "leads", "LeadConversionRate")
	}
	result := s.Aggregator.LeadConversionRate(leads, days)
	return &result, nil
}

// CustomerLifetimeValue averages closed-won revenue per account
func (s *analyticsServiceImpl) CustomerLifetimeValue(ctx context.Context) (*analytics.CLVResult, error) {
	opps, err := s.Repos.Opportunities.ListAll(ctx)
	if err != nil {
		return nil, repoError(err, "opportunities", "CustomerLifetimeValue")
	}
	result := s.Aggregator.CustomerLifetimeValue(opps)
	return &result, nil
}

// Forecast sums the weighted value of open deals closing within months
func (s *analyticsServiceImpl) Forecast(ctx context.Context, months int) (*analytics.ForecastResult, error) {
	if months <= 0 || months > maxForecastMonths {
		return nil, errors.InvalidInput("months must be between 1 and 60", nil).WithOperation("SalesForecast")
	}
	opps, err := s.Repos.Opportunities.ListAll(ctx)
	if err != nil {
		return nil, repoError(err, "opportunities", "SalesForecast")
	}
	result := s.Aggregator.SalesForecast(opps, months)
	return &result, nil
}

// Report builds one report section, or all of them for "all". days bounds
// the activity summary.
func (s *analyticsServiceImpl) Report(ctx context.Context, reportType string, days int) (*Report, error) {
	if reportType == "" {
		reportType = ReportAll
	}
	switch reportType {
	case ReportAll, ReportLeads, ReportOpportunities, ReportActivities, ReportSales:
	default:
		return nil, errors.InvalidInput("unknown report type: "+reportType, nil).WithOperation("GenerateReport")
	}
	if days <= 0 || days > maxWindowDays {
		return nil, errors.InvalidInput("days must be between 1 and 3650", nil).WithOperation("GenerateReport")
	}

	report := &Report{Type: reportType, GeneratedAt: s.Now().UTC()}
	want := func(t string) bool { return reportType == ReportAll || reportType == t }

	if want(ReportLeads) {
		leads, err := s.Repos.Leads.ListAll(ctx)
		if err != nil {
			return nil, repoError(err, "leads", "GenerateReport")
		}
		r := s.Aggregator.LeadReport(leads)
		report.Leads = &r
	}

	if want(ReportOpportunities) || want(ReportSales) {
		opps, err := s.Repos.Opportunities.ListAll(ctx)
		if err != nil {
			return nil, repoError(err, "opportunities", "GenerateReport")
		}
		if want(ReportOpportunities) {
			r := s.Aggregator.OpportunityReport(opps)
			report.Opportunities = &r
		}
		if want(ReportSales) {
			r := s.Aggregator.SalesReport(opps)
			report.Sales = &r
		}
	}

	if want(ReportActivities) {
		activities, err := s.Repos.Activities.ListCreatedSince(ctx, s.since(days))
		if err != nil {
			return nil, repoError(err, "activities", "GenerateReport")
		}
		r := s.Aggregator.ActivitySummary(activities, days)
		report.Activities = &r
	}
	return report, nil
}

// Dashboard collects headline counts with 30-day conversion, a 3-month
// forecast, CLV and the stage breakdown.
func (s *analyticsServiceImpl) Dashboard(ctx context.Context) (*Dashboard, error) {
	counts, err := s.Repos.Stats.Counts(ctx)
	if err != nil {
		return nil, repoError(err, "dashboard counts", "Dashboard")
	}
	opps, err := s.Repos.Opportunities.ListAll(ctx)
	if err != nil {
		return nil, repoError(err, "opportunities", "Dashboard")
	}
	leads, err := s.Repos.Leads.ListCreatedSince(ctx, s.since(30))
	if err != nil {
		return nil, repoError(err, "leads", "Dashboard")
	}

	return &Dashboard{
		Counts:     counts,
		Pipeline:   s.Aggregator.PipelineByStage(opps),
		Conversion: s.Aggregator.LeadConversionRate(leads, 30),
		Forecast:   s.Aggregator.SalesForecast(opps, 3),
		CLV:        s.Aggregator.CustomerLifetimeValue(opps),
	}, nil
}

func (s *analyticsServiceImpl) since(days int) time.Time {
	return s.Aggregator.Now().AddDate(0, 0, -days)
}
