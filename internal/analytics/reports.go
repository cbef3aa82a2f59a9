package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ajharbinger/crm-pipeline/internal/models"
)

const unknownLabel = "Unknown"

// Score bucket labels
const (
	ScoreRangeLow     = "0-25"
	ScoreRangeMedium  = "26-50"
	ScoreRangeHigh    = "51-75"
	ScoreRangeHottest = "76-100"
)

// LeadReport breaks leads down by status, source, industry and score.
type LeadReport struct {
	TotalLeads     int            `json:"total_leads"`
	ByStatus       map[string]int `json:"by_status"`
	BySource       map[string]int `json:"by_source"`
	ByIndustry     map[string]int `json:"by_industry"`
	ByScoreRange   map[string]int `json:"by_score_range"`
	ConversionRate float64        `json:"conversion_rate"`
	AverageScore   float64        `json:"average_score"`
}

// StageValue is a count and summed amount.
type StageValue struct {
	Count int             `json:"count"`
	Value decimal.Decimal `json:"value"`
}

// OpportunityReport summarizes the whole opportunity book.
type OpportunityReport struct {
	TotalOpportunities    int                   `json:"total_opportunities"`
	ByStage               map[string]StageValue `json:"by_stage"`
	ByType                map[string]int        `json:"by_type"`
	BySource              map[string]int        `json:"by_source"`
	TotalPipelineValue    decimal.Decimal       `json:"total_pipeline_value"`
	WeightedPipelineValue decimal.Decimal       `json:"weighted_pipeline_value"`
	WonValue              decimal.Decimal       `json:"won_value"`
	LostValue             decimal.Decimal       `json:"lost_value"`
}

// MonthlySales is won revenue for one close month.
type MonthlySales struct {
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// SalesReport summarizes Closed Won opportunities.
type SalesReport struct {
	TotalSales      int                     `json:"total_sales"`
	TotalRevenue    decimal.Decimal         `json:"total_revenue"`
	AverageDealSize decimal.Decimal         `json:"average_deal_size"`
	ByMonth         map[string]MonthlySales `json:"by_month"`
}

// ActivitySummary counts activities created within a window.
type ActivitySummary struct {
	TotalActivities     int            `json:"total_activities"`
	CompletedActivities int            `json:"completed_activities"`
	PendingActivities   int            `json:"pending_activities"`
	ByType              map[string]int `json:"by_type"`
	ByPriority          map[string]int `json:"by_priority"`
	PeriodDays          int            `json:"period_days"`
}

// LeadReport builds a LeadReport over all given leads.
func (a *Aggregator) LeadReport(leads []models.Lead) LeadReport {
	r := LeadReport{
		TotalLeads: len(leads),
		ByStatus:   map[string]int{},
		BySource:   map[string]int{},
		ByIndustry: map[string]int{},
		ByScoreRange: map[string]int{
			ScoreRangeLow:     0,
			ScoreRangeMedium:  0,
			ScoreRangeHigh:    0,
			ScoreRangeHottest: 0,
		},
	}

	converted, totalScore := 0, 0
	for _, l := range leads {
		r.ByStatus[orUnknown(l.Status)]++
		r.BySource[orUnknown(l.Source)]++
		r.ByIndustry[orUnknown(l.Industry)]++
		r.ByScoreRange[ScoreRange(l.Score)]++
		if l.Status == models.LeadStatusConverted {
			converted++
		}
		totalScore += l.Score
	}

	r.ConversionRate = percent(converted, len(leads))
	if len(leads) > 0 {
		r.AverageScore = decimal.NewFromInt(int64(totalScore)).
			Div(decimal.NewFromInt(int64(len(leads)))).
			Round(2).
			InexactFloat64()
	}
	return r
}

// ScoreRange returns the report bucket for a score. Scores are not clamped,
// so negatives land in the lowest bucket and anything above 75 in the top.
func ScoreRange(score int) string {
	switch {
	case score <= 25:
		return ScoreRangeLow
	case score <= 50:
		return ScoreRangeMedium
	case score <= 75:
		return ScoreRangeHigh
	default:
		return ScoreRangeHottest
	}
}

// OpportunityReport builds an OpportunityReport over all given opportunities.
func (a *Aggregator) OpportunityReport(opps []models.Opportunity) OpportunityReport {
	r := OpportunityReport{
		TotalOpportunities:    len(opps),
		ByStage:               map[string]StageValue{},
		ByType:                map[string]int{},
		BySource:              map[string]int{},
		TotalPipelineValue:    decimal.Zero,
		WeightedPipelineValue: decimal.Zero,
		WonValue:              decimal.Zero,
		LostValue:             decimal.Zero,
	}

	for _, o := range opps {
		sv, ok := r.ByStage[o.Stage]
		if !ok {
			sv.Value = decimal.Zero
		}
		sv.Count++
		if o.Amount.Valid {
			sv.Value = sv.Value.Add(o.Amount.Decimal)
			r.TotalPipelineValue = r.TotalPipelineValue.Add(o.Amount.Decimal)
			r.WeightedPipelineValue = r.WeightedPipelineValue.Add(weighted(o))
			switch o.Stage {
			case models.StageClosedWon:
				r.WonValue = r.WonValue.Add(o.Amount.Decimal)
			case models.StageClosedLost:
				r.LostValue = r.LostValue.Add(o.Amount.Decimal)
			}
		}
		r.ByStage[o.Stage] = sv
		r.ByType[orUnknown(o.Type)]++
		r.BySource[orUnknown(o.Source)]++
	}

	r.WeightedPipelineValue = r.WeightedPipelineValue.Round(2)
	return r
}

// SalesReport builds a SalesReport from the Closed Won opportunities in opps.
// Months are keyed YYYY-MM by actual close date; deals without one count in
// the totals only.
func (a *Aggregator) SalesReport(opps []models.Opportunity) SalesReport {
	r := SalesReport{
		TotalRevenue:    decimal.Zero,
		AverageDealSize: decimal.Zero,
		ByMonth:         map[string]MonthlySales{},
	}

	for _, o := range opps {
		if o.Stage != models.StageClosedWon {
			continue
		}
		r.TotalSales++
		if !o.Amount.Valid {
			continue
		}
		r.TotalRevenue = r.TotalRevenue.Add(o.Amount.Decimal)
		if o.ActualCloseDate != nil {
			key := o.ActualCloseDate.UTC().Format("2006-01")
			m, ok := r.ByMonth[key]
			if !ok {
				m.Revenue = decimal.Zero
			}
			m.Count++
			m.Revenue = m.Revenue.Add(o.Amount.Decimal)
			r.ByMonth[key] = m
		}
	}

	if r.TotalSales > 0 {
		r.AverageDealSize = r.TotalRevenue.Div(decimal.NewFromInt(int64(r.TotalSales))).Round(2)
	}
	return r
}

// ActivitySummary counts activities created within the last days.
func (a *Aggregator) ActivitySummary(activities []models.Activity, days int) ActivitySummary {
	start := a.now().AddDate(0, 0, -days)

	s := ActivitySummary{
		ByType:     map[string]int{},
		ByPriority: map[string]int{},
		PeriodDays: days,
	}
	for _, act := range activities {
		if act.CreatedAt.Before(start) {
			continue
		}
		s.TotalActivities++
		switch act.Status {
		case models.ActivityCompleted:
			s.CompletedActivities++
		case models.ActivityPlanned:
			s.PendingActivities++
		}
		s.ByType[orUnknown(act.Type)]++
		s.ByPriority[orUnknown(act.Priority)]++
	}
	return s
}

// Now exposes the aggregator clock so callers share one notion of time.
func (a *Aggregator) Now() time.Time {
	return a.now()
}

func orUnknown(s string) string {
	if s == "" {
		return unknownLabel
	}
	return s
}
